package document

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/joestump/docmerge/internal/placeholder"
	"github.com/xuri/excelize/v2"
)

func openXLSX(data []byte) (*excelize.File, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return f, nil
}

func extractXLSX(ctx context.Context, data []byte) (string, error) {
	f, err := openXLSX(data)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var lines []string
	for _, sheet := range f.GetSheetList() {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("%w: sheet %q: %v", ErrCorrupt, sheet, err)
		}
		for _, row := range rows {
			lines = append(lines, strings.Join(row, "\t"))
		}
	}
	return strings.Join(lines, "\n"), nil
}

func substituteXLSX(ctx context.Context, data []byte, subst map[string]string) ([]byte, error) {
	f, err := openXLSX(data)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	for _, sheet := range f.GetSheetList() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("%w: sheet %q: %v", ErrCorrupt, sheet, err)
		}
		for r, row := range rows {
			for c, value := range row {
				if !placeholder.Contains(value) {
					continue
				}
				cell, err := excelize.CoordinatesToCellName(c+1, r+1)
				if err != nil {
					return nil, err
				}
				if err := f.SetCellValue(sheet, cell, placeholder.Replace(value, subst)); err != nil {
					return nil, fmt.Errorf("set %s!%s: %w", sheet, cell, err)
				}
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
