package document

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	"github.com/joestump/docmerge/internal/placeholder"
)

// docxTextPartRe selects the parts of a .docx package that carry body text.
var docxTextPartRe = regexp.MustCompile(`^word/(document|header[0-9]*|footer[0-9]*|footnotes|endnotes)\.xml$`)

// docxRun is one <w:t> element of a part. start and end bound the whole
// element in the raw part. closeTag is empty for a self-closing <w:t/>.
type docxRun struct {
	start, end     int
	open, closeTag string
	text           string
}

func (r docxRun) selfClosing() bool {
	return strings.HasSuffix(r.open, "/>")
}

// docxSegment is a run of text belonging to one paragraph with no nested
// paragraph in between. Text boxes nest paragraphs inside paragraphs, so an
// outer paragraph can be split into several segments.
type docxSegment struct {
	runs []docxRun
}

func (s docxSegment) text() string {
	var b strings.Builder
	for _, r := range s.runs {
		b.WriteString(r.text)
	}
	return b.String()
}

func isWordElement(name xml.Name, local string) bool {
	return name.Space == "w" && name.Local == local
}

// scanDOCXPart walks a WordprocessingML part and returns its text segments in
// document order.
func scanDOCXPart(raw []byte) ([]docxSegment, error) {
	d := xml.NewDecoder(bytes.NewReader(raw))

	var (
		segments []docxSegment
		open     []*docxSegment
		run      *docxRun
		text     strings.Builder
	)
	flush := func() {
		if len(open) == 0 {
			return
		}
		top := open[len(open)-1]
		if len(top.runs) > 0 {
			segments = append(segments, *top)
		}
		top.runs = nil
	}

	for {
		off := int(d.InputOffset())
		tok, err := d.RawToken()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch {
			case isWordElement(t.Name, "p"):
				flush()
				open = append(open, &docxSegment{})
			case isWordElement(t.Name, "t") && len(open) > 0:
				run = &docxRun{start: off, open: string(raw[off:d.InputOffset()])}
				text.Reset()
			}
		case xml.CharData:
			if run != nil {
				text.Write(t)
			}
		case xml.EndElement:
			switch {
			case isWordElement(t.Name, "t") && run != nil:
				run.end = int(d.InputOffset())
				run.closeTag = string(raw[off:run.end])
				run.text = text.String()
				top := open[len(open)-1]
				top.runs = append(top.runs, *run)
				run = nil
			case isWordElement(t.Name, "p") && len(open) > 0:
				flush()
				open = open[:len(open)-1]
			}
		}
	}
	return segments, nil
}

func openDOCX(data []byte) (*zip.Reader, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return zr, nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func extractDOCX(ctx context.Context, data []byte) (string, error) {
	zr, err := openDOCX(data)
	if err != nil {
		return "", err
	}

	var (
		lines   []string
		hasBody bool
	)
	for _, f := range zr.File {
		if !docxTextPartRe.MatchString(f.Name) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if f.Name == "word/document.xml" {
			hasBody = true
		}
		raw, err := readZipFile(f)
		if err != nil {
			return "", fmt.Errorf("%w: read %s: %v", ErrCorrupt, f.Name, err)
		}
		segments, err := scanDOCXPart(raw)
		if err != nil {
			return "", fmt.Errorf("%w: parse %s: %v", ErrCorrupt, f.Name, err)
		}
		for _, seg := range segments {
			lines = append(lines, seg.text())
		}
	}
	if !hasBody {
		return "", fmt.Errorf("%w: missing word/document.xml", ErrCorrupt)
	}
	return strings.Join(lines, "\n"), nil
}

func substituteDOCX(ctx context.Context, data []byte, subst map[string]string) ([]byte, error) {
	zr, err := openDOCX(data)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !docxTextPartRe.MatchString(f.Name) {
			if err := zw.Copy(f); err != nil {
				return nil, fmt.Errorf("copy %s: %w", f.Name, err)
			}
			continue
		}
		raw, err := readZipFile(f)
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", ErrCorrupt, f.Name, err)
		}
		segments, err := scanDOCXPart(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: parse %s: %v", ErrCorrupt, f.Name, err)
		}
		var edits []docxEdit
		for _, seg := range segments {
			edits = append(edits, substituteSegment(seg, subst)...)
		}

		hdr := f.FileHeader
		hdr.Method = zip.Deflate
		w, err := zw.CreateHeader(&hdr)
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", f.Name, err)
		}
		if _, err := w.Write(applyEdits(raw, edits)); err != nil {
			return nil, fmt.Errorf("write %s: %w", f.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// docxEdit replaces raw[start:end] with text.
type docxEdit struct {
	start, end int
	text       string
}

// substituteSegment rewrites the runs of one segment. When every token sits
// inside a single run the runs are rewritten in place and keep their
// formatting. Word often splits a token over several runs; in that case the
// segment text is merged into the first run and the rest are emptied.
func substituteSegment(seg docxSegment, subst map[string]string) []docxEdit {
	joined := seg.text()
	if !placeholder.Contains(joined) {
		return nil
	}
	want := placeholder.Replace(joined, subst)

	replaced := make([]string, len(seg.runs))
	var perRun strings.Builder
	for i, r := range seg.runs {
		replaced[i] = placeholder.Replace(r.text, subst)
		perRun.WriteString(replaced[i])
	}
	merge := perRun.String() != want
	if merge {
		for i := range replaced {
			replaced[i] = ""
		}
		replaced[0] = want
	}

	edits := make([]docxEdit, 0, len(seg.runs))
	for i, r := range seg.runs {
		if replaced[i] == r.text && !(merge && i == 0) {
			continue
		}
		edits = append(edits, docxEdit{start: r.start, end: r.end, text: renderRun(r, replaced[i], merge && i == 0)})
	}
	return edits
}

// renderRun returns the markup of r holding text. A self-closing run that
// stays empty is kept as it was.
func renderRun(r docxRun, text string, preserveSpace bool) string {
	if r.selfClosing() {
		if text == "" {
			return r.open
		}
		return `<w:t xml:space="preserve">` + escapeXMLText(text) + `</w:t>`
	}
	open := r.open
	if preserveSpace {
		open = `<w:t xml:space="preserve">`
	}
	return open + escapeXMLText(text) + r.closeTag
}

func applyEdits(raw []byte, edits []docxEdit) []byte {
	if len(edits) == 0 {
		return raw
	}
	sort.Slice(edits, func(i, j int) bool { return edits[i].start < edits[j].start })
	var out bytes.Buffer
	last := 0
	for _, e := range edits {
		out.Write(raw[last:e.start])
		out.WriteString(e.text)
		last = e.end
	}
	out.Write(raw[last:])
	return out.Bytes()
}

func escapeXMLText(s string) string {
	var b strings.Builder
	// EscapeText only fails when the writer does.
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
