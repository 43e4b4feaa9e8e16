package document_test

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joestump/docmerge/internal/document"
	"github.com/joestump/docmerge/internal/placeholder"
)

const docxHeader = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
	`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`

const docxFooter = `</w:body></w:document>`

// buildDOCX returns a minimal .docx package whose body is the given paragraphs XML.
func buildDOCX(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	parts := map[string]string{
		"[Content_Types].xml": `<?xml version="1.0"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"/>`,
		"word/document.xml":   docxHeader + body + docxFooter,
		"word/styles.xml":     `<w:styles xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"/>`,
	}
	for _, name := range []string{"[Content_Types].xml", "word/document.xml", "word/styles.xml"} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = io.WriteString(w, parts[name])
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func readPart(t *testing.T, data []byte, name string) string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		require.NoError(t, err)
		defer rc.Close()
		b, err := io.ReadAll(rc)
		require.NoError(t, err)
		return string(b)
	}
	t.Fatalf("part %s not found", name)
	return ""
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name, ct string
		want     document.Format
	}{
		{"policy.docx", "", document.FormatDOCX},
		{"upload.bin", "application/vnd.openxmlformats-officedocument.wordprocessingml.document", document.FormatDOCX},
		{"sheet.XLSX", "", document.FormatXLSX},
		{"notes.txt", "", document.FormatText},
		{"x", "text/plain; charset=utf-8", document.FormatText},
	}
	for _, tt := range tests {
		got, err := document.DetectFormat(tt.name, tt.ct)
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.want, got, tt.name)
	}

	_, err := document.DetectFormat("image.png", "image/png")
	assert.True(t, errors.Is(err, document.ErrUnsupportedFormat))
}

func TestExtract_Text(t *testing.T) {
	doc := document.Document{Name: "a.txt", Data: []byte("Hello ${name}")}
	text, err := document.Extract(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, "Hello ${name}", text)
}

func TestExtract_DOCX_SplitRuns(t *testing.T) {
	body := `<w:p><w:r><w:t>Hello $</w:t></w:r><w:r><w:rPr><w:b/></w:rPr><w:t>{na</w:t></w:r><w:r><w:t>me}, &amp; welcome</w:t></w:r></w:p>` +
		`<w:p><w:pPr><w:jc w:val="center"/></w:pPr><w:r><w:t xml:space="preserve">at ${company}</w:t></w:r></w:p>`
	doc := document.Document{Name: "t.docx", Data: buildDOCX(t, body)}

	text, err := document.Extract(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, "Hello ${name}, & welcome\nat ${company}", text)
	assert.Equal(t, []string{"name", "company"}, placeholder.Scan(text))
}

func TestExtract_DOCX_Corrupt(t *testing.T) {
	doc := document.Document{Name: "t.docx", Data: []byte("not a zip")}
	_, err := document.Extract(context.Background(), doc)
	assert.True(t, errors.Is(err, document.ErrCorrupt))
}

func TestSubstitute_DOCX(t *testing.T) {
	body := `<w:p><w:r><w:t>Hello $</w:t></w:r><w:r><w:t>{name}</w:t></w:r><w:r><w:t>!</w:t></w:r></w:p>` +
		`<w:p><w:r><w:rPr><w:i/></w:rPr><w:t>at ${company}</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>untouched</w:t></w:r></w:p>`
	src := document.Document{Name: "t.docx", Data: buildDOCX(t, body)}

	out, err := document.Substitute(context.Background(), src, map[string]string{"name": "A<B>", "company": "Acme"})
	require.NoError(t, err)

	xml := readPart(t, out.Data, "word/document.xml")
	assert.Contains(t, xml, `<w:t xml:space="preserve">Hello A&lt;B&gt;!</w:t>`)
	assert.Contains(t, xml, `<w:rPr><w:i/></w:rPr><w:t>at Acme</w:t>`)
	assert.Contains(t, xml, `<w:t>untouched</w:t>`)
	assert.NotContains(t, xml, "${")

	// Untouched parts are carried over.
	assert.Contains(t, readPart(t, out.Data, "word/styles.xml"), "w:styles")

	// The source document is not modified.
	assert.Contains(t, readPart(t, src.Data, "word/document.xml"), "{name}")

	text, err := document.Extract(context.Background(), out)
	require.NoError(t, err)
	assert.Equal(t, "Hello A<B>!\nat Acme\nuntouched", text)
}

func TestSubstitute_DOCX_LeavesUnansweredTokens(t *testing.T) {
	body := `<w:p><w:r><w:t>Hello ${name}, you work at ${company}.</w:t></w:r></w:p>`
	src := document.Document{Name: "t.docx", Data: buildDOCX(t, body)}

	out, err := document.Substitute(context.Background(), src, map[string]string{"name": "Alex"})
	require.NoError(t, err)

	text, err := document.Extract(context.Background(), out)
	require.NoError(t, err)
	assert.Equal(t, "Hello Alex, you work at ${company}.", text)
}

func TestDOCX_NestedTextBox(t *testing.T) {
	body := `<w:p><w:r><w:t xml:space="preserve">Dear ${name}, </w:t></w:r>` +
		`<w:r><w:pict><v:shape><v:textbox><w:txbxContent>` +
		`<w:p><w:r><w:t>Box ${box}</w:t></w:r></w:p>` +
		`</w:txbxContent></v:textbox></v:shape></w:pict></w:r>` +
		`<w:r><w:t>from ${company}</w:t></w:r></w:p>`
	src := document.Document{Name: "t.docx", Data: buildDOCX(t, body)}

	text, err := document.Extract(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "box", "company"}, placeholder.Scan(text))

	out, err := document.Substitute(context.Background(), src, map[string]string{"name": "Alex", "box": "B", "company": "Acme"})
	require.NoError(t, err)
	xml := readPart(t, out.Data, "word/document.xml")
	assert.NotContains(t, xml, "${")
	assert.Contains(t, xml, `<w:t>Box B</w:t>`)
	assert.Contains(t, xml, `<w:t>from Acme</w:t>`)

	text, err = document.Extract(context.Background(), out)
	require.NoError(t, err)
	assert.Equal(t, "Dear Alex, \nBox B\nfrom Acme", text)
}

func TestDOCX_SelfClosingTextRun(t *testing.T) {
	body := `<w:p><w:r><w:t xml:space="preserve"/></w:r><w:r><w:t>${name}</w:t></w:r></w:p>`
	src := document.Document{Name: "t.docx", Data: buildDOCX(t, body)}

	text, err := document.Extract(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, "${name}", text)

	out, err := document.Substitute(context.Background(), src, map[string]string{"name": "A"})
	require.NoError(t, err)
	part := readPart(t, out.Data, "word/document.xml")
	assert.Contains(t, part, `<w:r><w:t xml:space="preserve"/></w:r><w:r><w:t>A</w:t></w:r>`)
	require.NoError(t, wellFormed(part))
}

func TestDOCX_SplitTokenAfterSelfClosingRun(t *testing.T) {
	body := `<w:p><w:r><w:t/></w:r><w:r><w:t>${na</w:t></w:r><w:r><w:t>me}</w:t></w:r></w:p>`
	src := document.Document{Name: "t.docx", Data: buildDOCX(t, body)}

	out, err := document.Substitute(context.Background(), src, map[string]string{"name": "Alex"})
	require.NoError(t, err)
	part := readPart(t, out.Data, "word/document.xml")
	require.NoError(t, wellFormed(part))

	text, err := document.Extract(context.Background(), out)
	require.NoError(t, err)
	assert.Equal(t, "Alex", text)
}

// wellFormed decodes every token of an XML document.
func wellFormed(doc string) error {
	d := xml.NewDecoder(strings.NewReader(doc))
	for {
		_, err := d.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func TestXLSX_ExtractAndSubstitute(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "Client"))
	require.NoError(t, f.SetCellValue("Sheet1", "B1", "${client}"))
	require.NoError(t, f.SetCellValue("Sheet1", "A2", "Region: ${region}"))
	require.NoError(t, f.SetCellValue("Sheet1", "B2", 42))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, f.Close())

	src := document.Document{Name: "q.xlsx", Data: buf.Bytes()}
	text, err := document.Extract(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, []string{"client", "region"}, placeholder.Scan(text))

	out, err := document.Substitute(context.Background(), src, map[string]string{"client": "Acme", "region": "European Union"})
	require.NoError(t, err)

	got, err := document.Extract(context.Background(), out)
	require.NoError(t, err)
	assert.True(t, strings.Contains(got, "Client\tAcme"), got)
	assert.True(t, strings.Contains(got, "Region: European Union\t42"), got)
	assert.Empty(t, placeholder.Scan(got))
}

func TestSubstitute_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := document.Substitute(ctx, document.Document{Name: "a.txt", Data: []byte("${x}")}, nil)
	assert.True(t, errors.Is(err, context.Canceled))
}
