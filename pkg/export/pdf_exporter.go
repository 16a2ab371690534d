package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

const pageWidth = 277.0

// PDFExporter renders datasets into a landscape table.
type PDFExporter struct {
	widths map[string]float64
}

// NewPDFExporter constructs a PDF exporter. widths pins column widths in mm by header; others share the rest.
func NewPDFExporter(widths map[string]float64) *PDFExporter {
	return &PDFExporter{widths: widths}
}

// Render creates a PDF document with a title, a subtitle line and the table body.
func (e *PDFExporter) Render(data Dataset, title, subtitle string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header")
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(10, 12, 10)
	pdf.SetAutoPageBreak(true, 12)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-10)
		pdf.SetFont("Arial", "I", 8)
		pdf.CellFormat(0, 6, fmt.Sprintf("%d/{nb}", pdf.PageNo()), "", 0, "R", false, 0, "")
	})

	widths := e.columnWidths(data.Headers)
	header := func() {
		pdf.SetFont("Arial", "B", 9)
		pdf.SetFillColor(230, 230, 230)
		for i, h := range data.Headers {
			pdf.CellFormat(widths[i], 8, tr(h), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 8)
	}

	pdf.AddPage()
	if title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 9, tr(title), "", 1, "C", false, 0, "")
	}
	if subtitle != "" {
		pdf.SetFont("Arial", "", 9)
		pdf.CellFormat(0, 6, tr(subtitle), "", 1, "C", false, 0, "")
	}
	pdf.Ln(3)
	header()

	_, pageHeight := pdf.GetPageSize()
	_, _, _, bottom := pdf.GetMargins()
	for _, row := range data.Rows {
		if pdf.GetY()+7 > pageHeight-bottom {
			pdf.AddPage()
			header()
		}
		for i, h := range data.Headers {
			pdf.CellFormat(widths[i], 7, tr(truncate(row[h], widths[i])), "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *PDFExporter) columnWidths(headers []string) []float64 {
	widths := make([]float64, len(headers))
	remaining := pageWidth
	flexible := 0
	for i, h := range headers {
		if w, ok := e.widths[h]; ok && w > 0 {
			widths[i] = w
			remaining -= w
		} else {
			flexible++
		}
	}
	if flexible > 0 {
		share := remaining / float64(flexible)
		if share < 10 {
			share = 10
		}
		for i := range widths {
			if widths[i] == 0 {
				widths[i] = share
			}
		}
	}
	return widths
}

// truncate keeps roughly what fits in a column at 8pt.
func truncate(value string, width float64) string {
	limit := int(width / 1.7)
	runes := []rune(value)
	if limit < 4 || len(runes) <= limit {
		return value
	}
	return string(runes[:limit-3]) + "..."
}
