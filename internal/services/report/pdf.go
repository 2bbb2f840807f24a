package report

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/visionone/internal/models"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

const (
	pageWidth  = 190.0 // A4 minus margins
	lineHeight = 5.0
	baseFont   = "Arial"
	baseSize   = 9.0
)

// Exporter renders reports as PDF documents
type Exporter struct {
	logger arbor.ILogger
}

// NewExporter creates a PDF exporter
func NewExporter(logger arbor.ILogger) *Exporter {
	return &Exporter{
		logger: logger,
	}
}

// PDF renders the report's markdown form to PDF bytes
func (e *Exporter) PDF(report *models.StoredReport) ([]byte, error) {
	markdown := RenderMarkdown(report)

	e.logger.Debug().
		Str("report", report.Filename).
		Int("markdown_len", len(markdown)).
		Msg("Rendering report PDF")

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("VisionOne Session Report "+report.Filename, true)
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(true, 10)
	pdf.AddPage()
	pdf.SetFont(baseFont, "", baseSize)

	source := []byte(markdown)
	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	doc := md.Parser().Parse(text.NewReader(source))

	r := &pdfWriter{
		pdf:    pdf,
		source: source,
		tr:     pdf.UnicodeTranslatorFromDescriptor(""),
	}
	if err := ast.Walk(doc, r.walk); err != nil {
		return nil, fmt.Errorf("failed to render report: %w", err)
	}
	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("failed to layout PDF: %w", err)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		e.logger.Error().Err(err).Str("report", report.Filename).Msg("Failed to generate PDF output")
		return nil, fmt.Errorf("failed to generate PDF output: %w", err)
	}

	e.logger.Debug().Int("pdf_size", buf.Len()).Msg("Report PDF generated")
	return buf.Bytes(), nil
}

// pdfWriter walks the markdown AST and draws the subset the report uses:
// headings, paragraphs, strong text and tables
type pdfWriter struct {
	pdf    *fpdf.Fpdf
	source []byte
	tr     func(string) string
	bold   bool
}

func (r *pdfWriter) walk(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node := n.(type) {
	case *ast.Heading:
		if entering {
			r.pdf.Ln(4)
			size := 10.0
			switch node.Level {
			case 1:
				size = 14
			case 2:
				size = 12
			}
			r.pdf.SetFont(baseFont, "B", size)
		} else {
			r.pdf.Ln(7)
			r.resetFont()
		}
	case *ast.Paragraph:
		if !entering {
			r.pdf.Ln(6)
		}
	case *ast.Text:
		if entering {
			r.pdf.Write(lineHeight, r.tr(string(node.Segment.Value(r.source))))
			if node.SoftLineBreak() {
				r.pdf.Write(lineHeight, " ")
			}
		}
	case *ast.Emphasis:
		r.bold = entering && node.Level == 2
		r.resetFont()
	case *extast.Table:
		if entering {
			r.table(r.rows(node))
			return ast.WalkSkipChildren, nil
		}
	}
	return ast.WalkContinue, nil
}

func (r *pdfWriter) resetFont() {
	style := ""
	if r.bold {
		style = "B"
	}
	r.pdf.SetFont(baseFont, style, baseSize)
}

func (r *pdfWriter) rows(table *extast.Table) [][]string {
	var rows [][]string
	for child := table.FirstChild(); child != nil; child = child.NextSibling() {
		var row []string
		for c := child.FirstChild(); c != nil; c = c.NextSibling() {
			if _, ok := c.(*extast.TableCell); ok {
				row = append(row, r.tr(string(c.Text(r.source))))
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// table draws rows with the first as a shaded header; the last column takes the remaining width
func (r *pdfWriter) table(rows [][]string) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return
	}
	cols := len(rows[0])

	r.pdf.SetFont(baseFont, "", 8)
	widths := make([]float64, cols)
	used := 0.0
	for j := 0; j < cols-1; j++ {
		w := 14.0
		for _, row := range rows {
			if j < len(row) {
				if cw := r.pdf.GetStringWidth(row[j]) + 4; cw > w {
					w = cw
				}
			}
		}
		if w > pageWidth/4 {
			w = pageWidth / 4
		}
		widths[j] = w
		used += w
	}
	widths[cols-1] = pageWidth - used
	if widths[cols-1] < 20 {
		widths[cols-1] = 20
	}

	r.pdf.Ln(1)
	for i, row := range rows {
		style, border := "", "D"
		if i == 0 {
			style, border = "B", "FD"
			r.pdf.SetFillColor(230, 230, 230)
		}
		r.pdf.SetFont(baseFont, style, 8)

		lines := 1
		for j := 0; j < cols && j < len(row); j++ {
			if n := len(r.pdf.SplitText(row[j], widths[j]-2)); n > lines {
				lines = n
			}
		}
		height := float64(lines)*4 + 2

		_, pageHeight := r.pdf.GetPageSize()
		_, _, _, bottom := r.pdf.GetMargins()
		if r.pdf.GetY()+height > pageHeight-bottom {
			r.pdf.AddPage()
		}

		x, y := r.pdf.GetX(), r.pdf.GetY()
		for j := 0; j < cols; j++ {
			value := ""
			if j < len(row) {
				value = row[j]
			}
			r.pdf.Rect(x, y, widths[j], height, border)
			r.pdf.SetXY(x+1, y+1)
			r.pdf.MultiCell(widths[j]-2, 4, value, "", "L", false)
			x += widths[j]
		}
		r.pdf.SetXY(10, y+height)
	}

	r.pdf.Ln(4)
	r.resetFont()
}
