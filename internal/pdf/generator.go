package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/jung-kurt/gofpdf"

	"github.com/nurpe/supply-settlement/internal/layout"
	"github.com/nurpe/supply-settlement/internal/model"
)

const (
	margin       = 15.0
	footerHeight = 8.0
	bodyFontSize = 10.0
	coreFamily   = "Helvetica"
)

var ErrMalformedDocument = errors.New("malformed document")

// FontConfig is shared by every document the generator renders. An empty
// Path selects the core Helvetica font.
type FontConfig struct {
	Family string
	Path   string
}

type Options struct {
	Password      string
	OwnerPassword string
	Compress      bool
}

type Output struct {
	Content   []byte
	Pages     []model.PageRange
	PageCount int
}

type Generator struct {
	fontName string
	fontData []byte
}

func NewGenerator(font FontConfig) (*Generator, error) {
	if font.Path == "" {
		return &Generator{fontName: coreFamily}, nil
	}
	data, err := os.ReadFile(font.Path)
	if err != nil {
		return nil, fmt.Errorf("read font: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("font data is empty")
	}
	name := font.Family
	if name == "" {
		name = "DocumentFont"
	}
	return &Generator{fontName: name, fontData: data}, nil
}

// Render typesets every unit starting on a fresh page, then revisits each
// unit's pages to stamp "Page i of N" local to that unit.
func (g *Generator) Render(doc layout.Document, opts Options) (*Output, error) {
	if err := validate(doc); err != nil {
		return nil, err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(opts.Compress)
	if opts.Password != "" {
		pdf.SetProtection(gofpdf.CnProtectPrint, opts.Password, opts.OwnerPassword)
	}
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(false, margin)
	pdf.SetFillColor(235, 235, 235)
	if doc.Title != "" {
		pdf.SetTitle(doc.Title, true)
	}

	w := &writer{pdf: pdf, fontName: g.fontName, tr: func(s string) string { return s }}
	if len(g.fontData) > 0 {
		pdf.AddUTF8FontFromBytes(g.fontName, "", g.fontData)
		pdf.AddUTF8FontFromBytes(g.fontName, "B", g.fontData)
	} else {
		w.tr = pdf.UnicodeTranslatorFromDescriptor("")
	}

	pages := make([]model.PageRange, 0, len(doc.Units))
	for _, unit := range doc.Units {
		pdf.AddPage()
		w.setFont("", bodyFontSize)
		first := pdf.PageNo()
		for _, block := range unit.Blocks {
			w.block(block)
		}
		pages = append(pages, model.PageRange{Key: unit.Key, First: first, Last: pdf.PageNo()})
	}

	last := pdf.PageNo()
	w.stampPages(pages)
	pdf.SetPage(last)

	if err := pdf.Error(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return &Output{Content: buf.Bytes(), Pages: pages, PageCount: last}, nil
}

func validate(doc layout.Document) error {
	if len(doc.Units) == 0 {
		return fmt.Errorf("%w: document has no units", ErrMalformedDocument)
	}
	for _, unit := range doc.Units {
		for _, block := range unit.Blocks {
			table, ok := block.(layout.Table)
			if !ok {
				continue
			}
			if len(table.Widths) == 0 {
				return fmt.Errorf("%w: unit %s has a table without columns", ErrMalformedDocument, unit.Key)
			}
			carry := make([]int, len(table.Widths))
			for i, row := range table.Rows {
				free := 0
				for _, c := range carry {
					if c == 0 {
						free++
					}
				}
				if row.Columns() != free {
					return fmt.Errorf("%w: unit %s row %d spans %d of %d columns", ErrMalformedDocument, unit.Key, i+1, row.Columns(), free)
				}
				carry = advance(table.Widths, row, carry)
			}
		}
	}
	return nil
}

// advance returns the row-span occupancy after row has been placed.
func advance(widths []float64, row layout.Row, carry []int) []int {
	next := make([]int, len(carry))
	for i, c := range carry {
		if c > 0 {
			next[i] = c - 1
		}
	}
	col := 0
	for _, cell := range row.Cells {
		for col < len(carry) && carry[col] > 0 {
			col++
		}
		if col >= len(widths) {
			break
		}
		if cell.RowSpan > 1 {
			next[col] = cell.RowSpan - 1
		}
		col += span(cell)
	}
	return next
}

func span(cell layout.Cell) int {
	if cell.ColSpan < 1 {
		return 1
	}
	return cell.ColSpan
}

type writer struct {
	pdf      *gofpdf.Fpdf
	fontName string
	tr       func(string) string
}

func (w *writer) setFont(style string, size float64) {
	w.pdf.SetFont(w.fontName, style, size)
}

func (w *writer) limit() float64 {
	_, pageH := w.pdf.GetPageSize()
	return pageH - margin - footerHeight
}

func (w *writer) fits(height float64) bool {
	return w.pdf.GetY()+height <= w.limit()
}

func (w *writer) ensure(height float64) {
	if !w.fits(height) {
		w.pdf.AddPage()
	}
}

func (w *writer) block(block layout.Block) {
	switch b := block.(type) {
	case layout.Heading:
		size := b.Size
		if size <= 0 {
			size = 12
		}
		lineH := size * 0.6
		w.ensure(lineH)
		w.setFont("B", size)
		w.pdf.CellFormat(0, lineH, w.tr(b.Text), "", 1, alignOf(b.Align), false, 0, "")
	case layout.Paragraph:
		style := ""
		if b.Bold {
			style = "B"
		}
		w.setFont(style, bodyFontSize)
		for _, line := range b.Lines {
			w.ensure(5)
			w.pdf.MultiCell(0, 5, w.tr(line), "", alignOf(b.Align), false)
		}
	case layout.Spacer:
		if w.fits(b.Height) {
			w.pdf.Ln(b.Height)
		}
	case layout.Reserve:
		w.ensure(b.Height)
	case layout.Table:
		w.table(b)
	}
}

// tableState tracks row-span occupancy while a table is drawn. cells holds
// the spanning cell of each column whose carry is positive.
type tableState struct {
	t     layout.Table
	h     float64
	carry []int
	cells []layout.Cell
}

func newTableState(t layout.Table, h float64) *tableState {
	return &tableState{
		t:     t,
		h:     h,
		carry: make([]int, len(t.Widths)),
		cells: make([]layout.Cell, len(t.Widths)),
	}
}

func (w *writer) table(t layout.Table) {
	h := t.RowHeight
	if h <= 0 {
		h = layout.RowHeight
	}
	_, pageH := w.pdf.GetPageSize()
	usable := pageH - 2*margin - footerHeight

	st := newTableState(t, h)
	var header []layout.Row
	for _, row := range t.Rows {
		if row.Kind == layout.RowHeader {
			header = append(header, row)
		}
		switch {
		case idle(st.carry):
			need := h * float64(rowSpan(row))
			// A group taller than a page starts wherever one row fits and is
			// split below.
			if need > usable {
				need = h
			}
			if !w.fits(need) {
				w.pdf.AddPage()
				if row.Kind != layout.RowHeader {
					w.headers(st, header)
				}
			}
		case w.rowsLeft(h) < 1:
			w.pdf.AddPage()
			w.headers(st, header)
			w.reopenSpans(st)
		}
		w.row(st, row)
	}
	w.pdf.Ln(1)
}

func (w *writer) headers(st *tableState, header []layout.Row) {
	for _, hr := range header {
		w.row(newTableState(st.t, st.h), hr)
	}
}

// rowsLeft is the number of whole rows of height h that fit above the footer.
func (w *writer) rowsLeft(h float64) int {
	return int((w.limit()-w.pdf.GetY())/h + 1e-6)
}

// spanHeight clips a row span to the rows left on the current page.
func (w *writer) spanHeight(rows int, h float64) float64 {
	if left := w.rowsLeft(h); left < rows {
		rows = max(left, 1)
	}
	return h * float64(rows)
}

// reopenSpans repeats the spanning cells of a group cut by a page break, sized
// to the rows the group still covers.
func (w *writer) reopenSpans(st *tableState) {
	y := w.pdf.GetY()
	x := margin
	for col := 0; col < len(st.carry); col++ {
		if st.carry[col] > 0 {
			cell := st.cells[col]
			w.cell(x, y, columnsWidth(st.t.Widths, col, span(cell)), w.spanHeight(st.carry[col], st.h), cell)
		}
		x += st.t.Widths[col]
	}
	w.pdf.SetXY(margin, y)
}

func (w *writer) row(st *tableState, row layout.Row) {
	y := w.pdf.GetY()
	x := margin
	col := 0
	for _, cell := range row.Cells {
		for col < len(st.carry) && st.carry[col] > 0 {
			x += st.t.Widths[col]
			col++
		}
		n := span(cell)
		width := columnsWidth(st.t.Widths, col, n)
		height := st.h
		if cell.RowSpan > 1 {
			height = w.spanHeight(cell.RowSpan, st.h)
			if col < len(st.cells) {
				st.cells[col] = cell
			}
		}
		w.cell(x, y, width, height, cell)

		x += width
		col += n
	}
	w.pdf.SetXY(margin, y+st.h)
	st.carry = advance(st.t.Widths, row, st.carry)
}

func (w *writer) cell(x, y, width, height float64, cell layout.Cell) {
	style := ""
	if cell.Bold {
		style = "B"
	}
	w.setFont(style, 9)
	w.pdf.SetXY(x, y)
	w.pdf.CellFormat(width, height, w.fit(cell.Text, width), "1", 0, alignOf(cell.Align), cell.Fill, 0, "")
}

func columnsWidth(widths []float64, col, n int) float64 {
	width := 0.0
	for i := col; i < col+n && i < len(widths); i++ {
		width += widths[i]
	}
	return width
}

// fit trims text that would overflow a cell.
func (w *writer) fit(text string, width float64) string {
	text = w.tr(text)
	room := width - 2*w.pdf.GetCellMargin()
	if w.pdf.GetStringWidth(text) <= room {
		return text
	}
	runes := []rune(text)
	for len(runes) > 0 && w.pdf.GetStringWidth(string(runes)+"..") > room {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + ".."
}

func (w *writer) stampPages(pages []model.PageRange) {
	pageW, pageH := w.pdf.GetPageSize()
	for _, r := range pages {
		total := r.Count()
		for p := r.First; p <= r.Last; p++ {
			w.pdf.SetPage(p)
			// SetFont is skipped when the state already matches; force the
			// selection into the revisited page's content stream.
			w.setFont("B", 9)
			w.setFont("", 8)
			w.pdf.SetXY(margin, pageH-margin-footerHeight/2)
			label := fmt.Sprintf("Page %d of %d", p-r.First+1, total)
			w.pdf.CellFormat(pageW-2*margin, 5, w.tr(label), "", 0, "C", false, 0, "")
		}
	}
}

func rowSpan(row layout.Row) int {
	n := 1
	for _, c := range row.Cells {
		if c.RowSpan > n {
			n = c.RowSpan
		}
	}
	return n
}

func idle(carry []int) bool {
	for _, c := range carry {
		if c > 0 {
			return false
		}
	}
	return true
}

func alignOf(a layout.Align) string {
	if a == "" {
		return string(layout.AlignLeft)
	}
	return string(a)
}
