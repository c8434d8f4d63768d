// Package layout turns aggregates into a logical document: an ordered list
// of headings, paragraphs and tables the pdf renderer typesets.
package layout

type Align string

const (
	AlignLeft   Align = "L"
	AlignCenter Align = "C"
	AlignRight  Align = "R"
)

type RowKind int

const (
	RowHeader RowKind = iota
	RowItem
	RowDayTax
	RowTypeSubtotal
	RowTotal
	RowSeason
)

type Cell struct {
	Text    string
	ColSpan int
	RowSpan int
	Align   Align
	Bold    bool
	Fill    bool
}

func (c Cell) span() int {
	if c.ColSpan < 1 {
		return 1
	}
	return c.ColSpan
}

type Row struct {
	Kind  RowKind
	Cells []Cell
}

type Block interface {
	isBlock()
}

type Heading struct {
	Text  string
	Size  float64
	Align Align
}

type Paragraph struct {
	Lines []string
	Align Align
	Bold  bool
}

type Table struct {
	Widths    []float64
	RowHeight float64
	Rows      []Row
}

// Spacer adds vertical space.
type Spacer struct {
	Height float64
}

// Reserve starts a new page unless at least Height of vertical space is left.
type Reserve struct {
	Height float64
}

func (Heading) isBlock()   {}
func (Paragraph) isBlock() {}
func (Table) isBlock()     {}
func (Spacer) isBlock()    {}
func (Reserve) isBlock()   {}

// Unit is one independently paginated section of a document.
type Unit struct {
	Key    string
	Title  string
	Blocks []Block
}

type Document struct {
	Title string
	Units []Unit
}

// Columns returns the sum of column spans of a row.
func (r Row) Columns() int {
	n := 0
	for _, c := range r.Cells {
		n += c.span()
	}
	return n
}

// Rows returns all rows of the given kind across the unit's tables.
func (u Unit) Rows(kind RowKind) []Row {
	var rows []Row
	for _, b := range u.Blocks {
		t, ok := b.(Table)
		if !ok {
			continue
		}
		for _, r := range t.Rows {
			if r.Kind == kind {
				rows = append(rows, r)
			}
		}
	}
	return rows
}
