package layout

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nurpe/supply-settlement/internal/aggregate"
	"github.com/nurpe/supply-settlement/internal/model"
	"github.com/nurpe/supply-settlement/internal/season"
)

const (
	// MinReserve is the vertical space kept free for a closing block.
	MinReserve = 40.0
	RowHeight  = 6.0
)

var ErrUnknownLayout = errors.New("unknown layout")

type Input struct {
	Issuer       model.Issuer
	Organization model.SupplierOrganization
	Supplier     *model.Supplier
	Period       model.DateRange
	InvoiceDate  time.Time
	Aggregate    aggregate.Result
	Season       *season.Comparison
	Catalog      *model.Catalog
}

func (in Input) key() string {
	if in.Supplier != nil {
		return in.Supplier.ID.String()
	}
	return in.Organization.ID.String()
}

func (in Input) title() string {
	if in.Supplier != nil {
		return fmt.Sprintf("%d %s", in.Supplier.SupplierNumber, in.Supplier.DisplayName())
	}
	return in.Organization.Name
}

// Build dispatches to the builder of the requested layout.
func Build(l model.Layout, in Input) (Unit, error) {
	switch l {
	case model.LayoutStandard:
		return buildStandard(in), nil
	case model.LayoutSimple:
		return buildSimple(in), nil
	default:
		return Unit{}, fmt.Errorf("%w: %q", ErrUnknownLayout, l)
	}
}

func noPaymentDue() Paragraph {
	return Paragraph{Lines: []string{"No payment due for this period."}, Align: AlignCenter, Bold: true}
}

// seasonReserve grows the closing-block threshold by the rows of the season table.
func seasonReserve(in Input) float64 {
	if in.Season == nil {
		return MinReserve
	}
	rows := len(in.Season.VisibleStats())
	if rows == 0 {
		return MinReserve
	}
	return MinReserve + float64(rows+1)*RowHeight
}

func seasonBlocks(in Input) []Block {
	if in.Season == nil {
		return nil
	}
	visible := in.Season.VisibleStats()
	if len(visible) == 0 {
		return nil
	}

	current := in.Season.Current
	rows := []Row{{
		Kind: RowHeader,
		Cells: []Cell{
			{Text: "Type", Bold: true, Fill: true},
			{Text: "Volume", Bold: true, Fill: true, Align: AlignRight},
			{Text: "Average price", Bold: true, Fill: true, Align: AlignRight},
			{Text: "Amount", Bold: true, Fill: true, Align: AlignRight},
		},
	}}
	for _, st := range visible {
		prior, _ := in.Season.PriorStat(st.VariationID)
		rows = append(rows, Row{
			Kind: RowSeason,
			Cells: []Cell{
				{Text: in.Catalog.Label(st.VariationID)},
				{Text: withPrior(st.Volume, prior.Volume, 2), Align: AlignRight},
				{Text: withPrior(st.AveragePrice(), prior.AveragePrice(), 2), Align: AlignRight},
				{Text: withPrior(st.Invoice, prior.Invoice, 0), Align: AlignRight},
			},
		})
	}

	return []Block{
		Spacer{Height: 4},
		Paragraph{
			Lines: []string{
				fmt.Sprintf("Season to date %s - %s", formatDate(current.Start), formatDate(current.End)),
				"Prior season figures at the same point are shown in parentheses.",
			},
			Bold: true,
		},
		Table{Widths: []float64{60, 40, 40, 40}, RowHeight: RowHeight, Rows: rows},
	}
}

// withPrior renders "current (prior)"; a missing prior value prints as 0.
func withPrior(current, prior decimal.Decimal, places int32) string {
	return fmt.Sprintf("%s (%s)", formatAmount(current, places), formatAmount(prior, places))
}

func periodLine(r model.DateRange) string {
	return fmt.Sprintf("Period: %s - %s", formatDate(r.Start), formatDate(r.End))
}

func formatAmount(value decimal.Decimal, places int32) string {
	return value.StringFixed(places)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02")
}

func safeValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}
