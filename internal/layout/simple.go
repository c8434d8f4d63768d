package layout

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/nurpe/supply-settlement/internal/aggregate"
)

var simpleWidths = []float64{28, 62, 28, 28, 34}

func buildSimple(in Input) Unit {
	unit := Unit{Key: in.key(), Title: in.title()}
	unit.Blocks = append(unit.Blocks, simpleHeader(in)...)

	if in.Aggregate.Empty() {
		unit.Blocks = append(unit.Blocks, noPaymentDue())
		return unit
	}

	table, subtotal := simpleTable(in)
	unit.Blocks = append(unit.Blocks,
		table,
		Reserve{Height: seasonReserve(in)},
		simpleClosing(subtotal),
	)
	unit.Blocks = append(unit.Blocks, seasonBlocks(in)...)
	return unit
}

func simpleHeader(in Input) []Block {
	recipient := []string{
		strings.TrimSpace(fmt.Sprintf("%s %s", in.Organization.PostalCode, in.Organization.Address)),
		in.Organization.Name,
	}
	if in.Supplier != nil {
		recipient = append(recipient, in.Supplier.Name)
	} else if in.Organization.Representative != "" {
		recipient = append(recipient, in.Organization.Representative)
	}

	return []Block{
		Heading{Text: "Payment Statement", Size: 14, Align: AlignCenter},
		Paragraph{
			Lines: []string{
				periodLine(in.Period),
				fmt.Sprintf("Invoice date: %s", formatDate(in.InvoiceDate)),
				fmt.Sprintf("Registration No.: %s", safeValue(in.Organization.RegistrationNumber)),
			},
			Align: AlignRight,
		},
		Paragraph{Lines: recipient, Bold: true},
		Spacer{Height: 4},
	}
}

// simpleTable lists every (day, type, price) bucket with its own subtotal and
// returns the running invoice subtotal.
func simpleTable(in Input) (Table, decimal.Decimal) {
	rows := []Row{{
		Kind: RowHeader,
		Cells: []Cell{
			{Text: "Date", Bold: true, Fill: true},
			{Text: "Type", Bold: true, Fill: true},
			{Text: "Price", Bold: true, Fill: true, Align: AlignRight},
			{Text: "Volume", Bold: true, Fill: true, Align: AlignRight},
			{Text: "Subtotal", Bold: true, Fill: true, Align: AlignRight},
		},
	}}

	subtotal := decimal.Zero
	for _, day := range in.Aggregate.Days {
		for _, v := range day.Variations {
			for _, p := range v.Prices {
				amount := p.Amount()
				subtotal = subtotal.Add(amount)
				rows = append(rows, Row{
					Kind: RowItem,
					Cells: []Cell{
						{Text: formatDate(day.Date)},
						{Text: in.Catalog.Label(v.VariationID)},
						{Text: formatAmount(p.Price, 2), Align: AlignRight},
						{Text: fmt.Sprintf("%s %s", formatAmount(p.Volume, 2), in.Catalog.Unit(v.VariationID)), Align: AlignRight},
						{Text: formatAmount(amount, 0), Align: AlignRight},
					},
				})
			}
		}
	}
	return Table{Widths: simpleWidths, RowHeight: RowHeight, Rows: rows}, subtotal
}

// simpleClosing has three fixed rows. Only the 8% bucket is ever taxed; the
// 10% bucket is printed as zero.
func simpleClosing(subtotal decimal.Decimal) Table {
	tax := subtotal.Mul(aggregate.TaxRate)
	return Table{
		Widths:    []float64{60, 60, 60},
		RowHeight: 8,
		Rows: []Row{
			{Kind: RowTotal, Cells: []Cell{
				{Text: "Total", Bold: true},
				{Text: formatAmount(subtotal, 0), ColSpan: 2, Align: AlignRight},
			}},
			{Kind: RowTotal, Cells: []Cell{
				{Text: "Consumption tax", Bold: true},
				{Text: fmt.Sprintf("8%%: %s / %s", formatAmount(subtotal, 0), formatAmount(tax, 0)), Align: AlignRight},
				{Text: fmt.Sprintf("10%%: %s / %s", formatAmount(decimal.Zero, 0), formatAmount(decimal.Zero, 0)), Align: AlignRight},
			}},
			{Kind: RowTotal, Cells: []Cell{
				{Text: "Total payment", Bold: true, Fill: true},
				{Text: formatAmount(subtotal.Add(tax), 0), ColSpan: 2, Align: AlignRight, Bold: true, Fill: true},
			}},
		},
	}
}
