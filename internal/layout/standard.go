package layout

import (
	"fmt"

	"github.com/nurpe/supply-settlement/internal/aggregate"
)

var standardWidths = []float64{24, 46, 16, 22, 22, 25, 25}

func buildStandard(in Input) Unit {
	unit := Unit{Key: in.key(), Title: in.title()}
	unit.Blocks = append(unit.Blocks, standardHeader(in)...)

	if in.Aggregate.Empty() {
		unit.Blocks = append(unit.Blocks, noPaymentDue())
		return unit
	}

	unit.Blocks = append(unit.Blocks, standardTable(in))
	unit.Blocks = append(unit.Blocks,
		Reserve{Height: seasonReserve(in)},
		standardTotals(in.Aggregate),
	)
	unit.Blocks = append(unit.Blocks, seasonBlocks(in)...)
	return unit
}

func standardHeader(in Input) []Block {
	counterparty := []string{
		in.Organization.Name,
		fmt.Sprintf("Micro region: %s", safeValue(in.Organization.MicroRegion)),
	}
	if in.Supplier != nil {
		counterparty = append(counterparty, fmt.Sprintf("Supplier No. %d %s", in.Supplier.SupplierNumber, in.Supplier.Name))
	}

	return []Block{
		Paragraph{
			Lines: []string{
				in.Issuer.Name,
				safeValue(in.Issuer.Address),
				fmt.Sprintf("Phone: %s", safeValue(in.Issuer.Phone)),
				fmt.Sprintf("Registration No.: %s", safeValue(in.Issuer.RegistrationNumber)),
			},
			Align: AlignRight,
		},
		Spacer{Height: 2},
		Paragraph{Lines: counterparty, Bold: true},
		Spacer{Height: 2},
		Heading{Text: "Payment Statement", Size: 14, Align: AlignCenter},
		Paragraph{Lines: []string{periodLine(in.Period)}, Align: AlignCenter},
		Spacer{Height: 4},
	}
}

func standardTable(in Input) Table {
	agg := in.Aggregate
	rows := []Row{{
		Kind: RowHeader,
		Cells: []Cell{
			{Text: "Date", Bold: true, Fill: true},
			{Text: "Type", Bold: true, Fill: true},
			{Text: "Unit", Bold: true, Fill: true},
			{Text: "Price", Bold: true, Fill: true, Align: AlignRight},
			{Text: "Volume", Bold: true, Fill: true, Align: AlignRight},
			{Text: "Amount", Bold: true, Fill: true, Align: AlignRight},
			{Text: "Daily total", Bold: true, Fill: true, Align: AlignRight},
		},
	}}

	for i, day := range agg.Days {
		span := day.Rows()
		first := true
		for _, v := range day.Variations {
			for _, p := range v.Prices {
				cells := make([]Cell, 0, 7)
				if first {
					cells = append(cells, Cell{Text: formatDate(day.Date), RowSpan: span})
				}
				cells = append(cells,
					Cell{Text: in.Catalog.Label(v.VariationID)},
					Cell{Text: in.Catalog.Unit(v.VariationID)},
					Cell{Text: formatAmount(p.Price, 2), Align: AlignRight},
					Cell{Text: formatAmount(p.Volume, 2), Align: AlignRight},
					Cell{Text: formatAmount(p.Amount(), 0), Align: AlignRight},
				)
				if first {
					cells = append(cells, Cell{Text: formatAmount(agg.DayTotals[i], 0), RowSpan: span, Align: AlignRight, Bold: true})
					first = false
				}
				rows = append(rows, Row{Kind: RowItem, Cells: cells})
			}
		}
		rows = append(rows, Row{
			Kind: RowDayTax,
			Cells: []Cell{
				{Text: "Tax (8%)", ColSpan: 6, Align: AlignRight},
				{Text: formatAmount(agg.DayTaxes[i], 0), Align: AlignRight},
			},
		})
	}

	rows = append(rows, typeSubtotalRows(in, agg)...)
	return Table{Widths: standardWidths, RowHeight: RowHeight, Rows: rows}
}

// typeSubtotalRows lists range totals per type, skipping types without volume.
func typeSubtotalRows(in Input, agg aggregate.Result) []Row {
	var rows []Row
	for _, t := range agg.TypeTotals {
		if t.Volume.IsZero() {
			continue
		}
		rows = append(rows, Row{
			Kind: RowTypeSubtotal,
			Cells: []Cell{
				{Text: fmt.Sprintf("Subtotal: %s", in.Catalog.Label(t.VariationID)), ColSpan: 3, Bold: true},
				{Text: ""},
				{Text: formatAmount(t.Volume, 2), Align: AlignRight, Bold: true},
				{Text: formatAmount(t.Invoice, 0), ColSpan: 2, Align: AlignRight, Bold: true},
			},
		})
	}
	return rows
}

func standardTotals(agg aggregate.Result) Table {
	total := agg.GrandTotal()
	tax := agg.GrandTax()
	return Table{
		Widths:    []float64{130, 50},
		RowHeight: 8,
		Rows: []Row{
			{Kind: RowTotal, Cells: []Cell{{Text: "Total", Bold: true}, {Text: formatAmount(total, 0), Align: AlignRight}}},
			{Kind: RowTotal, Cells: []Cell{{Text: "Tax (8%)", Bold: true}, {Text: formatAmount(tax, 0), Align: AlignRight}}},
			{Kind: RowTotal, Cells: []Cell{{Text: "Total payment", Bold: true, Fill: true}, {Text: formatAmount(total.Add(tax), 0), Align: AlignRight, Bold: true, Fill: true}}},
		},
	}
}
