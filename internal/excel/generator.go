package excel

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/nurpe/supply-settlement/internal/aggregate"
	"github.com/nurpe/supply-settlement/internal/model"
)

type StatementUnit struct {
	Key       string
	Title     string
	Aggregate aggregate.Result
}

type Statement struct {
	Organization model.SupplierOrganization
	Format       model.Format
	Period       model.DateRange
	Catalog      *model.Catalog
	Units        []StatementUnit
}

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

func (g *Generator) Generate(stmt Statement) ([]byte, error) {
	file := excelize.NewFile()
	defer file.Close()

	summarySheet := "Summary"
	if err := file.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if err := g.writeSummary(file, summarySheet, stmt); err != nil {
		return nil, err
	}

	usedNames := map[string]struct{}{summarySheet: {}}
	for _, unit := range stmt.Units {
		sheetName := buildSheetName(unit.Title, unit.Key, usedNames)
		usedNames[sheetName] = struct{}{}

		if _, err := file.NewSheet(sheetName); err != nil {
			return nil, err
		}
		if err := g.writeDetail(file, sheetName, stmt, unit); err != nil {
			return nil, err
		}
	}

	file.SetActiveSheet(0)
	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g *Generator) writeSummary(file *excelize.File, sheet string, stmt Statement) error {
	var err error
	set := func(cell string, value interface{}) {
		if err == nil {
			err = file.SetCellValue(sheet, cell, value)
		}
	}

	set("A1", "Organization")
	set("B1", stmt.Organization.Name)
	set("A2", "Micro region")
	set("B2", stmt.Organization.MicroRegion)
	set("A3", "Format")
	set("B3", string(stmt.Format))
	set("A4", "Period start")
	set("B4", formatDate(stmt.Period.Start))
	set("A5", "Period end")
	set("B5", formatDate(stmt.Period.End))

	tableRow := 7
	headers := []string{"Unit", "Volume", "Total", "Tax (8%)", "Total payment"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, tableRow)
		set(cell, header)
	}

	grand, grandTax := decimal.Zero, decimal.Zero
	for i, unit := range stmt.Units {
		row := tableRow + 1 + i
		total := unit.Aggregate.GrandTotal()
		tax := unit.Aggregate.GrandTax()
		grand, grandTax = grand.Add(total), grandTax.Add(tax)

		set(fmt.Sprintf("A%d", row), unit.Title)
		set(fmt.Sprintf("B%d", row), number(unit.Aggregate.TotalVolume()))
		set(fmt.Sprintf("C%d", row), number(total))
		set(fmt.Sprintf("D%d", row), number(tax))
		set(fmt.Sprintf("E%d", row), number(total.Add(tax)))
	}
	totalRow := tableRow + 1 + len(stmt.Units)
	set(fmt.Sprintf("A%d", totalRow), "Total")
	set(fmt.Sprintf("C%d", totalRow), number(grand))
	set(fmt.Sprintf("D%d", totalRow), number(grandTax))
	set(fmt.Sprintf("E%d", totalRow), number(grand.Add(grandTax)))
	if err != nil {
		return err
	}

	_ = file.SetColWidth(sheet, "A", "A", 40)
	_ = file.SetColWidth(sheet, "B", "E", 16)
	return nil
}

func (g *Generator) writeDetail(file *excelize.File, sheet string, stmt Statement, unit StatementUnit) error {
	var err error
	set := func(cell string, value interface{}) {
		if err == nil {
			err = file.SetCellValue(sheet, cell, value)
		}
	}

	set("A1", "Organization")
	set("B1", stmt.Organization.Name)
	set("A2", "Unit")
	set("B2", unit.Title)
	set("A3", "Period")
	set("B3", fmt.Sprintf("%s - %s", formatDate(stmt.Period.Start), formatDate(stmt.Period.End)))

	tableRow := 5
	headers := []string{"Date", "Type", "Unit", "Price", "Volume", "Amount", "Daily total", "Tax (8%)"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, tableRow)
		set(cell, header)
	}

	row := tableRow + 1
	agg := unit.Aggregate
	for i, day := range agg.Days {
		first := true
		for _, v := range day.Variations {
			for _, p := range v.Prices {
				set(fmt.Sprintf("A%d", row), formatDate(day.Date))
				set(fmt.Sprintf("B%d", row), stmt.Catalog.Label(v.VariationID))
				set(fmt.Sprintf("C%d", row), stmt.Catalog.Unit(v.VariationID))
				set(fmt.Sprintf("D%d", row), number(p.Price))
				set(fmt.Sprintf("E%d", row), number(p.Volume))
				set(fmt.Sprintf("F%d", row), number(p.Amount()))
				if first {
					set(fmt.Sprintf("G%d", row), number(agg.DayTotals[i]))
					set(fmt.Sprintf("H%d", row), number(agg.DayTaxes[i]))
					first = false
				}
				row++
			}
		}
	}

	row++
	for _, t := range agg.TypeTotals {
		set(fmt.Sprintf("A%d", row), "Subtotal")
		set(fmt.Sprintf("B%d", row), stmt.Catalog.Label(t.VariationID))
		set(fmt.Sprintf("E%d", row), number(t.Volume))
		set(fmt.Sprintf("F%d", row), number(t.Invoice))
		row++
	}
	if err != nil {
		return err
	}

	_ = file.SetColWidth(sheet, "A", "A", 14)
	_ = file.SetColWidth(sheet, "B", "B", 32)
	_ = file.SetColWidth(sheet, "C", "H", 14)
	return nil
}

func buildSheetName(title, key string, used map[string]struct{}) string {
	base := strings.TrimSpace(title)
	if base == "" {
		base = key
	}
	base = sanitizeSheetName(base)

	if len([]rune(base)) > 31 {
		base = string([]rune(base)[:31])
	}

	nameCandidate := base
	counter := 2
	for {
		if _, exists := used[nameCandidate]; !exists {
			return nameCandidate
		}
		suffix := fmt.Sprintf("-%d", counter)
		trimmed := []rune(base)
		if len(trimmed)+len(suffix) > 31 {
			trimmed = trimmed[:31-len(suffix)]
		}
		nameCandidate = string(trimmed) + suffix
		counter++
	}
}

func sanitizeSheetName(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "Sheet"
	}

	replacer := strings.NewReplacer(
		"[", "-",
		"]", "-",
		":", "-",
		"*", "-",
		"?", "-",
		"/", "-",
		"\\", "-",
	)
	value = replacer.Replace(value)
	value = strings.TrimSpace(value)
	if value == "" {
		return "Sheet"
	}
	return value
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

func number(value decimal.Decimal) float64 {
	f, _ := value.Float64()
	return f
}
