// Package aggregate folds supply records into the daily and range-level
// totals a settlement statement is built from.
package aggregate

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nurpe/supply-settlement/internal/model"
)

// TaxRate is the consumption tax applied to every day total.
var TaxRate = decimal.RequireFromString("0.08")

type PriceVolume struct {
	Price  decimal.Decimal
	Volume decimal.Decimal
}

func (p PriceVolume) Amount() decimal.Decimal {
	return p.Price.Mul(p.Volume)
}

type VariationDay struct {
	VariationID uuid.UUID
	Prices      []PriceVolume
}

type Day struct {
	Date       time.Time
	Variations []VariationDay
}

// Rows is the number of (variation, price) buckets of the day.
func (d Day) Rows() int {
	n := 0
	for _, v := range d.Variations {
		n += len(v.Prices)
	}
	return n
}

func (d Day) Total() decimal.Decimal {
	total := decimal.Zero
	for _, v := range d.Variations {
		for _, p := range v.Prices {
			total = total.Add(p.Amount())
		}
	}
	return total
}

type TypeTotal struct {
	VariationID uuid.UUID
	Volume      decimal.Decimal
	Invoice     decimal.Decimal
}

// Result is the aggregate of one scope and date range. DayTotals and DayTaxes
// are index-aligned with Days.
type Result struct {
	Days       []Day
	DayTotals  []decimal.Decimal
	DayTaxes   []decimal.Decimal
	TypeTotals []TypeTotal
}

func (r Result) Empty() bool {
	return len(r.Days) == 0
}

func (r Result) GrandTotal() decimal.Decimal {
	return decimal.Sum(decimal.Zero, r.DayTotals...)
}

func (r Result) GrandTax() decimal.Decimal {
	return decimal.Sum(decimal.Zero, r.DayTaxes...)
}

func (r Result) TotalVolume() decimal.Decimal {
	total := decimal.Zero
	for _, t := range r.TypeTotals {
		total = total.Add(t.Volume)
	}
	return total
}

func (r Result) TypeTotal(variationID uuid.UUID) (TypeTotal, bool) {
	for _, t := range r.TypeTotals {
		if t.VariationID == variationID {
			return t, true
		}
	}
	return TypeTotal{}, false
}

// Aggregate folds records in a single pass. Records with zero quantity are
// dropped; days come out in ascending order, variations in catalog order and
// prices in order of first appearance.
func Aggregate(records []model.SupplyRecord, catalog *model.Catalog) Result {
	sorted := make([]model.SupplyRecord, 0, len(records))
	for _, rec := range records {
		if rec.Quantity.IsZero() {
			continue
		}
		sorted = append(sorted, rec)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		di, dj := dateOnly(sorted[i].Date), dateOnly(sorted[j].Date)
		if !di.Equal(dj) {
			return di.Before(dj)
		}
		if sorted[i].VariationID == sorted[j].VariationID {
			return false
		}
		return catalog.Less(sorted[i].VariationID, sorted[j].VariationID)
	})

	var (
		result    Result
		current   *Day
		typeIndex = make(map[uuid.UUID]int)
	)

	closeDay := func() {
		if current == nil {
			return
		}
		total := current.Total()
		result.Days = append(result.Days, *current)
		result.DayTotals = append(result.DayTotals, total)
		result.DayTaxes = append(result.DayTaxes, total.Mul(TaxRate))
		current = nil
	}

	for _, rec := range sorted {
		date := dateOnly(rec.Date)
		if current != nil && !current.Date.Equal(date) {
			closeDay()
		}
		if current == nil {
			current = &Day{Date: date}
		}
		current.add(rec)

		pos, ok := typeIndex[rec.VariationID]
		if !ok {
			result.TypeTotals = append(result.TypeTotals, TypeTotal{
				VariationID: rec.VariationID,
				Volume:      decimal.Zero,
				Invoice:     decimal.Zero,
			})
			pos = len(result.TypeTotals) - 1
			typeIndex[rec.VariationID] = pos
		}
		result.TypeTotals[pos].Volume = result.TypeTotals[pos].Volume.Add(rec.Quantity)
		result.TypeTotals[pos].Invoice = result.TypeTotals[pos].Invoice.Add(rec.Amount())
	}
	closeDay()

	sort.SliceStable(result.TypeTotals, func(i, j int) bool {
		return catalog.Less(result.TypeTotals[i].VariationID, result.TypeTotals[j].VariationID)
	})
	return result
}

func (d *Day) add(rec model.SupplyRecord) {
	var variation *VariationDay
	for i := range d.Variations {
		if d.Variations[i].VariationID == rec.VariationID {
			variation = &d.Variations[i]
			break
		}
	}
	if variation == nil {
		d.Variations = append(d.Variations, VariationDay{VariationID: rec.VariationID})
		variation = &d.Variations[len(d.Variations)-1]
	}
	for i := range variation.Prices {
		if variation.Prices[i].Price.Equal(rec.Price) {
			variation.Prices[i].Volume = variation.Prices[i].Volume.Add(rec.Quantity)
			return
		}
	}
	variation.Prices = append(variation.Prices, PriceVolume{Price: rec.Price, Volume: rec.Quantity})
}

func dateOnly(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
