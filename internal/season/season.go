// Package season compares a supplier's current fiscal season with the
// same point of the previous season.
package season

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nurpe/supply-settlement/internal/model"
)

// LookbackDays is the width of the window searched one year back.
const LookbackDays = 5

type Stat struct {
	VariationID  uuid.UUID
	Volume       decimal.Decimal
	PriceSamples []decimal.Decimal
	Invoice      decimal.Decimal
}

// AveragePrice is the plain mean of the price samples; volumes do not weight it.
func (s Stat) AveragePrice() decimal.Decimal {
	if len(s.PriceSamples) == 0 {
		return decimal.Zero
	}
	return decimal.Avg(s.PriceSamples[0], s.PriceSamples[1:]...)
}

type Season struct {
	Start time.Time
	End   time.Time
	Stats []Stat
}

func (s Season) Stat(variationID uuid.UUID) (Stat, bool) {
	for _, st := range s.Stats {
		if st.VariationID == variationID {
			return st, true
		}
	}
	return Stat{}, false
}

// Comparison holds the current season and, when a record was found in the
// lookback window, the prior one.
type Comparison struct {
	Current Season
	Prior   *Season
}

func (c Comparison) PriorStat(variationID uuid.UUID) (Stat, bool) {
	if c.Prior == nil {
		return Stat{}, false
	}
	return c.Prior.Stat(variationID)
}

// VisibleStats are the current-season stats with non-zero volume.
func (c Comparison) VisibleStats() []Stat {
	result := make([]Stat, 0, len(c.Current.Stats))
	for _, st := range c.Current.Stats {
		if st.Volume.IsZero() {
			continue
		}
		result = append(result, st)
	}
	return result
}

// HistoryStart is the earliest supply date Compare reads when the supplier's
// latest supply is on latest: the start of the season holding the lookback
// window one year back.
func HistoryStart(latest time.Time) time.Time {
	return Start(dateOnly(latest).AddDate(-1, 0, -LookbackDays))
}

// Start returns the fiscal season anchor for t: October 1 of t's year, or of
// the previous year before October.
func Start(t time.Time) time.Time {
	year := t.Year()
	if t.Month() < time.October {
		year--
	}
	return time.Date(year, time.October, 1, 0, 0, 0, 0, time.UTC)
}

// Accumulate builds the season that ends at asOf from a supplier's history.
func Accumulate(history []model.SupplyRecord, asOf time.Time, catalog *model.Catalog) Season {
	end := dateOnly(asOf)
	season := Season{Start: Start(end), End: end}
	index := make(map[uuid.UUID]int)

	for _, rec := range history {
		if rec.Quantity.IsZero() {
			continue
		}
		date := dateOnly(rec.Date)
		if date.Before(season.Start) || date.After(end) {
			continue
		}
		pos, ok := index[rec.VariationID]
		if !ok {
			season.Stats = append(season.Stats, Stat{
				VariationID: rec.VariationID,
				Volume:      decimal.Zero,
				Invoice:     decimal.Zero,
			})
			pos = len(season.Stats) - 1
			index[rec.VariationID] = pos
		}
		st := &season.Stats[pos]
		st.Volume = st.Volume.Add(rec.Quantity)
		st.Invoice = st.Invoice.Add(rec.Amount())
		st.PriceSamples = append(st.PriceSamples, rec.Price)
	}

	sort.SliceStable(season.Stats, func(i, j int) bool {
		return catalog.Less(season.Stats[i].VariationID, season.Stats[j].VariationID)
	})
	return season
}

// Lookup finds the latest supply of a supplier dated within [from, to].
type Lookup interface {
	LatestSupplyBetween(ctx context.Context, supplierID uuid.UUID, from, to time.Time) (*model.SupplyRecord, error)
}

type Comparator struct {
	lookup Lookup
}

func NewComparator(lookup Lookup) *Comparator {
	return &Comparator{lookup: lookup}
}

// Compare returns nil when the supplier has no history at all.
func (c *Comparator) Compare(
	ctx context.Context,
	supplierID uuid.UUID,
	history []model.SupplyRecord,
	catalog *model.Catalog,
) (*Comparison, error) {
	latest, ok := latestDate(history)
	if !ok {
		return nil, nil
	}

	comparison := &Comparison{Current: Accumulate(history, latest, catalog)}

	to := latest.AddDate(-1, 0, 0)
	from := to.AddDate(0, 0, -LookbackDays)
	anchor, err := c.lookup.LatestSupplyBetween(ctx, supplierID, from, to)
	if err != nil {
		return nil, err
	}
	if anchor != nil {
		prior := Accumulate(history, anchor.Date, catalog)
		comparison.Prior = &prior
	}
	return comparison, nil
}

func latestDate(history []model.SupplyRecord) (time.Time, bool) {
	var latest time.Time
	found := false
	for _, rec := range history {
		if rec.Quantity.IsZero() {
			continue
		}
		date := dateOnly(rec.Date)
		if !found || date.After(latest) {
			latest = date
			found = true
		}
	}
	return latest, found
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
