package season

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/supply-settlement/internal/model"
)

type stubLookup struct {
	history []model.SupplyRecord
	from    time.Time
	to      time.Time
	calls   int
}

func (s *stubLookup) LatestSupplyBetween(_ context.Context, _ uuid.UUID, from, to time.Time) (*model.SupplyRecord, error) {
	s.calls++
	s.from, s.to = from, to
	var latest *model.SupplyRecord
	for i := range s.history {
		rec := s.history[i]
		if rec.Date.Before(from) || rec.Date.After(to) {
			continue
		}
		if latest == nil || rec.Date.After(latest.Date) {
			latest = &rec
		}
	}
	return latest, nil
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func rec(date string, variation uuid.UUID, qty, price string) model.SupplyRecord {
	return model.SupplyRecord{
		ID:          uuid.New(),
		Date:        day(date),
		VariationID: variation,
		Quantity:    decimal.RequireFromString(qty),
		Price:       decimal.RequireFromString(price),
	}
}

func testCatalog() (*model.Catalog, uuid.UUID, uuid.UUID) {
	typ := model.SupplyType{ID: uuid.New(), Name: "Onion", Position: 1}
	a := model.SupplyTypeVariation{ID: uuid.New(), TypeID: typ.ID, Name: "2L", Position: 1}
	b := model.SupplyTypeVariation{ID: uuid.New(), TypeID: typ.ID, Name: "L", Position: 2}
	return model.NewCatalog([]model.SupplyType{typ}, []model.SupplyTypeVariation{a, b}), a.ID, b.ID
}

func TestStart(t *testing.T) {
	tests := []struct {
		date string
		want string
	}{
		{date: "2024-09-30", want: "2023-10-01"},
		{date: "2024-10-01", want: "2024-10-01"},
		{date: "2024-12-31", want: "2024-10-01"},
		{date: "2025-01-15", want: "2024-10-01"},
	}
	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			assert.Equal(t, tt.want, Start(day(tt.date)).Format("2006-01-02"))
		})
	}
}

func TestHistoryStartCoversPriorSeason(t *testing.T) {
	tests := []struct {
		latest string
		want   string
	}{
		// Lookback anchor 2023-09-15 sits in the season opened 2022-10-01.
		{latest: "2024-09-20", want: "2022-10-01"},
		{latest: "2024-10-03", want: "2022-10-01"},
		{latest: "2024-10-10", want: "2023-10-01"},
		{latest: "2025-03-01", want: "2023-10-01"},
	}
	for _, tt := range tests {
		t.Run(tt.latest, func(t *testing.T) {
			assert.Equal(t, tt.want, HistoryStart(day(tt.latest)).Format("2006-01-02"))
		})
	}
}

func TestAveragePriceIsUnweightedMean(t *testing.T) {
	st := Stat{PriceSamples: []decimal.Decimal{
		decimal.RequireFromString("100"),
		decimal.RequireFromString("200"),
	}}
	assert.True(t, st.AveragePrice().Equal(decimal.RequireFromString("150")))

	assert.True(t, Stat{}.AveragePrice().IsZero())
}

func TestAccumulateLimitsToSeason(t *testing.T) {
	catalog, a, b := testCatalog()
	history := []model.SupplyRecord{
		rec("2024-09-28", a, "100", "10"),
		rec("2024-10-02", a, "10", "100"),
		rec("2024-10-05", a, "30", "300"),
		rec("2024-10-05", b, "0", "999"),
		rec("2024-11-01", b, "5", "50"),
		rec("2024-11-20", a, "1", "1"),
	}

	s := Accumulate(history, day("2024-11-01"), catalog)

	assert.Equal(t, "2024-10-01", s.Start.Format("2006-01-02"))
	require.Len(t, s.Stats, 2)
	assert.Equal(t, a, s.Stats[0].VariationID)
	assert.True(t, s.Stats[0].Volume.Equal(decimal.RequireFromString("40")))
	assert.True(t, s.Stats[0].Invoice.Equal(decimal.RequireFromString("10000")))
	assert.True(t, s.Stats[0].AveragePrice().Equal(decimal.RequireFromString("200")))
	assert.Len(t, s.Stats[1].PriceSamples, 1)
}

func TestCompareUsesLookbackWindow(t *testing.T) {
	catalog, a, _ := testCatalog()
	history := []model.SupplyRecord{
		rec("2023-10-10", a, "5", "90"),
		rec("2023-11-12", a, "7", "95"),
		rec("2023-11-30", a, "100", "1"),
		rec("2024-10-20", a, "8", "110"),
		rec("2024-11-15", a, "2", "120"),
	}
	lookup := &stubLookup{history: history}

	cmp, err := NewComparator(lookup).Compare(context.Background(), uuid.New(), history, catalog)
	require.NoError(t, err)
	require.NotNil(t, cmp)

	assert.Equal(t, "2023-11-10", lookup.from.Format("2006-01-02"))
	assert.Equal(t, "2023-11-15", lookup.to.Format("2006-01-02"))

	current, ok := cmp.Current.Stat(a)
	require.True(t, ok)
	assert.True(t, current.Volume.Equal(decimal.RequireFromString("10")))

	require.NotNil(t, cmp.Prior)
	assert.Equal(t, "2023-11-12", cmp.Prior.End.Format("2006-01-02"))
	prior, ok := cmp.PriorStat(a)
	require.True(t, ok)
	assert.True(t, prior.Volume.Equal(decimal.RequireFromString("12")))
	assert.True(t, prior.AveragePrice().Equal(decimal.RequireFromString("92.5")))
}

func TestCompareWithoutPriorRecord(t *testing.T) {
	catalog, a, _ := testCatalog()
	history := []model.SupplyRecord{rec("2024-10-20", a, "8", "110")}

	cmp, err := NewComparator(&stubLookup{history: history}).Compare(context.Background(), uuid.New(), history, catalog)
	require.NoError(t, err)
	require.NotNil(t, cmp)
	assert.Nil(t, cmp.Prior)
	_, ok := cmp.PriorStat(a)
	assert.False(t, ok)
}

func TestCompareWithoutHistory(t *testing.T) {
	catalog, _, _ := testCatalog()
	lookup := &stubLookup{}

	cmp, err := NewComparator(lookup).Compare(context.Background(), uuid.New(), nil, catalog)
	require.NoError(t, err)
	assert.Nil(t, cmp)
	assert.Zero(t, lookup.calls)
}

func TestVisibleStatsSkipsZeroVolume(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	cmp := Comparison{Current: Season{Stats: []Stat{
		{VariationID: a, Volume: decimal.Zero},
		{VariationID: b, Volume: decimal.NewFromInt(3)},
	}}}

	visible := cmp.VisibleStats()
	require.Len(t, visible, 1)
	assert.Equal(t, b, visible[0].VariationID)
}
