package model

import (
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Catalog indexes supply types and their variations. Ordering is by
// (type position, variation position), never by name.
type Catalog struct {
	types      []SupplyType
	variations []SupplyTypeVariation
	typeIdx    map[uuid.UUID]int
	varIdx     map[uuid.UUID]int
}

func NewCatalog(types []SupplyType, variations []SupplyTypeVariation) *Catalog {
	c := &Catalog{
		types:      append([]SupplyType(nil), types...),
		variations: append([]SupplyTypeVariation(nil), variations...),
		typeIdx:    make(map[uuid.UUID]int, len(types)),
		varIdx:     make(map[uuid.UUID]int, len(variations)),
	}
	for i, t := range c.types {
		c.typeIdx[t.ID] = i
	}
	for i, v := range c.variations {
		c.varIdx[v.ID] = i
	}
	return c
}

func (c *Catalog) Variation(id uuid.UUID) (SupplyTypeVariation, bool) {
	if c == nil {
		return SupplyTypeVariation{}, false
	}
	i, ok := c.varIdx[id]
	if !ok {
		return SupplyTypeVariation{}, false
	}
	return c.variations[i], true
}

func (c *Catalog) TypeOf(variationID uuid.UUID) (SupplyType, bool) {
	v, ok := c.Variation(variationID)
	if !ok {
		return SupplyType{}, false
	}
	i, ok := c.typeIdx[v.TypeID]
	if !ok {
		return SupplyType{}, false
	}
	return c.types[i], true
}

// Label renders "Type Variation", or the raw id for unknown variations.
func (c *Catalog) Label(variationID uuid.UUID) string {
	v, ok := c.Variation(variationID)
	if !ok {
		return variationID.String()
	}
	t, ok := c.TypeOf(variationID)
	if !ok || t.Name == "" {
		return v.Name
	}
	if v.Name == "" {
		return t.Name
	}
	return strings.TrimSpace(t.Name + " " + v.Name)
}

func (c *Catalog) Unit(variationID uuid.UUID) string {
	v, _ := c.Variation(variationID)
	return v.Unit
}

func (c *Catalog) positions(variationID uuid.UUID) (int, int, bool) {
	v, ok := c.Variation(variationID)
	if !ok {
		return 0, 0, false
	}
	t, _ := c.TypeOf(variationID)
	return t.Position, v.Position, true
}

// Less compares two variations by type position, then variation position.
// Unknown variations sort after known ones, by id.
func (c *Catalog) Less(a, b uuid.UUID) bool {
	at, av, aok := c.positions(a)
	bt, bv, bok := c.positions(b)
	switch {
	case aok != bok:
		return aok
	case !aok:
		return a.String() < b.String()
	case at != bt:
		return at < bt
	case av != bv:
		return av < bv
	default:
		return a.String() < b.String()
	}
}

// SortVariations orders ids in place using Less.
func (c *Catalog) SortVariations(ids []uuid.UUID) {
	sort.SliceStable(ids, func(i, j int) bool {
		return c.Less(ids[i], ids[j])
	})
}
