package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type SupplyRecord struct {
	ID          uuid.UUID
	Date        time.Time
	SupplierID  uuid.UUID
	VariationID uuid.UUID
	Quantity    decimal.Decimal
	Price       decimal.Decimal
	Locked      bool
}

// Amount is price × quantity.
func (r SupplyRecord) Amount() decimal.Decimal {
	return r.Price.Mul(r.Quantity)
}

type SupplyType struct {
	ID       uuid.UUID
	Name     string
	Position int
}

type SupplyTypeVariation struct {
	ID       uuid.UUID
	TypeID   uuid.UUID
	Name     string
	Unit     string
	Position int
}

type DateRange struct {
	Start time.Time
	End   time.Time
}

func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// Scope limits a supply query to an organization, or to one supplier of it.
type Scope struct {
	OrganizationID uuid.UUID
	SupplierID     *uuid.UUID
}

func OrganizationScope(orgID uuid.UUID) Scope {
	return Scope{OrganizationID: orgID}
}

func SupplierScope(orgID, supplierID uuid.UUID) Scope {
	id := supplierID
	return Scope{OrganizationID: orgID, SupplierID: &id}
}
