package model

import "github.com/google/uuid"

type SupplierOrganization struct {
	ID                 uuid.UUID
	Name               string
	MicroRegion        string
	RegistrationNumber string
	Address            string
	PostalCode         string
	Representative     string
}

type Supplier struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	SupplierNumber int
	Name           string
	ShortName      string
	Address        string
}

// DisplayName prefers the short name used on statements.
func (s Supplier) DisplayName() string {
	if s.ShortName != "" {
		return s.ShortName
	}
	return s.Name
}

// Issuer is the trading company that pays the suppliers.
type Issuer struct {
	Name               string
	Address            string
	Phone              string
	RegistrationNumber string
}
