package model

import "github.com/google/uuid"

type UserRole string

const (
	UserRoleAdmin                UserRole = "ADMIN"
	UserRoleAccountant           UserRole = "ACCOUNTANT"
	UserRoleSupplierOrganization UserRole = "SUPPLIER_ORGANIZATION"
)

type Principal struct {
	UserID uuid.UUID
	OrgID  uuid.UUID
	Role   UserRole
}

func (p Principal) IsStaff() bool {
	return p.Role == UserRoleAdmin || p.Role == UserRoleAccountant
}

func (p Principal) IsSupplierOrganization() bool {
	return p.Role == UserRoleSupplierOrganization
}

// CanRead reports whether the principal may see documents of orgID.
func (p Principal) CanRead(orgID uuid.UUID) bool {
	if p.IsStaff() {
		return true
	}
	return p.IsSupplierOrganization() && p.OrgID == orgID
}
