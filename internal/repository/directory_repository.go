package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nurpe/supply-settlement/internal/model"
)

type DirectoryRepository struct {
	db *gorm.DB
}

func NewDirectoryRepository(db *gorm.DB) *DirectoryRepository {
	return &DirectoryRepository{db: db}
}

func (r *DirectoryRepository) GetOrganization(ctx context.Context, id uuid.UUID) (*model.SupplierOrganization, error) {
	var org model.SupplierOrganization
	if err := r.db.WithContext(ctx).Raw(`
		SELECT id, name, micro_region, registration_number, address, postal_code, representative
		FROM supplier_organizations
		WHERE id = ?
		LIMIT 1
	`, id).Scan(&org).Error; err != nil {
		return nil, err
	}
	if org.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &org, nil
}

func (r *DirectoryRepository) ListSuppliers(ctx context.Context, organizationID uuid.UUID) ([]model.Supplier, error) {
	var rows []struct {
		ID                     uuid.UUID
		SupplierOrganizationID uuid.UUID
		SupplierNumber         int
		Name                   string
		ShortName              string
		Address                string
	}
	if err := r.db.WithContext(ctx).Raw(`
		SELECT id, supplier_organization_id, supplier_number, name, short_name, address
		FROM suppliers
		WHERE supplier_organization_id = ?
		ORDER BY supplier_number ASC, id ASC
	`, organizationID).Scan(&rows).Error; err != nil {
		return nil, err
	}

	suppliers := make([]model.Supplier, 0, len(rows))
	for _, row := range rows {
		suppliers = append(suppliers, model.Supplier{
			ID:             row.ID,
			OrganizationID: row.SupplierOrganizationID,
			SupplierNumber: row.SupplierNumber,
			Name:           row.Name,
			ShortName:      row.ShortName,
			Address:        row.Address,
		})
	}
	return suppliers, nil
}

func (r *DirectoryRepository) LoadCatalog(ctx context.Context) (*model.Catalog, error) {
	var types []model.SupplyType
	if err := r.db.WithContext(ctx).Raw(`
		SELECT id, name, position
		FROM supply_types
		ORDER BY position ASC
	`).Scan(&types).Error; err != nil {
		return nil, err
	}

	var rows []struct {
		ID           uuid.UUID
		SupplyTypeID uuid.UUID
		Name         string
		Unit         string
		Position     int
	}
	if err := r.db.WithContext(ctx).Raw(`
		SELECT id, supply_type_id, name, unit, position
		FROM supply_type_variations
		ORDER BY position ASC
	`).Scan(&rows).Error; err != nil {
		return nil, err
	}

	variations := make([]model.SupplyTypeVariation, 0, len(rows))
	for _, row := range rows {
		variations = append(variations, model.SupplyTypeVariation{
			ID:       row.ID,
			TypeID:   row.SupplyTypeID,
			Name:     row.Name,
			Unit:     row.Unit,
			Position: row.Position,
		})
	}
	return model.NewCatalog(types, variations), nil
}
