package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/nurpe/supply-settlement/internal/model"
)

type SupplyRepository struct {
	db *gorm.DB
}

func NewSupplyRepository(db *gorm.DB) *SupplyRepository {
	return &SupplyRepository{db: db}
}

type supplyRow struct {
	ID                    uuid.UUID
	SupplyDate            time.Time
	SupplierID            uuid.UUID
	SupplyTypeVariationID uuid.UUID
	Quantity              decimal.Decimal
	Price                 decimal.Decimal
	Locked                bool
}

func (r supplyRow) toModel() model.SupplyRecord {
	return model.SupplyRecord{
		ID:          r.ID,
		Date:        r.SupplyDate,
		SupplierID:  r.SupplierID,
		VariationID: r.SupplyTypeVariationID,
		Quantity:    r.Quantity,
		Price:       r.Price,
		Locked:      r.Locked,
	}
}

func toRecords(rows []supplyRow) []model.SupplyRecord {
	records := make([]model.SupplyRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.toModel())
	}
	return records
}

// ListSupplies returns the non-zero supplies of a scope within the period,
// ordered by type position and variation position.
func (r *SupplyRepository) ListSupplies(ctx context.Context, scope model.Scope, period model.DateRange) ([]model.SupplyRecord, error) {
	baseQuery := `
		SELECT
			s.id,
			s.supply_date,
			s.supplier_id,
			s.supply_type_variation_id,
			s.quantity,
			s.price,
			s.locked
		FROM supplies s
		JOIN suppliers sp ON sp.id = s.supplier_id
		JOIN supply_type_variations v ON v.id = s.supply_type_variation_id
		JOIN supply_types t ON t.id = v.supply_type_id
		WHERE sp.supplier_organization_id = ?
			AND s.supply_date >= ?
			AND s.supply_date <= ?
			AND s.quantity <> 0
	`
	args := []interface{}{scope.OrganizationID, period.Start, period.End}
	if scope.SupplierID != nil {
		baseQuery += " AND s.supplier_id = ?"
		args = append(args, *scope.SupplierID)
	}
	baseQuery += " ORDER BY t.position ASC, v.position ASC, s.supply_date ASC, s.id ASC"

	var rows []supplyRow
	if err := r.db.WithContext(ctx).Raw(baseQuery, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return toRecords(rows), nil
}

// ListSupplierHistory returns a supplier's non-zero supplies dated within [from, to].
func (r *SupplyRepository) ListSupplierHistory(ctx context.Context, supplierID uuid.UUID, from, to time.Time) ([]model.SupplyRecord, error) {
	var rows []supplyRow
	err := r.db.WithContext(ctx).Raw(`
		SELECT
			s.id,
			s.supply_date,
			s.supplier_id,
			s.supply_type_variation_id,
			s.quantity,
			s.price,
			s.locked
		FROM supplies s
		WHERE s.supplier_id = ?
			AND s.supply_date >= ?
			AND s.supply_date <= ?
			AND s.quantity <> 0
		ORDER BY s.supply_date ASC, s.id ASC
	`, supplierID, from, to).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return toRecords(rows), nil
}

// LatestSupplyBetween returns nil when the supplier has no supply in the window.
func (r *SupplyRepository) LatestSupplyBetween(ctx context.Context, supplierID uuid.UUID, from, to time.Time) (*model.SupplyRecord, error) {
	var row supplyRow
	err := r.db.WithContext(ctx).Raw(`
		SELECT
			s.id,
			s.supply_date,
			s.supplier_id,
			s.supply_type_variation_id,
			s.quantity,
			s.price,
			s.locked
		FROM supplies s
		WHERE s.supplier_id = ?
			AND s.supply_date >= ?
			AND s.supply_date <= ?
			AND s.quantity <> 0
		ORDER BY s.supply_date DESC, s.id DESC
		LIMIT 1
	`, supplierID, from, to).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	rec := row.toModel()
	return &rec, nil
}
