package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/nurpe/supply-settlement/internal/model"
)

var ErrSuppliesLocked = errors.New("supplies already locked by another invoice")

type InvoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

type invoiceRow struct {
	ID          uuid.UUID
	StartDate   time.Time
	EndDate     time.Time
	InvoiceDate time.Time
	Layout      string
	CreatedAt   time.Time
}

func (r invoiceRow) toModel() model.Invoice {
	return model.Invoice{
		ID:          r.ID,
		Period:      model.DateRange{Start: r.StartDate, End: r.EndDate},
		InvoiceDate: r.InvoiceDate,
		Layout:      model.Layout(r.Layout),
		CreatedAt:   r.CreatedAt,
	}
}

type joinRow struct {
	ID                     uuid.UUID
	InvoiceID              uuid.UUID
	SupplierOrganizationID uuid.UUID
	Passwords              datatypes.JSONMap
	Completed              bool
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

func (r joinRow) toModel() model.InvoiceOrganization {
	passwords := make(map[string]string, len(r.Passwords))
	for key, value := range r.Passwords {
		if s, ok := value.(string); ok {
			passwords[key] = s
		}
	}
	return model.InvoiceOrganization{
		ID:             r.ID,
		InvoiceID:      r.InvoiceID,
		OrganizationID: r.SupplierOrganizationID,
		Passwords:      passwords,
		Completed:      r.Completed,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

// CreatePeriod opens an invoice period for the organizations and locks their
// supplies in the range. It fails with ErrSuppliesLocked when any of those
// supplies already belongs to another period.
func (r *InvoiceRepository) CreatePeriod(
	ctx context.Context,
	invoice model.Invoice,
	organizationIDs []uuid.UUID,
) (*model.Invoice, []model.InvoiceOrganization, error) {
	var (
		saved invoiceRow
		joins []model.InvoiceOrganization
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Raw(`
			INSERT INTO invoices (start_date, end_date, invoice_date, layout)
			VALUES (?, ?, ?, ?)
			RETURNING id, start_date, end_date, invoice_date, layout, created_at
		`, invoice.Period.Start, invoice.Period.End, invoice.InvoiceDate, string(invoice.Layout)).Scan(&saved).Error; err != nil {
			return err
		}

		for _, orgID := range organizationIDs {
			var locked int64
			if err := tx.Raw(`
				SELECT COUNT(*)
				FROM supplies s
				JOIN suppliers sp ON sp.id = s.supplier_id
				WHERE sp.supplier_organization_id = ?
					AND s.supply_date >= ?
					AND s.supply_date <= ?
					AND s.locked
			`, orgID, invoice.Period.Start, invoice.Period.End).Scan(&locked).Error; err != nil {
				return err
			}
			if locked > 0 {
				return fmt.Errorf("%w: organization %s has %d locked supplies", ErrSuppliesLocked, orgID, locked)
			}

			var join joinRow
			if err := tx.Raw(`
				INSERT INTO invoice_supplier_organizations (invoice_id, supplier_organization_id)
				VALUES (?, ?)
				RETURNING id, invoice_id, supplier_organization_id, passwords, completed, created_at, updated_at
			`, saved.ID, orgID).Scan(&join).Error; err != nil {
				return err
			}
			joins = append(joins, join.toModel())

			if err := tx.Exec(`
				UPDATE supplies
				SET locked = TRUE
				WHERE supplier_id IN (SELECT id FROM suppliers WHERE supplier_organization_id = ?)
					AND supply_date >= ?
					AND supply_date <= ?
			`, orgID, invoice.Period.Start, invoice.Period.End).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	result := saved.toModel()
	return &result, joins, nil
}

func (r *InvoiceRepository) GetInvoice(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	var row invoiceRow
	if err := r.db.WithContext(ctx).Raw(`
		SELECT id, start_date, end_date, invoice_date, layout, created_at
		FROM invoices
		WHERE id = ?
		LIMIT 1
	`, id).Scan(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	invoice := row.toModel()
	return &invoice, nil
}

// GetInvoiceOrganization loads the join record with its attachment list.
func (r *InvoiceRepository) GetInvoiceOrganization(ctx context.Context, invoiceID, organizationID uuid.UUID) (*model.InvoiceOrganization, error) {
	var row joinRow
	if err := r.db.WithContext(ctx).Raw(`
		SELECT id, invoice_id, supplier_organization_id, passwords, completed, created_at, updated_at
		FROM invoice_supplier_organizations
		WHERE invoice_id = ? AND supplier_organization_id = ?
		LIMIT 1
	`, invoiceID, organizationID).Scan(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}

	var attachments []struct {
		ID          uuid.UUID
		Format      string
		FileName    string
		ContentType string
		PageCount   int
		CreatedAt   time.Time
	}
	if err := r.db.WithContext(ctx).Raw(`
		SELECT id, format, file_name, content_type, page_count, created_at
		FROM invoice_attachments
		WHERE invoice_supplier_organization_id = ?
		ORDER BY created_at ASC
	`, row.ID).Scan(&attachments).Error; err != nil {
		return nil, err
	}

	join := row.toModel()
	for _, a := range attachments {
		join.Attachments = append(join.Attachments, model.AttachmentInfo{
			ID:          a.ID,
			Format:      model.Format(a.Format),
			FileName:    a.FileName,
			ContentType: a.ContentType,
			PageCount:   a.PageCount,
			CreatedAt:   a.CreatedAt,
		})
	}
	return &join, nil
}

// ResetInvoiceOrganization purges the attachments of a join and clears its
// passwords and completed flag in one transaction.
func (r *InvoiceRepository) ResetInvoiceOrganization(ctx context.Context, joinID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(`
			DELETE FROM invoice_attachments WHERE invoice_supplier_organization_id = ?
		`, joinID).Error; err != nil {
			return err
		}
		return tx.Exec(`
			UPDATE invoice_supplier_organizations
			SET passwords = '{}'::jsonb, completed = FALSE, updated_at = NOW()
			WHERE id = ?
		`, joinID).Error
	})
}

// AttachDocument stores the document and its password under the new
// attachment id in a single transaction.
func (r *InvoiceRepository) AttachDocument(ctx context.Context, joinID uuid.UUID, attachment model.Attachment, password string) (uuid.UUID, error) {
	var saved struct {
		ID uuid.UUID
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Raw(`
			INSERT INTO invoice_attachments (
				invoice_supplier_organization_id,
				format,
				file_name,
				content_type,
				content,
				page_count
			) VALUES (?, ?, ?, ?, ?, ?)
			RETURNING id
		`,
			joinID,
			string(attachment.Format),
			attachment.FileName,
			attachment.ContentType,
			attachment.Content,
			attachment.PageCount,
		).Scan(&saved).Error; err != nil {
			return err
		}
		if saved.ID == uuid.Nil {
			return fmt.Errorf("attachment insert returned no id")
		}

		return tx.Exec(`
			UPDATE invoice_supplier_organizations
			SET passwords = COALESCE(passwords, '{}'::jsonb) || jsonb_build_object(?::text, ?::text),
				updated_at = NOW()
			WHERE id = ?
		`, saved.ID.String(), password, joinID).Error
	})
	if err != nil {
		return uuid.Nil, err
	}
	return saved.ID, nil
}

func (r *InvoiceRepository) MarkCompleted(ctx context.Context, joinID uuid.UUID) error {
	return r.db.WithContext(ctx).Exec(`
		UPDATE invoice_supplier_organizations
		SET completed = TRUE, updated_at = NOW()
		WHERE id = ?
	`, joinID).Error
}

func (r *InvoiceRepository) GetAttachment(ctx context.Context, id uuid.UUID) (*model.Attachment, error) {
	var row struct {
		ID                            uuid.UUID
		InvoiceSupplierOrganizationID uuid.UUID
		Format                        string
		FileName                      string
		ContentType                   string
		Content                       []byte
		PageCount                     int
		CreatedAt                     time.Time
	}
	if err := r.db.WithContext(ctx).Raw(`
		SELECT id, invoice_supplier_organization_id, format, file_name, content_type, content, page_count, created_at
		FROM invoice_attachments
		WHERE id = ?
		LIMIT 1
	`, id).Scan(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &model.Attachment{
		ID:          row.ID,
		OwnerID:     row.InvoiceSupplierOrganizationID,
		Format:      model.Format(row.Format),
		FileName:    row.FileName,
		ContentType: row.ContentType,
		Content:     row.Content,
		PageCount:   row.PageCount,
		CreatedAt:   row.CreatedAt,
	}, nil
}

// AttachmentOrganization returns the organization owning an attachment.
func (r *InvoiceRepository) AttachmentOrganization(ctx context.Context, attachmentID uuid.UUID) (uuid.UUID, error) {
	var row struct {
		SupplierOrganizationID uuid.UUID
	}
	if err := r.db.WithContext(ctx).Raw(`
		SELECT j.supplier_organization_id
		FROM invoice_attachments a
		JOIN invoice_supplier_organizations j ON j.id = a.invoice_supplier_organization_id
		WHERE a.id = ?
	`, attachmentID).Scan(&row).Error; err != nil {
		return uuid.Nil, err
	}
	if row.SupplierOrganizationID == uuid.Nil {
		return uuid.Nil, gorm.ErrRecordNotFound
	}
	return row.SupplierOrganizationID, nil
}

// DeleteInvoiceOrganization removes the join with its attachments and
// unlocks the organization's supplies in the invoice period.
func (r *InvoiceRepository) DeleteInvoiceOrganization(ctx context.Context, invoiceID, organizationID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var invoice invoiceRow
		if err := tx.Raw(`
			SELECT id, start_date, end_date, invoice_date, layout, created_at
			FROM invoices
			WHERE id = ?
		`, invoiceID).Scan(&invoice).Error; err != nil {
			return err
		}
		if invoice.ID == uuid.Nil {
			return gorm.ErrRecordNotFound
		}

		res := tx.Exec(`
			DELETE FROM invoice_supplier_organizations
			WHERE invoice_id = ? AND supplier_organization_id = ?
		`, invoiceID, organizationID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		return tx.Exec(`
			UPDATE supplies
			SET locked = FALSE
			WHERE supplier_id IN (SELECT id FROM suppliers WHERE supplier_organization_id = ?)
				AND supply_date >= ?
				AND supply_date <= ?
		`, organizationID, invoice.StartDate, invoice.EndDate).Error
	})
}
