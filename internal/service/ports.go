package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nurpe/supply-settlement/internal/excel"
	"github.com/nurpe/supply-settlement/internal/layout"
	"github.com/nurpe/supply-settlement/internal/model"
	"github.com/nurpe/supply-settlement/internal/pdf"
)

type SupplySource interface {
	ListSupplies(ctx context.Context, scope model.Scope, period model.DateRange) ([]model.SupplyRecord, error)
	ListSupplierHistory(ctx context.Context, supplierID uuid.UUID, from, to time.Time) ([]model.SupplyRecord, error)
	LatestSupplyBetween(ctx context.Context, supplierID uuid.UUID, from, to time.Time) (*model.SupplyRecord, error)
}

type Directory interface {
	GetOrganization(ctx context.Context, id uuid.UUID) (*model.SupplierOrganization, error)
	ListSuppliers(ctx context.Context, organizationID uuid.UUID) ([]model.Supplier, error)
	LoadCatalog(ctx context.Context) (*model.Catalog, error)
}

type InvoiceStore interface {
	CreatePeriod(ctx context.Context, invoice model.Invoice, organizationIDs []uuid.UUID) (*model.Invoice, []model.InvoiceOrganization, error)
	GetInvoice(ctx context.Context, id uuid.UUID) (*model.Invoice, error)
	GetInvoiceOrganization(ctx context.Context, invoiceID, organizationID uuid.UUID) (*model.InvoiceOrganization, error)
	ResetInvoiceOrganization(ctx context.Context, joinID uuid.UUID) error
	AttachDocument(ctx context.Context, joinID uuid.UUID, attachment model.Attachment, password string) (uuid.UUID, error)
	MarkCompleted(ctx context.Context, joinID uuid.UUID) error
	GetAttachment(ctx context.Context, id uuid.UUID) (*model.Attachment, error)
	AttachmentOrganization(ctx context.Context, attachmentID uuid.UUID) (uuid.UUID, error)
	DeleteInvoiceOrganization(ctx context.Context, invoiceID, organizationID uuid.UUID) error
}

type DocumentRenderer interface {
	Render(doc layout.Document, opts pdf.Options) (*pdf.Output, error)
}

type StatementExporter interface {
	Generate(stmt excel.Statement) ([]byte, error)
}

type Publisher interface {
	PublishCompleted(ctx context.Context, event model.CompletionEvent) error
}

type PasswordGenerator interface {
	Generate() (string, error)
}
