package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/nurpe/supply-settlement/internal/layout"
	"github.com/nurpe/supply-settlement/internal/model"
	"github.com/nurpe/supply-settlement/internal/pdf"
)

type fakeSupplies struct {
	records   []model.SupplyRecord
	owners    map[uuid.UUID]uuid.UUID
	listErr   error
	lookbacks int
}

func (f *fakeSupplies) ListSupplies(_ context.Context, scope model.Scope, period model.DateRange) ([]model.SupplyRecord, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []model.SupplyRecord
	for _, rec := range f.records {
		if f.owners[rec.SupplierID] != scope.OrganizationID {
			continue
		}
		if scope.SupplierID != nil && *scope.SupplierID != rec.SupplierID {
			continue
		}
		if rec.Quantity.IsZero() || !period.Contains(rec.Date) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (f *fakeSupplies) ListSupplierHistory(_ context.Context, supplierID uuid.UUID, from, to time.Time) ([]model.SupplyRecord, error) {
	var out []model.SupplyRecord
	for _, rec := range f.records {
		if rec.SupplierID == supplierID && !rec.Date.Before(from) && !rec.Date.After(to) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeSupplies) LatestSupplyBetween(_ context.Context, supplierID uuid.UUID, from, to time.Time) (*model.SupplyRecord, error) {
	f.lookbacks++
	var latest *model.SupplyRecord
	for i, rec := range f.records {
		if rec.SupplierID != supplierID || rec.Date.Before(from) || rec.Date.After(to) {
			continue
		}
		if latest == nil || rec.Date.After(latest.Date) {
			latest = &f.records[i]
		}
	}
	return latest, nil
}

type fakeDirectory struct {
	orgs      map[uuid.UUID]model.SupplierOrganization
	suppliers map[uuid.UUID][]model.Supplier
	catalog   *model.Catalog
}

func (f *fakeDirectory) GetOrganization(_ context.Context, id uuid.UUID) (*model.SupplierOrganization, error) {
	org, ok := f.orgs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &org, nil
}

func (f *fakeDirectory) ListSuppliers(_ context.Context, organizationID uuid.UUID) ([]model.Supplier, error) {
	return append([]model.Supplier(nil), f.suppliers[organizationID]...), nil
}

func (f *fakeDirectory) LoadCatalog(context.Context) (*model.Catalog, error) {
	return f.catalog, nil
}

type joinKey struct {
	invoiceID uuid.UUID
	orgID     uuid.UUID
}

type fakeStore struct {
	invoices    map[uuid.UUID]model.Invoice
	joins       map[joinKey]*model.InvoiceOrganization
	attachments map[uuid.UUID]model.Attachment
	order       []uuid.UUID
	calls       []string
	createErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		invoices:    make(map[uuid.UUID]model.Invoice),
		joins:       make(map[joinKey]*model.InvoiceOrganization),
		attachments: make(map[uuid.UUID]model.Attachment),
	}
}

func (f *fakeStore) addPeriod(invoice model.Invoice, orgID uuid.UUID) *model.InvoiceOrganization {
	f.invoices[invoice.ID] = invoice
	join := &model.InvoiceOrganization{
		ID:             uuid.New(),
		InvoiceID:      invoice.ID,
		OrganizationID: orgID,
		Passwords:      map[string]string{},
	}
	f.joins[joinKey{invoice.ID, orgID}] = join
	return join
}

func (f *fakeStore) joinByID(id uuid.UUID) *model.InvoiceOrganization {
	for _, join := range f.joins {
		if join.ID == id {
			return join
		}
	}
	return nil
}

func (f *fakeStore) CreatePeriod(_ context.Context, invoice model.Invoice, organizationIDs []uuid.UUID) (*model.Invoice, []model.InvoiceOrganization, error) {
	if f.createErr != nil {
		return nil, nil, f.createErr
	}
	invoice.ID = uuid.New()
	var joins []model.InvoiceOrganization
	for _, orgID := range organizationIDs {
		joins = append(joins, *f.addPeriod(invoice, orgID))
	}
	return &invoice, joins, nil
}

func (f *fakeStore) GetInvoice(_ context.Context, id uuid.UUID) (*model.Invoice, error) {
	invoice, ok := f.invoices[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &invoice, nil
}

func (f *fakeStore) GetInvoiceOrganization(_ context.Context, invoiceID, organizationID uuid.UUID) (*model.InvoiceOrganization, error) {
	join, ok := f.joins[joinKey{invoiceID, organizationID}]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := *join
	out.Passwords = make(map[string]string, len(join.Passwords))
	for k, v := range join.Passwords {
		out.Passwords[k] = v
	}
	out.Attachments = nil
	for _, id := range f.order {
		a, ok := f.attachments[id]
		if !ok || a.OwnerID != join.ID {
			continue
		}
		out.Attachments = append(out.Attachments, model.AttachmentInfo{
			ID:          a.ID,
			Format:      a.Format,
			FileName:    a.FileName,
			ContentType: a.ContentType,
			PageCount:   a.PageCount,
		})
	}
	return &out, nil
}

func (f *fakeStore) ResetInvoiceOrganization(_ context.Context, joinID uuid.UUID) error {
	f.calls = append(f.calls, "reset")
	for id, a := range f.attachments {
		if a.OwnerID == joinID {
			delete(f.attachments, id)
		}
	}
	join := f.joinByID(joinID)
	if join == nil {
		return gorm.ErrRecordNotFound
	}
	join.Passwords = map[string]string{}
	join.Completed = false
	return nil
}

func (f *fakeStore) AttachDocument(_ context.Context, joinID uuid.UUID, attachment model.Attachment, password string) (uuid.UUID, error) {
	f.calls = append(f.calls, "attach:"+string(attachment.Format))
	join := f.joinByID(joinID)
	if join == nil {
		return uuid.Nil, gorm.ErrRecordNotFound
	}
	attachment.ID = uuid.New()
	attachment.OwnerID = joinID
	f.attachments[attachment.ID] = attachment
	f.order = append(f.order, attachment.ID)
	join.Passwords[attachment.ID.String()] = password
	return attachment.ID, nil
}

func (f *fakeStore) MarkCompleted(_ context.Context, joinID uuid.UUID) error {
	f.calls = append(f.calls, "complete")
	join := f.joinByID(joinID)
	if join == nil {
		return gorm.ErrRecordNotFound
	}
	join.Completed = true
	return nil
}

func (f *fakeStore) GetAttachment(_ context.Context, id uuid.UUID) (*model.Attachment, error) {
	a, ok := f.attachments[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &a, nil
}

func (f *fakeStore) AttachmentOrganization(_ context.Context, attachmentID uuid.UUID) (uuid.UUID, error) {
	a, ok := f.attachments[attachmentID]
	if !ok {
		return uuid.Nil, gorm.ErrRecordNotFound
	}
	return f.joinByID(a.OwnerID).OrganizationID, nil
}

func (f *fakeStore) DeleteInvoiceOrganization(_ context.Context, invoiceID, organizationID uuid.UUID) error {
	key := joinKey{invoiceID, organizationID}
	if _, ok := f.joins[key]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(f.joins, key)
	return nil
}

// fakeRenderer delegates to the real PDF generator and fails on the call
// numbered failOn.
type fakeRenderer struct {
	inner  *pdf.Generator
	calls  int
	failOn int
	docs   []layout.Document
	opts   []pdf.Options
}

func (f *fakeRenderer) Render(doc layout.Document, opts pdf.Options) (*pdf.Output, error) {
	f.calls++
	f.docs = append(f.docs, doc)
	f.opts = append(f.opts, opts)
	if f.calls == f.failOn {
		return nil, errors.New("renderer exploded")
	}
	return f.inner.Render(doc, opts)
}

type fakePasswords struct {
	n int
}

func (f *fakePasswords) Generate() (string, error) {
	f.n++
	return "pw-" + string(rune('0'+f.n)), nil
}

type fakePublisher struct {
	events []model.CompletionEvent
	err    error
}

func (f *fakePublisher) PublishCompleted(_ context.Context, event model.CompletionEvent) error {
	f.events = append(f.events, event)
	return f.err
}

func record(supplierID, variationID uuid.UUID, date time.Time, qty, price string) model.SupplyRecord {
	return model.SupplyRecord{
		ID:          uuid.New(),
		Date:        date,
		SupplierID:  supplierID,
		VariationID: variationID,
		Quantity:    decimal.RequireFromString(qty),
		Price:       decimal.RequireFromString(price),
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
