package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/supply-settlement/internal/config"
	"github.com/nurpe/supply-settlement/internal/excel"
	"github.com/nurpe/supply-settlement/internal/layout"
	"github.com/nurpe/supply-settlement/internal/model"
	"github.com/nurpe/supply-settlement/internal/pdf"
	"github.com/nurpe/supply-settlement/internal/repository"
)

var (
	staff = model.Principal{UserID: uuid.New(), Role: model.UserRoleAccountant}
	jan5  = time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
)

type fixture struct {
	svc       *InvoiceService
	supplies  *fakeSupplies
	directory *fakeDirectory
	store     *fakeStore
	renderer  *fakeRenderer
	publisher *fakePublisher

	org       model.SupplierOrganization
	suppliers []model.Supplier
	variation uuid.UUID
	invoice   model.Invoice
	join      *model.InvoiceOrganization
}

// newFixture builds an organization with suppliers numbered 2, 1 and 3 in
// that listing order. Supplier 3 never has supplies.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	milk := model.SupplyType{ID: uuid.New(), Name: "Milk", Position: 1}
	gradeA := model.SupplyTypeVariation{ID: uuid.New(), TypeID: milk.ID, Name: "Grade A", Unit: "kg", Position: 1}
	catalog := model.NewCatalog([]model.SupplyType{milk}, []model.SupplyTypeVariation{gradeA})

	org := model.SupplierOrganization{ID: uuid.New(), Name: "North Valley Farmers", RegistrationNumber: "T-100"}
	suppliers := []model.Supplier{
		{ID: uuid.New(), OrganizationID: org.ID, SupplierNumber: 2, Name: "Bergstrom Farm"},
		{ID: uuid.New(), OrganizationID: org.ID, SupplierNumber: 1, Name: "Alder Farm"},
		{ID: uuid.New(), OrganizationID: org.ID, SupplierNumber: 3, Name: "Cedar Farm"},
	}
	owners := make(map[uuid.UUID]uuid.UUID, len(suppliers))
	for _, s := range suppliers {
		owners[s.ID] = org.ID
	}

	generator, err := pdf.NewGenerator(pdf.FontConfig{})
	require.NoError(t, err)

	f := &fixture{
		supplies: &fakeSupplies{owners: owners},
		directory: &fakeDirectory{
			orgs:      map[uuid.UUID]model.SupplierOrganization{org.ID: org},
			suppliers: map[uuid.UUID][]model.Supplier{org.ID: suppliers},
			catalog:   catalog,
		},
		store:     newFakeStore(),
		renderer:  &fakeRenderer{inner: generator},
		publisher: &fakePublisher{},
		org:       org,
		suppliers: suppliers,
		variation: gradeA.ID,
	}

	f.invoice = model.Invoice{
		ID:          uuid.New(),
		Period:      model.DateRange{Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), End: time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)},
		InvoiceDate: time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC),
		Layout:      model.LayoutStandard,
	}
	f.join = f.store.addPeriod(f.invoice, org.ID)

	cfg := &config.Config{
		Issuer:  model.Issuer{Name: "Central Dairy Cooperative"},
		Invoice: config.InvoiceConfig{DefaultLayout: model.LayoutStandard, PasswordLength: 12},
	}
	f.svc = NewInvoiceService(Dependencies{
		Supplies:  f.supplies,
		Directory: f.directory,
		Store:     f.store,
		Renderer:  f.renderer,
		Exporter:  excel.NewGenerator(),
		Publisher: f.publisher,
		Passwords: &fakePasswords{},
	}, cfg, zerolog.Nop())
	return f
}

func (f *fixture) supplier(number int) model.Supplier {
	for _, s := range f.suppliers {
		if s.SupplierNumber == number {
			return s
		}
	}
	panic(fmt.Sprintf("no supplier %d", number))
}

func (f *fixture) addSupply(number int, date time.Time, qty, price string) {
	f.supplies.records = append(f.supplies.records, record(f.supplier(number).ID, f.variation, date, qty, price))
}

func (f *fixture) request() model.InvoiceRequest {
	return model.InvoiceRequest{InvoiceID: f.invoice.ID, OrganizationID: f.org.ID}
}

func TestRegenerateBothFormats(t *testing.T) {
	f := newFixture(t)
	f.addSupply(1, jan5, "10", "100")
	f.addSupply(1, jan5, "5", "100")
	f.addSupply(2, jan5.AddDate(0, 0, 3), "20", "90")

	result, err := f.svc.Regenerate(context.Background(), f.request())
	require.NoError(t, err)

	assert.Equal(t, StateComplete, result.State)
	assert.True(t, result.Completed)
	require.Len(t, result.Formats, 2)
	assert.Equal(t, model.FormatOrganization, result.Formats[0].Format)
	assert.Equal(t, 1, result.Formats[0].Units)

	supplierFormat := result.Formats[1]
	assert.Equal(t, model.FormatSupplier, supplierFormat.Format)
	assert.Equal(t, 2, supplierFormat.Units)
	require.Len(t, supplierFormat.Pages, 2)
	assert.Equal(t, f.supplier(1).ID.String(), supplierFormat.Pages[0].Key)
	assert.Equal(t, f.supplier(2).ID.String(), supplierFormat.Pages[1].Key)

	require.Len(t, result.Passwords, 2)
	assert.Equal(t, "pw-1", result.Passwords[result.Formats[0].AttachmentID.String()])
	assert.Equal(t, "pw-2", result.Passwords[result.Formats[1].AttachmentID.String()])
	assert.Equal(t, []string{"reset", "attach:organization", "attach:supplier", "complete"}, f.store.calls)

	for _, opts := range f.renderer.opts {
		assert.NotEmpty(t, opts.Password)
	}
	require.Len(t, f.publisher.events, 1)
	assert.True(t, f.publisher.events[0].Completed)
	assert.Len(t, f.publisher.events[0].Attachments, 2)
}

func TestRegenerateEmptySuppliersUseNoPassword(t *testing.T) {
	f := newFixture(t)

	result, err := f.svc.Regenerate(context.Background(), f.request())
	require.NoError(t, err)

	require.Len(t, result.Formats, 2)
	assert.False(t, result.Formats[0].Skipped)
	assert.Equal(t, 1, result.Formats[0].Units)
	assert.True(t, result.Formats[1].Skipped)
	assert.Len(t, result.Passwords, 1)
	assert.Equal(t, 1, f.renderer.calls)
	assert.True(t, result.Completed)
}

func TestRegenerateSupplierPagesAreLocalToEachUnit(t *testing.T) {
	f := newFixture(t)
	for day := 0; day < 31; day++ {
		f.addSupply(1, f.invoice.Period.Start.AddDate(0, 0, day), "10", "100")
		f.addSupply(1, f.invoice.Period.Start.AddDate(0, 0, day), "3", "80")
	}
	f.addSupply(2, jan5, "1", "100")

	result, err := f.svc.Regenerate(context.Background(), model.InvoiceRequest{
		InvoiceID:      f.invoice.ID,
		OrganizationID: f.org.ID,
		Formats:        []model.Format{model.FormatSupplier},
	})
	require.NoError(t, err)
	require.Len(t, result.Formats, 1)

	pages := result.Formats[0].Pages
	require.Len(t, pages, 2)
	assert.Equal(t, 1, pages[0].First)
	assert.Greater(t, pages[0].Count(), 1)
	assert.Equal(t, pages[0].Last+1, pages[1].First)
	assert.Equal(t, result.Formats[0].PageCount, pages[1].Last)
}

func TestRegenerateKeepsCommittedFormatOnRenderFailure(t *testing.T) {
	f := newFixture(t)
	f.addSupply(1, jan5, "10", "100")
	f.renderer.failOn = 2

	result, err := f.svc.Regenerate(context.Background(), f.request())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRender))

	assert.Equal(t, StatePartialFailure, result.State)
	assert.False(t, result.Completed)
	require.Len(t, result.Formats, 1)
	assert.Equal(t, model.FormatOrganization, result.Formats[0].Format)

	join, err := f.store.GetInvoiceOrganization(context.Background(), f.invoice.ID, f.org.ID)
	require.NoError(t, err)
	assert.False(t, join.Completed)
	require.Len(t, join.Attachments, 1)
	assert.Equal(t, model.FormatOrganization, join.Attachments[0].Format)
	assert.Len(t, join.Passwords, 1)
	assert.Empty(t, f.publisher.events)
}

func TestRegeneratePurgesPriorDocumentsFirst(t *testing.T) {
	f := newFixture(t)
	f.addSupply(1, jan5, "10", "100")

	stale, err := f.store.AttachDocument(context.Background(), f.join.ID, model.Attachment{Format: model.FormatOrganization}, "old")
	require.NoError(t, err)
	require.NoError(t, f.store.MarkCompleted(context.Background(), f.join.ID))
	f.store.calls = nil

	result, err := f.svc.Regenerate(context.Background(), model.InvoiceRequest{
		InvoiceID:      f.invoice.ID,
		OrganizationID: f.org.ID,
		Formats:        []model.Format{model.FormatOrganization},
	})
	require.NoError(t, err)

	assert.Equal(t, "reset", f.store.calls[0])
	_, ok := f.store.attachments[stale]
	assert.False(t, ok)
	assert.NotContains(t, result.Passwords, stale.String())
	assert.Len(t, result.Passwords, 1)
}

func TestRegenerateUsesRequestPasswordForEveryFormat(t *testing.T) {
	f := newFixture(t)
	f.addSupply(1, jan5, "10", "100")

	req := f.request()
	req.Password = "shared-secret"
	result, err := f.svc.Regenerate(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, result.Passwords, 2)
	for _, key := range sortedKeys(result.Passwords) {
		assert.Equal(t, "shared-secret", result.Passwords[key])
	}
}

func TestRegenerateOrdersFormatsRegardlessOfRequest(t *testing.T) {
	f := newFixture(t)
	f.addSupply(1, jan5, "10", "100")

	req := f.request()
	req.Formats = []model.Format{model.FormatSupplier, model.FormatOrganization}
	result, err := f.svc.Regenerate(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, result.Formats, 2)
	assert.Equal(t, model.FormatOrganization, result.Formats[0].Format)
	assert.Equal(t, model.FormatSupplier, result.Formats[1].Format)
}

func TestRegenerateLookupFailureLeavesRecordUntouched(t *testing.T) {
	f := newFixture(t)
	delete(f.directory.orgs, f.org.ID)

	result, err := f.svc.Regenerate(context.Background(), f.request())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLookup)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, StatePartialFailure, result.State)
	assert.Empty(t, f.store.calls)
}

func TestRegenerateSupplyFetchFailureAbortsAfterPurge(t *testing.T) {
	f := newFixture(t)
	f.supplies.listErr = errors.New("connection reset")

	_, err := f.svc.Regenerate(context.Background(), f.request())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLookup)
	assert.Equal(t, []string{"reset"}, f.store.calls)
}

func TestRegenerateRejectsUnknownFormat(t *testing.T) {
	f := newFixture(t)
	req := f.request()
	req.Formats = []model.Format{"quarterly"}

	_, err := f.svc.Regenerate(context.Background(), req)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestGenerateRequiresStaff(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Generate(context.Background(), GenerateInput{
		InvoiceID:      f.invoice.ID,
		OrganizationID: f.org.ID,
		Principal:      model.Principal{Role: model.UserRoleSupplierOrganization, OrgID: f.org.ID},
	})
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestRegenerateLooksUpPriorSeasonPerSupplier(t *testing.T) {
	f := newFixture(t)
	f.addSupply(1, jan5, "10", "100")
	f.addSupply(2, jan5, "10", "100")
	f.addSupply(1, jan5.AddDate(-1, 0, -2), "7", "95")

	_, err := f.svc.Regenerate(context.Background(), model.InvoiceRequest{
		InvoiceID:      f.invoice.ID,
		OrganizationID: f.org.ID,
		Formats:        []model.Format{model.FormatSupplier},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, f.supplies.lookbacks)
}

func TestRegeneratePriorSeasonAcrossOctober(t *testing.T) {
	f := newFixture(t)
	f.invoice.Period = model.DateRange{
		Start: time.Date(2024, 9, 16, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 10, 15, 0, 0, 0, 0, time.UTC),
	}
	f.store.invoices[f.invoice.ID] = f.invoice

	f.addSupply(1, time.Date(2024, 9, 20, 0, 0, 0, 0, time.UTC), "10", "100")
	f.addSupply(1, time.Date(2022, 11, 1, 0, 0, 0, 0, time.UTC), "40", "80")
	f.addSupply(1, time.Date(2023, 9, 18, 0, 0, 0, 0, time.UTC), "5", "90")

	_, err := f.svc.Regenerate(context.Background(), model.InvoiceRequest{
		InvoiceID:      f.invoice.ID,
		OrganizationID: f.org.ID,
		Formats:        []model.Format{model.FormatSupplier},
	})
	require.NoError(t, err)
	require.Len(t, f.renderer.docs, 1)
	require.Len(t, f.renderer.docs[0].Units, 1)

	rows := f.renderer.docs[0].Units[0].Rows(layout.RowSeason)
	require.Len(t, rows, 1)
	assert.Equal(t, "10.00 (45.00)", rows[0].Cells[1].Text)
	assert.Equal(t, "100.00 (85.00)", rows[0].Cells[2].Text)
	assert.Equal(t, "1000 (3650)", rows[0].Cells[3].Text)
}

func TestOpenPeriod(t *testing.T) {
	f := newFixture(t)

	result, err := f.svc.OpenPeriod(context.Background(), OpenPeriodInput{
		PeriodStart:     time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC),
		PeriodEnd:       time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
		OrganizationIDs: []uuid.UUID{f.org.ID, f.org.ID},
		Principal:       staff,
	})
	require.NoError(t, err)
	assert.Len(t, result.Organizations, 1)
	assert.Equal(t, model.LayoutStandard, result.Invoice.Layout)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), result.Invoice.Period.Start)
	assert.False(t, result.Invoice.InvoiceDate.IsZero())
}

func TestOpenPeriodErrors(t *testing.T) {
	f := newFixture(t)
	valid := OpenPeriodInput{
		PeriodStart:     time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:       time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
		OrganizationIDs: []uuid.UUID{f.org.ID},
		Principal:       staff,
	}

	t.Run("supplier organization", func(t *testing.T) {
		input := valid
		input.Principal = model.Principal{Role: model.UserRoleSupplierOrganization, OrgID: f.org.ID}
		_, err := f.svc.OpenPeriod(context.Background(), input)
		assert.ErrorIs(t, err, ErrPermissionDenied)
	})
	t.Run("reversed period", func(t *testing.T) {
		input := valid
		input.PeriodStart, input.PeriodEnd = input.PeriodEnd, input.PeriodStart
		_, err := f.svc.OpenPeriod(context.Background(), input)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
	t.Run("unknown organization", func(t *testing.T) {
		input := valid
		input.OrganizationIDs = []uuid.UUID{uuid.New()}
		_, err := f.svc.OpenPeriod(context.Background(), input)
		assert.ErrorIs(t, err, ErrNotFound)
	})
	t.Run("supplies already locked", func(t *testing.T) {
		f.store.createErr = fmt.Errorf("%w: organization has 3 locked supplies", repository.ErrSuppliesLocked)
		defer func() { f.store.createErr = nil }()
		_, err := f.svc.OpenPeriod(context.Background(), valid)
		assert.ErrorIs(t, err, ErrConflict)
	})
}

func TestClosePeriod(t *testing.T) {
	f := newFixture(t)

	err := f.svc.ClosePeriod(context.Background(), model.Principal{Role: model.UserRoleSupplierOrganization, OrgID: f.org.ID}, f.invoice.ID, f.org.ID)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	require.NoError(t, f.svc.ClosePeriod(context.Background(), staff, f.invoice.ID, f.org.ID))
	err = f.svc.ClosePeriod(context.Background(), staff, f.invoice.ID, f.org.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStatusAndDownloadPermissions(t *testing.T) {
	f := newFixture(t)
	f.addSupply(1, jan5, "10", "100")
	result, err := f.svc.Regenerate(context.Background(), f.request())
	require.NoError(t, err)
	attachmentID := result.Formats[0].AttachmentID

	own := model.Principal{Role: model.UserRoleSupplierOrganization, OrgID: f.org.ID}
	other := model.Principal{Role: model.UserRoleSupplierOrganization, OrgID: uuid.New()}

	status, err := f.svc.GetStatus(context.Background(), own, f.invoice.ID, f.org.ID)
	require.NoError(t, err)
	assert.True(t, status.Completed)
	assert.Len(t, status.Attachments, 2)
	assert.Nil(t, status.Passwords)

	status, err = f.svc.GetStatus(context.Background(), staff, f.invoice.ID, f.org.ID)
	require.NoError(t, err)
	assert.Len(t, status.Passwords, 2)

	_, err = f.svc.GetStatus(context.Background(), other, f.invoice.ID, f.org.ID)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	attachment, err := f.svc.DownloadAttachment(context.Background(), own, attachmentID)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(attachment.Content, []byte("%PDF")))

	_, err = f.svc.DownloadAttachment(context.Background(), other, attachmentID)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	_, err = f.svc.DownloadAttachment(context.Background(), own, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExportStatement(t *testing.T) {
	f := newFixture(t)
	f.addSupply(1, jan5, "10", "100")
	f.addSupply(2, jan5, "4", "100")

	export, err := f.svc.ExportStatement(context.Background(), staff, f.invoice.ID, f.org.ID, model.FormatSupplier)
	require.NoError(t, err)
	assert.Equal(t, "invoice-North-Valley-Farmers-supplier-20240101-20240131.xlsx", export.FileName)
	assert.True(t, bytes.HasPrefix(export.Content, []byte("PK")))
	assert.Empty(t, f.store.calls)
	assert.Equal(t, 0, f.renderer.calls)
}
