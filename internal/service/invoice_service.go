package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/nurpe/supply-settlement/internal/config"
	"github.com/nurpe/supply-settlement/internal/model"
	"github.com/nurpe/supply-settlement/internal/repository"
	"github.com/nurpe/supply-settlement/internal/season"
)

type Dependencies struct {
	Supplies  SupplySource
	Directory Directory
	Store     InvoiceStore
	Renderer  DocumentRenderer
	Exporter  StatementExporter
	Publisher Publisher
	Passwords PasswordGenerator
}

type InvoiceService struct {
	supplies   SupplySource
	directory  Directory
	store      InvoiceStore
	renderer   DocumentRenderer
	exporter   StatementExporter
	publisher  Publisher
	passwords  PasswordGenerator
	comparator *season.Comparator

	issuer        model.Issuer
	defaultLayout model.Layout
	log           zerolog.Logger
	now           func() time.Time
}

func NewInvoiceService(deps Dependencies, cfg *config.Config, log zerolog.Logger) *InvoiceService {
	return &InvoiceService{
		supplies:      deps.Supplies,
		directory:     deps.Directory,
		store:         deps.Store,
		renderer:      deps.Renderer,
		exporter:      deps.Exporter,
		publisher:     deps.Publisher,
		passwords:     deps.Passwords,
		comparator:    season.NewComparator(deps.Supplies),
		issuer:        cfg.Issuer,
		defaultLayout: cfg.Invoice.DefaultLayout,
		log:           log,
		now:           time.Now,
	}
}

type OpenPeriodInput struct {
	PeriodStart     time.Time
	PeriodEnd       time.Time
	InvoiceDate     time.Time
	Layout          model.Layout
	OrganizationIDs []uuid.UUID
	Principal       model.Principal
}

type OpenPeriodResult struct {
	Invoice       model.Invoice
	Organizations []model.InvoiceOrganization
}

// OpenPeriod creates an invoice period and reserves the supplies of every
// listed organization by locking them.
func (s *InvoiceService) OpenPeriod(ctx context.Context, input OpenPeriodInput) (*OpenPeriodResult, error) {
	if !input.Principal.IsStaff() {
		return nil, ErrPermissionDenied
	}
	if input.PeriodStart.IsZero() || input.PeriodEnd.IsZero() {
		return nil, fmt.Errorf("%w: period dates are required", ErrInvalidInput)
	}
	start, end := dateOnly(input.PeriodStart), dateOnly(input.PeriodEnd)
	if start.After(end) {
		return nil, fmt.Errorf("%w: period_start must be before or equal to period_end", ErrInvalidInput)
	}
	if len(input.OrganizationIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one organization is required", ErrInvalidInput)
	}

	invoiceDate := dateOnly(input.InvoiceDate)
	if invoiceDate.IsZero() {
		invoiceDate = dateOnly(s.now())
	}
	layoutKind := input.Layout
	if layoutKind == "" {
		layoutKind = s.defaultLayout
	}

	seen := make(map[uuid.UUID]struct{}, len(input.OrganizationIDs))
	orgIDs := make([]uuid.UUID, 0, len(input.OrganizationIDs))
	for _, id := range input.OrganizationIDs {
		if id == uuid.Nil {
			return nil, fmt.Errorf("%w: organization id is required", ErrInvalidInput)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, err := s.directory.GetOrganization(ctx, id); err != nil {
			return nil, notFound(err, "organization %s", id)
		}
		orgIDs = append(orgIDs, id)
	}

	invoice, joins, err := s.store.CreatePeriod(ctx, model.Invoice{
		Period:      model.DateRange{Start: start, End: end},
		InvoiceDate: invoiceDate,
		Layout:      layoutKind,
	}, orgIDs)
	if err != nil {
		if errors.Is(err, repository.ErrSuppliesLocked) {
			return nil, fmt.Errorf("%w: %v", ErrConflict, err)
		}
		return nil, err
	}

	s.log.Info().
		Str("invoice_id", invoice.ID.String()).
		Int("organizations", len(joins)).
		Time("period_start", start).
		Time("period_end", end).
		Msg("invoice period opened")
	return &OpenPeriodResult{Invoice: *invoice, Organizations: joins}, nil
}

// ClosePeriod drops an organization from an invoice period and releases its
// supplies.
func (s *InvoiceService) ClosePeriod(ctx context.Context, principal model.Principal, invoiceID, organizationID uuid.UUID) error {
	if !principal.IsStaff() {
		return ErrPermissionDenied
	}
	if invoiceID == uuid.Nil || organizationID == uuid.Nil {
		return fmt.Errorf("%w: invoice and organization ids are required", ErrInvalidInput)
	}
	if err := s.store.DeleteInvoiceOrganization(ctx, invoiceID, organizationID); err != nil {
		return notFound(err, "invoice %s organization %s", invoiceID, organizationID)
	}
	s.log.Info().
		Str("invoice_id", invoiceID.String()).
		Str("organization_id", organizationID.String()).
		Msg("invoice period closed")
	return nil
}

func (s *InvoiceService) GetStatus(ctx context.Context, principal model.Principal, invoiceID, organizationID uuid.UUID) (*model.InvoiceOrganization, error) {
	if !principal.CanRead(organizationID) {
		return nil, ErrPermissionDenied
	}
	join, err := s.store.GetInvoiceOrganization(ctx, invoiceID, organizationID)
	if err != nil {
		return nil, notFound(err, "invoice %s organization %s", invoiceID, organizationID)
	}
	if !principal.IsStaff() {
		join.Passwords = nil
	}
	return join, nil
}

func (s *InvoiceService) DownloadAttachment(ctx context.Context, principal model.Principal, attachmentID uuid.UUID) (*model.Attachment, error) {
	if attachmentID == uuid.Nil {
		return nil, fmt.Errorf("%w: attachment id is required", ErrInvalidInput)
	}
	orgID, err := s.store.AttachmentOrganization(ctx, attachmentID)
	if err != nil {
		return nil, notFound(err, "attachment %s", attachmentID)
	}
	if !principal.CanRead(orgID) {
		return nil, ErrPermissionDenied
	}
	attachment, err := s.store.GetAttachment(ctx, attachmentID)
	if err != nil {
		return nil, notFound(err, "attachment %s", attachmentID)
	}
	return attachment, nil
}

// notFound maps a missing row onto ErrNotFound and leaves other errors as is.
func notFound(err error, format string, args ...interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
	}
	return err
}

// lookupFailure marks an error that aborts a generation batch.
func lookupFailure(err error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %w", ErrLookup, notFound(err, format, args...))
}

func buildFileName(org model.SupplierOrganization, format model.Format, period model.DateRange, ext string) string {
	target := sanitizeFileName(org.Name)
	if target == "" {
		target = org.ID.String()
	}
	span := fmt.Sprintf("%s-%s", period.Start.Format("20060102"), period.End.Format("20060102"))
	return fmt.Sprintf("invoice-%s-%s-%s.%s", target, format, span, ext)
}

func dateOnly(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sanitizeFileName(input string) string {
	result := make([]rune, 0, len(input))
	for _, r := range input {
		switch {
		case r >= 'a' && r <= 'z':
			result = append(result, r)
		case r >= 'A' && r <= 'Z':
			result = append(result, r)
		case r >= '0' && r <= '9':
			result = append(result, r)
		case r == '-', r == '_':
			result = append(result, r)
		default:
			result = append(result, '-')
		}
	}
	return strings.Trim(string(result), "-")
}
