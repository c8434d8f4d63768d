package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nurpe/supply-settlement/internal/aggregate"
	"github.com/nurpe/supply-settlement/internal/layout"
	"github.com/nurpe/supply-settlement/internal/model"
	"github.com/nurpe/supply-settlement/internal/pdf"
	"github.com/nurpe/supply-settlement/internal/season"
)

type State string

const (
	StatePending        State = "PENDING"
	StatePurgingPrior   State = "PURGING_PRIOR"
	StateGenerating     State = "GENERATING"
	StateComplete       State = "COMPLETE"
	StatePartialFailure State = "PARTIAL_FAILURE"
)

type FormatResult struct {
	Format       model.Format
	AttachmentID uuid.UUID
	FileName     string
	Units        int
	PageCount    int
	Pages        []model.PageRange
	// Skipped is set when every unit of the format was empty.
	Skipped bool
}

type RegenerateResult struct {
	InvoiceID      uuid.UUID
	OrganizationID uuid.UUID
	State          State
	Formats        []FormatResult
	Passwords      map[string]string
	Completed      bool
}

type GenerateInput struct {
	InvoiceID      uuid.UUID
	OrganizationID uuid.UUID
	Layout         model.Layout
	Formats        []model.Format
	Password       string
	Principal      model.Principal
}

// Generate is the staff-facing entry point of Regenerate.
func (s *InvoiceService) Generate(ctx context.Context, input GenerateInput) (*RegenerateResult, error) {
	if !input.Principal.IsStaff() {
		return nil, ErrPermissionDenied
	}
	return s.Regenerate(ctx, model.InvoiceRequest{
		InvoiceID:      input.InvoiceID,
		OrganizationID: input.OrganizationID,
		Formats:        input.Formats,
		Layout:         input.Layout,
		Password:       input.Password,
	})
}

// unitData is one generation unit before layout: the whole organization, or
// one of its suppliers.
type unitData struct {
	supplier  *model.Supplier
	aggregate aggregate.Result
	season    *season.Comparison
}

type cycle struct {
	req      model.InvoiceRequest
	join     *model.InvoiceOrganization
	org      model.SupplierOrganization
	catalog  *model.Catalog
	log      zerolog.Logger
	password string
}

// Regenerate purges the documents of an invoice organization and generates
// them again, one format at a time. A format that has been attached stays
// attached when a later format fails; completed is only set once every
// format succeeded.
func (s *InvoiceService) Regenerate(ctx context.Context, req model.InvoiceRequest) (*RegenerateResult, error) {
	result := &RegenerateResult{
		InvoiceID:      req.InvoiceID,
		OrganizationID: req.OrganizationID,
		State:          StatePending,
	}
	log := s.log.With().
		Str("invoice_id", req.InvoiceID.String()).
		Str("organization_id", req.OrganizationID.String()).
		Logger()
	log.Info().Str("state", string(result.State)).Msg("invoice generation requested")

	c, err := s.prepare(ctx, req, log)
	if err != nil {
		return s.fail(result, log, err)
	}

	result.State = StatePurgingPrior
	log.Info().Str("state", string(result.State)).Msg("purging prior documents")
	if err := s.store.ResetInvoiceOrganization(ctx, c.join.ID); err != nil {
		return s.fail(result, log, err)
	}

	result.State = StateGenerating
	for _, format := range c.req.Formats {
		formatResult, err := s.generateFormat(ctx, c, format)
		if err != nil {
			return s.fail(result, log, err)
		}
		result.Formats = append(result.Formats, *formatResult)
	}

	if err := s.store.MarkCompleted(ctx, c.join.ID); err != nil {
		return s.fail(result, log, err)
	}
	joined, err := s.store.GetInvoiceOrganization(ctx, req.InvoiceID, req.OrganizationID)
	if err != nil {
		return s.fail(result, log, err)
	}

	result.State = StateComplete
	result.Completed = true
	result.Passwords = joined.Passwords
	log.Info().
		Str("state", string(result.State)).
		Int("documents", len(joined.Attachments)).
		Msg("invoice generation complete")

	s.publishCompleted(ctx, log, joined)
	return result, nil
}

func (s *InvoiceService) fail(result *RegenerateResult, log zerolog.Logger, err error) (*RegenerateResult, error) {
	result.State = StatePartialFailure
	log.Error().Err(err).
		Str("state", string(result.State)).
		Int("committed_formats", len(result.Formats)).
		Msg("invoice generation failed")
	return result, err
}

func (s *InvoiceService) prepare(ctx context.Context, req model.InvoiceRequest, log zerolog.Logger) (*cycle, error) {
	if req.InvoiceID == uuid.Nil || req.OrganizationID == uuid.Nil {
		return nil, fmt.Errorf("%w: invoice and organization ids are required", ErrInvalidInput)
	}

	formats, err := normalizeFormats(req.Formats)
	if err != nil {
		return nil, err
	}
	req.Formats = formats

	invoice, err := s.store.GetInvoice(ctx, req.InvoiceID)
	if err != nil {
		return nil, lookupFailure(err, "invoice %s", req.InvoiceID)
	}
	join, err := s.store.GetInvoiceOrganization(ctx, req.InvoiceID, req.OrganizationID)
	if err != nil {
		return nil, lookupFailure(err, "invoice %s organization %s", req.InvoiceID, req.OrganizationID)
	}
	org, err := s.directory.GetOrganization(ctx, req.OrganizationID)
	if err != nil {
		return nil, lookupFailure(err, "organization %s", req.OrganizationID)
	}
	catalog, err := s.directory.LoadCatalog(ctx)
	if err != nil {
		return nil, lookupFailure(err, "supply catalog")
	}

	req.Period = model.DateRange{Start: dateOnly(invoice.Period.Start), End: dateOnly(invoice.Period.End)}
	if req.InvoiceDate.IsZero() {
		req.InvoiceDate = invoice.InvoiceDate
	}
	if req.Layout == "" {
		req.Layout = invoice.Layout
	}
	if req.Layout == "" {
		req.Layout = s.defaultLayout
	}

	return &cycle{
		req:      req,
		join:     join,
		org:      *org,
		catalog:  catalog,
		log:      log,
		password: req.Password,
	}, nil
}

// normalizeFormats keeps the generation order fixed regardless of the order
// the formats were requested in.
func normalizeFormats(requested []model.Format) ([]model.Format, error) {
	if len(requested) == 0 {
		return append([]model.Format(nil), model.Formats...), nil
	}
	wanted := make(map[model.Format]bool, len(requested))
	for _, f := range requested {
		if f != model.FormatOrganization && f != model.FormatSupplier {
			return nil, fmt.Errorf("%w: unknown format %q", ErrInvalidInput, f)
		}
		wanted[f] = true
	}
	formats := make([]model.Format, 0, len(wanted))
	for _, f := range model.Formats {
		if wanted[f] {
			formats = append(formats, f)
		}
	}
	return formats, nil
}

func (s *InvoiceService) generateFormat(ctx context.Context, c *cycle, format model.Format) (*FormatResult, error) {
	log := c.log.With().Str("format", string(format)).Logger()

	units, err := s.collectUnits(ctx, c, format, true)
	if err != nil {
		return nil, err
	}
	if len(units) == 0 {
		log.Info().Str("state", string(StateGenerating)).Msg("no supplies for any unit, format skipped")
		return &FormatResult{Format: format, Skipped: true}, nil
	}

	doc := layout.Document{Title: fmt.Sprintf("Payment statement %s", c.org.Name)}
	for _, unit := range units {
		built, err := layout.Build(c.req.Layout, layout.Input{
			Issuer:       s.issuer,
			Organization: c.org,
			Supplier:     unit.supplier,
			Period:       c.req.Period,
			InvoiceDate:  c.req.InvoiceDate,
			Aggregate:    unit.aggregate,
			Season:       unit.season,
			Catalog:      c.catalog,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		doc.Units = append(doc.Units, built)
	}

	password := c.password
	if password == "" {
		password, err = s.passwords.Generate()
		if err != nil {
			return nil, fmt.Errorf("generate password: %w", err)
		}
	}

	out, err := s.renderer.Render(doc, pdf.Options{Password: password, Compress: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %s format: %v", ErrRender, format, err)
	}

	fileName := buildFileName(c.org, format, c.req.Period, "pdf")
	attachmentID, err := s.store.AttachDocument(ctx, c.join.ID, model.Attachment{
		Format:      format,
		FileName:    fileName,
		ContentType: "application/pdf",
		Content:     out.Content,
		PageCount:   out.PageCount,
	}, password)
	if err != nil {
		return nil, fmt.Errorf("attach %s document: %w", format, err)
	}

	log.Info().
		Str("state", string(StateGenerating)).
		Str("attachment_id", attachmentID.String()).
		Int("units", len(doc.Units)).
		Int("pages", out.PageCount).
		Msg("document attached")

	return &FormatResult{
		Format:       format,
		AttachmentID: attachmentID,
		FileName:     fileName,
		Units:        len(doc.Units),
		PageCount:    out.PageCount,
		Pages:        out.Pages,
	}, nil
}

// collectUnits aggregates the units of a format. The organization format has
// exactly one unit, kept even when empty. The supplier format has one unit
// per non-empty supplier in supplier_number order.
func (s *InvoiceService) collectUnits(ctx context.Context, c *cycle, format model.Format, withSeason bool) ([]unitData, error) {
	switch format {
	case model.FormatOrganization:
		records, err := s.supplies.ListSupplies(ctx, model.OrganizationScope(c.org.ID), c.req.Period)
		if err != nil {
			return nil, lookupFailure(err, "supplies of organization %s", c.org.ID)
		}
		return []unitData{{aggregate: aggregate.Aggregate(records, c.catalog)}}, nil

	case model.FormatSupplier:
		suppliers, err := s.directory.ListSuppliers(ctx, c.org.ID)
		if err != nil {
			return nil, lookupFailure(err, "suppliers of organization %s", c.org.ID)
		}
		sort.SliceStable(suppliers, func(i, j int) bool {
			return suppliers[i].SupplierNumber < suppliers[j].SupplierNumber
		})

		units := make([]unitData, 0, len(suppliers))
		for i := range suppliers {
			supplier := suppliers[i]
			unit, err := s.supplierUnit(ctx, c, supplier, withSeason)
			if errors.Is(err, ErrEmptyAggregate) {
				c.log.Debug().
					Str("format", string(format)).
					Int("supplier_number", supplier.SupplierNumber).
					Msg("supplier skipped, no supplies")
				continue
			}
			if err != nil {
				return nil, err
			}
			units = append(units, *unit)
		}
		return units, nil

	default:
		return nil, fmt.Errorf("%w: unknown format %q", ErrInvalidInput, format)
	}
}

func (s *InvoiceService) supplierUnit(ctx context.Context, c *cycle, supplier model.Supplier, withSeason bool) (*unitData, error) {
	records, err := s.supplies.ListSupplies(ctx, model.SupplierScope(c.org.ID, supplier.ID), c.req.Period)
	if err != nil {
		return nil, lookupFailure(err, "supplies of supplier %s", supplier.ID)
	}
	result := aggregate.Aggregate(records, c.catalog)
	if result.Empty() {
		return nil, ErrEmptyAggregate
	}

	unit := &unitData{supplier: &supplier, aggregate: result}
	if !withSeason {
		return unit, nil
	}

	// The comparison is anchored on the latest supply, which is the last
	// aggregated day since history ends with the period.
	from := season.HistoryStart(result.Days[len(result.Days)-1].Date)
	history, err := s.supplies.ListSupplierHistory(ctx, supplier.ID, from, c.req.Period.End)
	if err != nil {
		return nil, lookupFailure(err, "history of supplier %s", supplier.ID)
	}
	comparison, err := s.comparator.Compare(ctx, supplier.ID, history, c.catalog)
	if err != nil {
		return nil, lookupFailure(err, "prior season of supplier %s", supplier.ID)
	}
	unit.season = comparison
	return unit, nil
}

func (s *InvoiceService) publishCompleted(ctx context.Context, log zerolog.Logger, join *model.InvoiceOrganization) {
	if s.publisher == nil {
		return
	}
	attachments := make([]uuid.UUID, 0, len(join.Attachments))
	for _, a := range join.Attachments {
		attachments = append(attachments, a.ID)
	}
	event := model.CompletionEvent{
		InvoiceID:      join.InvoiceID,
		OrganizationID: join.OrganizationID,
		Completed:      true,
		Passwords:      join.Passwords,
		Attachments:    attachments,
		CompletedAt:    s.now().UTC(),
	}
	if err := s.publisher.PublishCompleted(ctx, event); err != nil {
		log.Warn().Err(err).Msg("completion event not published")
	}
}
