package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/nurpe/supply-settlement/internal/excel"
	"github.com/nurpe/supply-settlement/internal/model"
)

type ExportResult struct {
	FileName string
	Content  []byte
}

// ExportStatement writes the aggregates behind a format as a workbook. It
// reads the same units as Regenerate without touching stored documents.
func (s *InvoiceService) ExportStatement(
	ctx context.Context,
	principal model.Principal,
	invoiceID, organizationID uuid.UUID,
	format model.Format,
) (*ExportResult, error) {
	if !principal.CanRead(organizationID) {
		return nil, ErrPermissionDenied
	}
	if format == "" {
		format = model.FormatOrganization
	}
	c, err := s.prepare(ctx, model.InvoiceRequest{
		InvoiceID:      invoiceID,
		OrganizationID: organizationID,
		Formats:        []model.Format{format},
	}, s.log)
	if err != nil {
		return nil, err
	}

	units, err := s.collectUnits(ctx, c, format, false)
	if err != nil {
		return nil, err
	}

	stmt := excel.Statement{
		Organization: c.org,
		Format:       format,
		Period:       c.req.Period,
		Catalog:      c.catalog,
	}
	for _, unit := range units {
		key, title := c.org.ID.String(), c.org.Name
		if unit.supplier != nil {
			key = unit.supplier.ID.String()
			title = fmt.Sprintf("%d %s", unit.supplier.SupplierNumber, unit.supplier.DisplayName())
		}
		stmt.Units = append(stmt.Units, excel.StatementUnit{Key: key, Title: title, Aggregate: unit.aggregate})
	}

	content, err := s.exporter.Generate(stmt)
	if err != nil {
		return nil, err
	}
	return &ExportResult{
		FileName: buildFileName(c.org, format, c.req.Period, "xlsx"),
		Content:  content,
	}, nil
}
