package main

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nurpe/supply-settlement/internal/model"
)

var generateFlags struct {
	invoiceID      string
	organizationID string
	layout         string
	formats        []string
	password       string
}

// generateCmd is the job-runner entry point: one invocation regenerates the
// documents of one invoice organization.
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Regenerate the payment statements of one organization in an invoice period",
	Example: `  settlement-service generate --invoice 6d1f... --organization 0b7e...
  settlement-service generate --invoice 6d1f... --organization 0b7e... --format supplier --layout two`,
	RunE: runGenerate,
}

func init() {
	flags := generateCmd.Flags()
	flags.StringVar(&generateFlags.invoiceID, "invoice", "", "invoice id")
	flags.StringVar(&generateFlags.organizationID, "organization", "", "supplier organization id")
	flags.StringVar(&generateFlags.layout, "layout", "", "layout: standard|simple (defaults to the invoice layout)")
	flags.StringSliceVar(&generateFlags.formats, "format", nil, "formats to generate: organization,supplier (default both)")
	flags.StringVar(&generateFlags.password, "password", "", "use this password for every generated document")
	_ = generateCmd.MarkFlagRequired("invoice")
	_ = generateCmd.MarkFlagRequired("organization")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	req, err := generateRequest()
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()
	if err := a.wireInvoices(); err != nil {
		return err
	}

	result, err := a.invoices.Regenerate(cmd.Context(), req)
	if result != nil {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "state: %s\n", result.State)
		for _, f := range result.Formats {
			if f.Skipped {
				fmt.Fprintf(out, "  %-12s skipped (no supplies)\n", f.Format)
				continue
			}
			fmt.Fprintf(out, "  %-12s %s units=%d pages=%d\n", f.Format, f.AttachmentID, f.Units, f.PageCount)
		}
	}
	return err
}

func generateRequest() (model.InvoiceRequest, error) {
	invoiceID, err := uuid.Parse(strings.TrimSpace(generateFlags.invoiceID))
	if err != nil {
		return model.InvoiceRequest{}, fmt.Errorf("invalid --invoice: %w", err)
	}
	orgID, err := uuid.Parse(strings.TrimSpace(generateFlags.organizationID))
	if err != nil {
		return model.InvoiceRequest{}, fmt.Errorf("invalid --organization: %w", err)
	}

	req := model.InvoiceRequest{
		InvoiceID:      invoiceID,
		OrganizationID: orgID,
		Password:       generateFlags.password,
	}
	if generateFlags.layout != "" {
		if req.Layout, err = model.ParseLayout(generateFlags.layout); err != nil {
			return model.InvoiceRequest{}, err
		}
	}
	for _, raw := range generateFlags.formats {
		format, err := model.ParseFormat(raw)
		if err != nil {
			return model.InvoiceRequest{}, err
		}
		req.Formats = append(req.Formats, format)
	}
	return req, nil
}
