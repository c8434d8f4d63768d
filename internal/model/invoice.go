package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Format string

const (
	FormatOrganization Format = "organization"
	FormatSupplier     Format = "supplier"
)

// Formats is the generation order within one cycle.
var Formats = []Format{FormatOrganization, FormatSupplier}

func ParseFormat(raw string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "organization":
		return FormatOrganization, nil
	case "supplier":
		return FormatSupplier, nil
	default:
		return "", fmt.Errorf("unknown format %q", raw)
	}
}

type Layout string

const (
	LayoutStandard Layout = "standard"
	LayoutSimple   Layout = "simple"
)

// ParseLayout accepts the layout names and the legacy "one"/"two".
func ParseLayout(raw string) (Layout, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "standard", "one", "1":
		return LayoutStandard, nil
	case "simple", "two", "2":
		return LayoutSimple, nil
	default:
		return "", fmt.Errorf("unknown layout %q", raw)
	}
}

type Invoice struct {
	ID          uuid.UUID
	Period      DateRange
	InvoiceDate time.Time
	Layout      Layout
	CreatedAt   time.Time
}

// InvoiceOrganization joins an invoice period to one supplier organization
// and carries the generated documents.
type InvoiceOrganization struct {
	ID             uuid.UUID
	InvoiceID      uuid.UUID
	OrganizationID uuid.UUID
	Passwords      map[string]string
	Completed      bool
	Attachments    []AttachmentInfo
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type InvoiceRequest struct {
	InvoiceID      uuid.UUID
	OrganizationID uuid.UUID
	Period         DateRange
	Formats        []Format
	Layout         Layout
	InvoiceDate    time.Time
	Password       string
}

type Attachment struct {
	ID          uuid.UUID
	OwnerID     uuid.UUID
	Format      Format
	FileName    string
	ContentType string
	Content     []byte
	PageCount   int
	CreatedAt   time.Time
}

type AttachmentInfo struct {
	ID          uuid.UUID
	Format      Format
	FileName    string
	ContentType string
	PageCount   int
	CreatedAt   time.Time
}

type PageRange struct {
	Key   string
	First int
	Last  int
}

func (r PageRange) Count() int {
	return r.Last - r.First + 1
}

type GeneratedDocument struct {
	Format    Format
	FileName  string
	Content   []byte
	Password  string
	Pages     []PageRange
	PageCount int
}

// CompletionEvent is handed to downstream notification once a cycle completes.
type CompletionEvent struct {
	InvoiceID      uuid.UUID         `json:"invoice_id"`
	OrganizationID uuid.UUID         `json:"organization_id"`
	Completed      bool              `json:"completed"`
	Passwords      map[string]string `json:"passwords"`
	Attachments    []uuid.UUID       `json:"attachments"`
	CompletedAt    time.Time         `json:"completed_at"`
}
