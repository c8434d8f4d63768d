package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	`CREATE TABLE IF NOT EXISTS supply_types (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		name VARCHAR(128) NOT NULL,
		position INTEGER NOT NULL DEFAULT 0
	);`,
	`CREATE TABLE IF NOT EXISTS supply_type_variations (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		supply_type_id UUID NOT NULL REFERENCES supply_types(id),
		name VARCHAR(128) NOT NULL DEFAULT '',
		unit VARCHAR(32) NOT NULL DEFAULT '',
		position INTEGER NOT NULL DEFAULT 0
	);`,
	`CREATE TABLE IF NOT EXISTS supplier_organizations (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		name VARCHAR(255) NOT NULL,
		micro_region VARCHAR(128) NOT NULL DEFAULT '',
		registration_number VARCHAR(64) NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		postal_code VARCHAR(16) NOT NULL DEFAULT '',
		representative VARCHAR(255) NOT NULL DEFAULT ''
	);`,
	`CREATE TABLE IF NOT EXISTS suppliers (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		supplier_organization_id UUID NOT NULL REFERENCES supplier_organizations(id),
		supplier_number INTEGER NOT NULL,
		name VARCHAR(255) NOT NULL,
		short_name VARCHAR(64) NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT ''
	);`,
	`CREATE TABLE IF NOT EXISTS supplies (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		supplier_id UUID NOT NULL REFERENCES suppliers(id),
		supply_type_variation_id UUID NOT NULL REFERENCES supply_type_variations(id),
		supply_date DATE NOT NULL,
		quantity NUMERIC(18,3) NOT NULL DEFAULT 0 CHECK (quantity >= 0),
		price NUMERIC(18,2) NOT NULL DEFAULT 0,
		locked BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE TABLE IF NOT EXISTS invoices (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		start_date DATE NOT NULL,
		end_date DATE NOT NULL,
		invoice_date DATE NOT NULL,
		layout VARCHAR(16) NOT NULL DEFAULT 'standard',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE TABLE IF NOT EXISTS invoice_supplier_organizations (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		invoice_id UUID NOT NULL REFERENCES invoices(id) ON DELETE CASCADE,
		supplier_organization_id UUID NOT NULL REFERENCES supplier_organizations(id),
		passwords JSONB NOT NULL DEFAULT '{}'::jsonb,
		completed BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE TABLE IF NOT EXISTS invoice_attachments (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		invoice_supplier_organization_id UUID NOT NULL REFERENCES invoice_supplier_organizations(id) ON DELETE CASCADE,
		format VARCHAR(16) NOT NULL,
		file_name VARCHAR(255) NOT NULL,
		content_type VARCHAR(128) NOT NULL,
		content BYTEA NOT NULL,
		page_count INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_suppliers_org_number ON suppliers (supplier_organization_id, supplier_number);`,
	`CREATE INDEX IF NOT EXISTS idx_supplies_supplier_date ON supplies (supplier_id, supply_date);`,
	`CREATE INDEX IF NOT EXISTS idx_supplies_locked ON supplies (locked) WHERE locked;`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_invoice_org ON invoice_supplier_organizations (invoice_id, supplier_organization_id);`,
	`CREATE INDEX IF NOT EXISTS idx_invoice_attachments_owner ON invoice_attachments (invoice_supplier_organization_id);`,
}

func RunMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
