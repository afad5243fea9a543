package crm

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"
)

// CompanyExtractor builds the companies table out of the free-text
// company_name values on contacts, then backfills contacts.company_id.
// Names are grouped case-insensitively after trimming; blank names are
// skipped.
type CompanyExtractor struct {
	db *sql.DB
}

// NewCompanyExtractor creates a new extractor
func NewCompanyExtractor(db *sql.DB) *CompanyExtractor {
	return &CompanyExtractor{db: db}
}

// ExtractionResult summarizes one extraction run
type ExtractionResult struct {
	DistinctNames    int `json:"distinct_names"`
	CompaniesCreated int `json:"companies_created"`
	ContactsLinked   int `json:"contacts_linked"`
}

// Preview reports what Run would do, without writing anything.
func (e *CompanyExtractor) Preview(ctx context.Context, tenantID uuid.UUID) (*ExtractionResult, error) {
	res := &ExtractionResult{}

	err := e.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT LOWER(TRIM(company_name)))
		FROM contacts
		WHERE tenant_id = $1 AND TRIM(company_name) <> ''`, tenantID).Scan(&res.DistinctNames)
	if err != nil {
		return nil, err
	}

	err = e.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT LOWER(TRIM(c.company_name)))
		FROM contacts c
		WHERE c.tenant_id = $1 AND TRIM(c.company_name) <> ''
		  AND NOT EXISTS (
			SELECT 1 FROM companies co
			WHERE co.tenant_id = c.tenant_id
			  AND LOWER(co.name) = LOWER(TRIM(c.company_name)))`, tenantID).Scan(&res.CompaniesCreated)
	if err != nil {
		return nil, err
	}

	err = e.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM contacts
		WHERE tenant_id = $1 AND company_id IS NULL AND TRIM(company_name) <> ''`, tenantID).Scan(&res.ContactsLinked)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Run performs the extraction and backfill inside one transaction.
func (e *CompanyExtractor) Run(ctx context.Context, tenantID uuid.UUID) (*ExtractionResult, error) {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	res := &ExtractionResult{}

	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT LOWER(TRIM(company_name)))
		FROM contacts
		WHERE tenant_id = $1 AND TRIM(company_name) <> ''`, tenantID).Scan(&res.DistinctNames)
	if err != nil {
		return nil, err
	}

	// Insert one company per distinct name not yet present. The first
	// spelling encountered (shortest id) wins as the canonical casing.
	created, err := tx.ExecContext(ctx, `
		INSERT INTO companies (tenant_id, name, research_status, created_at, updated_at)
		SELECT DISTINCT ON (LOWER(TRIM(company_name)))
			tenant_id, TRIM(company_name), 'pending', NOW(), NOW()
		FROM contacts c
		WHERE tenant_id = $1 AND TRIM(company_name) <> ''
		  AND NOT EXISTS (
			SELECT 1 FROM companies co
			WHERE co.tenant_id = c.tenant_id
			  AND LOWER(co.name) = LOWER(TRIM(c.company_name)))
		ORDER BY LOWER(TRIM(company_name)), id`, tenantID)
	if err != nil {
		return nil, err
	}
	n, _ := created.RowsAffected()
	res.CompaniesCreated = int(n)

	// Single UPDATE...FROM join backfill of the FK
	linked, err := tx.ExecContext(ctx, `
		UPDATE contacts c
		SET company_id = co.id, updated_at = NOW()
		FROM companies co
		WHERE c.tenant_id = $1
		  AND c.company_id IS NULL
		  AND TRIM(c.company_name) <> ''
		  AND co.tenant_id = c.tenant_id
		  AND LOWER(co.name) = LOWER(TRIM(c.company_name))`, tenantID)
	if err != nil {
		return nil, err
	}
	n, _ = linked.RowsAffected()
	res.ContactsLinked = int(n)

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return res, nil
}

// CanonicalName trims and collapses inner whitespace. Company names are
// canonicalized before storage and name lookups.
func CanonicalName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}
