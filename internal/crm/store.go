package crm

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Store provides database operations for CRM entities
type Store struct {
	db *sql.DB
}

// NewStore creates a new CRM store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for components that share the pool.
func (s *Store) DB() *sql.DB { return s.db }

// NormalizeEmail lowercases and trims an email address for storage.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ---------------------------------------------------------------------------
// Tenants
// ---------------------------------------------------------------------------

// CreateTenant creates a new tenant
func (s *Store) CreateTenant(ctx context.Context, t *Tenant) error {
	t.ID = uuid.New()
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	if t.Status == "" {
		t.Status = "active"
	}

	query := `INSERT INTO tenants (id, name, slug, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := s.db.ExecContext(ctx, query, t.ID, t.Name, t.Slug, t.Status, t.CreatedAt, t.UpdatedAt)
	return err
}

// GetTenant retrieves a tenant by ID
func (s *Store) GetTenant(ctx context.Context, id uuid.UUID) (*Tenant, error) {
	query := `SELECT id, name, slug, status, created_at, updated_at FROM tenants WHERE id = $1`

	t := &Tenant{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&t.ID, &t.Name, &t.Slug, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return t, err
}

// GetTenantBySlug retrieves a tenant by its URL slug
func (s *Store) GetTenantBySlug(ctx context.Context, slug string) (*Tenant, error) {
	query := `SELECT id, name, slug, status, created_at, updated_at FROM tenants WHERE slug = $1`

	t := &Tenant{}
	err := s.db.QueryRowContext(ctx, query, slug).Scan(
		&t.ID, &t.Name, &t.Slug, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return t, err
}

// ListTenants retrieves all active tenants
func (s *Store) ListTenants(ctx context.Context) ([]*Tenant, error) {
	query := `SELECT id, name, slug, status, created_at, updated_at
		FROM tenants WHERE status = 'active' ORDER BY name`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tenants []*Tenant
	for rows.Next() {
		t := &Tenant{}
		if err := rows.Scan(&t.ID, &t.Name, &t.Slug, &t.Status, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

// ---------------------------------------------------------------------------
// Users
// ---------------------------------------------------------------------------

// UpsertUser creates a user on first login and refreshes profile fields after.
func (s *Store) UpsertUser(ctx context.Context, u *User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	u.Email = NormalizeEmail(u.Email)
	u.CreatedAt = time.Now()
	now := time.Now()
	u.LastLoginAt = &now

	query := `INSERT INTO users (id, tenant_id, email, name, picture_url, role, last_login_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (tenant_id, email) DO UPDATE SET
			name = EXCLUDED.name, picture_url = EXCLUDED.picture_url, last_login_at = EXCLUDED.last_login_at`
	_, err := s.db.ExecContext(ctx, query, u.ID, u.TenantID, u.Email, u.Name, u.PictureURL,
		u.Role, u.LastLoginAt, u.CreatedAt)
	return err
}

// GetUserByEmail retrieves a user within a tenant by email
func (s *Store) GetUserByEmail(ctx context.Context, tenantID uuid.UUID, email string) (*User, error) {
	query := `SELECT id, tenant_id, email, name, picture_url, role, last_login_at, created_at
		FROM users WHERE tenant_id = $1 AND email = $2`

	u := &User{}
	err := s.db.QueryRowContext(ctx, query, tenantID, NormalizeEmail(email)).Scan(
		&u.ID, &u.TenantID, &u.Email, &u.Name, &u.PictureURL, &u.Role, &u.LastLoginAt, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return u, err
}

// ---------------------------------------------------------------------------
// Companies
// ---------------------------------------------------------------------------

// CreateCompany creates a new company
func (s *Store) CreateCompany(ctx context.Context, c *Company) error {
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	if c.ResearchStatus == "" {
		c.ResearchStatus = ResearchPending
	}
	c.Name = CanonicalName(c.Name)
	if c.Name == "" {
		return fmt.Errorf("company name is required")
	}

	query := `INSERT INTO companies (tenant_id, name, website, industry, location, employee_count,
		research_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`
	return s.db.QueryRowContext(ctx, query, c.TenantID, c.Name, c.Website, c.Industry,
		c.Location, c.EmployeeCount, c.ResearchStatus, c.CreatedAt, c.UpdatedAt).Scan(&c.ID)
}

const companyColumns = `id, tenant_id, name, website, industry, location, employee_count,
	research_status, research_report, research_error, research_started_at, research_completed_at,
	created_at, updated_at`

func scanCompany(row interface{ Scan(...any) error }) (*Company, error) {
	c := &Company{}
	err := row.Scan(&c.ID, &c.TenantID, &c.Name, &c.Website, &c.Industry, &c.Location,
		&c.EmployeeCount, &c.ResearchStatus, &c.ResearchReport, &c.ResearchError,
		&c.ResearchStartedAt, &c.ResearchCompletedAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// GetCompany retrieves a company by ID within a tenant
func (s *Store) GetCompany(ctx context.Context, tenantID uuid.UUID, id int64) (*Company, error) {
	query := `SELECT ` + companyColumns + ` FROM companies WHERE id = $1 AND tenant_id = $2`
	c, err := scanCompany(s.db.QueryRowContext(ctx, query, id, tenantID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

// GetCompanyByName retrieves a company by case-insensitive name match
func (s *Store) GetCompanyByName(ctx context.Context, tenantID uuid.UUID, name string) (*Company, error) {
	query := `SELECT ` + companyColumns + ` FROM companies
		WHERE tenant_id = $1 AND LOWER(name) = LOWER($2)`
	c, err := scanCompany(s.db.QueryRowContext(ctx, query, tenantID, CanonicalName(name)))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

// ListCompanies retrieves companies for a tenant, newest first
func (s *Store) ListCompanies(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*Company, int, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM companies WHERE tenant_id = $1`, tenantID).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + companyColumns + ` FROM companies
		WHERE tenant_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := s.db.QueryContext(ctx, query, tenantID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var companies []*Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, 0, err
		}
		companies = append(companies, c)
	}
	return companies, total, rows.Err()
}

// UpdateCompany updates editable company fields
func (s *Store) UpdateCompany(ctx context.Context, c *Company) error {
	query := `UPDATE companies SET name = $1, website = $2, industry = $3, location = $4,
		employee_count = $5, updated_at = NOW()
		WHERE id = $6 AND tenant_id = $7`
	res, err := s.db.ExecContext(ctx, query, c.Name, c.Website, c.Industry, c.Location,
		c.EmployeeCount, c.ID, c.TenantID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteCompany removes a company. Contacts keep their free-text company_name
// but lose the FK.
func (s *Store) DeleteCompany(ctx context.Context, tenantID uuid.UUID, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE contacts SET company_id = NULL WHERE company_id = $1 AND tenant_id = $2`,
		id, tenantID); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx,
		`DELETE FROM companies WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return tx.Commit()
}

// ClaimCompanyForResearch transitions a company from pending to in_progress.
// Returns false when the row is already claimed or completed, so concurrent
// generators skip it.
func (s *Store) ClaimCompanyForResearch(ctx context.Context, tenantID uuid.UUID, id int64) (bool, error) {
	query := `UPDATE companies SET research_status = $1, research_started_at = NOW(),
		research_error = '', updated_at = NOW()
		WHERE id = $2 AND tenant_id = $3 AND research_status = $4`
	res, err := s.db.ExecContext(ctx, query, ResearchInProgress, id, tenantID, ResearchPending)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// CompleteResearch stores the generated report and marks the company completed
func (s *Store) CompleteResearch(ctx context.Context, tenantID uuid.UUID, id int64, report string) error {
	query := `UPDATE companies SET research_status = $1, research_report = $2,
		research_completed_at = NOW(), updated_at = NOW()
		WHERE id = $3 AND tenant_id = $4`
	_, err := s.db.ExecContext(ctx, query, ResearchCompleted, report, id, tenantID)
	return err
}

// FailResearch records a research failure, preserving any previous report
func (s *Store) FailResearch(ctx context.Context, tenantID uuid.UUID, id int64, reason string) error {
	query := `UPDATE companies SET research_status = $1, research_error = $2,
		research_completed_at = NOW(), updated_at = NOW()
		WHERE id = $3 AND tenant_id = $4`
	_, err := s.db.ExecContext(ctx, query, ResearchFailed, reason, id, tenantID)
	return err
}

// ClearResearch resets research fields back to pending.
// Scope: one company (companyID > 0), failed rows only, or every company
// in the tenant. Returns the number of rows reset.
func (s *Store) ClearResearch(ctx context.Context, tenantID uuid.UUID, companyID int64, failedOnly bool) (int64, error) {
	query := `UPDATE companies SET research_status = 'pending', research_report = '',
		research_error = '', research_started_at = NULL, research_completed_at = NULL,
		updated_at = NOW()
		WHERE tenant_id = $1`
	args := []any{tenantID}

	if companyID > 0 {
		query += ` AND id = $2`
		args = append(args, companyID)
	} else if failedOnly {
		query += ` AND research_status = 'failed'`
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ---------------------------------------------------------------------------
// Contacts
// ---------------------------------------------------------------------------

// CreateContact creates a new contact
func (s *Store) CreateContact(ctx context.Context, c *Contact) error {
	c.Email = NormalizeEmail(c.Email)
	if c.Email == "" {
		return fmt.Errorf("contact email is required")
	}
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt

	query := `INSERT INTO contacts (tenant_id, company_id, company_name, first_name, last_name,
		email, title, linkedin_url, phone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`
	return s.db.QueryRowContext(ctx, query, c.TenantID, c.CompanyID, c.CompanyName,
		c.FirstName, c.LastName, c.Email, c.Title, c.LinkedInURL, c.Phone,
		c.CreatedAt, c.UpdatedAt).Scan(&c.ID)
}

const contactColumns = `id, tenant_id, company_id, company_name, first_name, last_name,
	email, title, linkedin_url, phone, created_at, updated_at`

func scanContact(row interface{ Scan(...any) error }) (*Contact, error) {
	c := &Contact{}
	err := row.Scan(&c.ID, &c.TenantID, &c.CompanyID, &c.CompanyName, &c.FirstName,
		&c.LastName, &c.Email, &c.Title, &c.LinkedInURL, &c.Phone, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// GetContact retrieves a contact by ID within a tenant
func (s *Store) GetContact(ctx context.Context, tenantID uuid.UUID, id int64) (*Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE id = $1 AND tenant_id = $2`
	c, err := scanContact(s.db.QueryRowContext(ctx, query, id, tenantID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

// GetContactByEmail retrieves a contact by email within a tenant
func (s *Store) GetContactByEmail(ctx context.Context, tenantID uuid.UUID, email string) (*Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE tenant_id = $1 AND email = $2`
	c, err := scanContact(s.db.QueryRowContext(ctx, query, tenantID, NormalizeEmail(email)))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

// ListContacts retrieves contacts for a tenant, optionally filtered by company
func (s *Store) ListContacts(ctx context.Context, tenantID uuid.UUID, companyID int64, limit, offset int) ([]*Contact, int, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	where := `WHERE tenant_id = $1`
	args := []any{tenantID}
	if companyID > 0 {
		where += ` AND company_id = $2`
		args = append(args, companyID)
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM contacts `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM contacts %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		contactColumns, where, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var contacts []*Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, 0, err
		}
		contacts = append(contacts, c)
	}
	return contacts, total, rows.Err()
}

// UpdateContact updates editable contact fields
func (s *Store) UpdateContact(ctx context.Context, c *Contact) error {
	query := `UPDATE contacts SET company_id = $1, company_name = $2, first_name = $3,
		last_name = $4, title = $5, linkedin_url = $6, phone = $7, updated_at = NOW()
		WHERE id = $8 AND tenant_id = $9`
	res, err := s.db.ExecContext(ctx, query, c.CompanyID, c.CompanyName, c.FirstName,
		c.LastName, c.Title, c.LinkedInURL, c.Phone, c.ID, c.TenantID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteContact removes a contact and its campaign enrollments
func (s *Store) DeleteContact(ctx context.Context, tenantID uuid.UUID, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM campaign_contacts WHERE contact_id = $1`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx,
		`DELETE FROM contacts WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return tx.Commit()
}

// ---------------------------------------------------------------------------
// Campaigns
// ---------------------------------------------------------------------------

// CreateCampaign creates a new campaign
func (s *Store) CreateCampaign(ctx context.Context, c *Campaign) error {
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	if c.Status == "" {
		c.Status = CampaignDraft
	}

	query := `INSERT INTO campaigns (tenant_id, company_id, name, status, template_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`
	return s.db.QueryRowContext(ctx, query, c.TenantID, c.CompanyID, c.Name, c.Status,
		c.TemplateID, c.CreatedAt, c.UpdatedAt).Scan(&c.ID)
}

// GetCampaign retrieves a campaign by ID within a tenant
func (s *Store) GetCampaign(ctx context.Context, tenantID uuid.UUID, id int64) (*Campaign, error) {
	query := `SELECT id, tenant_id, company_id, name, status, template_id, created_at, updated_at
		FROM campaigns WHERE id = $1 AND tenant_id = $2`

	c := &Campaign{}
	err := s.db.QueryRowContext(ctx, query, id, tenantID).Scan(
		&c.ID, &c.TenantID, &c.CompanyID, &c.Name, &c.Status, &c.TemplateID,
		&c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

// ListCampaigns retrieves campaigns for a tenant
func (s *Store) ListCampaigns(ctx context.Context, tenantID uuid.UUID) ([]*Campaign, error) {
	query := `SELECT id, tenant_id, company_id, name, status, template_id, created_at, updated_at
		FROM campaigns WHERE tenant_id = $1 ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var campaigns []*Campaign
	for rows.Next() {
		c := &Campaign{}
		if err := rows.Scan(&c.ID, &c.TenantID, &c.CompanyID, &c.Name, &c.Status,
			&c.TemplateID, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

// SetCampaignStatus updates a campaign's lifecycle status
func (s *Store) SetCampaignStatus(ctx context.Context, tenantID uuid.UUID, id int64, status string) error {
	switch status {
	case CampaignDraft, CampaignActive, CampaignPaused, CampaignCompleted:
	default:
		return fmt.Errorf("invalid campaign status %q", status)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE campaigns SET status = $1, updated_at = NOW() WHERE id = $2 AND tenant_id = $3`,
		status, id, tenantID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// AddCampaignContacts enrolls contacts in a campaign, skipping duplicates.
// Returns the number of newly enrolled contacts.
func (s *Store) AddCampaignContacts(ctx context.Context, tenantID uuid.UUID, campaignID int64, contactIDs []int64) (int, error) {
	// Verify the campaign belongs to this tenant before touching the junction
	camp, err := s.GetCampaign(ctx, tenantID, campaignID)
	if err != nil {
		return 0, err
	}
	if camp == nil {
		return 0, sql.ErrNoRows
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	added := 0
	for _, contactID := range contactIDs {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO campaign_contacts (campaign_id, contact_id, status, created_at)
			SELECT $1, id, 'active', NOW() FROM contacts WHERE id = $2 AND tenant_id = $3
			ON CONFLICT (campaign_id, contact_id) DO NOTHING`,
			campaignID, contactID, tenantID)
		if err != nil {
			return 0, err
		}
		n, _ := res.RowsAffected()
		added += int(n)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return added, nil
}

// ListCampaignContacts retrieves a campaign's enrollments
func (s *Store) ListCampaignContacts(ctx context.Context, tenantID uuid.UUID, campaignID int64) ([]*CampaignContact, error) {
	query := `SELECT cc.id, cc.campaign_id, cc.contact_id, cc.status, cc.current_step,
		cc.last_emailed_at, cc.created_at
		FROM campaign_contacts cc
		JOIN campaigns c ON c.id = cc.campaign_id
		WHERE cc.campaign_id = $1 AND c.tenant_id = $2
		ORDER BY cc.created_at`

	rows, err := s.db.QueryContext(ctx, query, campaignID, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var enrollments []*CampaignContact
	for rows.Next() {
		cc := &CampaignContact{}
		if err := rows.Scan(&cc.ID, &cc.CampaignID, &cc.ContactID, &cc.Status,
			&cc.CurrentStep, &cc.LastEmailedAt, &cc.CreatedAt); err != nil {
			return nil, err
		}
		enrollments = append(enrollments, cc)
	}
	return enrollments, rows.Err()
}

// SetCampaignContactStatus updates one enrollment's status
func (s *Store) SetCampaignContactStatus(ctx context.Context, tenantID uuid.UUID, campaignID, contactID int64, status string) error {
	switch status {
	case ContactActive, ContactPaused, ContactCompleted, ContactReplied, ContactBounced:
	default:
		return fmt.Errorf("invalid campaign contact status %q", status)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE campaign_contacts cc SET status = $1
		FROM campaigns c
		WHERE cc.campaign_id = c.id AND cc.campaign_id = $2 AND cc.contact_id = $3 AND c.tenant_id = $4`,
		status, campaignID, contactID, tenantID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
