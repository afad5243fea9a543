package leadgen

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Scrape run status constants
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// Company is a lead discovered by the scraper. It lives apart from the
// CRM companies table until an operator promotes it.
type Company struct {
	ID        int64     `json:"id" db:"id"`
	TenantID  uuid.UUID `json:"tenant_id" db:"tenant_id"`
	Name      string    `json:"name" db:"name"`
	Website   string    `json:"website" db:"website"`
	Source    string    `json:"source" db:"source"`
	Promoted  bool      `json:"promoted" db:"promoted"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// JobPosting is one job ad pulled from a board.
type JobPosting struct {
	ID               int64      `json:"id" db:"id"`
	TenantID         uuid.UUID  `json:"tenant_id" db:"tenant_id"`
	LeadgenCompanyID *int64     `json:"leadgen_company_id,omitempty" db:"leadgen_company_id"`
	ExternalID       string     `json:"external_id" db:"external_id"`
	Title            string     `json:"title" db:"title"`
	Location         string     `json:"location" db:"location"`
	URL              string     `json:"url" db:"url"`
	PostedAt         *time.Time `json:"posted_at,omitempty" db:"posted_at"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
}

// ScrapeRun is one scraping_logs row.
type ScrapeRun struct {
	ID             int64      `json:"id" db:"id"`
	TenantID       uuid.UUID  `json:"tenant_id" db:"tenant_id"`
	Board          string     `json:"board" db:"board"`
	Status         string     `json:"status" db:"status"`
	CompaniesFound int        `json:"companies_found" db:"companies_found"`
	PostingsFound  int        `json:"postings_found" db:"postings_found"`
	Error          string     `json:"error,omitempty" db:"error"`
	StartedAt      time.Time  `json:"started_at" db:"started_at"`
	FinishedAt     *time.Time `json:"finished_at,omitempty" db:"finished_at"`
}

// Store provides database operations for scraped leads.
type Store struct {
	db *sql.DB
}

// NewStore creates a new leadgen store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// UpsertCompany inserts a discovered company, or returns the existing
// row's id when the name (case-insensitive) is already known.
func (s *Store) UpsertCompany(ctx context.Context, c *Company) error {
	c.Name = strings.TrimSpace(c.Name)

	query := `INSERT INTO leadgen_companies (tenant_id, name, website, source)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tenant_id, LOWER(name)) DO UPDATE SET website =
			CASE WHEN leadgen_companies.website = '' THEN EXCLUDED.website
			ELSE leadgen_companies.website END
		RETURNING id, promoted, created_at`
	return s.db.QueryRowContext(ctx, query, c.TenantID, c.Name, c.Website, c.Source).
		Scan(&c.ID, &c.Promoted, &c.CreatedAt)
}

// UpsertPosting inserts a job posting, ignoring duplicates by
// (tenant_id, external_id). Returns true when a new row was created.
func (s *Store) UpsertPosting(ctx context.Context, p *JobPosting) (bool, error) {
	query := `INSERT INTO job_postings (tenant_id, leadgen_company_id, external_id,
		title, location, url, posted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (tenant_id, external_id) DO NOTHING
		RETURNING id`
	err := s.db.QueryRowContext(ctx, query, p.TenantID, p.LeadgenCompanyID, p.ExternalID,
		p.Title, p.Location, p.URL, p.PostedAt).Scan(&p.ID)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListCompanies returns discovered companies for a tenant, newest first.
func (s *Store) ListCompanies(ctx context.Context, tenantID uuid.UUID, limit int) ([]*Company, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := `SELECT id, tenant_id, name, website, source, promoted, created_at
		FROM leadgen_companies WHERE tenant_id = $1
		ORDER BY created_at DESC LIMIT $2`
	rows, err := s.db.QueryContext(ctx, query, tenantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Company
	for rows.Next() {
		c := &Company{}
		if err := rows.Scan(&c.ID, &c.TenantID, &c.Name, &c.Website, &c.Source,
			&c.Promoted, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListPostings returns job postings for a tenant, newest first,
// optionally filtered by leadgen company.
func (s *Store) ListPostings(ctx context.Context, tenantID uuid.UUID, companyID int64, limit int) ([]*JobPosting, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := `SELECT id, tenant_id, leadgen_company_id, external_id, title, location,
		url, posted_at, created_at
		FROM job_postings WHERE tenant_id = $1`
	args := []any{tenantID}
	if companyID > 0 {
		args = append(args, companyID)
		query += ` AND leadgen_company_id = $2`
	}
	args = append(args, limit)
	if companyID > 0 {
		query += ` ORDER BY created_at DESC LIMIT $3`
	} else {
		query += ` ORDER BY created_at DESC LIMIT $2`
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*JobPosting
	for rows.Next() {
		p := &JobPosting{}
		if err := rows.Scan(&p.ID, &p.TenantID, &p.LeadgenCompanyID, &p.ExternalID,
			&p.Title, &p.Location, &p.URL, &p.PostedAt, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// StartRun opens a scraping_logs row in the running state.
func (s *Store) StartRun(ctx context.Context, tenantID uuid.UUID, board string) (*ScrapeRun, error) {
	run := &ScrapeRun{TenantID: tenantID, Board: board, Status: RunRunning}
	query := `INSERT INTO scraping_logs (tenant_id, board, status)
		VALUES ($1, $2, $3) RETURNING id, started_at`
	err := s.db.QueryRowContext(ctx, query, tenantID, board, RunRunning).
		Scan(&run.ID, &run.StartedAt)
	if err != nil {
		return nil, err
	}
	return run, nil
}

// FinishRun closes a scraping_logs row with final counts. An empty
// errMsg marks the run completed, otherwise failed.
func (s *Store) FinishRun(ctx context.Context, run *ScrapeRun, companies, postings int, errMsg string) error {
	status := RunCompleted
	if errMsg != "" {
		status = RunFailed
	}
	query := `UPDATE scraping_logs SET status = $1, companies_found = $2,
		postings_found = $3, error = $4, finished_at = NOW()
		WHERE id = $5 AND tenant_id = $6`
	_, err := s.db.ExecContext(ctx, query, status, companies, postings, errMsg,
		run.ID, run.TenantID)
	if err == nil {
		run.Status = status
		run.CompaniesFound = companies
		run.PostingsFound = postings
		run.Error = errMsg
	}
	return err
}

// ListRuns returns recent scrape runs for a tenant, newest first.
func (s *Store) ListRuns(ctx context.Context, tenantID uuid.UUID, limit int) ([]*ScrapeRun, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := `SELECT id, tenant_id, board, status, companies_found, postings_found,
		error, started_at, finished_at
		FROM scraping_logs WHERE tenant_id = $1
		ORDER BY started_at DESC LIMIT $2`
	rows, err := s.db.QueryContext(ctx, query, tenantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ScrapeRun
	for rows.Next() {
		r := &ScrapeRun{}
		if err := rows.Scan(&r.ID, &r.TenantID, &r.Board, &r.Status, &r.CompaniesFound,
			&r.PostingsFound, &r.Error, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
