package outreach

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/osteele/liquid"

	"github.com/pranavmodi/salesbot-sub002/internal/crm"
)

// Template status constants
const (
	TemplateDraft    = "draft"
	TemplateActive   = "active"
	TemplateArchived = "archived"
)

// ValidTemplateStatus reports whether s is a known template status.
func ValidTemplateStatus(s string) bool {
	switch s {
	case TemplateDraft, TemplateActive, TemplateArchived:
		return true
	}
	return false
}

// Template represents a reusable outreach email template.
// Subject and body are Liquid templates with contact/company bindings.
type Template struct {
	ID        int64     `json:"id" db:"id"`
	TenantID  uuid.UUID `json:"tenant_id" db:"tenant_id"`
	Name      string    `json:"name" db:"name"`
	Subject   string    `json:"subject" db:"subject"`
	Body      string    `json:"body" db:"body"`
	Status    string    `json:"status" db:"status"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// TemplateStore provides database operations for email templates
type TemplateStore struct {
	db     *sql.DB
	engine *liquid.Engine
	cache  sync.Map // map[string]*liquid.Template
}

// NewTemplateStore creates a template store with the Liquid engine configured
func NewTemplateStore(db *sql.DB) *TemplateStore {
	engine := liquid.NewEngine()

	// Default value filter: {{ first_name | default: "there" }}
	engine.RegisterFilter("default", func(value interface{}, defaultVal string) interface{} {
		if value == nil {
			return defaultVal
		}
		strVal := fmt.Sprintf("%v", value)
		if strVal == "" || strVal == "<nil>" {
			return defaultVal
		}
		return value
	})

	// Capitalize first letter: {{ name | capitalize }}
	engine.RegisterFilter("capitalize", func(s string) string {
		if len(s) == 0 {
			return s
		}
		return strings.ToUpper(string(s[0])) + strings.ToLower(s[1:])
	})

	return &TemplateStore{db: db, engine: engine}
}

// CreateTemplate creates a new email template
func (ts *TemplateStore) CreateTemplate(ctx context.Context, t *Template) error {
	if t.Status == "" {
		t.Status = TemplateDraft
	}
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt

	// Reject templates that cannot be parsed; storing them would fail
	// every send later.
	if err := ts.Validate(t); err != nil {
		return err
	}

	query := `INSERT INTO email_templates (tenant_id, name, subject, body, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`
	return ts.db.QueryRowContext(ctx, query, t.TenantID, t.Name, t.Subject, t.Body,
		t.Status, t.CreatedAt, t.UpdatedAt).Scan(&t.ID)
}

// GetTemplate retrieves a template by ID within a tenant
func (ts *TemplateStore) GetTemplate(ctx context.Context, tenantID uuid.UUID, id int64) (*Template, error) {
	query := `SELECT id, tenant_id, name, subject, body, status, created_at, updated_at
		FROM email_templates WHERE id = $1 AND tenant_id = $2`

	t := &Template{}
	err := ts.db.QueryRowContext(ctx, query, id, tenantID).Scan(
		&t.ID, &t.TenantID, &t.Name, &t.Subject, &t.Body, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return t, err
}

// ListTemplates retrieves templates for a tenant, non-archived first
func (ts *TemplateStore) ListTemplates(ctx context.Context, tenantID uuid.UUID) ([]*Template, error) {
	query := `SELECT id, tenant_id, name, subject, body, status, created_at, updated_at
		FROM email_templates WHERE tenant_id = $1
		ORDER BY status = 'archived', name`

	rows, err := ts.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var templates []*Template
	for rows.Next() {
		t := &Template{}
		if err := rows.Scan(&t.ID, &t.TenantID, &t.Name, &t.Subject, &t.Body, &t.Status,
			&t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

// UpdateTemplate updates a template's content and status
func (ts *TemplateStore) UpdateTemplate(ctx context.Context, t *Template) error {
	if t.Status == "" {
		t.Status = TemplateDraft
	}
	if !ValidTemplateStatus(t.Status) {
		return fmt.Errorf("invalid template status %q", t.Status)
	}
	if err := ts.Validate(t); err != nil {
		return err
	}

	res, err := ts.db.ExecContext(ctx, `
		UPDATE email_templates SET name = $1, subject = $2, body = $3, status = $4, updated_at = NOW()
		WHERE id = $5 AND tenant_id = $6`,
		t.Name, t.Subject, t.Body, t.Status, t.ID, t.TenantID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	// Drop any cached compiled form
	ts.cache.Delete(cacheKey(t.TenantID, t.ID, "subject"))
	ts.cache.Delete(cacheKey(t.TenantID, t.ID, "body"))
	return nil
}

// Validate checks that the subject and body parse as Liquid templates
func (ts *TemplateStore) Validate(t *Template) error {
	if _, err := ts.engine.ParseString(t.Subject); err != nil {
		return fmt.Errorf("subject: %w", err)
	}
	if _, err := ts.engine.ParseString(t.Body); err != nil {
		return fmt.Errorf("body: %w", err)
	}
	return nil
}

// Bindings builds the render context for a contact/company pair.
// Missing values render as empty strings, which the default filter can
// replace in the template itself.
func Bindings(contact *crm.Contact, company *crm.Company) map[string]interface{} {
	b := map[string]interface{}{}
	if contact != nil {
		b["first_name"] = contact.FirstName
		b["last_name"] = contact.LastName
		b["full_name"] = contact.FullName()
		b["email"] = contact.Email
		b["title"] = contact.Title
		b["company_name"] = contact.CompanyName
	}
	if company != nil {
		b["company_name"] = company.Name
		b["company_website"] = company.Website
		b["company_industry"] = company.Industry
		b["company_location"] = company.Location
	}
	return b
}

// Render renders a stored template against the given bindings.
// Compiled templates are cached per tenant/template/part.
func (ts *TemplateStore) Render(t *Template, bindings map[string]interface{}) (subject, body string, err error) {
	subject, err = ts.renderPart(cacheKey(t.TenantID, t.ID, "subject"), t.Subject, bindings)
	if err != nil {
		return "", "", fmt.Errorf("render subject: %w", err)
	}
	body, err = ts.renderPart(cacheKey(t.TenantID, t.ID, "body"), t.Body, bindings)
	if err != nil {
		return "", "", fmt.Errorf("render body: %w", err)
	}
	return subject, body, nil
}

func (ts *TemplateStore) renderPart(key, source string, bindings map[string]interface{}) (string, error) {
	if cached, ok := ts.cache.Load(key); ok {
		return cached.(*liquid.Template).RenderString(bindings)
	}
	tpl, err := ts.engine.ParseString(source)
	if err != nil {
		return "", err
	}
	ts.cache.Store(key, tpl)
	return tpl.RenderString(bindings)
}

func cacheKey(tenantID uuid.UUID, id int64, part string) string {
	return fmt.Sprintf("%s:%d:%s", tenantID, id, part)
}
