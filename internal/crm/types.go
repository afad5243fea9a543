package crm

import (
	"time"

	"github.com/google/uuid"
)

// Research status constants
const (
	ResearchPending    = "pending"
	ResearchInProgress = "in_progress"
	ResearchCompleted  = "completed"
	ResearchFailed     = "failed"
)

// Campaign status constants
const (
	CampaignDraft     = "draft"
	CampaignActive    = "active"
	CampaignPaused    = "paused"
	CampaignCompleted = "completed"
)

// Campaign contact status constants
const (
	ContactActive    = "active"
	ContactPaused    = "paused"
	ContactCompleted = "completed"
	ContactReplied   = "replied"
	ContactBounced   = "bounced"
)

// Tenant represents a customer organization partition of the shared schema
type Tenant struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Slug      string    `json:"slug" db:"slug"`
	Status    string    `json:"status" db:"status"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// User represents an operator account within a tenant
type User struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	TenantID    uuid.UUID  `json:"tenant_id" db:"tenant_id"`
	Email       string     `json:"email" db:"email"`
	Name        string     `json:"name" db:"name"`
	PictureURL  string     `json:"picture_url" db:"picture_url"`
	Role        string     `json:"role" db:"role"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty" db:"last_login_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}

// Company represents a target account, including its research lifecycle
type Company struct {
	ID                  int64      `json:"id" db:"id"`
	TenantID            uuid.UUID  `json:"tenant_id" db:"tenant_id"`
	Name                string     `json:"name" db:"name"`
	Website             string     `json:"website" db:"website"`
	Industry            string     `json:"industry" db:"industry"`
	Location            string     `json:"location" db:"location"`
	EmployeeCount       *int       `json:"employee_count,omitempty" db:"employee_count"`
	ResearchStatus      string     `json:"research_status" db:"research_status"`
	ResearchReport      string     `json:"research_report,omitempty" db:"research_report"`
	ResearchError       string     `json:"research_error,omitempty" db:"research_error"`
	ResearchStartedAt   *time.Time `json:"research_started_at,omitempty" db:"research_started_at"`
	ResearchCompletedAt *time.Time `json:"research_completed_at,omitempty" db:"research_completed_at"`
	CreatedAt           time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at" db:"updated_at"`
}

// Contact represents a person at a target company
type Contact struct {
	ID          int64     `json:"id" db:"id"`
	TenantID    uuid.UUID `json:"tenant_id" db:"tenant_id"`
	CompanyID   *int64    `json:"company_id,omitempty" db:"company_id"`
	CompanyName string    `json:"company_name" db:"company_name"`
	FirstName   string    `json:"first_name" db:"first_name"`
	LastName    string    `json:"last_name" db:"last_name"`
	Email       string    `json:"email" db:"email"`
	Title       string    `json:"title" db:"title"`
	LinkedInURL string    `json:"linkedin_url" db:"linkedin_url"`
	Phone       string    `json:"phone" db:"phone"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// FullName returns the contact's display name.
func (c Contact) FullName() string {
	switch {
	case c.FirstName != "" && c.LastName != "":
		return c.FirstName + " " + c.LastName
	case c.FirstName != "":
		return c.FirstName
	case c.LastName != "":
		return c.LastName
	}
	return c.Email
}

// Campaign represents an outreach campaign
type Campaign struct {
	ID         int64     `json:"id" db:"id"`
	TenantID   uuid.UUID `json:"tenant_id" db:"tenant_id"`
	CompanyID  *int64    `json:"company_id,omitempty" db:"company_id"`
	Name       string    `json:"name" db:"name"`
	Status     string    `json:"status" db:"status"`
	TemplateID *int64    `json:"template_id,omitempty" db:"template_id"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// CampaignContact represents a contact's enrollment in a campaign
type CampaignContact struct {
	ID            int64      `json:"id" db:"id"`
	CampaignID    int64      `json:"campaign_id" db:"campaign_id"`
	ContactID     int64      `json:"contact_id" db:"contact_id"`
	Status        string     `json:"status" db:"status"`
	CurrentStep   int        `json:"current_step" db:"current_step"`
	LastEmailedAt *time.Time `json:"last_emailed_at,omitempty" db:"last_emailed_at"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
}
