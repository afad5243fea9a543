package crm

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
)

func setupTestDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	return db, mock, func() { db.Close() }
}

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		name  string
		email string
		want  string
	}{
		{"lowercase passthrough", "jane@acme.com", "jane@acme.com"},
		{"uppercase", "JANE@ACME.COM", "jane@acme.com"},
		{"surrounding spaces", "  jane@acme.com  ", "jane@acme.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeEmail(tt.email); got != tt.want {
				t.Errorf("NormalizeEmail(%q) = %q, want %q", tt.email, got, tt.want)
			}
		})
	}
}

func TestCreateCompanyRequiresName(t *testing.T) {
	db, _, cleanup := setupTestDB(t)
	defer cleanup()
	store := NewStore(db)

	err := store.CreateCompany(context.Background(), &Company{
		TenantID: uuid.New(),
		Name:     "   ",
	})
	if err == nil {
		t.Fatal("CreateCompany with blank name should fail")
	}
}

func TestCreateCompanyDefaultsResearchPending(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()
	store := NewStore(db)

	mock.ExpectQuery(`INSERT INTO companies`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))

	c := &Company{TenantID: uuid.New(), Name: "Acme Corp"}
	if err := store.CreateCompany(context.Background(), c); err != nil {
		t.Fatalf("CreateCompany() error: %v", err)
	}
	if c.ID != 42 {
		t.Errorf("ID = %d, want 42", c.ID)
	}
	if c.ResearchStatus != ResearchPending {
		t.Errorf("ResearchStatus = %q, want pending", c.ResearchStatus)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCreateCompanyCanonicalizesName(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()
	store := NewStore(db)

	mock.ExpectQuery(`INSERT INTO companies`).
		WithArgs(sqlmock.AnyArg(), "Acme Corp", sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))

	c := &Company{TenantID: uuid.New(), Name: "  Acme   Corp  "}
	if err := store.CreateCompany(context.Background(), c); err != nil {
		t.Fatalf("CreateCompany() error: %v", err)
	}
	if c.Name != "Acme Corp" {
		t.Errorf("Name = %q, want collapsed whitespace", c.Name)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestGetCompanyNotFound(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()
	store := NewStore(db)

	mock.ExpectQuery(`FROM companies WHERE id`).
		WillReturnError(sql.ErrNoRows)

	c, err := store.GetCompany(context.Background(), uuid.New(), 99)
	if err != nil {
		t.Fatalf("GetCompany() error: %v", err)
	}
	if c != nil {
		t.Errorf("GetCompany() = %+v, want nil for missing row", c)
	}
}

func TestClaimCompanyForResearch(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()
	store := NewStore(db)
	tenantID := uuid.New()

	// First claim wins
	mock.ExpectExec(`UPDATE companies SET research_status`).
		WithArgs(ResearchInProgress, int64(7), tenantID, ResearchPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	ok, err := store.ClaimCompanyForResearch(context.Background(), tenantID, 7)
	if err != nil {
		t.Fatalf("ClaimCompanyForResearch() error: %v", err)
	}
	if !ok {
		t.Error("first claim should succeed")
	}

	// Second claim sees zero affected rows
	mock.ExpectExec(`UPDATE companies SET research_status`).
		WithArgs(ResearchInProgress, int64(7), tenantID, ResearchPending).
		WillReturnResult(sqlmock.NewResult(0, 0))
	ok, err = store.ClaimCompanyForResearch(context.Background(), tenantID, 7)
	if err != nil {
		t.Fatalf("ClaimCompanyForResearch() error: %v", err)
	}
	if ok {
		t.Error("second claim should be refused")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestClearResearchScopes(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()
	store := NewStore(db)
	tenantID := uuid.New()
	ctx := context.Background()

	// Single company
	mock.ExpectExec(`(?s)UPDATE companies SET research_status = 'pending'.+AND id =`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	n, err := store.ClearResearch(ctx, tenantID, 5, false)
	if err != nil {
		t.Fatalf("ClearResearch(company) error: %v", err)
	}
	if n != 1 {
		t.Errorf("ClearResearch(company) = %d rows, want 1", n)
	}

	// Failed only
	mock.ExpectExec(`(?s)UPDATE companies SET research_status = 'pending'.+research_status = 'failed'`).
		WillReturnResult(sqlmock.NewResult(0, 3))
	n, err = store.ClearResearch(ctx, tenantID, 0, true)
	if err != nil {
		t.Fatalf("ClearResearch(failed) error: %v", err)
	}
	if n != 3 {
		t.Errorf("ClearResearch(failed) = %d rows, want 3", n)
	}

	// Whole tenant
	mock.ExpectExec(`UPDATE companies SET research_status = 'pending'`).
		WillReturnResult(sqlmock.NewResult(0, 10))
	n, err = store.ClearResearch(ctx, tenantID, 0, false)
	if err != nil {
		t.Fatalf("ClearResearch(all) error: %v", err)
	}
	if n != 10 {
		t.Errorf("ClearResearch(all) = %d rows, want 10", n)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCreateContactNormalizesEmail(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()
	store := NewStore(db)

	mock.ExpectQuery(`INSERT INTO contacts`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))

	c := &Contact{TenantID: uuid.New(), Email: "  Jane.Doe@Acme.COM "}
	if err := store.CreateContact(context.Background(), c); err != nil {
		t.Fatalf("CreateContact() error: %v", err)
	}
	if c.Email != "jane.doe@acme.com" {
		t.Errorf("Email = %q, want normalized", c.Email)
	}
}

func TestCreateContactRequiresEmail(t *testing.T) {
	db, _, cleanup := setupTestDB(t)
	defer cleanup()
	store := NewStore(db)

	if err := store.CreateContact(context.Background(), &Contact{TenantID: uuid.New()}); err == nil {
		t.Fatal("CreateContact without email should fail")
	}
}

func TestSetCampaignStatusRejectsUnknown(t *testing.T) {
	db, _, cleanup := setupTestDB(t)
	defer cleanup()
	store := NewStore(db)

	err := store.SetCampaignStatus(context.Background(), uuid.New(), 1, "exploded")
	if err == nil {
		t.Fatal("SetCampaignStatus with unknown status should fail")
	}
}

func TestSetCampaignStatusNotFound(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()
	store := NewStore(db)

	mock.ExpectExec(`UPDATE campaigns SET status`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.SetCampaignStatus(context.Background(), uuid.New(), 1, CampaignActive)
	if err != sql.ErrNoRows {
		t.Errorf("err = %v, want sql.ErrNoRows", err)
	}
}

func TestDeleteCompanyDetachesContacts(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()
	store := NewStore(db)
	tenantID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE contacts SET company_id = NULL`).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`DELETE FROM companies`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := store.DeleteCompany(context.Background(), tenantID, 3); err != nil {
		t.Fatalf("DeleteCompany() error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestContactFullName(t *testing.T) {
	tests := []struct {
		name    string
		contact Contact
		want    string
	}{
		{"both names", Contact{FirstName: "Jane", LastName: "Doe", Email: "j@a.com"}, "Jane Doe"},
		{"first only", Contact{FirstName: "Jane", Email: "j@a.com"}, "Jane"},
		{"last only", Contact{LastName: "Doe", Email: "j@a.com"}, "Doe"},
		{"neither", Contact{Email: "j@a.com"}, "j@a.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.contact.FullName(); got != tt.want {
				t.Errorf("FullName() = %q, want %q", got, tt.want)
			}
		})
	}
}
