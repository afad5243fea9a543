package crm

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
)

func TestExtractorPreview(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()
	ex := NewCompanyExtractor(db)
	tenantID := uuid.New()

	mock.ExpectQuery(`(?s)SELECT COUNT\(DISTINCT LOWER\(TRIM\(company_name\)\)\).+FROM contacts`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))
	mock.ExpectQuery(`(?s)SELECT COUNT\(DISTINCT LOWER\(TRIM\(c\.company_name\)\)\).+NOT EXISTS`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))
	mock.ExpectQuery(`(?s)SELECT COUNT\(\*\).+company_id IS NULL`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(30))

	res, err := ex.Preview(context.Background(), tenantID)
	if err != nil {
		t.Fatalf("Preview() error: %v", err)
	}
	if res.DistinctNames != 12 || res.CompaniesCreated != 4 || res.ContactsLinked != 30 {
		t.Errorf("Preview() = %+v, want {12 4 30}", res)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestExtractorRun(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()
	ex := NewCompanyExtractor(db)
	tenantID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`(?s)SELECT COUNT\(DISTINCT LOWER\(TRIM\(company_name\)\)\).+FROM contacts`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(8))
	mock.ExpectExec(`(?s)INSERT INTO companies.+SELECT DISTINCT ON`).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(`(?s)UPDATE contacts c.+FROM companies co`).
		WillReturnResult(sqlmock.NewResult(0, 21))
	mock.ExpectCommit()

	res, err := ex.Run(context.Background(), tenantID)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if res.DistinctNames != 8 {
		t.Errorf("DistinctNames = %d, want 8", res.DistinctNames)
	}
	if res.CompaniesCreated != 3 {
		t.Errorf("CompaniesCreated = %d, want 3", res.CompaniesCreated)
	}
	if res.ContactsLinked != 21 {
		t.Errorf("ContactsLinked = %d, want 21", res.ContactsLinked)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestExtractorRunRollsBackOnError(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()
	ex := NewCompanyExtractor(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COUNT`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(8))
	mock.ExpectExec(`(?s)INSERT INTO companies`).
		WillReturnError(context.DeadlineExceeded)
	mock.ExpectRollback()

	if _, err := ex.Run(context.Background(), uuid.New()); err == nil {
		t.Fatal("Run() should propagate insert error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCanonicalName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  Acme   Corp ", "Acme Corp"},
		{"Acme", "Acme"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := CanonicalName(tt.in); got != tt.want {
			t.Errorf("CanonicalName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
