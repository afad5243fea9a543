package research

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pranavmodi/salesbot-sub002/internal/config"
	"github.com/pranavmodi/salesbot-sub002/internal/crm"
)

func setupTestDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func companyRow(tenantID uuid.UUID, id int64, name string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{"id", "tenant_id", "name", "website", "industry",
		"location", "employee_count", "research_status", "research_report",
		"research_error", "research_started_at", "research_completed_at",
		"created_at", "updated_at"}).
		AddRow(id, tenantID, name, "https://acme.com", "Software", "Austin, TX",
			50, crm.ResearchPending, "", "", nil, nil, now, now)
}

func fakeOpenAI(t *testing.T, reply string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		resp := map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": reply}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func testService(db *sql.DB, openaiURL string) *Service {
	svc := NewService(crm.NewStore(db), config.ResearchConfig{
		Provider:       "openai",
		APIKey:         "test-key",
		Model:          "gpt-4o",
		TimeoutSeconds: 5,
		MaxSteps:       2,
		Enabled:        true,
	})
	svc.openaiURL = openaiURL
	return svc
}

func TestGenerateReportCompletes(t *testing.T) {
	db, mock := setupTestDB(t)
	llm := fakeOpenAI(t, "Step findings.")
	defer llm.Close()

	tenantID := uuid.New()
	mock.ExpectQuery(`(?s)FROM companies WHERE id = \$1 AND tenant_id = \$2`).
		WithArgs(int64(9), tenantID).
		WillReturnRows(companyRow(tenantID, 9, "Acme Corp"))
	mock.ExpectExec(`(?s)UPDATE companies SET research_status = \$1, research_started_at = NOW\(\)`).
		WithArgs(crm.ResearchInProgress, int64(9), tenantID, crm.ResearchPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`(?s)UPDATE companies SET research_status = \$1, research_report = \$2`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := testService(db, llm.URL).GenerateReport(context.Background(), tenantID, 9)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGenerateReportRespectsClaim(t *testing.T) {
	db, mock := setupTestDB(t)

	tenantID := uuid.New()
	mock.ExpectQuery(`(?s)FROM companies WHERE id = \$1 AND tenant_id = \$2`).
		WithArgs(int64(9), tenantID).
		WillReturnRows(companyRow(tenantID, 9, "Acme Corp"))
	// Another worker already moved the row out of pending.
	mock.ExpectExec(`(?s)UPDATE companies SET research_status = \$1, research_started_at = NOW\(\)`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := testService(db, "http://unused").GenerateReport(context.Background(), tenantID, 9)
	assert.ErrorIs(t, err, ErrAlreadyInProgress)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGenerateReportMarksFailure(t *testing.T) {
	db, mock := setupTestDB(t)
	llm := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer llm.Close()

	tenantID := uuid.New()
	mock.ExpectQuery(`(?s)FROM companies WHERE id = \$1 AND tenant_id = \$2`).
		WithArgs(int64(9), tenantID).
		WillReturnRows(companyRow(tenantID, 9, "Acme Corp"))
	mock.ExpectExec(`(?s)UPDATE companies SET research_status = \$1, research_started_at = NOW\(\)`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`(?s)UPDATE companies SET research_status = \$1, research_error = \$2`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := testService(db, llm.URL).GenerateReport(context.Background(), tenantID, 9)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGenerateReportDisabledWithoutKey(t *testing.T) {
	db, _ := setupTestDB(t)
	svc := NewService(crm.NewStore(db), config.ResearchConfig{Enabled: true})

	err := svc.GenerateReport(context.Background(), uuid.New(), 1)
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestStepPromptIncludesCompanyContext(t *testing.T) {
	svc := testService(nil, "")
	company := &crm.Company{Name: "Acme", Website: "https://acme.com", Industry: "Software"}

	p := svc.stepPrompt(0, company, "")
	assert.Contains(t, p, "Acme")
	assert.Contains(t, p, "https://acme.com")
	assert.Contains(t, p, "overview")

	p = svc.stepPrompt(2, company, "prior findings")
	assert.Contains(t, p, "prior findings")
}
