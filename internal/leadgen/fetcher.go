package leadgen

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/pranavmodi/salesbot-sub002/internal/pkg/httpretry"
	"github.com/pranavmodi/salesbot-sub002/internal/pkg/logger"
)

// boardPosting is the wire shape job boards return.
type boardPosting struct {
	ID         string `json:"id"`
	Company    string `json:"company"`
	CompanyURL string `json:"company_url"`
	Title      string `json:"title"`
	Location   string `json:"location"`
	URL        string `json:"url"`
	PostedAt   string `json:"posted_at"`
}

// Fetcher pulls job postings from configured board endpoints and stores
// the companies and postings it discovers.
type Fetcher struct {
	store *Store
	http  *httpretry.RetryClient
}

// NewFetcher creates a fetcher over the given store.
func NewFetcher(store *Store) *Fetcher {
	return &Fetcher{
		store: store,
		http:  httpretry.NewRetryClient(&http.Client{Timeout: 30 * time.Second}, 3),
	}
}

// FetchResult summarizes one board run.
type FetchResult struct {
	Board          string
	CompaniesFound int
	PostingsAdded  int
}

// FetchBoard pulls one board, upserts companies and postings, and
// records the run in scraping_logs. The scraping_logs row is written
// even when the fetch fails, with the error text attached.
func (f *Fetcher) FetchBoard(ctx context.Context, tenantID uuid.UUID, boardURL string) (*FetchResult, error) {
	run, err := f.store.StartRun(ctx, tenantID, boardURL)
	if err != nil {
		return nil, fmt.Errorf("start scrape run: %w", err)
	}

	postings, err := f.fetch(ctx, boardURL)
	if err != nil {
		if finishErr := f.store.FinishRun(ctx, run, 0, 0, err.Error()); finishErr != nil {
			logger.Error("record scrape failure errored", "board", boardURL, "error", finishErr)
		}
		return nil, err
	}

	seen := map[string]int64{}
	result := &FetchResult{Board: boardURL}
	for _, bp := range postings {
		if bp.ID == "" || bp.Company == "" {
			continue
		}

		companyID, ok := seen[bp.Company]
		if !ok {
			c := &Company{TenantID: tenantID, Name: bp.Company, Website: bp.CompanyURL, Source: boardURL}
			if err := f.store.UpsertCompany(ctx, c); err != nil {
				logger.Warn("upsert leadgen company failed", "company", bp.Company, "error", err)
				continue
			}
			companyID = c.ID
			seen[bp.Company] = companyID
			result.CompaniesFound++
		}

		p := &JobPosting{
			TenantID:         tenantID,
			LeadgenCompanyID: &companyID,
			ExternalID:       bp.ID,
			Title:            bp.Title,
			Location:         bp.Location,
			URL:              bp.URL,
			PostedAt:         parsePostedAt(bp.PostedAt),
		}
		added, err := f.store.UpsertPosting(ctx, p)
		if err != nil {
			logger.Warn("upsert posting failed", "external_id", bp.ID, "error", err)
			continue
		}
		if added {
			result.PostingsAdded++
		}
	}

	if err := f.store.FinishRun(ctx, run, result.CompaniesFound, result.PostingsAdded, ""); err != nil {
		return result, fmt.Errorf("finish scrape run: %w", err)
	}
	logger.Info("board fetched", "board", boardURL,
		"companies", result.CompaniesFound, "postings", result.PostingsAdded)
	return result, nil
}

func (f *Fetcher) fetch(ctx context.Context, boardURL string) ([]boardPosting, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", boardURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch board: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("board returned status %d: %s", resp.StatusCode, string(body))
	}

	var postings []boardPosting
	if err := json.NewDecoder(resp.Body).Decode(&postings); err != nil {
		return nil, fmt.Errorf("decode board response: %w", err)
	}
	return postings, nil
}

func parsePostedAt(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
