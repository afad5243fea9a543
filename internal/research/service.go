package research

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pranavmodi/salesbot-sub002/internal/config"
	"github.com/pranavmodi/salesbot-sub002/internal/crm"
	"github.com/pranavmodi/salesbot-sub002/internal/pkg/httpretry"
	"github.com/pranavmodi/salesbot-sub002/internal/pkg/logger"
)

// ErrAlreadyInProgress is returned when a company's research has been
// claimed by another worker or already completed.
var ErrAlreadyInProgress = errors.New("research: company is not pending")

// ErrDisabled is returned when no LLM API key is configured.
var ErrDisabled = errors.New("research: no provider configured")

// Step names, in report order.
var stepTitles = []string{
	"Company Overview",
	"Market and Competitive Landscape",
	"Pain Points and Outreach Angles",
}

// Service generates AI research reports for companies. Each report is
// built in steps, one LLM call per step, and stored as a single
// markdown document on the company row.
type Service struct {
	store *crm.Store
	cfg   config.ResearchConfig
	http  *httpretry.RetryClient

	openaiURL    string
	anthropicURL string
}

// NewService creates a research service using the configured provider.
func NewService(store *crm.Store, cfg config.ResearchConfig) *Service {
	return &Service{
		store:        store,
		cfg:          cfg,
		http:         httpretry.NewRetryClient(&http.Client{Timeout: cfg.Timeout()}, 3),
		openaiURL:    "https://api.openai.com/v1/chat/completions",
		anthropicURL: "https://api.anthropic.com/v1/messages",
	}
}

// GenerateReport claims the company, runs the research steps, and
// stores the assembled report. The claim is atomic: only a company in
// the pending state can be picked up, so concurrent workers never
// research the same company twice.
func (s *Service) GenerateReport(ctx context.Context, tenantID uuid.UUID, companyID int64) error {
	if !s.cfg.Enabled || s.cfg.APIKey == "" {
		return ErrDisabled
	}

	company, err := s.store.GetCompany(ctx, tenantID, companyID)
	if err != nil {
		return fmt.Errorf("load company: %w", err)
	}
	if company == nil {
		return fmt.Errorf("research: company %d not found", companyID)
	}

	claimed, err := s.store.ClaimCompanyForResearch(ctx, tenantID, companyID)
	if err != nil {
		return fmt.Errorf("claim company: %w", err)
	}
	if !claimed {
		return ErrAlreadyInProgress
	}

	logger.Info("research started", "company_id", companyID, "company", company.Name)

	report, err := s.runSteps(ctx, company)
	if err != nil {
		if failErr := s.store.FailResearch(ctx, tenantID, companyID, err.Error()); failErr != nil {
			logger.Error("record research failure errored", "company_id", companyID, "error", failErr)
		}
		return err
	}

	if err := s.store.CompleteResearch(ctx, tenantID, companyID, report); err != nil {
		return fmt.Errorf("store report: %w", err)
	}
	logger.Info("research completed", "company_id", companyID, "report_bytes", len(report))
	return nil
}

func (s *Service) runSteps(ctx context.Context, company *crm.Company) (string, error) {
	steps := s.cfg.MaxSteps
	if steps <= 0 || steps > len(stepTitles) {
		steps = len(stepTitles)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Research Report: %s\n\n", company.Name)
	fmt.Fprintf(&b, "_Generated %s_\n\n", time.Now().Format("2006-01-02"))

	for i := 0; i < steps; i++ {
		prompt := s.stepPrompt(i, company, b.String())
		answer, err := s.complete(ctx, prompt)
		if err != nil {
			return "", fmt.Errorf("step %d (%s): %w", i+1, stepTitles[i], err)
		}
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", stepTitles[i], strings.TrimSpace(answer))
	}
	return b.String(), nil
}

func (s *Service) stepPrompt(step int, company *crm.Company, soFar string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a B2B sales researcher. Company: %s.", company.Name)
	if company.Website != "" {
		fmt.Fprintf(&b, " Website: %s.", company.Website)
	}
	if company.Industry != "" {
		fmt.Fprintf(&b, " Industry: %s.", company.Industry)
	}
	if company.Location != "" {
		fmt.Fprintf(&b, " Location: %s.", company.Location)
	}
	b.WriteString("\n\n")

	switch step {
	case 0:
		b.WriteString("Write a concise company overview: what they do, who they serve, approximate size, and business model. Use markdown, no top-level heading.")
	case 1:
		b.WriteString("Describe the company's market: key competitors, market position, and recent trends affecting them. Use markdown, no top-level heading.")
	default:
		b.WriteString("Based on the research so far, identify likely pain points and suggest three concrete angles for a cold outreach email. Use markdown, no top-level heading.")
		if soFar != "" {
			b.WriteString("\n\nResearch so far:\n\n")
			b.WriteString(soFar)
		}
	}
	return b.String()
}

// complete sends one prompt to the configured provider and returns the
// text of the reply.
func (s *Service) complete(ctx context.Context, prompt string) (string, error) {
	switch s.cfg.Provider {
	case "anthropic":
		return s.callAnthropic(ctx, prompt)
	default:
		return s.callOpenAI(ctx, prompt)
	}
}

func (s *Service) callOpenAI(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]interface{}{
		"model": s.cfg.Model,
		"messages": []map[string]string{
			{"role": "system", "content": "You are a precise B2B sales research assistant."},
			{"role": "user", "content": prompt},
		},
		"temperature": 0.4,
		"max_tokens":  2000,
	}

	body, _ := json.Marshal(reqBody)
	req, err := http.NewRequestWithContext(ctx, "POST", s.openaiURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("OpenAI request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != 200 {
		return "", fmt.Errorf("OpenAI error (status %d): %s", resp.StatusCode, truncate(string(respBody), 500))
	}

	var openAIResp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBody, &openAIResp); err != nil {
		return "", fmt.Errorf("failed to parse OpenAI response: %w", err)
	}
	if len(openAIResp.Choices) == 0 {
		return "", fmt.Errorf("no choices in OpenAI response")
	}
	return openAIResp.Choices[0].Message.Content, nil
}

func (s *Service) callAnthropic(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]interface{}{
		"model":      s.cfg.Model,
		"max_tokens": 2000,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}

	body, _ := json.Marshal(reqBody)
	req, err := http.NewRequestWithContext(ctx, "POST", s.anthropicURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("x-api-key", s.cfg.APIKey)
	req.Header.Set("anthropic-version", "2023-06-01")
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("anthropic request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != 200 {
		return "", fmt.Errorf("anthropic error (status %d): %s", resp.StatusCode, truncate(string(respBody), 500))
	}

	var anthropicResp struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(respBody, &anthropicResp); err != nil {
		return "", fmt.Errorf("failed to parse anthropic response: %w", err)
	}
	if len(anthropicResp.Content) == 0 {
		return "", fmt.Errorf("empty anthropic response")
	}
	return anthropicResp.Content[0].Text, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
