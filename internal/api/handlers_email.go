package api

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pranavmodi/salesbot-sub002/internal/cleaner"
	"github.com/pranavmodi/salesbot-sub002/internal/outreach"
	"github.com/pranavmodi/salesbot-sub002/internal/pkg/httputil"
	"github.com/pranavmodi/salesbot-sub002/internal/pkg/logger"
)

// ---- Email history ----

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := outreach.HistoryFilter{Status: q.Get("status")}
	f.CampaignID, _ = strconv.ParseInt(q.Get("campaign_id"), 10, 64)
	f.ContactID, _ = strconv.ParseInt(q.Get("contact_id"), 10, 64)
	f.Limit, _ = strconv.Atoi(q.Get("limit"))
	f.Offset, _ = strconv.Atoi(q.Get("offset"))
	if since := q.Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			httputil.BadRequest(w, "invalid since timestamp")
			return
		}
		f.Since = t
	}
	if until := q.Get("until"); until != "" {
		t, err := time.Parse(time.RFC3339, until)
		if err != nil {
			httputil.BadRequest(w, "invalid until timestamp")
			return
		}
		f.Until = t
	}

	records, err := s.history.List(r.Context(), tenantID(r), f)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"history": records})
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	campaignID, _ := strconv.ParseInt(q.Get("campaign_id"), 10, 64)
	var before time.Time
	if raw := q.Get("before"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httputil.BadRequest(w, "invalid before timestamp")
			return
		}
		before = t
	}

	n, err := s.history.Clear(r.Context(), tenantID(r), campaignID, before)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]int64{"deleted": n})
}

// ---- Templates ----

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := s.templates.ListTemplates(r.Context(), tenantID(r))
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"templates": templates})
}

func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var t outreach.Template
	if !httputil.Decode(w, r, &t) {
		return
	}
	if t.Name == "" {
		httputil.BadRequest(w, "name is required")
		return
	}
	t.TenantID = tenantID(r)
	if err := s.templates.Validate(&t); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if err := s.templates.CreateTemplate(r.Context(), &t); err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.Created(w, &t)
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		httputil.BadRequest(w, "invalid template id")
		return
	}
	t, err := s.templates.GetTemplate(r.Context(), tenantID(r), id)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if t == nil {
		httputil.NotFound(w, "template not found")
		return
	}
	httputil.OK(w, t)
}

func (s *Server) handleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		httputil.BadRequest(w, "invalid template id")
		return
	}
	var t outreach.Template
	if !httputil.Decode(w, r, &t) {
		return
	}
	t.ID = id
	t.TenantID = tenantID(r)
	if t.Status != "" && !outreach.ValidTemplateStatus(t.Status) {
		httputil.BadRequest(w, "invalid template status")
		return
	}
	if err := s.templates.Validate(&t); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if err := s.templates.UpdateTemplate(r.Context(), &t); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			httputil.NotFound(w, "template not found")
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, &t)
}

// handlePreviewTemplate renders a stored template against caller-provided
// bindings (or a contact id) without sending anything.
func (s *Server) handlePreviewTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		httputil.BadRequest(w, "invalid template id")
		return
	}
	var req struct {
		ContactID int64          `json:"contact_id"`
		Bindings  map[string]any `json:"bindings"`
	}
	if !httputil.Decode(w, r, &req) {
		return
	}
	tid := tenantID(r)

	t, err := s.templates.GetTemplate(r.Context(), tid, id)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if t == nil {
		httputil.NotFound(w, "template not found")
		return
	}

	bindings := req.Bindings
	if req.ContactID > 0 {
		contact, err := s.store.GetContact(r.Context(), tid, req.ContactID)
		if err != nil {
			httputil.InternalError(w, err)
			return
		}
		if contact == nil {
			httputil.NotFound(w, "contact not found")
			return
		}
		bindings = outreach.Bindings(contact, nil)
		if contact.CompanyID != nil {
			company, err := s.store.GetCompany(r.Context(), tid, *contact.CompanyID)
			if err == nil && company != nil {
				bindings = outreach.Bindings(contact, company)
			}
		}
	}

	subject, body, err := s.templates.Render(t, bindings)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	httputil.OK(w, map[string]string{"subject": subject, "body": body})
}

// ---- Config diagnostics ----

// handleEmailAccounts lists the configured sending identities.
func (s *Server) handleEmailAccounts(w http.ResponseWriter, r *http.Request) {
	cfg := s.cfg.Email
	accounts := []map[string]any{}
	if cfg.FromAddress != "" {
		accounts = append(accounts, map[string]any{
			"provider":     "ses",
			"region":       cfg.Region,
			"from_name":    cfg.FromName,
			"from_address": cfg.FromAddress,
			"enabled":      cfg.Enabled,
		})
	}
	httputil.OK(w, map[string]any{"accounts": accounts})
}

// handleEmailConfigDebug returns the effective config with secrets
// redacted. Used by the deployment smoke-test script.
func (s *Server) handleEmailConfigDebug(w http.ResponseWriter, r *http.Request) {
	cfg := s.cfg
	httputil.OK(w, map[string]any{
		"database_url":      logger.RedactDSN(cfg.Database.URL),
		"redis_url":         logger.RedactDSN(cfg.Redis.URL),
		"ses_region":        cfg.Email.Region,
		"ses_access_key":    logger.RedactKey(cfg.Email.AccessKey),
		"from_address":      cfg.Email.FromAddress,
		"tracking_base_url": cfg.Email.TrackingBaseURL,
		"tracking_secret":   logger.RedactKey(cfg.Email.TrackingSecret),
		"research_provider": cfg.Research.Provider,
		"research_api_key":  logger.RedactKey(cfg.Research.APIKey),
		"research_model":    cfg.Research.Model,
		"auth_enabled":      cfg.Auth.Enabled,
		"allowed_domain":    cfg.Auth.AllowedDomain,
		"email_enabled":     cfg.Email.Enabled,
	})
}

// ---- Log files (admin) ----

func (s *Server) handleListLogFiles(w http.ResponseWriter, r *http.Request) {
	files, err := s.logManager.List()
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"files": files})
}

func (s *Server) handleReadLogFile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	n, _ := strconv.Atoi(r.URL.Query().Get("tail"))
	lines, err := s.logManager.Tail(name, n)
	if err != nil {
		httputil.NotFound(w, "log file not found")
		return
	}
	httputil.OK(w, map[string]any{"file": name, "lines": lines})
}

// handleCleanupPreview reports how many rows a full wipe would remove,
// without deleting anything.
func (s *Server) handleCleanupPreview(w http.ResponseWriter, r *http.Request) {
	result, err := s.cleaner.Run(r.Context(), cleaner.Options{
		TenantID: tenantID(r),
		DryRun:   true,
	})
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"tables": result.Rows, "total": result.Total})
}
