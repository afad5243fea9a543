package api

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pranavmodi/salesbot-sub002/internal/crm"
	"github.com/pranavmodi/salesbot-sub002/internal/pkg/httputil"
	"github.com/pranavmodi/salesbot-sub002/internal/worker"
)

func idParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func pageParams(r *http.Request) (limit, offset int) {
	q := r.URL.Query()
	limit, _ = strconv.Atoi(q.Get("limit"))
	offset, _ = strconv.Atoi(q.Get("offset"))
	return limit, offset
}

// ---- Companies ----

func (s *Server) handleListCompanies(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)
	companies, total, err := s.store.ListCompanies(r.Context(), tenantID(r), limit, offset)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"companies": companies, "total": total})
}

func (s *Server) handleCreateCompany(w http.ResponseWriter, r *http.Request) {
	var c crm.Company
	if !httputil.Decode(w, r, &c) {
		return
	}
	if c.Name == "" {
		httputil.BadRequest(w, "name is required")
		return
	}
	c.TenantID = tenantID(r)

	existing, err := s.store.GetCompanyByName(r.Context(), c.TenantID, c.Name)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if existing != nil {
		httputil.Conflict(w, "company with this name already exists")
		return
	}

	if err := s.store.CreateCompany(r.Context(), &c); err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.Created(w, &c)
}

func (s *Server) handleGetCompany(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		httputil.BadRequest(w, "invalid company id")
		return
	}
	company, err := s.store.GetCompany(r.Context(), tenantID(r), id)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if company == nil {
		httputil.NotFound(w, "company not found")
		return
	}
	httputil.OK(w, company)
}

func (s *Server) handleUpdateCompany(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		httputil.BadRequest(w, "invalid company id")
		return
	}
	var c crm.Company
	if !httputil.Decode(w, r, &c) {
		return
	}
	c.ID = id
	c.TenantID = tenantID(r)
	if err := s.store.UpdateCompany(r.Context(), &c); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			httputil.NotFound(w, "company not found")
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, &c)
}

func (s *Server) handleDeleteCompany(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		httputil.BadRequest(w, "invalid company id")
		return
	}
	if err := s.store.DeleteCompany(r.Context(), tenantID(r), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			httputil.NotFound(w, "company not found")
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.NoContent(w)
}

// handleTriggerResearch enqueues an async research job for the company.
func (s *Server) handleTriggerResearch(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		httputil.BadRequest(w, "invalid company id")
		return
	}
	tid := tenantID(r)

	company, err := s.store.GetCompany(r.Context(), tid, id)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if company == nil {
		httputil.NotFound(w, "company not found")
		return
	}
	if company.ResearchStatus == crm.ResearchInProgress {
		httputil.Conflict(w, "research already in progress")
		return
	}

	jobID, err := s.scheduler.Enqueue(r.Context(), tid, worker.JobResearchCompany,
		map[string]int64{"company_id": id}, time.Time{})
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.JSON(w, http.StatusAccepted, map[string]any{"job_id": jobID})
}

func (s *Server) handleClearCompanyResearch(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		httputil.BadRequest(w, "invalid company id")
		return
	}
	n, err := s.store.ClearResearch(r.Context(), tenantID(r), id, false)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if n == 0 {
		httputil.NotFound(w, "company not found")
		return
	}
	httputil.OK(w, map[string]int64{"cleared": n})
}

// ---- Contacts ----

func (s *Server) handleListContacts(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)
	companyID, _ := strconv.ParseInt(r.URL.Query().Get("company_id"), 10, 64)

	contacts, total, err := s.store.ListContacts(r.Context(), tenantID(r), companyID, limit, offset)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"contacts": contacts, "total": total})
}

func (s *Server) handleCreateContact(w http.ResponseWriter, r *http.Request) {
	var c crm.Contact
	if !httputil.Decode(w, r, &c) {
		return
	}
	if c.Email == "" {
		httputil.BadRequest(w, "email is required")
		return
	}
	c.TenantID = tenantID(r)

	existing, err := s.store.GetContactByEmail(r.Context(), c.TenantID, c.Email)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if existing != nil {
		httputil.Conflict(w, "contact with this email already exists")
		return
	}

	if err := s.store.CreateContact(r.Context(), &c); err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.Created(w, &c)
}

func (s *Server) handleGetContact(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		httputil.BadRequest(w, "invalid contact id")
		return
	}
	contact, err := s.store.GetContact(r.Context(), tenantID(r), id)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if contact == nil {
		httputil.NotFound(w, "contact not found")
		return
	}
	httputil.OK(w, contact)
}

func (s *Server) handleUpdateContact(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		httputil.BadRequest(w, "invalid contact id")
		return
	}
	var c crm.Contact
	if !httputil.Decode(w, r, &c) {
		return
	}
	c.ID = id
	c.TenantID = tenantID(r)
	if err := s.store.UpdateContact(r.Context(), &c); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			httputil.NotFound(w, "contact not found")
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, &c)
}

func (s *Server) handleDeleteContact(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		httputil.BadRequest(w, "invalid contact id")
		return
	}
	if err := s.store.DeleteContact(r.Context(), tenantID(r), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			httputil.NotFound(w, "contact not found")
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.NoContent(w)
}
