package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/pranavmodi/salesbot-sub002/internal/pkg/httputil"
	"github.com/pranavmodi/salesbot-sub002/internal/worker"
)

func (s *Server) handleLeadgenCompanies(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	companies, err := s.leads.ListCompanies(r.Context(), tenantID(r), limit)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"companies": companies})
}

func (s *Server) handleLeadgenPostings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	companyID, _ := strconv.ParseInt(q.Get("company_id"), 10, 64)

	postings, err := s.leads.ListPostings(r.Context(), tenantID(r), companyID, limit)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"postings": postings})
}

func (s *Server) handleLeadgenLogs(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := s.leads.ListRuns(r.Context(), tenantID(r), limit)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"runs": runs})
}

// handleLeadgenFetch enqueues an immediate board fetch.
func (s *Server) handleLeadgenFetch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Board string `json:"board"`
	}
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.Board == "" {
		httputil.BadRequest(w, "board is required")
		return
	}

	jobID, err := s.scheduler.Enqueue(r.Context(), tenantID(r), worker.JobLeadgenFetch,
		map[string]string{"board": req.Board}, time.Time{})
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.JSON(w, http.StatusAccepted, map[string]any{"job_id": jobID})
}
