package api

import (
	"net/http"
	"time"

	"github.com/pranavmodi/salesbot-sub002/internal/crm"
	"github.com/pranavmodi/salesbot-sub002/internal/pkg/httputil"
	"github.com/pranavmodi/salesbot-sub002/internal/worker"
)

func (s *Server) handleListCampaigns(w http.ResponseWriter, r *http.Request) {
	campaigns, err := s.store.ListCampaigns(r.Context(), tenantID(r))
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"campaigns": campaigns})
}

func (s *Server) handleCreateCampaign(w http.ResponseWriter, r *http.Request) {
	var c crm.Campaign
	if !httputil.Decode(w, r, &c) {
		return
	}
	if c.Name == "" {
		httputil.BadRequest(w, "name is required")
		return
	}
	c.TenantID = tenantID(r)
	if err := s.store.CreateCampaign(r.Context(), &c); err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.Created(w, &c)
}

func (s *Server) handleGetCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		httputil.BadRequest(w, "invalid campaign id")
		return
	}
	campaign, err := s.store.GetCampaign(r.Context(), tenantID(r), id)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if campaign == nil {
		httputil.NotFound(w, "campaign not found")
		return
	}
	httputil.OK(w, campaign)
}

func (s *Server) handleSetCampaignStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		httputil.BadRequest(w, "invalid campaign id")
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if !httputil.Decode(w, r, &req) {
		return
	}
	if err := s.store.SetCampaignStatus(r.Context(), tenantID(r), id, req.Status); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	httputil.OK(w, map[string]string{"status": req.Status})
}

// handleSendCampaign enqueues an async send job for the campaign's
// active contacts.
func (s *Server) handleSendCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		httputil.BadRequest(w, "invalid campaign id")
		return
	}
	tid := tenantID(r)

	campaign, err := s.store.GetCampaign(r.Context(), tid, id)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if campaign == nil {
		httputil.NotFound(w, "campaign not found")
		return
	}
	if campaign.TemplateID == nil {
		httputil.BadRequest(w, "campaign has no template assigned")
		return
	}
	if campaign.Status != crm.CampaignActive {
		httputil.Conflict(w, "campaign is not active")
		return
	}

	jobID, err := s.scheduler.Enqueue(r.Context(), tid, worker.JobSendCampaign,
		map[string]int64{"campaign_id": id}, time.Time{})
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.JSON(w, http.StatusAccepted, map[string]any{"job_id": jobID})
}

func (s *Server) handleListCampaignContacts(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		httputil.BadRequest(w, "invalid campaign id")
		return
	}
	contacts, err := s.store.ListCampaignContacts(r.Context(), tenantID(r), id)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"contacts": contacts})
}

func (s *Server) handleAddCampaignContacts(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		httputil.BadRequest(w, "invalid campaign id")
		return
	}
	var req struct {
		ContactIDs []int64 `json:"contact_ids"`
	}
	if !httputil.Decode(w, r, &req) {
		return
	}
	if len(req.ContactIDs) == 0 {
		httputil.BadRequest(w, "contact_ids is required")
		return
	}

	added, err := s.store.AddCampaignContacts(r.Context(), tenantID(r), id, req.ContactIDs)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]int{"added": added})
}
