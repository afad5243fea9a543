package tracking

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pranavmodi/salesbot-sub002/internal/pkg/logger"
)

// 1x1 transparent GIF
var pixelGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00,
	0x80, 0x00, 0x00, 0xff, 0xff, 0xff, 0x00, 0x00, 0x00, 0x2c,
	0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, 0x02,
	0x02, 0x44, 0x01, 0x00, 0x3b,
}

// Handler serves the public tracking endpoints. Every response succeeds
// from the recipient's point of view; recording failures are only logged.
type Handler struct {
	rec         *Recorder
	secret      string
	fallbackURL string
}

// NewHandler creates a tracking handler. fallbackURL is where click
// redirects land when the token or target URL is unusable.
func NewHandler(rec *Recorder, secret, fallbackURL string) *Handler {
	if fallbackURL == "" {
		fallbackURL = "/"
	}
	return &Handler{rec: rec, secret: secret, fallbackURL: fallbackURL}
}

// Routes mounts the tracking endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/open/{data}/{sig}", h.HandleOpen)
	r.Get("/click/{data}/{sig}", h.HandleClick)
	r.Get("/report/{data}/{sig}", h.HandleReport)
	return r
}

// HandleOpen records an email open and serves the pixel.
func (h *Handler) HandleOpen(w http.ResponseWriter, r *http.Request) {
	t, err := DecodeToken(chi.URLParam(r, "data"), chi.URLParam(r, "sig"), h.secret)
	if err != nil {
		h.servePixel(w)
		return
	}

	if err := h.rec.RecordOpen(r.Context(), t, realIP(r), r.UserAgent()); err != nil {
		logger.Error("record open failed", "error", err, "campaign_id", t.CampaignID)
	}
	h.servePixel(w)
}

// HandleClick records a link click and redirects to the original URL.
// The u parameter is honored only with a valid signature; it sits
// outside the signed data, so a bad token must not steer the redirect.
func (h *Handler) HandleClick(w http.ResponseWriter, r *http.Request) {
	t, err := DecodeToken(chi.URLParam(r, "data"), chi.URLParam(r, "sig"), h.secret)
	if err != nil {
		http.Redirect(w, r, h.fallbackURL, http.StatusFound)
		return
	}

	target := r.URL.Query().Get("u")
	if !isSafeRedirect(target) {
		target = h.fallbackURL
	}

	if err := h.rec.RecordClick(r.Context(), t, target, realIP(r), r.UserAgent()); err != nil {
		logger.Error("record click failed", "error", err, "campaign_id", t.CampaignID)
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// HandleReport records a research report view and redirects to it.
func (h *Handler) HandleReport(w http.ResponseWriter, r *http.Request) {
	t, err := DecodeToken(chi.URLParam(r, "data"), chi.URLParam(r, "sig"), h.secret)
	if err != nil {
		http.Redirect(w, r, h.fallbackURL, http.StatusFound)
		return
	}

	target := r.URL.Query().Get("u")
	if !isSafeRedirect(target) {
		target = h.fallbackURL
	}

	if err := h.rec.RecordReportClick(r.Context(), t, realIP(r), r.UserAgent()); err != nil {
		logger.Error("record report click failed", "error", err, "company_id", t.CampaignID)
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func (h *Handler) servePixel(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	w.Write(pixelGIF)
}

// isSafeRedirect allows relative paths and absolute http(s) URLs only.
func isSafeRedirect(target string) bool {
	if target == "" {
		return false
	}
	if strings.HasPrefix(target, "/") && !strings.HasPrefix(target, "//") {
		return true
	}
	return strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://")
}

// realIP prefers the proxy-provided client address.
func realIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.Index(xff, ","); i >= 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	if rip := r.Header.Get("X-Real-IP"); rip != "" {
		return rip
	}
	host := r.RemoteAddr
	if i := strings.LastIndex(host, ":"); i >= 0 {
		host = host[:i]
	}
	return host
}
