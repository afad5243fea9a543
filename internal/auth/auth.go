package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/pranavmodi/salesbot-sub002/internal/config"
	"github.com/pranavmodi/salesbot-sub002/internal/crm"
)

// GoogleUserInfo represents the user info returned by Google
type GoogleUserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	Picture       string `json:"picture"`
	HD            string `json:"hd"` // Hosted domain (GSuite domain)
}

// Session represents an authenticated user session
type Session struct {
	User      *crm.User `json:"user"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Manager handles Google OAuth login and in-memory sessions. Users who
// pass the domain allow-list are upserted into the tenant's users table
// on every login.
type Manager struct {
	config       *config.AuthConfig
	oauth2Config *oauth2.Config
	store        *crm.Store
	sessions     map[string]*Session
	sessionMu    sync.RWMutex
	baseURL      string
}

// NewManager creates a new authentication manager.
func NewManager(cfg *config.AuthConfig, store *crm.Store, baseURL string) *Manager {
	oauth2Config := &oauth2.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  baseURL + "/auth/callback",
		Scopes: []string{
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		},
		Endpoint: google.Endpoint,
	}

	return &Manager{
		config:       cfg,
		oauth2Config: oauth2Config,
		store:        store,
		sessions:     make(map[string]*Session),
		baseURL:      baseURL,
	}
}

func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// HandleLogin initiates the Google OAuth flow
func (am *Manager) HandleLogin(w http.ResponseWriter, r *http.Request) {
	state, err := randomToken()
	if err != nil {
		http.Error(w, "Failed to generate state", http.StatusInternalServerError)
		return
	}

	// Store state in a cookie for verification
	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    state,
		Path:     "/",
		MaxAge:   300, // 5 minutes
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	// Add hd parameter to restrict to the allowed domain
	url := am.oauth2Config.AuthCodeURL(state, oauth2.AccessTypeOnline) + "&hd=" + am.config.AllowedDomain
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

// HandleCallback processes the OAuth callback from Google. The tenant
// the user lands in comes from the tenant resolver configured on the
// router; the default single-tenant setup uses the first tenant row.
func (am *Manager) HandleCallback(tenantID func(*http.Request) string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stateCookie, err := r.Cookie("oauth_state")
		if err != nil {
			log.Printf("Auth: No state cookie found: %v", err)
			http.Redirect(w, r, "/?error=invalid_state", http.StatusTemporaryRedirect)
			return
		}
		if r.URL.Query().Get("state") != stateCookie.Value {
			log.Printf("Auth: State mismatch")
			http.Redirect(w, r, "/?error=invalid_state", http.StatusTemporaryRedirect)
			return
		}

		// Clear state cookie
		http.SetCookie(w, &http.Cookie{
			Name:   "oauth_state",
			Value:  "",
			Path:   "/",
			MaxAge: -1,
		})

		if errMsg := r.URL.Query().Get("error"); errMsg != "" {
			log.Printf("Auth: Google returned error: %s", errMsg)
			http.Redirect(w, r, "/?error="+errMsg, http.StatusTemporaryRedirect)
			return
		}

		code := r.URL.Query().Get("code")
		token, err := am.oauth2Config.Exchange(r.Context(), code)
		if err != nil {
			log.Printf("Auth: Failed to exchange code: %v", err)
			http.Redirect(w, r, "/?error=exchange_failed", http.StatusTemporaryRedirect)
			return
		}

		userInfo, err := am.getUserInfo(token.AccessToken)
		if err != nil {
			log.Printf("Auth: Failed to get user info: %v", err)
			http.Redirect(w, r, "/?error=userinfo_failed", http.StatusTemporaryRedirect)
			return
		}

		if !am.domainAllowed(userInfo.Email) {
			log.Printf("Auth: Domain not allowed for %s (expected %s)", userInfo.Email, am.config.AllowedDomain)
			http.Redirect(w, r, "/?error=domain_not_allowed", http.StatusTemporaryRedirect)
			return
		}

		user, err := am.upsertUser(r.Context(), tenantID(r), userInfo)
		if err != nil {
			log.Printf("Auth: Failed to upsert user %s: %v", userInfo.Email, err)
			http.Redirect(w, r, "/?error=user_store_failed", http.StatusTemporaryRedirect)
			return
		}

		sessionID, err := randomToken()
		if err != nil {
			http.Redirect(w, r, "/?error=session_failed", http.StatusTemporaryRedirect)
			return
		}

		session := &Session{
			User:      user,
			CreatedAt: time.Now(),
			ExpiresAt: time.Now().Add(time.Duration(am.config.CookieMaxAge) * time.Second),
		}
		am.sessionMu.Lock()
		am.sessions[sessionID] = session
		am.sessionMu.Unlock()

		log.Printf("Auth: User logged in: %s", userInfo.Email)

		http.SetCookie(w, &http.Cookie{
			Name:     am.config.CookieName,
			Value:    sessionID,
			Path:     "/",
			MaxAge:   am.config.CookieMaxAge,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
	}
}

func (am *Manager) domainAllowed(email string) bool {
	if am.config.AllowedDomain == "" {
		return true
	}
	parts := strings.Split(email, "@")
	return len(parts) == 2 && parts[1] == am.config.AllowedDomain
}

func (am *Manager) upsertUser(ctx context.Context, tenantID string, info *GoogleUserInfo) (*crm.User, error) {
	tid, err := uuid.Parse(tenantID)
	if err != nil {
		return nil, fmt.Errorf("invalid tenant id %q: %w", tenantID, err)
	}

	user := &crm.User{
		TenantID:   tid,
		Email:      info.Email,
		Name:       info.Name,
		PictureURL: info.Picture,
		Role:       "member",
	}
	if err := am.store.UpsertUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// HandleLogout logs out the user
func (am *Manager) HandleLogout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(am.config.CookieName)
	if err == nil {
		am.sessionMu.Lock()
		delete(am.sessions, cookie.Value)
		am.sessionMu.Unlock()
	}

	http.SetCookie(w, &http.Cookie{
		Name:   am.config.CookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
	http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
}

// HandleUserInfo returns the current user's info as JSON
func (am *Manager) HandleUserInfo(w http.ResponseWriter, r *http.Request) {
	session := am.GetSession(r)
	w.Header().Set("Content-Type", "application/json")
	if session == nil {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"authenticated": false,
		})
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"authenticated": true,
		"user":          session.User,
	})
}

// GetSession returns the session for the current request, or nil if not authenticated
func (am *Manager) GetSession(r *http.Request) *Session {
	cookie, err := r.Cookie(am.config.CookieName)
	if err != nil {
		return nil
	}

	am.sessionMu.RLock()
	session, exists := am.sessions[cookie.Value]
	am.sessionMu.RUnlock()

	if !exists {
		return nil
	}
	if time.Now().After(session.ExpiresAt) {
		am.sessionMu.Lock()
		delete(am.sessions, cookie.Value)
		am.sessionMu.Unlock()
		return nil
	}
	return session
}

// IsAuthenticated checks if the request is from an authenticated user
func (am *Manager) IsAuthenticated(r *http.Request) bool {
	return am.GetSession(r) != nil
}

// RequireAuth is middleware that requires authentication. Auth
// endpoints, the health check, and tracking routes stay open: tracking
// URLs are hit from recipients' mail clients, never by logged-in users.
func (am *Manager) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/auth/") ||
			strings.HasPrefix(r.URL.Path, "/t/") ||
			r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		if !am.IsAuthenticated(r) {
			if strings.HasPrefix(r.URL.Path, "/api/") {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]string{
					"error": "unauthorized",
				})
				return
			}
			// For other requests, serve the login page (let frontend handle it)
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// getUserInfo fetches the user's profile from Google
func (am *Manager) getUserInfo(accessToken string) (*GoogleUserInfo, error) {
	resp, err := http.Get("https://www.googleapis.com/oauth2/v2/userinfo?access_token=" + accessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to get user info: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google API error: %s", string(body))
	}

	var userInfo GoogleUserInfo
	if err := json.Unmarshal(body, &userInfo); err != nil {
		return nil, fmt.Errorf("failed to parse user info: %w", err)
	}
	return &userInfo, nil
}

// ValidateCredentials performs a lightweight check against Google's token
// endpoint to verify the OAuth client ID and secret are valid. This catches
// stale/rotated credentials at boot instead of at first user login.
func (am *Manager) ValidateCredentials(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	// Use the token endpoint with an invalid grant to provoke a distinguishable
	// error: "invalid_client" for bad credentials vs "invalid_grant" for a bad code.
	vals := fmt.Sprintf("grant_type=authorization_code&code=validation_probe&client_id=%s&client_secret=%s&redirect_uri=%s",
		am.oauth2Config.ClientID, am.oauth2Config.ClientSecret, am.oauth2Config.RedirectURL)

	req, err := http.NewRequestWithContext(ctx, "POST", google.Endpoint.TokenURL, strings.NewReader(vals))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("token endpoint unreachable: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	bodyStr := string(body)

	// The dummy code is (obviously) wrong; these responses mean the client
	// itself was accepted.
	if strings.Contains(bodyStr, "invalid_grant") || strings.Contains(bodyStr, "invalid_request") || strings.Contains(bodyStr, "redirect_uri_mismatch") {
		return nil
	}
	if strings.Contains(bodyStr, "invalid_client") {
		return fmt.Errorf("google OAuth credentials rejected (check client_id/client_secret)")
	}
	return fmt.Errorf("unexpected response from Google token endpoint (HTTP %d): %s", resp.StatusCode, bodyStr)
}

// StartSessionCleanup removes expired sessions every five minutes until
// ctx is cancelled.
func (am *Manager) StartSessionCleanup(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Minute)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				am.sessionMu.Lock()
				now := time.Now()
				for id, session := range am.sessions {
					if now.After(session.ExpiresAt) {
						delete(am.sessions, id)
					}
				}
				am.sessionMu.Unlock()
			}
		}
	}()
}
