package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pranavmodi/salesbot-sub002/internal/api"
	"github.com/pranavmodi/salesbot-sub002/internal/auth"
	"github.com/pranavmodi/salesbot-sub002/internal/config"
	"github.com/pranavmodi/salesbot-sub002/internal/crm"
	"github.com/pranavmodi/salesbot-sub002/internal/leadgen"
	"github.com/pranavmodi/salesbot-sub002/internal/logs"
	"github.com/pranavmodi/salesbot-sub002/internal/outreach"
	"github.com/pranavmodi/salesbot-sub002/internal/pkg/logger"
	"github.com/pranavmodi/salesbot-sub002/internal/research"
	"github.com/pranavmodi/salesbot-sub002/internal/worker"

	"github.com/google/uuid"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"
)

// checkPortAvailable verifies that the target port is not already in use.
// This prevents confusion from stale processes occupying the port.
func checkPortAvailable(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %d is already in use (addr %s): %v\n"+
			"  Hint: Run 'lsof -i :%d' to find the blocking process", port, addr, err, port)
	}
	ln.Close()
	return nil
}

func main() {
	log.Println("Starting salesbot server")

	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if os.Getenv("DATABASE_URL") != "" {
		log.Println("[config] DATABASE_URL env override active")
	}

	if err := logger.SetFileOutput(cfg.Logs.Dir, cfg.Logs.FilePrefix); err != nil {
		log.Printf("Warning: file logging disabled: %v", err)
	}

	host := cfg.Server.GetHost()
	port := cfg.Server.Port
	if err := checkPortAvailable(host, port); err != nil {
		log.Fatalf("Pre-flight check FAILED: %v", err)
	}

	if cfg.Database.URL == "" {
		log.Fatal("database.url is required (or set DATABASE_URL)")
	}
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime())

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := db.PingContext(pingCtx); err != nil {
		pingCancel()
		log.Fatalf("Database unreachable: %v", err)
	}
	pingCancel()
	logger.Info("Database connected", "dsn", logger.RedactDSN(cfg.Database.URL))

	// Redis is optional. Without it the scheduler falls back to
	// Postgres advisory locks and tracking dedup is skipped.
	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			log.Fatalf("Invalid redis URL: %v", err)
		}
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Warn("Redis unreachable, continuing without it", "error", err.Error())
			redisClient = nil
		} else {
			logger.Info("Redis connected")
		}
	}

	store := crm.NewStore(db)
	templates := outreach.NewTemplateStore(db)
	history := outreach.NewHistoryStore(db)
	sender := outreach.NewSender(cfg.Email, history)
	researchSvc := research.NewService(store, cfg.Research)
	leadStore := leadgen.NewStore(db)
	fetcher := leadgen.NewFetcher(leadStore)
	logManager := logs.NewManager(cfg.Logs.Dir, cfg.Logs.FilePrefix)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var authManager *auth.Manager
	if cfg.Auth.Enabled && cfg.Auth.GoogleClientID != "" {
		baseURL := fmt.Sprintf("http://%s:%d", host, port)
		if envURL := os.Getenv("AUTH_BASE_URL"); envURL != "" {
			baseURL = envURL
		}
		authManager = auth.NewManager(&cfg.Auth, store, baseURL)

		// Validate OAuth credentials against Google before accepting
		// traffic so misconfiguration doesn't surface at login time.
		if err := authManager.ValidateCredentials(context.Background()); err != nil {
			log.Fatalf("OAuth pre-flight FAILED: %v", err)
		}
		authManager.StartSessionCleanup(ctx)
		log.Printf("Google OAuth enabled for domain %q (callback: %s/auth/callback)", cfg.Auth.AllowedDomain, baseURL)
	} else {
		log.Println("Authentication disabled")
	}

	scheduler := worker.NewScheduler(db)
	if redisClient != nil {
		scheduler.SetRedisClient(redisClient)
	}
	scheduler.Handle(worker.JobResearchCompany, func(ctx context.Context, job *worker.Job) error {
		var p struct {
			CompanyID int64 `json:"company_id"`
		}
		if err := json.Unmarshal(job.Payload, &p); err != nil {
			return fmt.Errorf("bad payload: %w", err)
		}
		return researchSvc.GenerateReport(ctx, job.TenantID, p.CompanyID)
	})
	scheduler.Handle(worker.JobLeadgenFetch, func(ctx context.Context, job *worker.Job) error {
		var p struct {
			Board string `json:"board"`
		}
		if err := json.Unmarshal(job.Payload, &p); err != nil {
			return fmt.Errorf("bad payload: %w", err)
		}
		_, err := fetcher.FetchBoard(ctx, job.TenantID, p.Board)
		return err
	})
	scheduler.Handle(worker.JobSendCampaign, func(ctx context.Context, job *worker.Job) error {
		var p struct {
			CampaignID int64 `json:"campaign_id"`
		}
		if err := json.Unmarshal(job.Payload, &p); err != nil {
			return fmt.Errorf("bad payload: %w", err)
		}
		return sendCampaign(ctx, store, templates, sender, job.TenantID, p.CampaignID)
	})

	go scheduler.Start(ctx)
	go worker.NewCleanupWorker(db, cfg.Cleanup).Start(ctx)

	if cfg.Leadgen.Enabled && len(cfg.Leadgen.Boards) > 0 {
		go leadgenLoop(ctx, store, fetcher, cfg.Leadgen)
	}

	server := api.NewServer(cfg, api.Deps{
		DB:          db,
		Redis:       redisClient,
		Store:       store,
		Templates:   templates,
		History:     history,
		Leads:       leadStore,
		LogManager:  logManager,
		Scheduler:   scheduler,
		AuthManager: authManager,
	})

	addr := fmt.Sprintf("%s:%d", host, port)
	errCh := make(chan error, 1)
	go func() {
		log.Printf("API server listening on %s", addr)
		errCh <- server.ListenAndServe(addr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("Received signal %v, shutting down", sig)
	case err := <-errCh:
		log.Printf("Server error: %v", err)
	}

	cancel()
	shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutCancel()
	if err := server.Shutdown(shutCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
	if err := db.Close(); err != nil {
		log.Printf("Database close error: %v", err)
	}
	log.Println("Server stopped")
}

// sendCampaign renders the campaign template for every active enrollment
// and delivers through the sender. Individual contact failures are
// recorded on the history row and do not stop the run; the job fails
// only when nothing could be sent at all.
func sendCampaign(ctx context.Context, store *crm.Store, templates *outreach.TemplateStore, sender *outreach.Sender, tenantID uuid.UUID, campaignID int64) error {
	campaign, err := store.GetCampaign(ctx, tenantID, campaignID)
	if err != nil {
		return err
	}
	if campaign == nil {
		return fmt.Errorf("campaign %d not found", campaignID)
	}
	if campaign.TemplateID == nil {
		return fmt.Errorf("campaign %d has no template", campaignID)
	}
	tmpl, err := templates.GetTemplate(ctx, tenantID, *campaign.TemplateID)
	if err != nil {
		return err
	}
	if tmpl == nil {
		return fmt.Errorf("template %d not found", *campaign.TemplateID)
	}

	enrollments, err := store.ListCampaignContacts(ctx, tenantID, campaignID)
	if err != nil {
		return err
	}

	sent, failed := 0, 0
	for _, enr := range enrollments {
		if enr.Status != crm.ContactActive {
			continue
		}
		contact, err := store.GetContact(ctx, tenantID, enr.ContactID)
		if err != nil || contact == nil {
			logger.Warn("Campaign contact missing, skipping", "campaign_id", campaignID, "contact_id", enr.ContactID)
			failed++
			continue
		}
		var company *crm.Company
		if contact.CompanyID != nil {
			company, _ = store.GetCompany(ctx, tenantID, *contact.CompanyID)
		}
		subject, body, err := templates.Render(tmpl, outreach.Bindings(contact, company))
		if err != nil {
			logger.Error("Template render failed", "campaign_id", campaignID, "contact_id", contact.ID, "error", err.Error())
			failed++
			continue
		}
		_, err = sender.Send(ctx, outreach.SendRequest{
			Contact:    contact,
			CampaignID: campaignID,
			Subject:    subject,
			HTMLBody:   body,
		})
		if err != nil {
			logger.Error("Send failed", "campaign_id", campaignID, "contact_id", contact.ID, "error", err.Error())
			failed++
			continue
		}
		sent++
		if err := store.SetCampaignContactStatus(ctx, tenantID, campaignID, contact.ID, crm.ContactCompleted); err != nil {
			logger.Warn("Enrollment status update failed", "campaign_id", campaignID, "contact_id", contact.ID, "error", err.Error())
		}
	}
	logger.Info("Campaign send finished", "campaign_id", campaignID, "sent", sent, "failed", failed)
	if sent == 0 && failed > 0 {
		return fmt.Errorf("campaign %d: all %d sends failed", campaignID, failed)
	}
	return nil
}

// leadgenLoop fetches every configured board for every tenant on a
// fixed interval. The first pass runs at startup.
func leadgenLoop(ctx context.Context, store *crm.Store, fetcher *leadgen.Fetcher, cfg config.LeadgenConfig) {
	log.Printf("[Leadgen] Starting board fetch loop (interval: %s, boards: %d)", cfg.FetchInterval(), len(cfg.Boards))
	fetchAll := func() {
		tenants, err := store.ListTenants(ctx)
		if err != nil {
			logger.Error("Leadgen tenant list failed", "error", err.Error())
			return
		}
		for _, tenant := range tenants {
			for _, board := range cfg.Boards {
				run, err := fetcher.FetchBoard(ctx, tenant.ID, board)
				if err != nil {
					logger.Error("Board fetch failed", "tenant", tenant.Slug, "board", board, "error", err.Error())
					continue
				}
				logger.Info("Board fetched", "tenant", tenant.Slug, "board", board,
					"companies", run.CompaniesFound, "postings", run.PostingsAdded)
			}
		}
	}

	fetchAll()
	ticker := time.NewTicker(cfg.FetchInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Println("[Leadgen] Stopping board fetch loop")
			return
		case <-ticker.C:
			fetchAll()
		}
	}
}
