package main

import (
	"bufio"
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/pranavmodi/salesbot-sub002/internal/outreach"
)

func main() {
	var (
		tenant   = flag.String("tenant", "", "tenant UUID (required)")
		campaign = flag.Int64("campaign", 0, "limit to one campaign")
		before   = flag.String("before", "", "only rows sent before this time (YYYY-MM-DD or RFC3339)")
		yes      = flag.Bool("yes", false, "skip the confirmation prompt")
	)
	flag.Parse()

	if *tenant == "" {
		log.Fatal("--tenant is required")
	}
	tenantID, err := uuid.Parse(*tenant)
	if err != nil {
		log.Fatalf("invalid tenant id %q: %v", *tenant, err)
	}

	var cutoff time.Time
	if *before != "" {
		cutoff, err = time.Parse(time.RFC3339, *before)
		if err != nil {
			cutoff, err = time.Parse("2006-01-02", *before)
		}
		if err != nil {
			log.Fatalf("invalid --before %q: %v", *before, err)
		}
	}

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatalf("ping: %v", err)
	}

	if !*yes {
		scope := "ALL email history"
		if *campaign > 0 {
			scope = fmt.Sprintf("history for campaign %d", *campaign)
		}
		if !cutoff.IsZero() {
			scope += " sent before " + cutoff.Format("2006-01-02")
		}
		fmt.Printf("About to DELETE %s in tenant %s. Type 'yes' to continue: ", scope, *tenant)
		reader := bufio.NewReader(os.Stdin)
		answer, _ := reader.ReadString('\n')
		if strings.TrimSpace(answer) != "yes" {
			fmt.Println("Aborted.")
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	history := outreach.NewHistoryStore(db)
	n, err := history.Clear(ctx, tenantID, *campaign, cutoff)
	if err != nil {
		log.Fatalf("clear history: %v", err)
	}
	fmt.Printf("Deleted %d email history rows\n", n)
}
