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

	"github.com/pranavmodi/salesbot-sub002/internal/crm"
)

func main() {
	var (
		tenant     = flag.String("tenant", "", "tenant UUID (required)")
		company    = flag.Int64("company", 0, "reset a single company by id")
		failedOnly = flag.Bool("failed-only", false, "reset only companies whose research failed")
		all        = flag.Bool("all", false, "reset every company in the tenant")
		yes        = flag.Bool("yes", false, "skip the confirmation prompt")
	)
	flag.Parse()

	if *tenant == "" {
		log.Fatal("--tenant is required")
	}
	tenantID, err := uuid.Parse(*tenant)
	if err != nil {
		log.Fatalf("invalid tenant id %q: %v", *tenant, err)
	}

	scopes := 0
	if *company > 0 {
		scopes++
	}
	if *failedOnly {
		scopes++
	}
	if *all {
		scopes++
	}
	if scopes != 1 {
		log.Fatal("pass exactly one of --company <id>, --failed-only, or --all")
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
		scope := "ALL companies"
		switch {
		case *company > 0:
			scope = fmt.Sprintf("company %d", *company)
		case *failedOnly:
			scope = "failed research only"
		}
		fmt.Printf("About to reset research for %s in tenant %s. Type 'yes' to continue: ", scope, *tenant)
		reader := bufio.NewReader(os.Stdin)
		answer, _ := reader.ReadString('\n')
		if strings.TrimSpace(answer) != "yes" {
			fmt.Println("Aborted.")
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	store := crm.NewStore(db)
	n, err := store.ClearResearch(ctx, tenantID, *company, *failedOnly)
	if err != nil {
		log.Fatalf("clear research: %v", err)
	}
	fmt.Printf("Reset research on %d companies\n", n)
}
