package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/pranavmodi/salesbot-sub002/internal/crm"
)

func main() {
	var (
		tenant = flag.String("tenant", "", "tenant UUID (required)")
		dryRun = flag.Bool("dry-run", false, "preview without creating companies or linking contacts")
	)
	flag.Parse()

	if *tenant == "" {
		log.Fatal("--tenant is required")
	}
	tenantID, err := uuid.Parse(*tenant)
	if err != nil {
		log.Fatalf("invalid tenant id %q: %v", *tenant, err)
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

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	e := crm.NewCompanyExtractor(db)

	if *dryRun {
		res, err := e.Preview(ctx, tenantID)
		if err != nil {
			log.Fatalf("preview: %v", err)
		}
		fmt.Printf("Distinct company names on contacts: %d\n", res.DistinctNames)
		fmt.Printf("Companies that would be created:    %d\n", res.CompaniesCreated)
		fmt.Printf("Contacts that would be linked:      %d\n", res.ContactsLinked)
		return
	}

	res, err := e.Run(ctx, tenantID)
	if err != nil {
		log.Fatalf("extract: %v", err)
	}
	fmt.Printf("Companies created: %d\n", res.CompaniesCreated)
	fmt.Printf("Contacts linked:   %d\n", res.ContactsLinked)
}
