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

	"github.com/pranavmodi/salesbot-sub002/internal/cleaner"
)

func main() {
	var (
		tenant = flag.String("tenant", "", "tenant UUID to clean (omit with --all to wipe every tenant)")
		table  = flag.String("table", "", "limit to a single table")
		all    = flag.Bool("all", false, "clean data for all tenants")
		dryRun = flag.Bool("dry-run", false, "count affected rows without deleting")
		yes    = flag.Bool("yes", false, "skip the confirmation prompt")
	)
	flag.Parse()

	if *tenant == "" && !*all {
		log.Fatal("refusing to run without a scope: pass --tenant <uuid> or --all")
	}
	if *tenant != "" && *all {
		log.Fatal("--tenant and --all are mutually exclusive")
	}

	opts := cleaner.Options{Table: *table, DryRun: *dryRun}
	if *tenant != "" {
		id, err := uuid.Parse(*tenant)
		if err != nil {
			log.Fatalf("invalid tenant id %q: %v", *tenant, err)
		}
		opts.TenantID = id
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

	c := cleaner.New(db)

	if !*dryRun && !*yes {
		scope := "ALL TENANTS"
		if *tenant != "" {
			scope = "tenant " + *tenant
		}
		target := "every table"
		if *table != "" {
			target = "table " + *table
		}
		fmt.Printf("About to DELETE data for %s (%s). Type 'yes' to continue: ", scope, target)
		reader := bufio.NewReader(os.Stdin)
		answer, _ := reader.ReadString('\n')
		if strings.TrimSpace(answer) != "yes" {
			fmt.Println("Aborted.")
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	res, err := c.Run(ctx, opts)
	if err != nil {
		log.Fatalf("clean: %v", err)
	}

	verb := "deleted"
	if res.DryRun {
		verb = "would delete"
	}
	for _, t := range res.Ordered {
		fmt.Printf("  %-20s %s %d rows\n", t, verb, res.Rows[t])
	}
	fmt.Printf("Total: %s %d rows\n", verb, res.Total)
}
