package cleaner

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/pranavmodi/salesbot-sub002/internal/pkg/logger"
)

// cleanOrder lists the tables the cleaner touches, children before
// parents so every delete respects foreign keys. The order is
// hand-maintained; add new tables in dependency position.
var cleanOrder = []string{
	"report_clicks",
	"link_tracking",
	"email_tracking",
	"email_history",
	"campaign_contacts",
	"campaigns",
	"job_postings",
	"scraping_logs",
	"leadgen_companies",
	"contacts",
	"companies",
}

// campaign_contacts has no tenant_id column; tenant filters reach it
// through the owning campaign.
const campaignContactsByTenant = `campaign_id IN (SELECT id FROM campaigns WHERE tenant_id = $1)`

// Options narrows a cleaning run.
type Options struct {
	// TenantID limits deletes to one tenant. Zero value means all rows.
	TenantID uuid.UUID
	// Table limits the run to a single table from the known list.
	Table string
	// DryRun counts affected rows without deleting anything.
	DryRun bool
}

// Result reports what happened (or would happen) per table.
type Result struct {
	Rows    map[string]int64
	DryRun  bool
	Total   int64
	Ordered []string
}

// Cleaner wipes application data in foreign-key dependency order.
type Cleaner struct {
	db *sql.DB
}

// New creates a cleaner over the given database.
func New(db *sql.DB) *Cleaner {
	return &Cleaner{db: db}
}

// Tables returns the tables the cleaner knows, in delete order.
func Tables() []string {
	out := make([]string, len(cleanOrder))
	copy(out, cleanOrder)
	return out
}

func knownTable(name string) bool {
	for _, t := range cleanOrder {
		if t == name {
			return true
		}
	}
	return false
}

// Run deletes (or, in dry-run mode, counts) rows per Options. All
// deletes happen inside one transaction; the first error rolls
// everything back. After a full non-filtered wipe the serial sequences
// are reset so new rows start from id 1 again.
func (c *Cleaner) Run(ctx context.Context, opts Options) (*Result, error) {
	tables := cleanOrder
	if opts.Table != "" {
		if !knownTable(opts.Table) {
			return nil, fmt.Errorf("cleaner: unknown table %q", opts.Table)
		}
		tables = []string{opts.Table}
	}

	result := &Result{Rows: map[string]int64{}, DryRun: opts.DryRun, Ordered: tables}

	if opts.DryRun {
		for _, table := range tables {
			n, err := c.countRows(ctx, table, opts.TenantID)
			if err != nil {
				return nil, err
			}
			result.Rows[table] = n
			result.Total += n
		}
		return result, nil
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin clean transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range tables {
		query, args := deleteQuery(table, opts.TenantID)
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("clean %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		result.Rows[table] = n
		result.Total += n
		logger.Info("table cleaned", "table", table, "rows", n)
	}

	// Sequences only make sense to reset when the tables are empty.
	if opts.TenantID == uuid.Nil {
		for _, table := range tables {
			query := fmt.Sprintf("SELECT setval(pg_get_serial_sequence('%s', 'id'), 1, false)", table)
			if _, err := tx.ExecContext(ctx, query); err != nil {
				return nil, fmt.Errorf("reset sequence for %s: %w", table, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit clean transaction: %w", err)
	}
	return result, nil
}

func deleteQuery(table string, tenantID uuid.UUID) (string, []any) {
	if tenantID == uuid.Nil {
		return fmt.Sprintf("DELETE FROM %s", table), nil
	}
	if table == "campaign_contacts" {
		return "DELETE FROM campaign_contacts WHERE " + campaignContactsByTenant, []any{tenantID}
	}
	return fmt.Sprintf("DELETE FROM %s WHERE tenant_id = $1", table), []any{tenantID}
}

func (c *Cleaner) countRows(ctx context.Context, table string, tenantID uuid.UUID) (int64, error) {
	var query string
	var args []any
	if tenantID == uuid.Nil {
		query = fmt.Sprintf("SELECT COUNT(*) FROM %s", table)
	} else if table == "campaign_contacts" {
		query = "SELECT COUNT(*) FROM campaign_contacts WHERE " + campaignContactsByTenant
		args = []any{tenantID}
	} else {
		query = fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE tenant_id = $1", table)
		args = []any{tenantID}
	}

	var n int64
	if err := c.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}
