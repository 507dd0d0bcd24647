// Command delivery_report exports CSV summaries of the delivery_log
// table for a date range: counts by kind and status, counts per
// recipient, and the raw failed rows for triage.
package main

import (
	"context"
	"database/sql"
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const timeLayout = time.RFC3339

type config struct {
	dbURL  string
	from   string
	to     string
	kind   string
	outDir string
}

type summaryRow struct {
	Kind    string
	Channel string
	Status  string
	Count   int64
}

type recipientRow struct {
	RecipientID string
	Kind        string
	Status      string
	Count       int64
}

type failureRow struct {
	ID             string
	NotificationID string
	Kind           string
	RecipientID    string
	ChildID        string
	Channel        string
	Error          string
	DedupKey       string
	CreatedAt      time.Time
}

func main() {
	cfg, err := parseFlags()
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	from, to, err := parseRange(cfg.from, cfg.to)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	if err := os.MkdirAll(cfg.outDir, 0o755); err != nil {
		fmt.Fprintln(os.Stderr, "create out dir:", err)
		os.Exit(2)
	}

	db, err := sql.Open("pgx", cfg.dbURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "db open:", err)
		os.Exit(2)
	}
	defer db.Close()

	ctx := context.Background()

	summary, err := loadSummary(ctx, db, from, to, cfg.kind)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load summary:", err)
		os.Exit(2)
	}
	recipients, err := loadRecipients(ctx, db, from, to, cfg.kind)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load recipients:", err)
		os.Exit(2)
	}
	failures, err := loadFailures(ctx, db, from, to, cfg.kind)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load failures:", err)
		os.Exit(2)
	}

	if err := writeSummary(cfg.outDir, summary); err != nil {
		fmt.Fprintln(os.Stderr, "write summary:", err)
		os.Exit(2)
	}
	if err := writeRecipients(cfg.outDir, recipients); err != nil {
		fmt.Fprintln(os.Stderr, "write recipients:", err)
		os.Exit(2)
	}
	if err := writeFailures(cfg.outDir, failures); err != nil {
		fmt.Fprintln(os.Stderr, "write failures:", err)
		os.Exit(2)
	}

	var sent, failed int64
	for _, row := range summary {
		switch row.Status {
		case "sent":
			sent += row.Count
		case "failed":
			failed += row.Count
		}
	}
	fmt.Printf("Delivery report for %s .. %s written to %s (sent=%d failed=%d)\n",
		from.Format("2006-01-02"), to.Format("2006-01-02"), cfg.outDir, sent, failed)
}

func parseFlags() (config, error) {
	var cfg config
	flag.StringVar(&cfg.dbURL, "db", getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")), "Postgres DSN")
	flag.StringVar(&cfg.from, "from", "", "range start date YYYY-MM-DD (default: 7 days ago)")
	flag.StringVar(&cfg.to, "to", "", "range end date YYYY-MM-DD, exclusive (default: tomorrow)")
	flag.StringVar(&cfg.kind, "kind", "", "restrict to one notification kind (optional)")
	flag.StringVar(&cfg.outDir, "out", "./out", "output directory")
	flag.Parse()

	if cfg.dbURL == "" {
		return cfg, fmt.Errorf("db DSN is required (flag -db or DATABASE_URL)")
	}
	return cfg, nil
}

func parseRange(fromRaw, toRaw string) (time.Time, time.Time, error) {
	now := time.Now().UTC().Truncate(24 * time.Hour)
	from := now.AddDate(0, 0, -7)
	to := now.AddDate(0, 0, 1)

	var err error
	if strings.TrimSpace(fromRaw) != "" {
		from, err = time.Parse("2006-01-02", strings.TrimSpace(fromRaw))
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid from date: %w", err)
		}
	}
	if strings.TrimSpace(toRaw) != "" {
		to, err = time.Parse("2006-01-02", strings.TrimSpace(toRaw))
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid to date: %w", err)
		}
	}
	if !to.After(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("to %s must be after from %s", to.Format("2006-01-02"), from.Format("2006-01-02"))
	}
	return from.UTC(), to.UTC(), nil
}

func loadSummary(ctx context.Context, db *sql.DB, from, to time.Time, kind string) ([]summaryRow, error) {
	rows, err := db.QueryContext(ctx, `
SELECT kind, channel, status, COUNT(*)
FROM delivery_log
WHERE created_at >= $1 AND created_at < $2
  AND ($3 = '' OR kind = $3)
GROUP BY kind, channel, status
ORDER BY kind, channel, status`, from, to, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []summaryRow
	for rows.Next() {
		var row summaryRow
		if err := rows.Scan(&row.Kind, &row.Channel, &row.Status, &row.Count); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

func loadRecipients(ctx context.Context, db *sql.DB, from, to time.Time, kind string) ([]recipientRow, error) {
	rows, err := db.QueryContext(ctx, `
SELECT recipient_id, kind, status, COUNT(*)
FROM delivery_log
WHERE created_at >= $1 AND created_at < $2
  AND ($3 = '' OR kind = $3)
GROUP BY recipient_id, kind, status
ORDER BY recipient_id, kind, status`, from, to, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []recipientRow
	for rows.Next() {
		var row recipientRow
		if err := rows.Scan(&row.RecipientID, &row.Kind, &row.Status, &row.Count); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

func loadFailures(ctx context.Context, db *sql.DB, from, to time.Time, kind string) ([]failureRow, error) {
	rows, err := db.QueryContext(ctx, `
SELECT id, notification_id, kind, recipient_id, child_id, channel, error, dedup_key, created_at
FROM delivery_log
WHERE status = 'failed'
  AND created_at >= $1 AND created_at < $2
  AND ($3 = '' OR kind = $3)
ORDER BY created_at`, from, to, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []failureRow
	for rows.Next() {
		var row failureRow
		if err := rows.Scan(
			&row.ID,
			&row.NotificationID,
			&row.Kind,
			&row.RecipientID,
			&row.ChildID,
			&row.Channel,
			&row.Error,
			&row.DedupKey,
			&row.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

func writeSummary(outDir string, rows []summaryRow) error {
	path := filepath.Join(outDir, "summary.csv")
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"kind", "channel", "status", "count"}); err != nil {
		return err
	}
	for _, row := range rows {
		if err := writer.Write([]string{
			row.Kind,
			row.Channel,
			row.Status,
			formatInt64(row.Count),
		}); err != nil {
			return err
		}
	}
	return nil
}

func writeRecipients(outDir string, rows []recipientRow) error {
	path := filepath.Join(outDir, "recipients.csv")
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"recipient_id", "kind", "status", "count"}); err != nil {
		return err
	}
	for _, row := range rows {
		if err := writer.Write([]string{
			row.RecipientID,
			row.Kind,
			row.Status,
			formatInt64(row.Count),
		}); err != nil {
			return err
		}
	}
	return nil
}

func writeFailures(outDir string, rows []failureRow) error {
	path := filepath.Join(outDir, "failures.csv")
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{
		"id",
		"notification_id",
		"kind",
		"recipient_id",
		"child_id",
		"channel",
		"error",
		"dedup_key",
		"created_at",
	}); err != nil {
		return err
	}
	for _, row := range rows {
		if err := writer.Write([]string{
			row.ID,
			row.NotificationID,
			row.Kind,
			row.RecipientID,
			row.ChildID,
			row.Channel,
			row.Error,
			row.DedupKey,
			formatTime(row.CreatedAt),
		}); err != nil {
			return err
		}
	}
	return nil
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(timeLayout)
}

func formatInt64(value int64) string {
	return strconv.FormatInt(value, 10)
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}
