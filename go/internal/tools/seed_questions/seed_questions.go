package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/mcdev12/quizbattle/go/internal/battle/questionbank"
	"github.com/mcdev12/quizbattle/go/internal/dbconfig"
	"github.com/mcdev12/quizbattle/go/internal/sqlutil"
)

const createQuestions = `
CREATE TABLE IF NOT EXISTS questions (
    prompt     TEXT PRIMARY KEY,
    options    JSONB   NOT NULL,
    answer     INTEGER NOT NULL CHECK (answer BETWEEN 0 AND 3),
    updated_at TEXT
)`

// Rows whose options and answer are unchanged are left alone and return no row.
const upsertQuestion = `
INSERT INTO questions (prompt, options, answer, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (prompt) DO UPDATE
SET options = EXCLUDED.options, answer = EXCLUDED.answer, updated_at = EXCLUDED.updated_at
WHERE questions.options IS DISTINCT FROM EXCLUDED.options OR questions.answer <> EXCLUDED.answer
RETURNING (xmax = 0) AS inserted`

func main() {
	_ = godotenv.Load()

	path := "qb.json"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	// 1) Load the bank
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read JSON: %v\n", err)
		os.Exit(1)
	}
	entries, skipped, err := questionbank.DecodeEntries(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "decode bank: %v\n", err)
		os.Exit(1)
	}

	// 2) Connect using shared dbconfig
	ctx := context.Background()
	cfg := dbconfig.NewConfigFromEnv()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "database config: %v\n", err)
		os.Exit(1)
	}
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	if _, err := pool.Exec(ctx, createQuestions); err != nil {
		fmt.Fprintf(os.Stderr, "create table: %v\n", err)
		os.Exit(1)
	}

	// 3) Upsert and count
	prompts := make([]string, 0, len(entries))
	for p := range entries {
		prompts = append(prompts, p)
	}
	sort.Strings(prompts)

	var (
		total     = len(entries) + skipped
		inserted  int
		updated   int
		unchanged int
		invalid   = skipped
		errs      int
	)

	for _, prompt := range prompts {
		q, err := entries[prompt].Question(prompt)
		if err != nil {
			invalid++
			continue
		}
		row := questionbank.EntryFor(q, parseUpdatedAt(entries[prompt].UpdatedAt))
		options, err := json.Marshal(row.Options)
		if err != nil {
			errs++
			continue
		}

		var isInsert bool
		err = pool.QueryRow(ctx, upsertQuestion, prompt, options, row.Answer, sqlutil.ToSqlString(row.UpdatedAt)).Scan(&isInsert)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			unchanged++
		case err != nil:
			fmt.Fprintf(os.Stderr, "error upserting %q: %v\n", prompt, err)
			errs++
		case isInsert:
			inserted++
		default:
			updated++
		}
	}

	// 4) Print summary
	fmt.Printf(
		"Questions seed complete: %d total, %d inserted, %d updated, %d unchanged, %d invalid, %d errors\n",
		total, inserted, updated, unchanged, invalid, errs,
	)
}

// parseUpdatedAt accepts RFC 3339 or a bare date. Anything else is stored as NULL.
func parseUpdatedAt(v string) time.Time {
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, v); err == nil {
			return t
		}
	}
	return time.Time{}
}
