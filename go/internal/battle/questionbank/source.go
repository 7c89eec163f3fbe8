package questionbank

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog/log"
)

// Source loads the full question bank.
type Source interface {
	Load(ctx context.Context) ([]Question, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) ([]Question, error)

func (f SourceFunc) Load(ctx context.Context) ([]Question, error) {
	return f(ctx)
}

// FileSource reads a qb.json document from disk.
type FileSource struct {
	Path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

func (s *FileSource) Load(ctx context.Context) ([]Question, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read question bank: %w", err)
	}
	questions, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", s.Path, err)
	}
	log.Info().Str("path", s.Path).Int("questions", len(questions)).Msg("loaded question bank file")
	return Dedup(questions), nil
}

// HTTPSource fetches a qb.json document over HTTP. The request always bypasses caches.
type HTTPSource struct {
	url    string
	client *http.Client
}

func NewHTTPSource(url string) *HTTPSource {
	return &HTTPSource{
		url: url,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetTimeout overrides the client timeout.
func (s *HTTPSource) SetTimeout(timeout time.Duration) {
	s.client.Timeout = timeout
}

func (s *HTTPSource) Load(ctx context.Context) ([]Question, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-store")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch question bank: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("question bank returned status code: %d, response: %s", resp.StatusCode, string(body))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	questions, err := Parse(data)
	if err != nil {
		return nil, err
	}
	log.Info().Str("url", s.url).Int("questions", len(questions)).Msg("fetched question bank")
	return Dedup(questions), nil
}

// Querier is the subset of *sql.DB that SQLSource needs.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// SQLSource reads questions from the questions table. The options column holds a JSON
// array of strings.
type SQLSource struct {
	db Querier
}

func NewSQLSource(db Querier) *SQLSource {
	return &SQLSource{db: db}
}

const listQuestions = `SELECT prompt, options, answer FROM questions ORDER BY prompt`

func (s *SQLSource) Load(ctx context.Context) ([]Question, error) {
	rows, err := s.db.QueryContext(ctx, listQuestions)
	if err != nil {
		return nil, fmt.Errorf("failed to query questions: %w", err)
	}
	defer rows.Close()

	var out []Question
	for rows.Next() {
		var (
			prompt  string
			options []byte
			answer  int
		)
		if err := rows.Scan(&prompt, &options, &answer); err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		e := Entry{Answer: answer}
		if err := json.Unmarshal(options, &e.Options); err != nil {
			log.Debug().Err(err).Str("prompt", prompt).Msg("skipping question with unreadable options")
			continue
		}
		q, err := e.Question(prompt)
		if err != nil {
			log.Debug().Err(err).Msg("skipping invalid question row")
			continue
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate questions: %w", err)
	}
	return Dedup(out), nil
}
