// Package store provides Postgres-backed persistence for captured articles.
package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrDuplicateURL reports that an active row for the URL already exists.
// Callers must distinguish this from generic storage failures: on the queue
// path it means the task already succeeded once.
var ErrDuplicateURL = errors.New("article url already exists")

// ErrNotFound reports that no row matched the given URL.
var ErrNotFound = errors.New("article not found")

const uniqueViolationCode = "23505"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Article is one row of the articles table.
//
// Expected schema:
//
//	CREATE TABLE articles (
//	    id SERIAL PRIMARY KEY,
//	    url VARCHAR UNIQUE,
//	    user_id INTEGER NOT NULL DEFAULT 0,
//	    raw_html TEXT,
//	    content TEXT,
//	    cover_url VARCHAR,
//	    title VARCHAR,
//	    summary TEXT,
//	    summary_short TEXT,
//	    has_vector_summary BOOLEAN DEFAULT FALSE,
//	    aspect_ratio DOUBLE PRECISION,
//	    created_at TIMESTAMP,
//	    is_removed BOOLEAN DEFAULT FALSE
//	);
type Article struct {
	ID               int64     `json:"id" db:"id"`
	URL              string    `json:"url" db:"url"`
	UserID           int       `json:"user_id" db:"user_id"`
	RawHTML          string    `json:"raw_html" db:"raw_html"`
	Content          string    `json:"content" db:"content"`
	CoverURL         string    `json:"cover_url" db:"cover_url"`
	Title            string    `json:"title" db:"title"`
	Summary          string    `json:"summary" db:"summary"`
	SummaryShort     string    `json:"summary_short" db:"summary_short"`
	HasVectorSummary bool      `json:"has_vector_summary" db:"has_vector_summary"`
	AspectRatio      *float64  `json:"aspect_ratio,omitempty" db:"aspect_ratio"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	IsRemoved        bool      `json:"is_removed" db:"is_removed"`
}

// Patch carries a partial field merge for Update. Nil fields are left as-is.
type Patch struct {
	Title            *string    `json:"title,omitempty"`
	RawHTML          *string    `json:"raw_html,omitempty"`
	Content          *string    `json:"content,omitempty"`
	CoverURL         *string    `json:"cover_url,omitempty"`
	Summary          *string    `json:"summary,omitempty"`
	SummaryShort     *string    `json:"summary_short,omitempty"`
	HasVectorSummary *bool      `json:"has_vector_summary,omitempty"`
	AspectRatio      *float64   `json:"aspect_ratio,omitempty"`
	CreatedAt        *time.Time `json:"created_at,omitempty"`
	IsRemoved        *bool      `json:"is_removed,omitempty"`
	UserID           *int       `json:"user_id,omitempty"`
}

type dbPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// ArticleStore persists capture results keyed by URL uniqueness.
type ArticleStore struct {
	pool  dbPool
	table string
}

// Config controls the Postgres connection pool backing the store.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// New creates an ArticleStore connected per cfg.
func New(ctx context.Context, cfg Config) (*ArticleStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "articles"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &ArticleStore{pool: pool, table: table}, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(pool dbPool, table string) (*ArticleStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "articles"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &ArticleStore{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *ArticleStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

const articleColumns = `id, url, user_id,
	COALESCE(raw_html, ''), COALESCE(content, ''), COALESCE(cover_url, ''),
	COALESCE(title, ''), COALESCE(summary, ''), COALESCE(summary_short, ''),
	COALESCE(has_vector_summary, FALSE), aspect_ratio, created_at,
	COALESCE(is_removed, FALSE)`

func scanArticle(row pgx.Row) (Article, error) {
	var a Article
	err := row.Scan(
		&a.ID,
		&a.URL,
		&a.UserID,
		&a.RawHTML,
		&a.Content,
		&a.CoverURL,
		&a.Title,
		&a.Summary,
		&a.SummaryShort,
		&a.HasVectorSummary,
		&a.AspectRatio,
		&a.CreatedAt,
		&a.IsRemoved,
	)
	if err != nil {
		return Article{}, err
	}
	return a, nil
}

// Save inserts a new article row. A unique-constraint violation on url is
// surfaced as ErrDuplicateURL; the existing row is never overwritten.
func (s *ArticleStore) Save(ctx context.Context, a Article) (Article, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (url, user_id, raw_html, content, cover_url, title, has_vector_summary, created_at, is_removed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING %s`, s.table, articleColumns)

	saved, err := scanArticle(s.pool.QueryRow(ctx, query,
		a.URL,
		a.UserID,
		a.RawHTML,
		a.Content,
		a.CoverURL,
		a.Title,
		a.HasVectorSummary,
		a.CreatedAt,
		a.IsRemoved,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return Article{}, fmt.Errorf("save article %s: %w", a.URL, ErrDuplicateURL)
		}
		return Article{}, fmt.Errorf("save article %s: %w", a.URL, err)
	}
	return saved, nil
}

// Update merges the supplied patch fields into the row matched by url.
func (s *ArticleStore) Update(ctx context.Context, url string, p Patch) (Article, error) {
	sets, args := buildPatch(p)
	if len(sets) == 0 {
		return Article{}, fmt.Errorf("update article %s: empty patch", url)
	}
	args = append(args, url)
	query := fmt.Sprintf(`UPDATE %s SET %s WHERE url = $%d RETURNING %s`,
		s.table, strings.Join(sets, ", "), len(args), articleColumns)

	updated, err := scanArticle(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Article{}, fmt.Errorf("update article %s: %w", url, ErrNotFound)
		}
		return Article{}, fmt.Errorf("update article %s: %w", url, err)
	}
	return updated, nil
}

// SoftDelete marks the row inactive. The row is never physically removed.
func (s *ArticleStore) SoftDelete(ctx context.Context, url string) (Article, error) {
	query := fmt.Sprintf(`UPDATE %s SET is_removed = TRUE WHERE url = $1 RETURNING %s`,
		s.table, articleColumns)

	deleted, err := scanArticle(s.pool.QueryRow(ctx, query, url))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Article{}, fmt.Errorf("delete article %s: %w", url, ErrNotFound)
		}
		return Article{}, fmt.Errorf("delete article %s: %w", url, err)
	}
	return deleted, nil
}

// ListActive returns all rows that have not been soft-deleted.
func (s *ArticleStore) ListActive(ctx context.Context) ([]Article, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE COALESCE(is_removed, FALSE) = FALSE ORDER BY created_at DESC`,
		articleColumns, s.table)

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list active articles: %w", err)
	}
	defer rows.Close()

	var articles []Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan article row: %w", err)
		}
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate article rows: %w", err)
	}
	return articles, nil
}

func buildPatch(p Patch) ([]string, []any) {
	var (
		sets []string
		args []any
	)
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if p.Title != nil {
		add("title", *p.Title)
	}
	if p.RawHTML != nil {
		add("raw_html", *p.RawHTML)
	}
	if p.Content != nil {
		add("content", *p.Content)
	}
	if p.CoverURL != nil {
		add("cover_url", *p.CoverURL)
	}
	if p.Summary != nil {
		add("summary", *p.Summary)
	}
	if p.SummaryShort != nil {
		add("summary_short", *p.SummaryShort)
	}
	if p.HasVectorSummary != nil {
		add("has_vector_summary", *p.HasVectorSummary)
	}
	if p.AspectRatio != nil {
		add("aspect_ratio", *p.AspectRatio)
	}
	if p.CreatedAt != nil {
		add("created_at", *p.CreatedAt)
	}
	if p.IsRemoved != nil {
		add("is_removed", *p.IsRemoved)
	}
	if p.UserID != nil {
		add("user_id", *p.UserID)
	}
	return sets, args
}
