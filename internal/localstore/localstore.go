// Package localstore keeps documents in a SQLite file: one head row per
// document and an immutable revision row per body written.
package localstore

import (
	"context"
	"crypto/sha256"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dgallion1/offersplice/internal/block"
	"github.com/dgallion1/offersplice/internal/store"
)

//go:embed schema.sql
var schemaSQL string

// Store is a store.Store backed by SQLite.
type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// Open opens or creates the database at path and applies the schema.
// ":memory:" gives a private in-memory database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: SQLite serializes writers anyway, and an in-memory
	// database exists per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Revision describes one stored body.
type Revision struct {
	Number      int       `json:"revision"`
	ContentHash string    `json:"content_hash"`
	CreatedAt   time.Time `json:"created_at"`
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}

// PutDocument creates or updates a document's metadata and body. source
// records where it came from, such as an imported file name. It reports
// whether a new revision was written.
func (s *Store) PutDocument(ctx context.Context, doc block.Document, source string) (bool, error) {
	if doc.ID == "" {
		return false, errors.New("put document: id is required")
	}
	body, err := block.MarshalBlocks(doc.Blocks)
	if err != nil {
		return false, fmt.Errorf("marshal blocks: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UnixMilli()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO documents (id, title, slug, category, source, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			slug = excluded.slug,
			category = excluded.category,
			source = excluded.source
	`, doc.ID, doc.Title, doc.Slug, doc.Category, source, now); err != nil {
		return false, fmt.Errorf("upsert document %s: %w", doc.ID, err)
	}

	written, err := writeRevision(ctx, tx, doc.ID, body, now)
	if err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return written, nil
}

// writeRevision appends body as the next revision unless it matches the
// current one.
func writeRevision(ctx context.Context, tx *sql.Tx, id string, body []byte, now int64) (bool, error) {
	var rev int
	var current string
	err := tx.QueryRowContext(ctx, `SELECT revision, content_hash FROM documents WHERE id = ?`, id).Scan(&rev, &current)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("document %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return false, fmt.Errorf("read head %s: %w", id, err)
	}

	hash := ContentHashHex(body)
	if hash == current {
		return false, nil
	}
	rev++
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO revisions (document_id, revision, body, content_hash, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, id, rev, string(body), hash, now); err != nil {
		return false, fmt.Errorf("insert revision %s/%d: %w", id, rev, err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE documents SET revision = ?, content_hash = ?, updated_at = ? WHERE id = ?
	`, rev, hash, now, id); err != nil {
		return false, fmt.Errorf("update head %s: %w", id, err)
	}
	return true, nil
}

// FetchDocument returns the document with its latest body.
func (s *Store) FetchDocument(ctx context.Context, id string) (store.Record, error) {
	var (
		rec       store.Record
		rev       int
		updatedAt int64
		body      sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT d.title, d.slug, d.category, d.revision, d.updated_at, r.body
		FROM documents d
		LEFT JOIN revisions r ON r.document_id = d.id AND r.revision = d.revision
		WHERE d.id = ?
	`, id).Scan(&rec.Doc.Title, &rec.Doc.Slug, &rec.Doc.Category, &rev, &updatedAt, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Record{}, fmt.Errorf("document %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return store.Record{}, fmt.Errorf("fetch document %s: %w", id, err)
	}

	rec.Doc.ID = id
	if body.Valid {
		blocks, err := block.UnmarshalBlocks([]byte(body.String))
		if err != nil {
			return store.Record{}, fmt.Errorf("decode document %s: %w", id, err)
		}
		rec.Doc.Blocks = blocks
	}
	rec.Revision = strconv.Itoa(rev)
	rec.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return rec, nil
}

// ReplaceDocument writes blocks as the document's new body. An unchanged
// body writes nothing.
func (s *Store) ReplaceDocument(ctx context.Context, id string, blocks []block.Block) error {
	body, err := block.MarshalBlocks(blocks)
	if err != nil {
		return fmt.Errorf("marshal blocks: %w", err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := writeRevision(ctx, tx, id, body, time.Now().UnixMilli()); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ListDocuments lists heads matching f, ordered by id.
func (s *Store) ListDocuments(ctx context.Context, f store.Filter) ([]store.Head, error) {
	var (
		where []string
		args  []any
	)
	if len(f.IDs) > 0 {
		where = append(where, "id IN (?"+strings.Repeat(", ?", len(f.IDs)-1)+")")
		for _, id := range f.IDs {
			args = append(args, id)
		}
	}
	if f.Slug != "" {
		where = append(where, "slug = ?")
		args = append(args, f.Slug)
	}
	if f.Category != "" {
		where = append(where, "category = ?")
		args = append(args, f.Category)
	}

	q := "SELECT id, title, slug, category, revision FROM documents"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY id"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var heads []store.Head
	for rows.Next() {
		var h store.Head
		var rev int
		if err := rows.Scan(&h.ID, &h.Title, &h.Slug, &h.Category, &rev); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		h.Revision = strconv.Itoa(rev)
		heads = append(heads, h)
	}
	return heads, rows.Err()
}

// Revisions lists the stored bodies of a document, oldest first.
func (s *Store) Revisions(ctx context.Context, id string) ([]Revision, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT revision, content_hash, created_at FROM revisions
		WHERE document_id = ? ORDER BY revision
	`, id)
	if err != nil {
		return nil, fmt.Errorf("list revisions: %w", err)
	}
	defer rows.Close()

	var out []Revision
	for rows.Next() {
		var r Revision
		var created int64
		if err := rows.Scan(&r.Number, &r.ContentHash, &created); err != nil {
			return nil, fmt.Errorf("scan revision: %w", err)
		}
		r.CreatedAt = time.UnixMilli(created).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}
