package search

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteIndex stores listing documents in an FTS5 virtual table.
type SQLiteIndex struct {
	sqlDB *sql.DB
}

// OpenSQLite opens an FTS5-backed search index at the provided path.
func OpenSQLite(path string) (*SQLiteIndex, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("search index path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open search index db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping search index db: %w", err)
	}
	_, err = sqlDB.Exec(`CREATE VIRTUAL TABLE IF NOT EXISTS listing_index
		USING fts5(listing_id UNINDEXED, name, description, category)`)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create search index table: %w", err)
	}
	return &SQLiteIndex{sqlDB: sqlDB}, nil
}

// Close closes the index handle.
func (s *SQLiteIndex) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Upsert replaces the listing's document wholesale.
func (s *SQLiteIndex) Upsert(ctx context.Context, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("search index is not configured")
	}
	if strings.TrimSpace(doc.ListingID) == "" {
		return fmt.Errorf("listing id is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin index write: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM listing_index WHERE listing_id = ?`, doc.ListingID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear stale document: %w", err)
	}
	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO listing_index (listing_id, name, description, category) VALUES (?, ?, ?, ?)`,
		doc.ListingID, doc.Name, doc.Desc, doc.Category,
	); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("insert document: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit index write: %w", err)
	}
	return nil
}

// Remove deletes the listing's document. Removing an unindexed listing is a no-op.
func (s *SQLiteIndex) Remove(ctx context.Context, listingID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("search index is not configured")
	}
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM listing_index WHERE listing_id = ?`, strings.TrimSpace(listingID)); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

// Search returns documents matching the query, best match first. Query terms
// are matched as prefixes so partial product names still hit.
func (s *SQLiteIndex) Search(ctx context.Context, query string, limit int) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("search index is not configured")
	}
	match := buildMatchExpression(query)
	if match == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 25
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT listing_id, name, description, category
		 FROM listing_index WHERE listing_index MATCH ?
		 ORDER BY rank LIMIT ?`,
		match,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query search index: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var docs []Document
	for rows.Next() {
		var doc Document
		if err := rows.Scan(&doc.ListingID, &doc.Name, &doc.Desc, &doc.Category); err != nil {
			return nil, fmt.Errorf("scan search document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search documents: %w", err)
	}
	return docs, nil
}

// buildMatchExpression quotes each query term and appends a prefix wildcard,
// which neutralizes FTS5 operators in user input.
func buildMatchExpression(query string) string {
	terms := strings.Fields(query)
	if len(terms) == 0 {
		return ""
	}
	quoted := make([]string, 0, len(terms))
	for _, term := range terms {
		term = strings.ReplaceAll(term, `"`, "")
		if term == "" {
			continue
		}
		quoted = append(quoted, `"`+term+`"*`)
	}
	return strings.Join(quoted, " ")
}
