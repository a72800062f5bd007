package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"assistanthub/internal/domain"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements domain.Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Single connection for SQLite
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("cannot enable foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db, logger: logger}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS assistants (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		webhook_url TEXT NOT NULL,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS messages (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		assistant_id TEXT NOT NULL REFERENCES assistants(id) ON DELETE CASCADE,
		role         TEXT NOT NULL,
		content      TEXT,
		images       TEXT,
		links        TEXT,
		attachments  TEXT,
		sources      TEXT,
		created_at   DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_messages_assistant ON messages(assistant_id, id);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) CreateAssistant(ctx context.Context, a domain.Assistant) error {
	now := time.Now()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = now
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO assistants (id, name, webhook_url, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		a.ID, a.Name, a.WebhookURL, a.CreatedAt, a.UpdatedAt,
	)
	return err
}

func (s *SQLiteStore) GetAssistant(ctx context.Context, id string) (*domain.Assistant, error) {
	var a domain.Assistant
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, webhook_url, created_at, updated_at FROM assistants WHERE id = ?`, id,
	).Scan(&a.ID, &a.Name, &a.WebhookURL, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *SQLiteStore) UpdateAssistant(ctx context.Context, a domain.Assistant) error {
	a.UpdatedAt = time.Now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE assistants SET name=?, webhook_url=?, updated_at=? WHERE id=?`,
		a.Name, a.WebhookURL, a.UpdatedAt, a.ID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) DeleteAssistant(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM assistants WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) ListAssistants(ctx context.Context) ([]domain.Assistant, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, webhook_url, created_at, updated_at
		 FROM assistants ORDER BY created_at DESC, id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []domain.Assistant
	for rows.Next() {
		var a domain.Assistant
		if err := rows.Scan(&a.ID, &a.Name, &a.WebhookURL, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

func (s *SQLiteStore) Load(ctx context.Context, assistantID string) ([]domain.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content, images, links, attachments, sources
		 FROM messages WHERE assistant_id = ? ORDER BY id`, assistantID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []domain.Message
	for rows.Next() {
		var m domain.Message
		var content, images, links, attachments, sources sql.NullString
		if err := rows.Scan(&m.Role, &content, &images, &links, &attachments, &sources); err != nil {
			return nil, err
		}
		m.Content = content.String
		// Unreadable list columns degrade to empty, the row survives.
		decodeColumn(images.String, &m.Images)
		decodeColumn(links.String, &m.Links)
		decodeColumn(attachments.String, &m.Attachments)
		decodeColumn(sources.String, &m.Sources)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (s *SQLiteStore) Save(ctx context.Context, assistantID string, msgs []domain.Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE assistant_id = ?`, assistantID); err != nil {
		return err
	}
	for _, m := range msgs {
		if err := insertMessage(ctx, tx, assistantID, m); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Append(ctx context.Context, assistantID string, msgs ...domain.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, m := range msgs {
		if err := insertMessage(ctx, tx, assistantID, m); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Clear(ctx context.Context, assistantID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE assistant_id = ?`, assistantID)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertMessage(ctx context.Context, e execer, assistantID string, m domain.Message) error {
	_, err := e.ExecContext(ctx,
		`INSERT INTO messages (assistant_id, role, content, images, links, attachments, sources, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		assistantID, m.Role, m.Content,
		encodeColumn(m.Images), encodeColumn(m.Links),
		encodeColumn(m.Attachments), encodeColumn(m.Sources),
		time.Now(),
	)
	return err
}

// encodeColumn serializes a list field to JSON text, empty lists to NULL.
func encodeColumn[T any](list []T) any {
	if len(list) == 0 {
		return nil
	}
	data, err := json.Marshal(list)
	if err != nil {
		return nil
	}
	return string(data)
}

func decodeColumn[T any](raw string, dst *[]T) {
	if raw == "" {
		return
	}
	_ = json.Unmarshal([]byte(raw), dst)
}
