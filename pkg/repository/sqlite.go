package repository

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/m-mizutani/ditto/pkg/embedding"
	"github.com/m-mizutani/ditto/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS question_records (
	seq          INTEGER PRIMARY KEY AUTOINCREMENT,
	id           TEXT NOT NULL,
	user_id      TEXT NOT NULL,
	question_key TEXT NOT NULL,
	question     TEXT NOT NULL,
	answer       TEXT NOT NULL,
	embedding    BLOB,
	embedding_model TEXT NOT NULL DEFAULT '',
	created_at   TEXT NOT NULL,
	UNIQUE(user_id, question_key)
);
CREATE INDEX IF NOT EXISTS idx_question_records_user ON question_records(user_id, seq);
`

// SQLite is a HistoryStore in a local SQLite database file
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the database at path and applies the schema
func NewSQLite(ctx context.Context, path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, goerr.Wrap(err, "failed to create database directory", goerr.V("path", path))
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open sqlite database", goerr.V("path", path))
	}
	// a single connection serializes writers and keeps ":memory:" databases shared
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, goerr.Wrap(err, "failed to set pragma", goerr.V("pragma", pragma))
		}
	}

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, goerr.Wrap(err, "failed to apply schema")
	}
	if err := migrateEmbeddingModel(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLite{db: db}, nil
}

// migrateEmbeddingModel adds the embedding_model column to databases created without it
func migrateEmbeddingModel(ctx context.Context, db *sql.DB) error {
	var n int
	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pragma_table_info('question_records') WHERE name = 'embedding_model'`).Scan(&n); err != nil {
		return goerr.Wrap(err, "failed to inspect schema")
	}
	if n > 0 {
		return nil
	}
	if _, err := db.ExecContext(ctx,
		`ALTER TABLE question_records ADD COLUMN embedding_model TEXT NOT NULL DEFAULT ''`); err != nil {
		return goerr.Wrap(err, "failed to add embedding_model column")
	}
	return nil
}

// Close closes the database
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Get(ctx context.Context, userID model.UserID) ([]*model.QuestionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, question, answer, embedding, embedding_model, created_at
		FROM question_records WHERE user_id = ? ORDER BY seq`, string(userID))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query history", goerr.V("user_id", userID))
	}
	defer rows.Close()

	var records []*model.QuestionRecord
	for rows.Next() {
		var (
			id, question, answer, embeddingModel, createdAt string
			blob                                            []byte
		)
		if err := rows.Scan(&id, &question, &answer, &blob, &embeddingModel, &createdAt); err != nil {
			return nil, goerr.Wrap(err, "failed to scan question record", goerr.V("user_id", userID))
		}

		ts, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, goerr.Wrap(err, "invalid created_at", goerr.V("record_id", id))
		}
		var vec []float32
		if len(blob) > 0 {
			if vec, err = embedding.DecodeVector(blob); err != nil {
				return nil, goerr.Wrap(err, "invalid embedding", goerr.V("record_id", id))
			}
		}

		records = append(records, &model.QuestionRecord{
			ID:             model.RecordID(id),
			Question:       question,
			Answer:         answer,
			Embedding:      vec,
			EmbeddingModel: embeddingModel,
			CreatedAt:      ts,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to read history", goerr.V("user_id", userID))
	}
	if records == nil {
		records = []*model.QuestionRecord{}
	}
	return records, nil
}

func (s *SQLite) Append(ctx context.Context, userID model.UserID, record *model.QuestionRecord) error {
	var blob []byte
	if len(record.Embedding) > 0 {
		blob = embedding.EncodeVector(record.Embedding)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO question_records (id, user_id, question_key, question, answer, embedding, embedding_model, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, question_key) DO NOTHING`,
		string(record.ID), string(userID), record.Key(), record.Question, record.Answer, blob, record.EmbeddingModel,
		record.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return goerr.Wrap(err, "failed to insert question record",
			goerr.V("user_id", userID),
			goerr.V("record_id", record.ID))
	}

	n, err := res.RowsAffected()
	if err != nil {
		return goerr.Wrap(err, "failed to get affected rows")
	}
	if n == 0 {
		return errDuplicate(userID, record)
	}
	return nil
}

func (s *SQLite) Delete(ctx context.Context, userID model.UserID, index int) error {
	if index < 0 {
		return errNotFound(userID, index)
	}

	res, err := s.db.ExecContext(ctx, `
		DELETE FROM question_records WHERE seq = (
			SELECT seq FROM question_records WHERE user_id = ? ORDER BY seq LIMIT 1 OFFSET ?
		)`, string(userID), index)
	if err != nil {
		return goerr.Wrap(err, "failed to delete question record",
			goerr.V("user_id", userID),
			goerr.V("index", index))
	}

	n, err := res.RowsAffected()
	if err != nil {
		return goerr.Wrap(err, "failed to get affected rows")
	}
	if n == 0 {
		return errNotFound(userID, index)
	}
	return nil
}

func (s *SQLite) Clear(ctx context.Context, userID model.UserID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM question_records WHERE user_id = ?`, string(userID)); err != nil {
		return goerr.Wrap(err, "failed to clear history", goerr.V("user_id", userID))
	}
	return nil
}
