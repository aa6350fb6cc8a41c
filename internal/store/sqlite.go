package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mariusarnbjerg/Morton/internal/domain"
)

// SQLiteStore implements TranscriptStore and ConversationStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the database and runs migrations.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

var (
	_ TranscriptStore   = (*SQLiteStore)(nil)
	_ ConversationStore = (*SQLiteStore)(nil)
)

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS conversations (
			conversation_id TEXT PRIMARY KEY,
			state TEXT NOT NULL,
			question_index INTEGER NOT NULL DEFAULT 0,
			active_question_id TEXT,
			answers TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			message_id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			metadata TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, seq)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Append adds a message to the end of the conversation's log. The
// sequence number is assigned inside a transaction so append order is
// total even when timestamps collide.
func (s *SQLiteStore) Append(ctx context.Context, conversationID string, msg domain.Message) error {
	metadata, _ := json.Marshal(msg.Metadata)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var seq int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM messages WHERE conversation_id = ?`,
		conversationID).Scan(&seq); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO messages (message_id, conversation_id, seq, role, content, created_at, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		msg.MessageID, conversationID, seq, msg.Role, msg.Content, msg.CreatedAt, string(metadata)); err != nil {
		return err
	}

	return tx.Commit()
}

// Transcript returns all messages for the conversation in append order.
func (s *SQLiteStore) Transcript(ctx context.Context, conversationID string) ([]domain.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT message_id, conversation_id, role, content, created_at, metadata
		 FROM messages WHERE conversation_id = ? ORDER BY seq ASC`,
		conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var msg domain.Message
		var metadata sql.NullString
		if err := rows.Scan(&msg.MessageID, &msg.ConversationID, &msg.Role, &msg.Content, &msg.CreatedAt, &metadata); err != nil {
			return nil, err
		}
		if metadata.Valid && metadata.String != "" && metadata.String != "null" {
			if err := json.Unmarshal([]byte(metadata.String), &msg.Metadata); err != nil {
				return nil, fmt.Errorf("corrupt message metadata for %s: %w", msg.MessageID, err)
			}
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// SaveConversation inserts or replaces the conversation snapshot.
func (s *SQLiteStore) SaveConversation(ctx context.Context, conv *domain.Conversation) error {
	answers, _ := json.Marshal(conv.Answers)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (conversation_id, state, question_index, active_question_id, answers, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(conversation_id) DO UPDATE SET
			state = excluded.state,
			question_index = excluded.question_index,
			active_question_id = excluded.active_question_id,
			answers = excluded.answers`,
		conv.ConversationID, conv.State, conv.QuestionIndex, conv.ActiveQuestionID, string(answers), conv.CreatedAt)
	return err
}

// GetConversation retrieves a conversation snapshot by id.
func (s *SQLiteStore) GetConversation(ctx context.Context, conversationID string) (*domain.Conversation, error) {
	var conv domain.Conversation
	var active sql.NullString
	var answers sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT conversation_id, state, question_index, active_question_id, answers, created_at
		 FROM conversations WHERE conversation_id = ?`,
		conversationID).Scan(&conv.ConversationID, &conv.State, &conv.QuestionIndex, &active, &answers, &conv.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if active.Valid {
		conv.ActiveQuestionID = active.String
	}
	conv.Answers = make(map[string]string)
	if answers.Valid && answers.String != "" && answers.String != "null" {
		if err := json.Unmarshal([]byte(answers.String), &conv.Answers); err != nil {
			return nil, fmt.Errorf("corrupt answers for %s: %w", conversationID, err)
		}
	}
	return &conv, nil
}
