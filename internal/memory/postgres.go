package memory

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/leadline-ai/leadline/internal/dialog"
)

// PostgresStore persists conversation archives in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			lead_id TEXT NOT NULL,
			agent_id TEXT NOT NULL,
			phase TEXT NOT NULL,
			score DOUBLE PRECISION NOT NULL DEFAULT 0,
			turn_count INTEGER NOT NULL DEFAULT 0,
			duration_ms BIGINT NOT NULL DEFAULT 0,
			qualification JSONB NOT NULL DEFAULT '{}',
			analytics JSONB NOT NULL DEFAULT '{}',
			started_at TIMESTAMPTZ NOT NULL,
			ended_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_lead_started ON conversations (lead_id, started_at);`,
		`CREATE TABLE IF NOT EXISTS conversation_turns (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			speaker TEXT NOT NULL,
			text TEXT NOT NULL,
			intent TEXT,
			sentiment TEXT,
			confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
			entities JSONB NOT NULL DEFAULT '{}',
			spoken_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_conversation_turns_conv_seq ON conversation_turns (conversation_id, seq);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) ArchiveConversation(ctx context.Context, conv *dialog.Session) error {
	if conv == nil {
		return fmt.Errorf("nil conversation")
	}

	qual, err := json.Marshal(conv.Qualification)
	if err != nil {
		return fmt.Errorf("marshal qualification: %w", err)
	}
	analytics, err := json.Marshal(conv.Analytics)
	if err != nil {
		return fmt.Errorf("marshal analytics: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin archive: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO conversations (id, lead_id, agent_id, phase, score, turn_count, duration_ms, qualification, analytics, started_at, ended_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (id) DO UPDATE SET
			phase = EXCLUDED.phase,
			score = EXCLUDED.score,
			turn_count = EXCLUDED.turn_count,
			duration_ms = EXCLUDED.duration_ms,
			qualification = EXCLUDED.qualification,
			analytics = EXCLUDED.analytics,
			ended_at = EXCLUDED.ended_at`,
		conv.ID,
		conv.LeadID,
		conv.AgentID,
		string(conv.Phase),
		conv.Qualification.Score,
		len(conv.Turns),
		conv.Analytics.Duration.Milliseconds(),
		qual,
		analytics,
		conv.StartTime,
		conv.EndTime,
	)
	if err != nil {
		return fmt.Errorf("archive conversation: %w", err)
	}

	for i, turn := range conv.Turns {
		entities, err := json.Marshal(turn.Entities)
		if err != nil {
			return fmt.Errorf("marshal turn entities: %w", err)
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO conversation_turns (id, conversation_id, seq, speaker, text, intent, sentiment, confidence, entities, spoken_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			 ON CONFLICT (id) DO NOTHING`,
			turn.ID,
			conv.ID,
			i,
			string(turn.Speaker),
			turn.Text,
			turn.Intent,
			turn.Sentiment,
			turn.Confidence,
			entities,
			turn.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("archive turn %d: %w", i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit archive: %w", err)
	}
	return nil
}

func (s *PostgresStore) RecentConversations(ctx context.Context, leadID string, limit int) ([]ConversationRecord, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, lead_id, agent_id, phase, score, turn_count, duration_ms, qualification, started_at, ended_at
		 FROM conversations WHERE lead_id=$1 ORDER BY started_at DESC LIMIT $2`,
		leadID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	records := make([]ConversationRecord, 0, limit)
	for rows.Next() {
		var r ConversationRecord
		var durationMS int64
		var qual []byte
		if err := rows.Scan(&r.ID, &r.LeadID, &r.AgentID, &r.Phase, &r.Score, &r.TurnCount, &durationMS, &qual, &r.StartedAt, &r.EndedAt); err != nil {
			return nil, fmt.Errorf("scan conversation row: %w", err)
		}
		r.Duration = durationFromMillis(durationMS)
		if err := json.Unmarshal(qual, &r.Qualification); err != nil {
			return nil, fmt.Errorf("decode qualification: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversation rows: %w", err)
	}

	// Reverse into chronological order.
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return records, nil
}

func (s *PostgresStore) ConversationTurns(ctx context.Context, conversationID string) ([]dialog.Turn, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, speaker, text, intent, sentiment, confidence, entities, spoken_at
		 FROM conversation_turns WHERE conversation_id=$1 ORDER BY seq`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	var turns []dialog.Turn
	for rows.Next() {
		var t dialog.Turn
		var speaker string
		var entities []byte
		if err := rows.Scan(&t.ID, &speaker, &t.Text, &t.Intent, &t.Sentiment, &t.Confidence, &entities, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("scan turn row: %w", err)
		}
		t.Speaker = dialog.Speaker(speaker)
		if err := json.Unmarshal(entities, &t.Entities); err != nil {
			return nil, fmt.Errorf("decode turn entities: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turn rows: %w", err)
	}
	return turns, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
