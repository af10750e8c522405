package repo

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"charchat/internal/domain"
)

// ChatLogRepositoryPG persists chat transcripts.
type ChatLogRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewChatLogRepository creates a chat log repository backed by PostgreSQL.
func NewChatLogRepository(pool *pgxpool.Pool) *ChatLogRepositoryPG {
	return &ChatLogRepositoryPG{pool: pool}
}

// Append stores one transcript entry.
func (r *ChatLogRepositoryPG) Append(ctx context.Context, log *domain.ChatLog) error {
	query := `
INSERT INTO chat_logs (session_id, chat_id, log, start_time, end_time)
VALUES ($1, $2, $3, $4, $5);
`
	_, err := r.pool.Exec(ctx, query, log.SessionID, log.ChatID, log.Log, log.StartTime, log.EndTime)
	return err
}

// ListByRoom returns the full transcript of a room in chronological order.
func (r *ChatLogRepositoryPG) ListByRoom(ctx context.Context, chatID string) ([]domain.ChatLog, error) {
	query := `
SELECT session_id, chat_id, log, start_time, end_time
FROM chat_logs
WHERE chat_id = $1
ORDER BY end_time ASC;
`
	rows, err := r.pool.Query(ctx, query, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ChatLog
	for rows.Next() {
		var l domain.ChatLog
		if err := rows.Scan(&l.SessionID, &l.ChatID, &l.Log, &l.StartTime, &l.EndTime); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// Recent returns the latest limit entries in chronological order, for use as
// LLM chat history.
func (r *ChatLogRepositoryPG) Recent(ctx context.Context, chatID string, limit int) ([]domain.ChatLog, error) {
	query := `
SELECT session_id, chat_id, log, start_time, end_time
FROM chat_logs
WHERE chat_id = $1
ORDER BY end_time DESC
LIMIT $2;
`
	rows, err := r.pool.Query(ctx, query, chatID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var newestFirst []domain.ChatLog
	for rows.Next() {
		var l domain.ChatLog
		if err := rows.Scan(&l.SessionID, &l.ChatID, &l.Log, &l.StartTime, &l.EndTime); err != nil {
			return nil, err
		}
		newestFirst = append(newestFirst, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]domain.ChatLog, len(newestFirst))
	for i, l := range newestFirst {
		out[len(newestFirst)-1-i] = l
	}
	return out, nil
}
