package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"charchat/internal/domain"
)

// RoomRepositoryPG persists chat rooms.
type RoomRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewRoomRepository creates a room repository backed by PostgreSQL.
func NewRoomRepository(pool *pgxpool.Pool) *RoomRepositoryPG {
	return &RoomRepositoryPG{pool: pool}
}

// Create inserts a new chat room.
func (r *RoomRepositoryPG) Create(ctx context.Context, room *domain.ChatRoom) error {
	query := `
INSERT INTO chat_rooms (chat_id, user_idx, char_prompt_id, favorability, user_unique_name, user_introduction)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING created_at;
`
	return r.pool.QueryRow(ctx, query,
		room.ChatID,
		room.UserIdx,
		room.PromptID,
		room.Favorability,
		room.UserUniqueName,
		room.UserIntroduction,
	).Scan(&room.CreatedAt)
}

const roomDetailQuery = `
SELECT r.chat_id, r.user_idx, r.char_prompt_id, r.favorability,
       r.user_unique_name, r.user_introduction, r.created_at,
       c.char_idx, c.user_idx, c.field_idx, c.voice_idx, c.char_name, c.char_description,
       c.nicknames, c.follows, c.is_active, c.created_at,
       p.character_appearance, p.character_personality, p.character_background,
       p.character_speech_style, p.example_dialogues, p.created_at
FROM chat_rooms r
JOIN char_prompts p ON p.char_prompt_id = r.char_prompt_id
JOIN characters c ON c.char_idx = p.char_idx
`

// List returns all rooms whose character is still active, joined with
// character and prompt info.
func (r *RoomRepositoryPG) List(ctx context.Context) ([]domain.RoomDetail, error) {
	rows, err := r.pool.Query(ctx, roomDetailQuery+`WHERE c.is_active = true ORDER BY r.created_at DESC;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.RoomDetail
	for rows.Next() {
		detail, err := scanRoomDetail(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *detail)
	}
	return out, rows.Err()
}

// GetDetail fetches one room with its character and prompt snapshot.
func (r *RoomRepositoryPG) GetDetail(ctx context.Context, chatID string) (*domain.RoomDetail, error) {
	rows, err := r.pool.Query(ctx, roomDetailQuery+`WHERE r.chat_id = $1;`, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, domain.ErrNotFound
	}
	return scanRoomDetail(rows)
}

// UpdateFavorability stores the favorability returned by the LLM service.
func (r *RoomRepositoryPG) UpdateFavorability(ctx context.Context, chatID string, favorability int) error {
	tag, err := r.pool.Exec(ctx, `UPDATE chat_rooms SET favorability = $2 WHERE chat_id = $1;`, chatID, favorability)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanRoomDetail(row pgx.Row) (*domain.RoomDetail, error) {
	var (
		detail    domain.RoomDetail
		nicknames []byte
	)
	if err := row.Scan(
		&detail.Room.ChatID,
		&detail.Room.UserIdx,
		&detail.Room.PromptID,
		&detail.Room.Favorability,
		&detail.Room.UserUniqueName,
		&detail.Room.UserIntroduction,
		&detail.Room.CreatedAt,
		&detail.Character.CharIdx,
		&detail.Character.UserIdx,
		&detail.Character.FieldIdx,
		&detail.Character.VoiceIdx,
		&detail.Character.Name,
		&detail.Character.Description,
		&nicknames,
		&detail.Character.Follows,
		&detail.Character.IsActive,
		&detail.Character.CreatedAt,
		&detail.Prompt.Appearance,
		&detail.Prompt.Personality,
		&detail.Prompt.Background,
		&detail.Prompt.SpeechStyle,
		&detail.Prompt.ExampleDialogues,
		&detail.Prompt.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	detail.Prompt.PromptID = detail.Room.PromptID
	detail.Prompt.CharIdx = detail.Character.CharIdx
	if len(nicknames) > 0 {
		if err := json.Unmarshal(nicknames, &detail.Character.Nicknames); err != nil {
			return nil, fmt.Errorf("decode nicknames: %w", err)
		}
	}
	return &detail, nil
}
