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

// CharacterRepositoryPG persists characters and their prompt sheets.
type CharacterRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewCharacterRepository creates a character repository backed by PostgreSQL.
func NewCharacterRepository(pool *pgxpool.Pool) *CharacterRepositoryPG {
	return &CharacterRepositoryPG{pool: pool}
}

// Create inserts a character and its initial prompt sheet in one transaction.
// The generated ids are written back onto the arguments.
func (r *CharacterRepositoryPG) Create(ctx context.Context, ch *domain.Character, prompt *domain.CharacterPrompt) error {
	nicknames, err := json.Marshal(ch.Nicknames)
	if err != nil {
		return fmt.Errorf("encode nicknames: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	insertCharacter := `
INSERT INTO characters (user_idx, field_idx, voice_idx, char_name, char_description, nicknames)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING char_idx, created_at;
`
	if err := tx.QueryRow(ctx, insertCharacter,
		ch.UserIdx,
		ch.FieldIdx,
		ch.VoiceIdx,
		ch.Name,
		ch.Description,
		nicknames,
	).Scan(&ch.CharIdx, &ch.CreatedAt); err != nil {
		return err
	}

	insertPrompt := `
INSERT INTO char_prompts (char_idx, character_appearance, character_personality, character_background, character_speech_style, example_dialogues)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING char_prompt_id, created_at;
`
	prompt.CharIdx = ch.CharIdx
	if err := tx.QueryRow(ctx, insertPrompt,
		prompt.CharIdx,
		prompt.Appearance,
		prompt.Personality,
		prompt.Background,
		prompt.SpeechStyle,
		prompt.ExampleDialogues,
	).Scan(&prompt.PromptID, &prompt.CreatedAt); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

const selectDetailColumns = `
c.char_idx, c.user_idx, c.field_idx, c.voice_idx, c.char_name, c.char_description,
c.nicknames, c.follows, c.is_active, c.created_at,
p.char_prompt_id, p.character_appearance, p.character_personality,
p.character_background, p.character_speech_style, p.example_dialogues, p.created_at
`

// ListActive returns every active character joined with its latest prompt.
func (r *CharacterRepositoryPG) ListActive(ctx context.Context) ([]domain.CharacterDetail, error) {
	query := `
SELECT ` + selectDetailColumns + `
FROM characters c
JOIN LATERAL (
    SELECT * FROM char_prompts
    WHERE char_idx = c.char_idx
    ORDER BY created_at DESC
    LIMIT 1
) p ON true
WHERE c.is_active = true
ORDER BY c.char_idx;
`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.CharacterDetail
	for rows.Next() {
		detail, err := scanCharacterDetail(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *detail)
	}
	return out, rows.Err()
}

// GetDetail fetches an active character with its latest prompt.
func (r *CharacterRepositoryPG) GetDetail(ctx context.Context, charIdx int) (*domain.CharacterDetail, error) {
	query := `
SELECT ` + selectDetailColumns + `
FROM characters c
JOIN LATERAL (
    SELECT * FROM char_prompts
    WHERE char_idx = c.char_idx
    ORDER BY created_at DESC
    LIMIT 1
) p ON true
WHERE c.char_idx = $1 AND c.is_active = true;
`
	rows, err := r.pool.Query(ctx, query, charIdx)
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
	return scanCharacterDetail(rows)
}

// Deactivate hides a character instead of deleting it.
func (r *CharacterRepositoryPG) Deactivate(ctx context.Context, charIdx int) error {
	tag, err := r.pool.Exec(ctx, `UPDATE characters SET is_active = false WHERE char_idx = $1;`, charIdx)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanCharacterDetail(row pgx.Row) (*domain.CharacterDetail, error) {
	var (
		detail    domain.CharacterDetail
		nicknames []byte
	)
	if err := row.Scan(
		&detail.CharIdx,
		&detail.UserIdx,
		&detail.FieldIdx,
		&detail.VoiceIdx,
		&detail.Name,
		&detail.Description,
		&nicknames,
		&detail.Follows,
		&detail.IsActive,
		&detail.CreatedAt,
		&detail.Prompt.PromptID,
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
	detail.Prompt.CharIdx = detail.CharIdx
	if len(nicknames) > 0 {
		if err := json.Unmarshal(nicknames, &detail.Nicknames); err != nil {
			return nil, fmt.Errorf("decode nicknames: %w", err)
		}
	}
	return &detail, nil
}
