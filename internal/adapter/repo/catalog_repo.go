package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"charchat/internal/domain"
)

// CatalogRepositoryPG serves the voice and field catalogs.
type CatalogRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository creates a catalog repository backed by PostgreSQL.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepositoryPG {
	return &CatalogRepositoryPG{pool: pool}
}

// Voices lists every selectable TTS voice.
func (r *CatalogRepositoryPG) Voices(ctx context.Context) ([]domain.Voice, error) {
	rows, err := r.pool.Query(ctx, `SELECT voice_idx, voice_path, voice_speaker FROM voices ORDER BY voice_speaker;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Voice
	for rows.Next() {
		var v domain.Voice
		if err := rows.Scan(&v.VoiceIdx, &v.Path, &v.Speaker); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// VoiceForRoom resolves the TTS voice of the character a room was created
// from.
func (r *CatalogRepositoryPG) VoiceForRoom(ctx context.Context, chatID string) (*domain.Voice, error) {
	query := `
SELECT v.voice_idx, v.voice_path, v.voice_speaker
FROM chat_rooms r
JOIN char_prompts p ON p.char_prompt_id = r.char_prompt_id
JOIN characters c ON c.char_idx = p.char_idx
JOIN voices v ON v.voice_idx::text = c.voice_idx
WHERE r.chat_id = $1;
`
	var v domain.Voice
	if err := r.pool.QueryRow(ctx, query, chatID).Scan(&v.VoiceIdx, &v.Path, &v.Speaker); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &v, nil
}

// Fields lists the character genre catalog.
func (r *CatalogRepositoryPG) Fields(ctx context.Context) ([]domain.Field, error) {
	rows, err := r.pool.Query(ctx, `SELECT field_idx, field_category FROM fields ORDER BY field_idx;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Field
	for rows.Next() {
		var f domain.Field
		if err := rows.Scan(&f.FieldIdx, &f.Category); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
