package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

// TranslationCacheRepositoryPG implements domain.TranslationCacheRepository
// backed by PostgreSQL.
type TranslationCacheRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewTranslationCacheRepository creates a new TranslationCacheRepositoryPG.
func NewTranslationCacheRepository(pool *pgxpool.Pool) *TranslationCacheRepositoryPG {
	return &TranslationCacheRepositoryPG{pool: pool}
}

// Get fetches a cache entry by hash; domain.ErrNotFound when absent.
func (r *TranslationCacheRepositoryPG) Get(ctx context.Context, hash string) (*domain.TranslationCacheEntry, error) {
	var entry domain.TranslationCacheEntry
	err := r.pool.QueryRow(ctx, `
SELECT hash, source_text, source_lang, target_lang, translated_text, created_at, updated_at
FROM translation_cache
WHERE hash = $1;
`, hash).Scan(&entry.Hash, &entry.SourceText, &entry.SourceLang, &entry.TargetLang, &entry.TranslatedText, &entry.CreatedAt, &entry.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read cache: %w", err)
	}
	return &entry, nil
}

// Put upserts a cache entry, refreshing the translation on hash collision.
func (r *TranslationCacheRepositoryPG) Put(ctx context.Context, entry *domain.TranslationCacheEntry) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO translation_cache (hash, source_text, source_lang, target_lang, translated_text)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (hash) DO UPDATE
SET translated_text = EXCLUDED.translated_text,
    updated_at = NOW();
`, entry.Hash, entry.SourceText, entry.SourceLang, entry.TargetLang, entry.TranslatedText)
	if err != nil {
		return fmt.Errorf("write cache: %w", err)
	}
	return nil
}

// CachedTargets returns the target languages for which the exact source text
// already has a cached translation.
func (r *TranslationCacheRepositoryPG) CachedTargets(ctx context.Context, sourceText, sourceLang string, targets []string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
SELECT target_lang
FROM translation_cache
WHERE source_text = $1
  AND source_lang = $2
  AND target_lang = ANY($3);
`, sourceText, sourceLang, targets)
	if err != nil {
		return nil, fmt.Errorf("probe cache: %w", err)
	}
	defer rows.Close()

	var langs []string
	for rows.Next() {
		var lang string
		if err := rows.Scan(&lang); err != nil {
			return nil, err
		}
		langs = append(langs, lang)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return langs, nil
}

var _ domain.TranslationCacheRepository = (*TranslationCacheRepositoryPG)(nil)
