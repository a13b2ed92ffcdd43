// Package translation executes translations against an external provider
// with an exact-text cache in front. Credit accounting treats this package
// as a collaborator: it only reports what was translated and what was
// cached, never touches the ledger.
package translation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"server/internal/domain"
)

// DefaultMaxChunk is the code-point threshold above which text is split
// before translation.
const DefaultMaxChunk = 2000

// Service coordinates cache lookups, provider calls and chunking.
type Service struct {
	provider Provider
	cache    domain.TranslationCacheRepository
	logger   zerolog.Logger
	maxChunk int
}

// NewService builds a Service. maxChunk <= 0 selects DefaultMaxChunk.
func NewService(provider Provider, cache domain.TranslationCacheRepository, logger zerolog.Logger, maxChunk int) *Service {
	if maxChunk <= 0 {
		maxChunk = DefaultMaxChunk
	}
	return &Service{provider: provider, cache: cache, logger: logger, maxChunk: maxChunk}
}

// CacheKey derives the cache hash for one (source, target, text) triple.
func CacheKey(sourceText, sourceLang, targetLang string) string {
	sum := sha256.Sum256([]byte(sourceLang + ":" + targetLang + ":" + sourceText))
	return hex.EncodeToString(sum[:])
}

// FullyCached reports whether every requested target language has a cached
// translation of the exact text. Cache probe failures degrade to "not
// cached" rather than failing the request.
func (s *Service) FullyCached(ctx context.Context, text, sourceLang string, targets []string) bool {
	cached, err := s.cache.CachedTargets(ctx, text, sourceLang, targets)
	if err != nil {
		s.logger.Warn().Err(err).Msg("cache probe failed, assuming miss")
		return false
	}
	hit := make(map[string]bool, len(cached))
	for _, lang := range cached {
		hit[lang] = true
	}
	for _, lang := range targets {
		if !hit[lang] {
			return false
		}
	}
	return len(targets) > 0
}

// TranslateMany translates text into every target language, fanning out one
// goroutine per language. Chunking applies above the configured threshold.
// Per-language failures are collected; partial results are returned along
// with an error naming the first failed language.
func (s *Service) TranslateMany(ctx context.Context, text, sourceLang string, targets []string) (map[string]string, error) {
	chunks := splitChunks(text, s.maxChunk)

	results := make(map[string]string, len(targets))
	failures := make(map[string]error)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, lang := range targets {
		wg.Add(1)
		go func(lang string) {
			defer wg.Done()
			translated, err := s.translateChunks(ctx, chunks, sourceLang, lang)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures[lang] = err
				return
			}
			results[lang] = translated
		}(lang)
	}
	wg.Wait()

	for lang, err := range failures {
		s.logger.Error().Err(err).Str("target_lang", lang).Msg("translation failed")
		return results, fmt.Errorf("translate to %s: %w", lang, err)
	}
	return results, nil
}

func (s *Service) translateChunks(ctx context.Context, chunks []string, sourceLang, targetLang string) (string, error) {
	var out []byte
	for _, chunk := range chunks {
		translated, err := s.translateOne(ctx, chunk, sourceLang, targetLang)
		if err != nil {
			return "", err
		}
		out = append(out, translated...)
	}
	return string(out), nil
}

// translateOne serves a single chunk cache-first and writes fresh
// translations back. Cache write failures are logged and swallowed: the
// translation itself succeeded.
func (s *Service) translateOne(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	hash := CacheKey(text, sourceLang, targetLang)
	if entry, err := s.cache.Get(ctx, hash); err == nil && entry != nil {
		return entry.TranslatedText, nil
	}

	translated, err := s.provider.Translate(ctx, text, sourceLang, targetLang)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrProviderFailure, err)
	}

	now := time.Now()
	if err := s.cache.Put(ctx, &domain.TranslationCacheEntry{
		Hash:           hash,
		SourceText:     text,
		SourceLang:     sourceLang,
		TargetLang:     targetLang,
		TranslatedText: translated,
		CreatedAt:      now,
		UpdatedAt:      now,
	}); err != nil {
		s.logger.Warn().Err(err).Msg("cache write failed")
	}
	return translated, nil
}
