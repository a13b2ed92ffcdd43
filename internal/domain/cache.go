package domain

import "time"

// TranslationCacheEntry stores a previously computed translation keyed by a
// hash of (sourceLang, targetLang, sourceText). Not authoritative for
// credits; it only drives the cache discount.
type TranslationCacheEntry struct {
	Hash           string
	SourceText     string
	SourceLang     string
	TargetLang     string
	TranslatedText string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
