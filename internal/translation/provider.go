package translation

import "context"

// Provider translates a single text into a single target language.
type Provider interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}
