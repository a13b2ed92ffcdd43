package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"server/internal/credit"
	"server/internal/domain"
	"server/internal/infra"
	"server/internal/middleware"
	"server/internal/ratelimit"
	"server/internal/sqlinline"
	"server/internal/translation"
)

const testSecret = "test-secret"

// stubLedger serializes check-and-increment under one lock, mirroring the
// row-lock atomicity of the postgres store.
type stubLedger struct {
	mu   sync.Mutex
	used map[string]int64
}

func newStubLedger() *stubLedger {
	return &stubLedger{used: make(map[string]int64)}
}

func (s *stubLedger) key(userID string, periodStart time.Time) string {
	return userID + "|" + periodStart.UTC().Format(time.RFC3339)
}

func (s *stubLedger) TryDeduct(_ context.Context, userID string, periodStart, _ time.Time, amount, capacity int64) (bool, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := s.key(userID, periodStart)
	if s.used[k]+amount > capacity {
		return false, s.used[k], nil
	}
	s.used[k] += amount
	return true, s.used[k], nil
}

func (s *stubLedger) Grant(_ context.Context, userID string, periodStart, _ time.Time, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.used[s.key(userID, periodStart)] -= amount
	return nil
}

func (s *stubLedger) GetUsed(_ context.Context, userID string, periodStart time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.used[s.key(userID, periodStart)], nil
}

// stubCache is an in-memory translation cache.
type stubCache struct {
	mu      sync.Mutex
	entries map[string]*domain.TranslationCacheEntry
}

func newStubCache() *stubCache {
	return &stubCache{entries: make(map[string]*domain.TranslationCacheEntry)}
}

func (s *stubCache) Get(_ context.Context, hash string) (*domain.TranslationCacheEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[hash]; ok {
		return e, nil
	}
	return nil, domain.ErrNotFound
}

func (s *stubCache) Put(_ context.Context, entry *domain.TranslationCacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.Hash] = entry
	return nil
}

func (s *stubCache) CachedTargets(_ context.Context, sourceText, sourceLang string, targets []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var hit []string
	for _, lang := range targets {
		if _, ok := s.entries[translation.CacheKey(sourceText, sourceLang, lang)]; ok {
			hit = append(hit, lang)
		}
	}
	return hit, nil
}

func (s *stubCache) seed(sourceText, sourceLang, targetLang, translated string) {
	hash := translation.CacheKey(sourceText, sourceLang, targetLang)
	s.entries[hash] = &domain.TranslationCacheEntry{
		Hash:           hash,
		SourceText:     sourceText,
		SourceLang:     sourceLang,
		TargetLang:     targetLang,
		TranslatedText: translated,
	}
}

// echoProvider translates by tagging the text with the target language.
type echoProvider struct{}

func (echoProvider) Translate(_ context.Context, text, _, targetLang string) (string, error) {
	return "[" + targetLang + "]" + text, nil
}

// recordSQL records Exec calls and serves no rows.
type recordSQL struct {
	mu    sync.Mutex
	execs []string
}

func (r *recordSQL) Exec(_ context.Context, query string, _ ...any) (pgconn.CommandTag, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.execs = append(r.execs, query)
	return pgconn.CommandTag{}, nil
}

func (r *recordSQL) QueryRow(context.Context, string, ...any) pgx.Row {
	return SimpleRow{}
}

func (r *recordSQL) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, pgx.ErrNoRows
}

func (r *recordSQL) execCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.execs)
}

type testEnv struct {
	app    *App
	ledger *stubLedger
	cache  *stubCache
	sql    *recordSQL
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ledger := newStubLedger()
	cache := newStubCache()
	sql := &recordSQL{}
	logger := zerolog.Nop()
	cfg := &infra.Config{
		JWTSecret:                testSecret,
		DefaultSourceLang:        "ko",
		TranslateRateLimitMax:    100,
		TranslateRateLimitWindow: time.Minute,
	}
	app := &App{
		Cfg:        cfg,
		Logger:     logger,
		SQL:        sql,
		Engine:     credit.NewEngine(ledger, logger),
		Limiter:    ratelimit.New(),
		Translator: translation.NewService(echoProvider{}, cache, logger, 0),
	}
	return &testEnv{app: app, ledger: ledger, cache: cache, sql: sql}
}

// authedRequest routes through the JWT middleware so the user context is
// populated exactly as it is in production.
func authedRequest(t *testing.T, handler http.HandlerFunc, method, path string, body any, userID string, plan domain.Plan) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	token, err := middleware.SignJWT(testSecret, middleware.TokenClaims{
		Sub:  userID,
		Plan: string(plan),
		Exp:  time.Now().Add(time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	middleware.AuthJWT(testSecret)(handler).ServeHTTP(rr, req)
	return rr
}

func TestTranslateCreate_ChargesAndTranslates(t *testing.T) {
	env := newTestEnv(t)

	rr := authedRequest(t, env.app.TranslateCreate, "POST", "/v1/translate", map[string]any{
		"text":         "hello",
		"target_langs": []string{"en", "ja"},
	}, "user-1", domain.PlanFree)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp struct {
		Success         bool              `json:"success"`
		Results         map[string]string `json:"results"`
		CreditsUsed     int64             `json:"credits_used"`
		OriginalCredits int64             `json:"original_credits"`
		Remaining       int64             `json:"remaining"`
		FromCache       bool              `json:"from_cache"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))

	assert.True(t, resp.Success)
	assert.Equal(t, "[en]hello", resp.Results["en"])
	assert.Equal(t, "[ja]hello", resp.Results["ja"])
	assert.Equal(t, int64(10), resp.CreditsUsed)
	assert.Equal(t, int64(10), resp.OriginalCredits)
	assert.Equal(t, domain.PlanFree.Credits()-10, resp.Remaining)
	assert.False(t, resp.FromCache)

	// History is written once, via the inline insert.
	require.Equal(t, 1, env.sql.execCount())
	assert.Equal(t, sqlinline.QInsertHistory, env.sql.execs[0])
}

func TestTranslateCreate_InsufficientCredits(t *testing.T) {
	env := newTestEnv(t)

	// Leave only 5 credits in the free window.
	periodStart, resetAt := credit.ResolveWindow(domain.PlanFree, time.Now())
	ok, _, err := env.ledger.TryDeduct(context.Background(), "user-1", periodStart, resetAt, domain.PlanFree.Credits()-5, domain.PlanFree.Credits())
	require.NoError(t, err)
	require.True(t, ok)

	rr := authedRequest(t, env.app.TranslateCreate, "POST", "/v1/translate", map[string]any{
		"text":         "hello",
		"target_langs": []string{"en", "ja"},
	}, "user-1", domain.PlanFree)

	require.Equal(t, http.StatusPaymentRequired, rr.Code, rr.Body.String())

	var resp struct {
		Error     string `json:"error"`
		Required  int64  `json:"required"`
		Available int64  `json:"available"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "insufficient_credits", resp.Error)
	assert.Equal(t, int64(10), resp.Required)
	assert.Equal(t, int64(5), resp.Available)

	// Nothing was deducted and no history was written.
	used, err := env.ledger.GetUsed(context.Background(), "user-1", periodStart)
	require.NoError(t, err)
	assert.Equal(t, domain.PlanFree.Credits()-5, used)
	assert.Equal(t, 0, env.sql.execCount())
}

func TestTranslateCreate_CacheDiscount(t *testing.T) {
	env := newTestEnv(t)
	env.cache.seed("hello", "ko", "en", "cached-en")
	env.cache.seed("hello", "ko", "ja", "cached-ja")

	rr := authedRequest(t, env.app.TranslateCreate, "POST", "/v1/translate", map[string]any{
		"text":         "hello",
		"target_langs": []string{"en", "ja"},
	}, "user-1", domain.PlanFree)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp struct {
		Results         map[string]string `json:"results"`
		CreditsUsed     int64             `json:"credits_used"`
		OriginalCredits int64             `json:"original_credits"`
		FromCache       bool              `json:"from_cache"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))

	assert.True(t, resp.FromCache)
	assert.Equal(t, "cached-en", resp.Results["en"])
	assert.Equal(t, "cached-ja", resp.Results["ja"])
	// Full price 10, discounted to 10% rounded up.
	assert.Equal(t, int64(10), resp.OriginalCredits)
	assert.Equal(t, int64(1), resp.CreditsUsed)
}

func TestTranslateCreate_RateLimited(t *testing.T) {
	env := newTestEnv(t)
	env.app.Cfg.TranslateRateLimitMax = 1

	first := authedRequest(t, env.app.TranslateCreate, "POST", "/v1/translate", map[string]any{
		"text":         "hi",
		"target_langs": []string{"en"},
	}, "user-1", domain.PlanFree)
	require.Equal(t, http.StatusOK, first.Code)

	second := authedRequest(t, env.app.TranslateCreate, "POST", "/v1/translate", map[string]any{
		"text":         "hi",
		"target_langs": []string{"en"},
	}, "user-1", domain.PlanFree)
	require.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "0", second.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, second.Header().Get("X-RateLimit-Reset"))

	// The denied request charged nothing.
	periodStart, _ := credit.ResolveWindow(domain.PlanFree, time.Now())
	used, err := env.ledger.GetUsed(context.Background(), "user-1", periodStart)
	require.NoError(t, err)
	assert.Equal(t, int64(2), used)
}

func TestTranslateCreate_Validation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"empty text", map[string]any{"text": "", "target_langs": []string{"en"}}},
		{"no targets", map[string]any{"text": "hello", "target_langs": []string{}}},
		{"bad language tag", map[string]any{"text": "hello", "target_langs": []string{"not a lang!"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := authedRequest(t, env.app.TranslateCreate, "POST", "/v1/translate", tt.body, "user-1", domain.PlanFree)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("got %d, want 400", rr.Code)
			}
		})
	}
}

func TestTranslateCreate_RequiresAuth(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest("POST", "/v1/translate", bytes.NewBufferString(`{"text":"hi","target_langs":["en"]}`))
	rr := httptest.NewRecorder()
	middleware.AuthJWT(testSecret)(http.HandlerFunc(env.app.TranslateCreate)).ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("got %d, want 401", rr.Code)
	}
}
