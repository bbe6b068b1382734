package speech

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCache struct {
	values map[string]string
	ttls   map[string]time.Duration
	getErr error
	setErr error
}

func newFakeCache() *fakeCache {
	return &fakeCache{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (c *fakeCache) Get(ctx context.Context, key string) (string, error) {
	if c.getErr != nil {
		return "", c.getErr
	}
	return c.values[key], nil
}

func (c *fakeCache) Set(ctx context.Context, key, token string, ttl time.Duration) error {
	if c.setErr != nil {
		return c.setErr
	}
	c.values[key] = token
	c.ttls[key] = ttl
	return nil
}

func newTestProvider(t *testing.T, cache TokenCache, handler http.HandlerFunc) *Provider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	p := NewProvider(Config{
		Key:      "test-key",
		Region:   "eastus",
		TokenTTL: 9 * time.Minute,
	}, cache, zap.NewNop())
	p.endpoint = server.URL
	return p
}

func TestGetToken_IssuesAndCaches(t *testing.T) {
	cache := newFakeCache()
	var gotKey string
	p := newTestProvider(t, cache, func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("Ocp-Apim-Subscription-Key")
		_, _ = w.Write([]byte("issued-token"))
	})

	token, err := p.GetToken(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "issued-token", token.Token)
	assert.Equal(t, "eastus", token.Region)
	assert.Equal(t, "test-key", gotKey)
	assert.Equal(t, "issued-token", cache.values["speech_token:eastus"])
	assert.Equal(t, 9*time.Minute, cache.ttls["speech_token:eastus"])
}

func TestGetToken_CacheHitSkipsAzure(t *testing.T) {
	cache := newFakeCache()
	cache.values["speech_token:eastus"] = "cached-token"
	p := newTestProvider(t, cache, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("запрос к Azure при валидном кеше")
	})

	token, err := p.GetToken(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "cached-token", token.Token)
}

func TestGetToken_CacheFailureFallsThrough(t *testing.T) {
	cache := newFakeCache()
	cache.getErr = errors.New("redis down")
	p := newTestProvider(t, cache, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("fresh-token"))
	})

	token, err := p.GetToken(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "fresh-token", token.Token)
}

func TestGetToken_NilCache(t *testing.T) {
	p := newTestProvider(t, nil, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("uncached-token"))
	})

	token, err := p.GetToken(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "uncached-token", token.Token)
}

func TestGetToken_AzureError(t *testing.T) {
	p := newTestProvider(t, nil, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := p.GetToken(context.Background())

	assert.ErrorIs(t, err, ErrTokenIssue)
}

func TestGetToken_EmptyBody(t *testing.T) {
	p := newTestProvider(t, nil, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	_, err := p.GetToken(context.Background())

	assert.ErrorIs(t, err, ErrTokenIssue)
}
