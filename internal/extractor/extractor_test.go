package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/homefleet/shoplist/internal/config"
)

func newTestExtractor(baseURL string) *Extractor {
	cfg := config.Config{}
	cfg.Extractor.BaseURL = baseURL
	cfg.Extractor.APIKey = "test-key"
	cfg.Extractor.Model = "llama-3.3-70b-versatile"
	cfg.Extractor.CallTimeout = 2 * time.Second
	return NewExtractor(cfg, zap.NewNop())
}

func completionServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama-3.3-70b-versatile", req["model"])

		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func TestExtractSplitsAmountFromProduct(t *testing.T) {
	srv := completionServer(t, `{"product":"milk","amount":2}`)
	defer srv.Close()

	result, err := newTestExtractor(srv.URL).Extract(context.Background(), "2 milk", "חלב 2")
	require.NoError(t, err)

	assert.Equal(t, "milk", result.Product)
	assert.NotContainsf(t, result.Product, "2", "product must not carry the quantity")
	require.NotNil(t, result.Amount)
	assert.Equal(t, int64(2), *result.Amount)
}

func TestExtractWithoutAmount(t *testing.T) {
	srv := completionServer(t, `{"product":"eggs","amount":null}`)
	defer srv.Close()

	result, err := newTestExtractor(srv.URL).Extract(context.Background(), "eggs", "ביצים")
	require.NoError(t, err)
	assert.Equal(t, "eggs", result.Product)
	assert.Nil(t, result.Amount)
}

func TestExtractRejectsNonsense(t *testing.T) {
	srv := completionServer(t, `{"product":"","amount":null}`)
	defer srv.Close()

	_, err := newTestExtractor(srv.URL).Extract(context.Background(), "asdkfj", "")
	assert.True(t, errors.Is(err, ErrRejected))
}

func TestExtractServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestExtractor(srv.URL).Extract(context.Background(), "milk", "")
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestExtractUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, err := newTestExtractor(srv.URL).Extract(context.Background(), "milk", "")
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestExtractMalformedAnswer(t *testing.T) {
	srv := completionServer(t, `not json at all`)
	defer srv.Close()

	_, err := newTestExtractor(srv.URL).Extract(context.Background(), "milk", "")
	assert.True(t, errors.Is(err, ErrUnavailable))
}
