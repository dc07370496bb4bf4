package config

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, "googlebase", cfg.Sheet.Book)
	assert.Equal(t, "shopping", cfg.Sheet.Worksheet)
	assert.Equal(t, []string{"en-US", "he-IL"}, cfg.Speech.Languages)
	assert.Equal(t, "llama-3.3-70b-versatile", cfg.Extractor.Model)
	assert.Equal(t, "shoplist", cfg.Observability.ServiceName)
}

func TestNewDecodesCredentials(t *testing.T) {
	blob := `{"type":"service_account","project_id":"test"}`
	t.Setenv("GOOGLE_SHEETS_CREDENTIALS", base64.StdEncoding.EncodeToString([]byte(blob)))

	cfg, err := New()
	require.NoError(t, err)
	assert.JSONEq(t, blob, string(cfg.Sheet.Credentials))
}

func TestNewRejectsBadCredentials(t *testing.T) {
	t.Setenv("GOOGLE_SHEETS_CREDENTIALS", "%%% not base64 %%%")

	_, err := New()
	assert.Error(t, err)
}

func TestNewRejectsNonJSONCredentials(t *testing.T) {
	t.Setenv("GOOGLE_SHEETS_CREDENTIALS", base64.StdEncoding.EncodeToString([]byte("plain text")))

	_, err := New()
	assert.Error(t, err)
}
