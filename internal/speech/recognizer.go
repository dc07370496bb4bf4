package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/homefleet/shoplist/internal/config"
)

var speechTracer = otel.Tracer("github.com/homefleet/shoplist/speech")

var (
	// ErrUnintelligible means recognition ran but produced no usable text
	// in any configured language.
	ErrUnintelligible = errors.New("could not understand the audio")
	// ErrUnavailable means the recognition service could not be reached.
	ErrUnavailable = errors.New("speech service unavailable")
)

// Recognizer transcribes an audio clip once per configured language tag.
type Recognizer struct {
	endpoint  string
	apiKey    string
	languages []string
	client    *http.Client
	logger    *zap.Logger
}

// NewRecognizer builds a Recognizer from configuration.
func NewRecognizer(cfg config.Config, logger *zap.Logger) *Recognizer {
	return &Recognizer{
		endpoint:  cfg.Speech.Endpoint,
		apiKey:    cfg.Speech.APIKey,
		languages: cfg.Speech.Languages,
		client:    &http.Client{Timeout: cfg.Speech.CallTimeout},
		logger:    logger,
	}
}

type recognizeRequest struct {
	Config struct {
		LanguageCode string `json:"languageCode"`
	} `json:"config"`
	Audio struct {
		Content string `json:"content"`
	} `json:"audio"`
}

type recognizeResponse struct {
	Results []struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"results"`
}

// Recognize runs one recognition pass over the clip for a single language.
// Returns "" when the service answered but heard nothing usable.
func (r *Recognizer) Recognize(ctx context.Context, audio []byte, language string) (string, error) {
	ctx, span := speechTracer.Start(ctx, "Recognizer.Recognize", trace.WithAttributes(
		attribute.String("speech.language", language),
		attribute.Int("speech.audio_bytes", len(audio)),
	))
	defer span.End()

	var payload recognizeRequest
	payload.Config.LanguageCode = language
	payload.Audio.Content = base64.StdEncoding.EncodeToString(audio)

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	url := r.endpoint
	if r.apiKey != "" {
		url = fmt.Sprintf("%s?key=%s", r.endpoint, r.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport failure")
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		span.SetStatus(codes.Error, "non-200 response")
		return "", fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var decoded recognizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	for _, result := range decoded.Results {
		for _, alt := range result.Alternatives {
			if text := strings.TrimSpace(alt.Transcript); text != "" {
				return text, nil
			}
		}
	}
	return "", nil
}

// Transcribe runs recognition over the same clip for every configured
// language and returns one hypothesis per language, in configuration order.
// A language that yields nothing contributes an empty hypothesis; if every
// language comes back empty the clip is unintelligible.
func (r *Recognizer) Transcribe(ctx context.Context, audio []byte) ([]string, error) {
	ctx, span := speechTracer.Start(ctx, "Recognizer.Transcribe")
	defer span.End()

	hypotheses := make([]string, len(r.languages))
	g, gctx := errgroup.WithContext(ctx)
	for i, language := range r.languages {
		g.Go(func() error {
			text, err := r.Recognize(gctx, audio, language)
			if err != nil {
				return err
			}
			hypotheses[i] = text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	usable := false
	for _, h := range hypotheses {
		if h != "" {
			usable = true
			break
		}
	}
	if !usable {
		span.SetStatus(codes.Error, "no usable hypothesis")
		return nil, ErrUnintelligible
	}

	if r.logger != nil {
		r.logger.Debug("audio transcribed", zap.Strings("hypotheses", hypotheses))
	}
	return hypotheses, nil
}
