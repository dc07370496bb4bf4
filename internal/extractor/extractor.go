package extractor

import (
	"bytes"
	"context"
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

	"github.com/homefleet/shoplist/internal/config"
)

var extractorTracer = otel.Tracer("github.com/homefleet/shoplist/extractor")

var (
	// ErrRejected means the model answered but judged neither candidate a
	// valid grocery-list item.
	ErrRejected = errors.New("no valid grocery item in either candidate")
	// ErrUnavailable means the extraction service could not be reached or
	// did not produce a usable answer. Timeouts land here as well, so the
	// caller can fall back to a manual choice.
	ErrUnavailable = errors.New("extraction service unavailable")
)

const systemPrompt = `You are an excellent grocery shopping list writer assistant.
You are given two possible transcriptions of a spoken shopping-list item, one in English and one in Hebrew.
Pick the one that is the more plausible grocery-list item and answer with a JSON object {"product": string, "amount": integer or null}.
If the item includes a quantity, split it out: the amount field carries the integer and the product field must not contain any quantity, in either language.
If the item has no quantity, set amount to null.
If neither candidate looks like a grocery-list item, set product to an empty string.
Do not translate between languages.`

// Extraction is the structured judgement for one spoken order.
type Extraction struct {
	Product string
	Amount  *int64
}

// Extractor asks a chat-completion model to choose between two
// transcription hypotheses and split product from amount.
type Extractor struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
	logger  *zap.Logger
}

// NewExtractor builds an Extractor from configuration.
func NewExtractor(cfg config.Config, logger *zap.Logger) *Extractor {
	return &Extractor{
		baseURL: strings.TrimRight(cfg.Extractor.BaseURL, "/"),
		apiKey:  cfg.Extractor.APIKey,
		model:   cfg.Extractor.Model,
		client:  &http.Client{Timeout: cfg.Extractor.CallTimeout},
		logger:  logger,
	}
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type extractionPayload struct {
	Product string       `json:"product"`
	Amount  *json.Number `json:"amount"`
}

// Extract submits both hypotheses in a single synchronous call, no retry.
func (e *Extractor) Extract(ctx context.Context, textA, textB string) (Extraction, error) {
	ctx, span := extractorTracer.Start(ctx, "Extractor.Extract", trace.WithAttributes(
		attribute.String("extractor.model", e.model),
	))
	defer span.End()

	prompt := fmt.Sprintf("please return appropriate item: %s or %s", textA, textB)

	reqBody := chatRequest{
		Model: e.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
	}
	reqBody.ResponseFormat.Type = "json_object"

	body, err := json.Marshal(reqBody)
	if err != nil {
		return Extraction{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Extraction{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport failure")
		return Extraction{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		span.SetStatus(codes.Error, "non-200 response")
		return Extraction{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Extraction{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(decoded.Choices) == 0 {
		return Extraction{}, fmt.Errorf("%w: empty completion", ErrUnavailable)
	}

	var payload extractionPayload
	if err := json.Unmarshal([]byte(decoded.Choices[0].Message.Content), &payload); err != nil {
		span.RecordError(err)
		return Extraction{}, fmt.Errorf("%w: malformed answer: %v", ErrUnavailable, err)
	}

	product := strings.TrimSpace(payload.Product)
	if product == "" {
		span.SetStatus(codes.Error, "rejected")
		return Extraction{}, ErrRejected
	}

	result := Extraction{Product: product}
	if payload.Amount != nil {
		amount, err := payload.Amount.Int64()
		if err == nil && amount > 0 {
			result.Amount = &amount
		}
	}

	if e.logger != nil {
		e.logger.Debug("order extracted", zap.String("product", result.Product))
	}
	return result, nil
}
