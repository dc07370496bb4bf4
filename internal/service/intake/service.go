package intake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/homefleet/shoplist/internal/config"
	"github.com/homefleet/shoplist/internal/entity"
	"github.com/homefleet/shoplist/internal/extractor"
	"github.com/homefleet/shoplist/internal/messaging"
	"github.com/homefleet/shoplist/internal/speech"
	"github.com/homefleet/shoplist/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/homefleet/shoplist/service/intake")

// State names the terminal outcome of one audio submission.
type State string

const (
	// StateAppended: the order was extracted and stored.
	StateAppended State = "appended"
	// StateRejected: the submission was discarded with a user-visible
	// message and no store mutation.
	StateRejected State = "rejected"
	// StateManualChoice: the extraction service was unreachable; the raw
	// hypotheses are offered to the user as a binary choice.
	StateManualChoice State = "manual_choice"
)

const rejectedMessage = "Could not understand your order. Please try again."

// Outcome reports how a submission ended.
type Outcome struct {
	State      State
	Order      *entity.Order
	Message    string
	Hypotheses []string
}

// Transcriber produces one hypothesis per configured language for a clip.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) ([]string, error)
}

// OrderExtractor judges two hypotheses and splits product from amount.
type OrderExtractor interface {
	Extract(ctx context.Context, textA, textB string) (extractor.Extraction, error)
}

// Store appends new orders to the shopping list.
type Store interface {
	Append(ctx context.Context, draft entity.OrderDraft) (entity.Order, error)
}

// Refresher keeps the cached active list in step with store mutations.
type Refresher interface {
	Invalidate(ctx context.Context)
}

// Service walks one audio submission through transcription, extraction and
// append. All submission state lives on the submission value; nothing is
// process-global.
type Service struct {
	transcriber Transcriber
	extractor   OrderExtractor
	store       Store
	list        Refresher
	publisher   messaging.Client
	logger      *zap.Logger
	messaging   messagingConfig
}

type messagingConfig struct {
	enabled bool
	topic   string
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Transcriber Transcriber
	Extractor   OrderExtractor
	Store       Store
	List        Refresher
	Publisher   messaging.Client
	Config      config.Config
	Logger      *zap.Logger
}

// NewService wires a new intake Service.
func NewService(p Params) *Service {
	return &Service{
		transcriber: p.Transcriber,
		extractor:   p.Extractor,
		store:       p.Store,
		list:        p.List,
		publisher:   p.Publisher,
		logger:      p.Logger,
		messaging: messagingConfig{
			enabled: p.Config.Messaging.Enabled,
			topic:   p.Config.Messaging.Kafka.Topic,
		},
	}
}

// submission is the per-request context threaded through the flow stages.
type submission struct {
	audio      []byte
	hypotheses []string
	extraction extractor.Extraction
}

// Submit runs the full intake flow for a single audio clip.
//
// An empty clip is a validation error. Transcription failures and semantic
// rejections end in StateRejected; an unreachable extraction service ends in
// StateManualChoice with the raw hypotheses attached. Only store failures
// propagate as errors.
func (s *Service) Submit(ctx context.Context, audio []byte) (Outcome, error) {
	if len(audio) == 0 {
		return Outcome{}, errorbank.BadRequest("you did not enter any order")
	}

	ctx, span := serviceTracer.Start(ctx, "IntakeService.Submit", trace.WithAttributes(
		attribute.Int("intake.audio_bytes", len(audio)),
	))
	defer span.End()

	sub := &submission{audio: audio}

	if outcome, done := s.transcribe(ctx, sub); done {
		return outcome, nil
	}

	outcome, err := s.extract(ctx, sub)
	if err != nil || outcome.State != StateAppended {
		return outcome, err
	}

	order, err := s.append(ctx, entity.OrderDraft{
		Product: sub.extraction.Product,
		Amount:  sub.extraction.Amount,
	}, "voice")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store append failed")
		return Outcome{}, errorbank.Internal("failed to store order", errorbank.WithCause(err))
	}

	outcome.Order = &order
	return outcome, nil
}

// ResolveManual appends the hypothesis the user picked, verbatim and with
// no amount, completing a submission that ended in StateManualChoice.
func (s *Service) ResolveManual(ctx context.Context, product string) (entity.Order, error) {
	product = strings.TrimSpace(product)
	if product == "" {
		return entity.Order{}, errorbank.BadRequest("no hypothesis selected")
	}

	ctx, span := serviceTracer.Start(ctx, "IntakeService.ResolveManual", trace.WithAttributes(
		attribute.String("order.product", product),
	))
	defer span.End()

	order, err := s.append(ctx, entity.OrderDraft{Product: product}, "manual")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store append failed")
		return entity.Order{}, errorbank.Internal("failed to store order", errorbank.WithCause(err))
	}
	return order, nil
}

func (s *Service) transcribe(ctx context.Context, sub *submission) (Outcome, bool) {
	ctx, span := serviceTracer.Start(ctx, "IntakeService.transcribe")
	defer span.End()

	hypotheses, err := s.transcriber.Transcribe(ctx, sub.audio)
	if err != nil {
		span.RecordError(err)
		switch {
		case errors.Is(err, speech.ErrUnintelligible):
			return Outcome{State: StateRejected, Message: "Could not understand the audio."}, true
		case errors.Is(err, speech.ErrUnavailable):
			return Outcome{State: StateRejected, Message: "Could not request results, please check your internet connection."}, true
		default:
			return Outcome{State: StateRejected, Message: rejectedMessage}, true
		}
	}

	sub.hypotheses = hypotheses
	return Outcome{}, false
}

func (s *Service) extract(ctx context.Context, sub *submission) (Outcome, error) {
	ctx, span := serviceTracer.Start(ctx, "IntakeService.extract")
	defer span.End()

	textA, textB := hypothesisPair(sub.hypotheses)

	result, err := s.extractor.Extract(ctx, textA, textB)
	if err != nil {
		span.RecordError(err)
		switch {
		case errors.Is(err, extractor.ErrRejected):
			return Outcome{State: StateRejected, Message: rejectedMessage}, nil
		case errors.Is(err, extractor.ErrUnavailable):
			// The one recovery path: offer the raw hypotheses instead
			// of failing the submission.
			return Outcome{State: StateManualChoice, Hypotheses: []string{textA, textB}}, nil
		default:
			return Outcome{}, errorbank.Internal("order extraction failed", errorbank.WithCause(err))
		}
	}

	sub.extraction = result
	return Outcome{State: StateAppended}, nil
}

func (s *Service) append(ctx context.Context, draft entity.OrderDraft, source string) (entity.Order, error) {
	order, err := s.store.Append(ctx, draft)
	if err != nil {
		return entity.Order{}, err
	}

	if s.list != nil {
		s.list.Invalidate(ctx)
	}
	s.publishOrderCreated(ctx, order, source)

	s.logger.Info("order appended",
		zap.Int64("id", order.ID),
		zap.String("product", order.Product),
		zap.String("source", source),
	)
	return order, nil
}

func (s *Service) publishOrderCreated(ctx context.Context, order entity.Order, source string) {
	if !s.messaging.enabled || s.publisher == nil {
		return
	}
	event := OrderCreatedEvent{
		ID:      order.ID,
		Product: order.Product,
		Amount:  order.Amount,
		Date:    order.Date,
		Source:  source,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("marshal order created", zap.Error(err))
		return
	}
	if err := s.publisher.Publish(ctx, []byte(fmt.Sprintf("order-%d", order.ID)), payload); err != nil {
		s.logger.Error("publish order created", zap.Error(err))
	}
}

// hypothesisPair pads or trims the hypothesis slice to exactly two texts.
func hypothesisPair(hypotheses []string) (string, string) {
	var a, b string
	if len(hypotheses) > 0 {
		a = hypotheses[0]
	}
	if len(hypotheses) > 1 {
		b = hypotheses[1]
	}
	return a, b
}

// OrderCreatedEvent is emitted when a new order lands on the list.
type OrderCreatedEvent struct {
	ID      int64     `json:"id"`
	Product string    `json:"product"`
	Amount  *int64    `json:"amount"`
	Date    time.Time `json:"date"`
	Source  string    `json:"source"`
}
