package intake

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/homefleet/shoplist/internal/config"
	"github.com/homefleet/shoplist/internal/entity"
	"github.com/homefleet/shoplist/internal/extractor"
	"github.com/homefleet/shoplist/internal/messaging"
	"github.com/homefleet/shoplist/internal/speech"
	"github.com/homefleet/shoplist/pkg/errorbank"
)

type fakeTranscriber struct {
	hypotheses []string
	err        error
}

func (f *fakeTranscriber) Transcribe(context.Context, []byte) ([]string, error) {
	return f.hypotheses, f.err
}

type fakeExtractor struct {
	result extractor.Extraction
	err    error
	gotA   string
	gotB   string
}

func (f *fakeExtractor) Extract(_ context.Context, textA, textB string) (extractor.Extraction, error) {
	f.gotA, f.gotB = textA, textB
	return f.result, f.err
}

type fakeStore struct {
	appended []entity.OrderDraft
	err      error
}

func (f *fakeStore) Append(_ context.Context, draft entity.OrderDraft) (entity.Order, error) {
	if f.err != nil {
		return entity.Order{}, f.err
	}
	f.appended = append(f.appended, draft)
	return entity.Order{
		ID:      int64(len(f.appended)),
		Product: draft.Product,
		Amount:  draft.Amount,
		Status:  entity.StatusActive,
	}, nil
}

type fakeRefresher struct {
	invalidations int
}

func (f *fakeRefresher) Invalidate(context.Context) { f.invalidations++ }

type fakePublisher struct {
	published [][]byte
}

func (f *fakePublisher) Publish(_ context.Context, _ []byte, value []byte) error {
	f.published = append(f.published, value)
	return nil
}

func (f *fakePublisher) Consume(ctx context.Context, _ messaging.Handler) error {
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakePublisher) Topic() string { return "shoplist.orders" }

type testDeps struct {
	transcriber *fakeTranscriber
	extractor   *fakeExtractor
	store       *fakeStore
	list        *fakeRefresher
	publisher   *fakePublisher
}

func newTestService(deps testDeps) (*Service, testDeps) {
	if deps.transcriber == nil {
		deps.transcriber = &fakeTranscriber{}
	}
	if deps.extractor == nil {
		deps.extractor = &fakeExtractor{}
	}
	if deps.store == nil {
		deps.store = &fakeStore{}
	}
	if deps.list == nil {
		deps.list = &fakeRefresher{}
	}
	if deps.publisher == nil {
		deps.publisher = &fakePublisher{}
	}

	cfg := config.Config{}
	cfg.Messaging.Enabled = true
	cfg.Messaging.Kafka.Topic = "shoplist.orders"

	svc := NewService(Params{
		Transcriber: deps.transcriber,
		Extractor:   deps.extractor,
		Store:       deps.store,
		List:        deps.list,
		Publisher:   deps.publisher,
		Config:      cfg,
		Logger:      zap.NewNop(),
	})
	return svc, deps
}

func TestSubmitEmptyAudio(t *testing.T) {
	svc, deps := newTestService(testDeps{})

	_, err := svc.Submit(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, errorbank.KindBadRequest, errorbank.From(err).Kind())
	assert.Empty(t, deps.store.appended)
}

func TestSubmitEndToEnd(t *testing.T) {
	three := int64(3)
	svc, deps := newTestService(testDeps{
		transcriber: &fakeTranscriber{hypotheses: []string{"three eggs", "שלוש ביצים"}},
		extractor:   &fakeExtractor{result: extractor.Extraction{Product: "eggs", Amount: &three}},
	})

	outcome, err := svc.Submit(context.Background(), []byte("clip"))
	require.NoError(t, err)

	assert.Equal(t, StateAppended, outcome.State)
	require.NotNil(t, outcome.Order)
	assert.Equal(t, "eggs", outcome.Order.Product)
	require.NotNil(t, outcome.Order.Amount)
	assert.Equal(t, int64(3), *outcome.Order.Amount)

	// Both hypotheses reached the extractor as given.
	assert.Equal(t, "three eggs", deps.extractor.gotA)
	assert.Equal(t, "שלוש ביצים", deps.extractor.gotB)

	require.Len(t, deps.store.appended, 1)
	assert.Equal(t, 1, deps.list.invalidations)

	require.Len(t, deps.publisher.published, 1)
	var event OrderCreatedEvent
	require.NoError(t, json.Unmarshal(deps.publisher.published[0], &event))
	assert.Equal(t, "eggs", event.Product)
	assert.Equal(t, "voice", event.Source)
}

func TestSubmitTranscriptionUnintelligible(t *testing.T) {
	svc, deps := newTestService(testDeps{
		transcriber: &fakeTranscriber{err: speech.ErrUnintelligible},
	})

	outcome, err := svc.Submit(context.Background(), []byte("static"))
	require.NoError(t, err)
	assert.Equal(t, StateRejected, outcome.State)
	assert.NotEmpty(t, outcome.Message)
	assert.Empty(t, deps.store.appended)
}

func TestSubmitTranscriptionUnavailable(t *testing.T) {
	svc, deps := newTestService(testDeps{
		transcriber: &fakeTranscriber{err: speech.ErrUnavailable},
	})

	outcome, err := svc.Submit(context.Background(), []byte("clip"))
	require.NoError(t, err)
	assert.Equal(t, StateRejected, outcome.State)
	assert.Empty(t, deps.store.appended)
}

func TestSubmitExtractionRejected(t *testing.T) {
	svc, deps := newTestService(testDeps{
		transcriber: &fakeTranscriber{hypotheses: []string{"asdkfj", ""}},
		extractor:   &fakeExtractor{err: extractor.ErrRejected},
	})

	outcome, err := svc.Submit(context.Background(), []byte("clip"))
	require.NoError(t, err)
	assert.Equal(t, StateRejected, outcome.State)
	assert.Equal(t, rejectedMessage, outcome.Message)
	assert.Empty(t, deps.store.appended)
	assert.Empty(t, deps.publisher.published)
}

func TestSubmitManualFallback(t *testing.T) {
	svc, deps := newTestService(testDeps{
		transcriber: &fakeTranscriber{hypotheses: []string{"two milk", "שתי חלב"}},
		extractor:   &fakeExtractor{err: extractor.ErrUnavailable},
	})

	outcome, err := svc.Submit(context.Background(), []byte("clip"))
	require.NoError(t, err)

	assert.Equal(t, StateManualChoice, outcome.State)
	// The user is offered exactly the two raw hypotheses.
	assert.Equal(t, []string{"two milk", "שתי חלב"}, outcome.Hypotheses)
	assert.Empty(t, deps.store.appended)
}

func TestResolveManualAppendsVerbatim(t *testing.T) {
	svc, deps := newTestService(testDeps{})

	order, err := svc.ResolveManual(context.Background(), "two milk")
	require.NoError(t, err)

	assert.Equal(t, "two milk", order.Product)
	assert.Nil(t, order.Amount)

	require.Len(t, deps.store.appended, 1)
	assert.Nil(t, deps.store.appended[0].Amount)
	assert.Equal(t, 1, deps.list.invalidations)

	var event OrderCreatedEvent
	require.NoError(t, json.Unmarshal(deps.publisher.published[0], &event))
	assert.Equal(t, "manual", event.Source)
}

func TestResolveManualEmptyChoice(t *testing.T) {
	svc, deps := newTestService(testDeps{})

	_, err := svc.ResolveManual(context.Background(), "  ")
	require.Error(t, err)
	assert.Equal(t, errorbank.KindBadRequest, errorbank.From(err).Kind())
	assert.Empty(t, deps.store.appended)
}

func TestSubmitStoreFailure(t *testing.T) {
	svc, _ := newTestService(testDeps{
		transcriber: &fakeTranscriber{hypotheses: []string{"milk", ""}},
		extractor:   &fakeExtractor{result: extractor.Extraction{Product: "milk"}},
		store:       &fakeStore{err: assert.AnError},
	})

	_, err := svc.Submit(context.Background(), []byte("clip"))
	require.Error(t, err)
	assert.Equal(t, errorbank.KindInternal, errorbank.From(err).Kind())
}
