package order

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/homefleet/shoplist/internal/dto"
	"github.com/homefleet/shoplist/internal/entity"
	"github.com/homefleet/shoplist/internal/presentation/http/response"
	orderrepo "github.com/homefleet/shoplist/internal/repository/order"
	"github.com/homefleet/shoplist/internal/service/intake"
	"github.com/homefleet/shoplist/internal/service/list"
	"github.com/homefleet/shoplist/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/homefleet/shoplist/transport/http/order")

// Handler exposes the shopping-list endpoints over HTTP.
type Handler struct {
	intake *intake.Service
	list   *list.Service
}

// NewHandler constructs an order Handler.
func NewHandler(intakeSvc *intake.Service, listSvc *list.Service) *Handler {
	return &Handler{intake: intakeSvc, list: listSvc}
}

// Register routes with the provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/orders")
	g.POST("/intake", h.submit)
	g.POST("/intake/manual", h.resolveManual)
	g.GET("", h.listActive)
	g.POST("/commit", h.commit)
}

// submit accepts one audio clip (multipart field "audio" or the raw body)
// and runs it through the intake flow.
func (h *Handler) submit(c echo.Context) error {
	b := response.New(c)

	audio, err := readAudio(c)
	if err != nil {
		return b.WithError(errorbank.BadRequest("could not read audio", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.submit", trace.WithAttributes(
		attribute.Int("intake.audio_bytes", len(audio)),
	))
	defer span.End()

	outcome, err := h.intake.Submit(ctx, audio)
	if err != nil {
		return b.WithError(err).Build()
	}

	payload := dto.IntakeResponse{
		State:      string(outcome.State),
		Message:    outcome.Message,
		Hypotheses: outcome.Hypotheses,
	}
	status := http.StatusOK
	if outcome.State == intake.StateAppended && outcome.Order != nil {
		resp := toDTO(*outcome.Order)
		payload.Order = &resp
		status = http.StatusCreated
	}

	return b.WithStatus(status).WithData(payload).Build()
}

// resolveManual appends the hypothesis the user picked after the
// extraction service was unreachable.
func (h *Handler) resolveManual(c echo.Context) error {
	b := response.New(c)

	var payload struct {
		Product string `json:"product"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.resolveManual")
	defer span.End()

	order, err := h.intake.ResolveManual(ctx, payload.Product)
	if err != nil {
		return b.WithError(err).Build()
	}

	resp := toDTO(order)
	return b.WithStatus(http.StatusCreated).WithData(dto.IntakeResponse{
		State: string(intake.StateAppended),
		Order: &resp,
	}).Build()
}

func (h *Handler) listActive(c echo.Context) error {
	b := response.New(c)

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.listActive")
	defer span.End()

	orders, err := h.list.ListActive(ctx)
	if err != nil {
		return b.WithError(err).Build()
	}

	items := make([]dto.OrderResponse, 0, len(orders))
	for _, order := range orders {
		items = append(items, toDTO(order))
	}
	return b.WithData(items).WithMeta("count", len(items)).Build()
}

// commit applies a batch of list-view edits and reports per-row results.
// The client is expected to re-fetch the list afterwards.
func (h *Handler) commit(c echo.Context) error {
	b := response.New(c)

	var payload struct {
		Edits []dto.OrderEdit `json:"edits"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	if len(payload.Edits) == 0 {
		return b.WithError(errorbank.BadRequest("no edits supplied")).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.commit", trace.WithAttributes(
		attribute.Int("list.edits", len(payload.Edits)),
	))
	defer span.End()

	edits := make([]list.Edit, 0, len(payload.Edits))
	for _, e := range payload.Edits {
		edits = append(edits, list.Edit{ID: e.ID, Fulfilled: e.Fulfilled, Amount: e.Amount})
	}

	results := h.list.Commit(ctx, edits)

	out := make([]dto.EditResult, 0, len(results))
	for _, r := range results {
		item := dto.EditResult{ID: r.ID, Updated: r.Updated}
		switch {
		case errors.Is(r.Err, orderrepo.ErrNotFound):
			item.Error = "not found"
		case r.Err != nil:
			item.Error = r.Err.Error()
		}
		out = append(out, item)
	}
	return b.WithData(out).WithMessage("list updated").Build()
}

func readAudio(c echo.Context) ([]byte, error) {
	if file, err := c.FormFile("audio"); err == nil {
		src, err := file.Open()
		if err != nil {
			return nil, err
		}
		defer src.Close()
		return io.ReadAll(src)
	}
	return io.ReadAll(c.Request().Body)
}

func toDTO(order entity.Order) dto.OrderResponse {
	return dto.OrderResponse{
		ID:        order.ID,
		Date:      order.Date.Format(entity.DateLayout),
		Product:   order.Product,
		Amount:    order.Amount,
		Active:    order.Active(),
		OrderedBy: order.OrderedBy,
	}
}
