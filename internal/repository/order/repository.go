package order

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/homefleet/shoplist/internal/entity"
	"github.com/homefleet/shoplist/internal/sheet"
)

var repoTracer = otel.Tracer("github.com/homefleet/shoplist/repository/order")

// ErrNotFound is returned when no worksheet row carries the requested id.
var ErrNotFound = errors.New("order not found")

// Worksheet column positions (1 = A) and header literal.
const (
	idColumn     = 1
	amountColumn = 4
	statusColumn = 5
	idHeader     = "id"
)

// Repository implements the shopping-list store on top of a row-oriented
// worksheet: id allocation, append, point updates by id, filtered reads.
type Repository struct {
	ws  sheet.Worksheet
	now func() time.Time

	// Serializes allocate-then-append within this process. Two separate
	// clients writing to the same worksheet can still race on NextID.
	mu sync.Mutex
}

// NewRepository wires a repository over the given worksheet.
func NewRepository(ws sheet.Worksheet) *Repository {
	return &Repository{ws: ws, now: time.Now}
}

// NextID returns 1 plus the greatest id currently present, or 1 when the
// worksheet holds nothing beyond its header row.
func (r *Repository) NextID(ctx context.Context) (int64, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.NextID")
	defer span.End()

	values, err := r.ws.ColumnValues(ctx, idColumn)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "column read failed")
		return 0, err
	}

	var max int64
	for _, value := range values {
		// The header literal and any stray non-numeric cell are not data.
		id, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			continue
		}
		if id > max {
			max = id
		}
	}
	return max + 1, nil
}

// Append writes a new active row with a freshly allocated id and today's
// date, returning the stored order.
func (r *Repository) Append(ctx context.Context, draft entity.OrderDraft) (entity.Order, error) {
	if draft.Product == "" {
		return entity.Order{}, errors.New("empty product")
	}

	ctx, span := repoTracer.Start(ctx, "OrderRepository.Append", trace.WithAttributes(attribute.String("order.product", draft.Product)))
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()

	id, err := r.NextID(ctx)
	if err != nil {
		return entity.Order{}, err
	}

	order := entity.Order{
		ID:        id,
		Date:      r.now(),
		Product:   draft.Product,
		Amount:    draft.Amount,
		Status:    entity.StatusActive,
		OrderedBy: draft.OrderedBy,
	}

	amountCell := any("")
	if order.Amount != nil {
		amountCell = *order.Amount
	}
	row := []any{
		order.ID,
		order.Date.Format(entity.DateLayout),
		order.Product,
		amountCell,
		order.Status,
		order.OrderedBy,
	}

	if err := r.ws.AppendRow(ctx, row); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "append failed")
		return entity.Order{}, err
	}
	return order, nil
}

// SetFulfilled marks the row with the given id as bought. Returns
// ErrNotFound when no row carries the id.
func (r *Repository) SetFulfilled(ctx context.Context, id int64) error {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.SetFulfilled", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	rowNum, err := r.findRow(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			span.SetStatus(codes.Error, "not found")
		}
		return err
	}
	return r.ws.UpdateCell(ctx, cellRef(statusColumn, rowNum), entity.StatusFulfilled)
}

// SetAmount overwrites the amount for the row with the given id. A nil
// amount is a no-op and never clears an existing value.
func (r *Repository) SetAmount(ctx context.Context, id int64, amount *int64) error {
	if amount == nil {
		return nil
	}

	ctx, span := repoTracer.Start(ctx, "OrderRepository.SetAmount", trace.WithAttributes(
		attribute.Int64("order.id", id),
		attribute.Int64("order.amount", *amount),
	))
	defer span.End()

	rowNum, err := r.findRow(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			span.SetStatus(codes.Error, "not found")
		}
		return err
	}
	return r.ws.UpdateCell(ctx, cellRef(amountColumn, rowNum), *amount)
}

// ListActive returns every open order in worksheet (append) order.
func (r *Repository) ListActive(ctx context.Context) ([]entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.ListActive")
	defer span.End()

	rows, err := r.ws.Rows(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "range read failed")
		return nil, err
	}

	orders := make([]entity.Order, 0, len(rows))
	for _, row := range rows {
		order, ok := parseRow(row)
		if !ok {
			continue
		}
		if order.Active() {
			orders = append(orders, order)
		}
	}
	return orders, nil
}

// findRow locates the 1-based worksheet row whose id column matches id
// exactly after integer-to-string coercion.
func (r *Repository) findRow(ctx context.Context, id int64) (int, error) {
	values, err := r.ws.ColumnValues(ctx, idColumn)
	if err != nil {
		return 0, err
	}
	want := strconv.FormatInt(id, 10)
	for i, value := range values {
		if value == want {
			return i + 1, nil
		}
	}
	return 0, fmt.Errorf("%w: id %d", ErrNotFound, id)
}

// parseRow maps one worksheet row onto an Order. The header row and any
// malformed row are skipped, not errors.
func parseRow(row []string) (entity.Order, bool) {
	if len(row) < statusColumn {
		return entity.Order{}, false
	}
	if row[0] == idHeader {
		return entity.Order{}, false
	}

	id, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil || id <= 0 {
		return entity.Order{}, false
	}

	order := entity.Order{
		ID:      id,
		Product: row[2],
		Status:  row[4],
	}
	if date, err := time.Parse(entity.DateLayout, row[1]); err == nil {
		order.Date = date
	}
	if row[3] != "" {
		if amount, err := strconv.ParseInt(row[3], 10, 64); err == nil {
			order.Amount = &amount
		}
	}
	if len(row) > 5 {
		order.OrderedBy = row[5]
	}
	return order, true
}

// cellRef builds worksheet-local A1 notation for a column/row pair.
func cellRef(column, row int) string {
	return fmt.Sprintf("%c%d", 'A'+column-1, row)
}
