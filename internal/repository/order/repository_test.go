package order

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/homefleet/shoplist/internal/entity"
)

// fakeWorksheet is an in-memory stand-in for the backing spreadsheet.
type fakeWorksheet struct {
	rows    [][]string
	updates int
}

func newFakeWorksheet(rows ...[]string) *fakeWorksheet {
	return &fakeWorksheet{rows: rows}
}

func headerOnly() *fakeWorksheet {
	return newFakeWorksheet([]string{"id", "date", "product", "amount", "status", "orderedBy"})
}

func (f *fakeWorksheet) ColumnValues(_ context.Context, column int) ([]string, error) {
	values := make([]string, 0, len(f.rows))
	for _, row := range f.rows {
		if len(row) < column {
			values = append(values, "")
			continue
		}
		values = append(values, row[column-1])
	}
	return values, nil
}

func (f *fakeWorksheet) Rows(context.Context) ([][]string, error) {
	return f.rows, nil
}

func (f *fakeWorksheet) AppendRow(_ context.Context, row []any) error {
	cells := make([]string, len(row))
	for i, cell := range row {
		cells[i] = fmt.Sprint(cell)
	}
	f.rows = append(f.rows, cells)
	return nil
}

func (f *fakeWorksheet) UpdateCell(_ context.Context, cell string, value any) error {
	column := int(cell[0] - 'A')
	row, err := strconv.Atoi(cell[1:])
	if err != nil {
		return err
	}
	if row < 1 || row > len(f.rows) {
		return fmt.Errorf("cell %s out of range", cell)
	}
	for len(f.rows[row-1]) <= column {
		f.rows[row-1] = append(f.rows[row-1], "")
	}
	f.rows[row-1][column] = fmt.Sprint(value)
	f.updates++
	return nil
}

func TestNextIDHeaderOnly(t *testing.T) {
	repo := NewRepository(headerOnly())

	id, err := repo.NextID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
}

func TestNextIDMonotonic(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(headerOnly())

	for i := int64(1); i <= 5; i++ {
		next, err := repo.NextID(ctx)
		require.NoError(t, err)
		assert.Equal(t, i, next)

		order, err := repo.Append(ctx, entity.OrderDraft{Product: fmt.Sprintf("item-%d", i)})
		require.NoError(t, err)
		assert.Equal(t, i, order.ID)
	}

	next, err := repo.NextID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(6), next)
}

func TestAppendRowShape(t *testing.T) {
	ws := headerOnly()
	repo := NewRepository(ws)
	repo.now = func() time.Time { return time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC) }

	two := int64(2)
	order, err := repo.Append(context.Background(), entity.OrderDraft{Product: "milk", Amount: &two})
	require.NoError(t, err)

	assert.Equal(t, int64(1), order.ID)
	assert.Equal(t, entity.StatusActive, order.Status)

	require.Len(t, ws.rows, 2)
	assert.Equal(t, []string{"1", "14-03-2026", "milk", "2", "1", ""}, ws.rows[1])
}

func TestAppendWithoutAmount(t *testing.T) {
	ws := headerOnly()
	repo := NewRepository(ws)

	_, err := repo.Append(context.Background(), entity.OrderDraft{Product: "bread"})
	require.NoError(t, err)
	assert.Equal(t, "", ws.rows[1][3])
}

func TestAppendEmptyProduct(t *testing.T) {
	repo := NewRepository(headerOnly())

	_, err := repo.Append(context.Background(), entity.OrderDraft{})
	assert.Error(t, err)
}

func TestSetFulfilledExcludesFromActive(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(headerOnly())

	for _, product := range []string{"milk", "eggs", "flour"} {
		_, err := repo.Append(ctx, entity.OrderDraft{Product: product})
		require.NoError(t, err)
	}

	require.NoError(t, repo.SetFulfilled(ctx, 2))

	active, err := repo.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	for _, order := range active {
		assert.NotEqual(t, int64(2), order.ID)
	}
}

func TestSetFulfilledMissingID(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(headerOnly())

	_, err := repo.Append(ctx, entity.OrderDraft{Product: "milk"})
	require.NoError(t, err)

	err = repo.SetFulfilled(ctx, 999)
	assert.True(t, errors.Is(err, ErrNotFound))

	active, err := repo.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestSetAmount(t *testing.T) {
	ctx := context.Background()
	ws := headerOnly()
	repo := NewRepository(ws)

	five := int64(5)
	_, err := repo.Append(ctx, entity.OrderDraft{Product: "milk", Amount: &five})
	require.NoError(t, err)

	// Nil amount never clears an existing value.
	require.NoError(t, repo.SetAmount(ctx, 1, nil))
	assert.Equal(t, "5", ws.rows[1][3])
	assert.Zero(t, ws.updates)

	seven := int64(7)
	require.NoError(t, repo.SetAmount(ctx, 1, &seven))
	assert.Equal(t, "7", ws.rows[1][3])

	_, err = repo.ListActive(ctx)
	require.NoError(t, err)

	err = repo.SetAmount(ctx, 999, &seven)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestListActivePreservesAppendOrder(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(headerOnly())

	products := []string{"milk", "eggs", "flour", "salt"}
	for _, product := range products {
		_, err := repo.Append(ctx, entity.OrderDraft{Product: product})
		require.NoError(t, err)
	}

	active, err := repo.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, len(products))
	for i, order := range active {
		assert.Equal(t, products[i], order.Product)
	}
}

func TestListActiveSkipsMalformedRows(t *testing.T) {
	ws := newFakeWorksheet(
		[]string{"id", "date", "product", "amount", "status", "orderedBy"},
		[]string{"1", "01-01-2026", "milk", "", "1", ""},
		[]string{"oops", "01-01-2026", "junk", "", "1", ""},
		[]string{"2", "02-01-2026", "eggs", "3", "0", ""},
	)
	repo := NewRepository(ws)

	active, err := repo.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "milk", active[0].Product)
}
