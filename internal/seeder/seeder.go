package seeder

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/homefleet/shoplist/internal/entity"
	orderrepo "github.com/homefleet/shoplist/internal/repository/order"
	"github.com/homefleet/shoplist/internal/sheet"
)

// Module provides the seeder to Fx.
var Module = fx.Provide(New)

// headerRow matches the fixed A..F column layout of the worksheet.
var headerRow = []any{"id", "date", "product", "amount", "status", "orderedBy"}

// Seeder prepares a fresh worksheet for local/dev setups: header row plus a
// couple of sample orders.
type Seeder struct {
	ws     *sheet.Client
	repo   *orderrepo.Repository
	logger *zap.Logger
}

// New constructs a Seeder over the shared worksheet.
func New(ws *sheet.Client, repo *orderrepo.Repository, logger *zap.Logger) *Seeder {
	return &Seeder{ws: ws, repo: repo, logger: logger}
}

// Orders writes the header row when the worksheet is empty and seeds two
// sample orders when nothing beyond the header exists. A worksheet with
// data is left untouched.
func (s *Seeder) Orders(ctx context.Context) error {
	rows, err := s.ws.Rows(ctx)
	if err != nil {
		return err
	}

	if len(rows) == 0 {
		if err := s.ws.AppendRow(ctx, headerRow); err != nil {
			return err
		}
	} else if len(rows) > 1 {
		s.logger.Info("worksheet already has data; skipping seed")
		return nil
	}

	two := int64(2)
	samples := []entity.OrderDraft{
		{Product: "milk", Amount: &two},
		{Product: "eggs"},
	}
	for _, draft := range samples {
		if _, err := s.repo.Append(ctx, draft); err != nil {
			return err
		}
	}

	s.logger.Info("seeded orders", zap.Int("count", len(samples)))
	return nil
}
