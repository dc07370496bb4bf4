package order

import (
	"go.uber.org/fx"

	"github.com/homefleet/shoplist/internal/sheet"
)

// Module provides the order repository to Fx.
var Module = fx.Provide(func(client *sheet.Client) *Repository {
	return NewRepository(client)
})
