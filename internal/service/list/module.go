package list

import (
	"go.uber.org/fx"

	orderrepo "github.com/homefleet/shoplist/internal/repository/order"
)

// Module provides the list service and binds its store.
var Module = fx.Provide(
	func(repo *orderrepo.Repository) Store { return repo },
	NewService,
)
