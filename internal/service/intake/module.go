package intake

import (
	"go.uber.org/fx"

	"github.com/homefleet/shoplist/internal/extractor"
	orderrepo "github.com/homefleet/shoplist/internal/repository/order"
	listsvc "github.com/homefleet/shoplist/internal/service/list"
	"github.com/homefleet/shoplist/internal/speech"
)

// Module provides the intake service and binds its collaborators.
var Module = fx.Provide(
	func(r *speech.Recognizer) Transcriber { return r },
	func(e *extractor.Extractor) OrderExtractor { return e },
	func(repo *orderrepo.Repository) Store { return repo },
	func(l *listsvc.Service) Refresher { return l },
	NewService,
)
