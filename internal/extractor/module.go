package extractor

import "go.uber.org/fx"

// Module provides the order extractor to Fx.
var Module = fx.Provide(NewExtractor)
