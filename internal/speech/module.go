package speech

import "go.uber.org/fx"

// Module provides the speech recognizer to Fx.
var Module = fx.Provide(NewRecognizer)
