package recyclebin

import "go.uber.org/fx"

// Module provides the recycle-bin repository to Fx.
var Module = fx.Provide(NewRepository)
