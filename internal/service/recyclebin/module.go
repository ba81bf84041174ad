package recyclebin

import "go.uber.org/fx"

// Module provides the recycle-bin service to Fx.
var Module = fx.Provide(NewService)
