package main

import (
	"go.uber.org/fx"

	"github.com/wareshop/counter/internal/app"
)

func main() {
	fx.New(app.Module).Run()
}
