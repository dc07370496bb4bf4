package main

import (
	"go.uber.org/fx"

	"github.com/homefleet/shoplist/internal/app"
)

func main() {
	fx.New(app.Module).Run()
}
