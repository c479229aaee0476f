package main

import (
	"go.uber.org/fx"

	"github.com/EdmilsonFernandes/EdEspetoHub-sub001/internal/app"
)

func main() {
	fx.New(app.Module).Run()
}
