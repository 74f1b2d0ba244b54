package quote

import (
	"github.com/pyrosafe/fieldops/internal/deficiency"
	"github.com/pyrosafe/fieldops/internal/quote/service"
	"go.uber.org/fx"
)

var Module = fx.Module("quote.engine",
	deficiency.Module,
	fx.Provide(service.NewEngine),
)
