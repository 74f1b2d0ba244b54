package inspection

import (
	"github.com/pyrosafe/fieldops/internal/inspection/service"
	"go.uber.org/fx"
)

var Module = fx.Module("inspection.service",
	fx.Provide(service.NewService),
)
