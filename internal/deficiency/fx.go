package deficiency

import (
	"github.com/pyrosafe/fieldops/internal/deficiency/service"
	"go.uber.org/fx"
)

var Module = fx.Module("deficiency.ledger",
	fx.Provide(service.NewLedger),
)
