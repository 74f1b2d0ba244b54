package invoice

import (
	"github.com/pyrosafe/fieldops/internal/invoice/service"
	"go.uber.org/fx"
)

var Module = fx.Module("invoice.ledger",
	fx.Provide(service.NewLedger),
)
