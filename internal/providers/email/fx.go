package email

import (
	"github.com/pyrosafe/fieldops/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func NewProvider(cfg config.Config, log *zap.Logger) Provider {
	if cfg.SMTP.Host == "" {
		log.Named("providers.email").Warn("SMTP host not configured, email delivery disabled")
		return &NoOpProvider{}
	}
	return NewSMTP(cfg.SMTP)
}

var Module = fx.Module("providers.email",
	fx.Provide(NewProvider),
)
