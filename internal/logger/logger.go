package logger

import (
	"go.uber.org/zap"

	"github.com/vocaloop/srs-core/internal/config"
)

// New builds the process logger: JSON output in production, the
// human-readable development config everywhere else.
func New(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Env == "production" {
		return zap.NewProduction()
	}

	return zap.NewDevelopment()
}
