package cli

import (
	"context"
	"encoding/json"
	"io"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/dbstarter/internal/bootstrap"
	"github.com/mesh-intelligence/dbstarter/internal/logging"
	"github.com/mesh-intelligence/dbstarter/internal/metrics"
	"github.com/mesh-intelligence/dbstarter/internal/sqlite"
)

// session is what a command gets after loading config and building the
// logger.
type session struct {
	cfg    *loadedConfig
	logger *zap.Logger
}

func newSession() (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	if cfg.File != "" {
		logger.Debug("config loaded", zap.String("file", cfg.File))
	}
	return &session{cfg: cfg, logger: logger}, nil
}

// start runs a full bootstrap with the session's config.
func (s *session) start(ctx context.Context, m *metrics.Metrics) (*sqlite.Backend, *bootstrap.Report, error) {
	return bootstrap.Start(ctx, bootstrap.Options{
		Config:  s.cfg.Config,
		DefsDir: s.cfg.DefsDir,
		Logger:  s.logger,
		Metrics: m,
	})
}

func (s *session) close() {
	_ = s.logger.Sync()
}

// writeJSON prints v indented, as every --json output does.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
