package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eris-support/triage-service/internal/config"
	"github.com/eris-support/triage-service/internal/observability"
	"github.com/eris-support/triage-service/internal/persistence"
	"github.com/eris-support/triage-service/internal/repository"
)

var rootCmd = &cobra.Command{
	Use:           "triage-service",
	Short:         "Support ticket triage API: operator table, chat escalation, exports",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

// Execute runs the command tree. SIGINT and SIGTERM cancel the command context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(operatorCmd)
}

// runtime holds what every command needs: configuration, a logger and the
// selected persistence backend.
type runtime struct {
	cfg       *config.Config
	logger    *zap.Logger
	pg        *persistence.Postgres
	backend   repository.Backend
	operators repository.OperatorRepository
	knowledge repository.KnowledgeBaseRepository
}

func newRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.Logger, cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}

	rt := &runtime{cfg: cfg, logger: logger, pg: pg}
	if pg.Enabled() {
		rt.backend = repository.NewPostgresBackend(pg.PoolHandle())
		rt.operators = repository.NewOperatorRepository(pg.PoolHandle())
		rt.knowledge = repository.NewKnowledgeBaseRepository(pg.PoolHandle())
	} else {
		rt.backend = repository.NewMemoryBackend()
		rt.operators = repository.NewMemoryOperatorRepository()
		rt.knowledge = repository.NewMemoryKnowledgeBase()
	}
	return rt, nil
}

func (r *runtime) Close() {
	r.pg.Close()
	_ = r.logger.Sync()
}
