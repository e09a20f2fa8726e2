// Package graceful coordinates orderly process shutdown.
package graceful

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Stopper is implemented by background workers that can be told to stop
type Stopper interface {
	Stop()
}

// ShutdownManager stops workers, drains the HTTP server and closes the
// database when the process receives SIGINT or SIGTERM.
type ShutdownManager struct {
	server   *http.Server
	db       *sqlx.DB
	stoppers []Stopper
	logger   *zap.Logger
}

// NewShutdownManager creates a new shutdown manager
func NewShutdownManager(server *http.Server, db *sqlx.DB, logger *zap.Logger) *ShutdownManager {
	return &ShutdownManager{
		server:   server,
		db:       db,
		stoppers: make([]Stopper, 0),
		logger:   logger,
	}
}

// Register adds a worker to stop during shutdown
func (sm *ShutdownManager) Register(s Stopper) {
	sm.stoppers = append(sm.stoppers, s)
}

// WaitForShutdown blocks until a termination signal arrives, then shuts
// everything down in order: workers first, then the HTTP server, then
// the database.
func (sm *ShutdownManager) WaitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	sm.logger.Info("Shutting down gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, s := range sm.stoppers {
		s.Stop()
	}

	if sm.server != nil {
		if err := sm.server.Shutdown(ctx); err != nil {
			sm.logger.Error("Server forced shutdown", zap.Error(err))
		}
	}

	if sm.db != nil {
		if err := sm.db.Close(); err != nil {
			sm.logger.Warn("Database close error", zap.Error(err))
		}
	}

	sm.logger.Info("Shutdown complete")
}
