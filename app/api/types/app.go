package types

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/AlexandriaDAO/cyclescan/pkg/balance"
	"github.com/AlexandriaDAO/cyclescan/pkg/db"
	"github.com/AlexandriaDAO/cyclescan/pkg/tracker"
)

type App struct {
	DB        *db.Client
	Source    balance.Source
	Tracker   *tracker.Tracker
	Scheduler *tracker.Scheduler
	// Zap Logger
	Logger *zap.Logger
	// Server represents the HTTP server instance used to handle incoming client requests and manage HTTP routes.
	Server *http.Server
}

// Start starts the application and blocks until the context is canceled.
func (a *App) Start(ctx context.Context) {
	go func() { _ = a.Server.ListenAndServe() }()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a.Scheduler.Stop()

	if err := a.DB.Close(); err != nil {
		a.Logger.Error("Failed to close database", zap.Error(err))
	}

	_ = a.Server.Shutdown(shutdownCtx)
	time.Sleep(200 * time.Millisecond)
	a.Logger.Info("さようなら!")
}
