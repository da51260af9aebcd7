package api

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/AlexandriaDAO/cyclescan/app/api/types"
	"github.com/AlexandriaDAO/cyclescan/pkg/balance"
	"github.com/AlexandriaDAO/cyclescan/pkg/db"
	"github.com/AlexandriaDAO/cyclescan/pkg/logging"
	"github.com/AlexandriaDAO/cyclescan/pkg/tracker"
	"github.com/AlexandriaDAO/cyclescan/pkg/utils"
)

// Initialize initializes the application: store, balance source, tracker and
// scheduler. The scheduler starts immediately; admins can stop it.
func Initialize(ctx context.Context) *types.App {
	logger, err := logging.New()
	if err != nil {
		// nothing else to do here, we'll just log to stderr
		panic(err)
	}

	store, err := db.Open(utils.Env("DB_PATH", "cyclescan.db"), logger)
	if err != nil {
		logger.Fatal("Unable to open database", zap.Error(err))
	}

	source := balance.NewHTTPClient(balance.Opts{
		Endpoints: strings.Split(utils.Env("IC_ENDPOINTS", "https://status-gateway.internal"), ","),
		Timeout:   utils.EnvDuration("IC_TIMEOUT", 15*time.Second),
		RPS:       utils.EnvInt("IC_RPS", 20),
	})

	trk := tracker.New(store, source, logger, tracker.Config{
		BatchSize: utils.EnvInt("QUERY_BATCH_SIZE", tracker.DefaultBatchSize),
		Retention: utils.EnvDuration("RETENTION", tracker.DefaultRetention),
	})

	sched := tracker.NewScheduler(trk, logger, utils.Env("SNAPSHOT_CRON", tracker.DefaultCronSpec))
	if err := sched.Start(ctx); err != nil {
		logger.Fatal("Unable to start snapshot scheduler", zap.Error(err))
	}

	return &types.App{
		DB:        store,
		Source:    source,
		Tracker:   trk,
		Scheduler: sched,
		Logger:    logger,
	}
}
