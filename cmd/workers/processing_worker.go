package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	v1 "rc-portal/allocation-portal-backend/api/v1"
	"rc-portal/allocation-portal-backend/internal/config"
	"rc-portal/allocation-portal-backend/internal/requests"
)

// The processing worker turns approved requests into completed ones
// once their allocation period has started. Approval is a human action;
// processing waits for the period, so it runs on a schedule.
func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.LoadConfig("config.json")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	db, err := gorm.Open(postgres.Open(cfg.Database.GetDatabaseURL()), &gorm.Config{})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}

	api, err := v1.SetupPortalAPI(db, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to set up portal API", zap.Error(err))
	}

	schedule := os.Getenv("PROCESSING_SCHEDULE")
	if schedule == "" {
		schedule = "0 2 * * *" // daily at 02:00
	}

	c := cron.New()
	_, err = c.AddFunc(schedule, func() {
		processApproved(context.Background(), api, logger)
	})
	if err != nil {
		logger.Fatal("Invalid processing schedule", zap.String("schedule", schedule), zap.Error(err))
	}
	c.Start()
	logger.Info("Processing worker started", zap.String("schedule", schedule))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Stopping processing worker...")
	<-c.Stop().Done()
}

// processApproved walks every approved request and attempts processing.
// Requests whose period has not started yet fail their precondition
// check and are picked up by a later run.
func processApproved(ctx context.Context, api *v1.PortalAPI, logger *zap.Logger) {
	renewals, err := api.Store.ListRenewalRequests(ctx, requests.StatusApproved)
	if err != nil {
		logger.Error("Failed to list approved renewal requests", zap.Error(err))
		return
	}
	for _, req := range renewals {
		allowance, err := api.Store.GetAllowance(ctx, req.AllowanceID)
		if err != nil {
			logger.Error("Failed to load allowance",
				zap.String("request_id", req.ID.String()), zap.Error(err))
			continue
		}
		outcome, err := api.RequestsService.ProcessRenewal(ctx, req.ID, allowance.ServiceUnits)
		logProcessing(logger, "renewal", req.ID.String(), outcome, err)
	}

	newProjects, err := api.Store.ListNewProjectRequests(ctx, requests.StatusApproved)
	if err != nil {
		logger.Error("Failed to list approved new project requests", zap.Error(err))
		return
	}
	for _, req := range newProjects {
		allowance, err := api.Store.GetAllowance(ctx, req.AllowanceID)
		if err != nil {
			logger.Error("Failed to load allowance",
				zap.String("request_id", req.ID.String()), zap.Error(err))
			continue
		}
		outcome, err := api.RequestsService.ProcessNewProject(ctx, req.ID, allowance.ServiceUnits)
		logProcessing(logger, "new project", req.ID.String(), outcome, err)
	}
}

func logProcessing(logger *zap.Logger, kind, id string, outcome *requests.Outcome, err error) {
	if err != nil {
		if requests.IsPrecondition(err) {
			logger.Info("Request not ready for processing",
				zap.String("kind", kind), zap.String("request_id", id),
				zap.String("reason", err.Error()))
			return
		}
		logger.Error("Processing failed",
			zap.String("kind", kind), zap.String("request_id", id), zap.Error(err))
		return
	}
	for _, msg := range outcome.SuccessMessages {
		logger.Info(msg, zap.String("kind", kind), zap.String("request_id", id))
	}
	for _, msg := range outcome.WarningMessages {
		logger.Warn(msg, zap.String("kind", kind), zap.String("request_id", id))
	}
}
