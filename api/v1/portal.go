package v1

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"rc-portal/allocation-portal-backend/internal/auth"
	"rc-portal/allocation-portal-backend/internal/config"
	"rc-portal/allocation-portal-backend/internal/documents"
	"rc-portal/allocation-portal-backend/internal/notifications"
	"rc-portal/allocation-portal-backend/internal/notifications/websocket"
	"rc-portal/allocation-portal-backend/internal/reports"
	"rc-portal/allocation-portal-backend/internal/requests"
	"rc-portal/allocation-portal-backend/internal/settings"
	"rc-portal/allocation-portal-backend/pkg/storage"
)

// PortalAPI holds the portal's wired-up modules
type PortalAPI struct {
	Store            requests.Store
	RequestsService  *requests.Service
	RequestsHandler  *requests.Handler
	ReportsHandler   *reports.Handler
	DocumentsHandler *documents.Handler
	SettingsHandler  *settings.Handler
	AuthHandler      *auth.Handler
	WebSocket        *websocket.Manager
	Notifications    *notifications.Service
}

// SetupPortalAPI sets up the portal API with all dependencies
func SetupPortalAPI(db *gorm.DB, cfg *config.Config, logger *zap.Logger) (*PortalAPI, error) {
	store, err := requests.NewGormStore(db)
	if err != nil {
		return nil, err
	}

	ws := websocket.NewManager(logger)
	strategy, err := emailStrategy(cfg)
	if err != nil {
		return nil, err
	}
	notifier := notifications.NewService(strategy, ws, notifications.Config{
		Enabled:     cfg.Notifications.Enabled,
		AdminCCList: cfg.Notifications.AdminCCList,
		Signature:   cfg.Notifications.Signature,
	}, logger)

	requestsService := requests.NewService(requests.RunnerDeps{
		Store:    store,
		Notifier: notifier,
		Logger:   logger,
		Settings: requests.Settings{
			ServiceUnitsMin: cfg.Allocations.ServiceUnitsMin,
			ServiceUnitsMax: cfg.Allocations.ServiceUnitsMax,
		},
	})

	reportsService := reports.NewService(store, logger)
	authService := auth.NewService(db, cfg.Security.JWTSecret, cfg.Security.TokenTTL)

	objects, err := storage.NewS3Store(context.Background())
	if err != nil {
		return nil, err
	}
	documentsStore, err := documents.NewGormStore(db)
	if err != nil {
		return nil, err
	}
	documentsService := documents.NewService(
		documentsStore, objects, cfg.Storage.MemorandaBucket, logger)
	settingsStore, err := settings.NewGormStore(db)
	if err != nil {
		return nil, err
	}
	settingsService := settings.NewService(settingsStore)

	return &PortalAPI{
		Store:            store,
		RequestsService:  requestsService,
		RequestsHandler:  requests.NewHandler(requestsService, logger),
		ReportsHandler:   reports.NewHandler(reportsService),
		DocumentsHandler: documents.NewHandler(documentsService, logger),
		SettingsHandler:  settings.NewHandler(settingsService, logger),
		AuthHandler:      auth.NewHandler(authService),
		WebSocket:        ws,
		Notifications:    notifier,
	}, nil
}

// RegisterRoutes registers all portal routes on the router group.
// Request submission and review require a valid token; life-cycle
// transitions and exports additionally require an administrator.
func (api *PortalAPI) RegisterRoutes(router *gin.RouterGroup) {
	authGroup := router.Group("/auth")
	api.AuthHandler.RegisterRoutes(authGroup)

	portal := router.Group("", api.AuthHandler.RequireAuth())
	api.RequestsHandler.RegisterRoutes(portal)
	api.DocumentsHandler.RegisterRoutes(portal)
	api.SettingsHandler.RegisterRoutes(portal)

	admin := router.Group("", api.AuthHandler.RequireAuth(), api.AuthHandler.RequireAdmin())
	api.RequestsHandler.RegisterAdminRoutes(admin)
	api.ReportsHandler.RegisterRoutes(admin)

	router.GET("/ws", func(c *gin.Context) {
		api.WebSocket.Handle(c.Writer, c.Request)
	})
}

func emailStrategy(cfg *config.Config) (notifications.Strategy, error) {
	switch cfg.Notifications.Provider {
	case "ses":
		sender, err := notifications.NewSESSender(
			context.Background(), cfg.Notifications.FromAddress)
		if err != nil {
			return nil, err
		}
		return &notifications.ImmediateStrategy{Sender: sender}, nil
	default:
		sender := notifications.NewSMTPSender(notifications.SMTPConfig{
			Host:        cfg.Notifications.SMTPHost,
			Port:        cfg.Notifications.SMTPPort,
			Username:    cfg.Notifications.SMTPUser,
			Password:    cfg.Notifications.SMTPPass,
			FromAddress: cfg.Notifications.FromAddress,
		})
		return &notifications.ImmediateStrategy{Sender: sender}, nil
	}
}
