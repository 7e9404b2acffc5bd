// Package app assembles the bot runtime: storage, the add-on bridge, the
// route table, and the HTTP surface, plus the background loops around them.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/dwizi/jira-bridge/internal/bridge"
	"github.com/dwizi/jira-bridge/internal/cache"
	"github.com/dwizi/jira-bridge/internal/cards"
	"github.com/dwizi/jira-bridge/internal/config"
	"github.com/dwizi/jira-bridge/internal/dialog"
	"github.com/dwizi/jira-bridge/internal/dialogs"
	"github.com/dwizi/jira-bridge/internal/httpapi"
	"github.com/dwizi/jira-bridge/internal/jira"
	"github.com/dwizi/jira-bridge/internal/metrics"
	"github.com/dwizi/jira-bridge/internal/notify"
	"github.com/dwizi/jira-bridge/internal/store"
	"github.com/dwizi/jira-bridge/internal/teams"
)

type Runtime struct {
	cfg        config.Config
	logger     *slog.Logger
	store      *store.Store
	cache      *cache.Cache
	cards      *cards.Library
	hub        *bridge.Hub
	httpServer *http.Server
}

func New(cfg config.Config, logger *slog.Logger) (*Runtime, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	sqlStore, err := store.New(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := sqlStore.AutoMigrate(context.Background()); err != nil {
		sqlStore.Close()
		return nil, err
	}

	issueCache := cache.New(time.Duration(cfg.CacheTTLSec) * time.Second)
	cardLibrary := cards.NewLibrary(cfg.CardsDir, logger.With("component", "cards"))

	hub := bridge.NewHub(
		sqlStore,
		time.Duration(cfg.BridgePingSec)*time.Second,
		int64(cfg.BridgeMaxPayloadBytes),
		logger.With("component", "bridge-hub"),
	)
	table := bridge.NewTable()
	requestBridge := bridge.New(
		hub,
		table,
		time.Duration(cfg.BridgeResponseSec)*time.Second,
		logger.With("component", "bridge"),
	)
	hub.SetCallback(requestBridge.Callback)

	botMetrics := metrics.New(table, hub)
	measuredBridge := &measuredBridge{next: requestBridge, metrics: botMetrics}

	jiraClient := jira.NewClient(
		time.Duration(cfg.JiraRequestSec)*time.Second,
		measuredBridge,
		logger.With("component", "jira"),
	)
	mailer := notify.NewEmailSender(notify.EmailConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	})
	graphNotifier := notify.NewGraphNotifier(
		cfg.GraphNotifyURL,
		notify.GraphToken(cfg.GraphTenantID, cfg.GraphClientID, cfg.GraphClientToken),
		time.Duration(cfg.GraphNotifySec)*time.Second,
	)

	deps := &dialogs.Deps{
		Connections: sqlStore,
		Jira:        jiraClient,
		Cache:       issueCache,
		Cards:       cardLibrary,
		Mail:        mailer,
		Graph:       graphNotifier,
		Logger:      logger.With("component", "dialogs"),
		FeedbackTo:  cfg.FeedbackTo,
	}
	routeTable, err := dialog.NewRouteTable(dialogs.Registry(deps), dialogs.Routes()...)
	if err != nil {
		sqlStore.Close()
		return nil, fmt.Errorf("build route table: %w", err)
	}
	service := dialog.NewRouteService(routeTable)
	dispatcher := dialog.NewDispatcher(service, sqlStore, sqlStore, cardLibrary, logger.With("component", "dispatcher"))
	dispatcher.IssueDialog = dialogs.DialogIssue

	teamsClient := teams.NewClient(
		teams.AppCredentialsToken(cfg.BotAppID, cfg.BotAppPassword),
		15*time.Second,
	)

	router := httpapi.NewRouter(httpapi.Dependencies{
		Config:         cfg,
		Store:          sqlStore,
		Dispatcher:     &measuredDispatcher{next: dispatcher, metrics: botMetrics},
		BridgeSocket:   hub.HandleUpgrade,
		Metrics:        botMetrics.Handler(),
		ConnectedPeers: hub.ConnectedPeers,
		Teams:          teamsClient,
		Logger:         logger.With("component", "httpapi"),
	})

	return &Runtime{
		cfg:    cfg,
		logger: logger,
		store:  sqlStore,
		cache:  issueCache,
		cards:  cardLibrary,
		hub:    hub,
		httpServer: &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

func (r *Runtime) Close() error {
	if r.store == nil {
		return nil
	}
	return r.store.Close()
}
