package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"betswarm/internal/config"
	cronrunner "betswarm/internal/cron"
	"betswarm/internal/db"
	"betswarm/internal/decision"
	"betswarm/internal/handler"
	"betswarm/internal/ledger"
	"betswarm/internal/logger"
	"betswarm/internal/market"
	"betswarm/internal/oracle"
	"betswarm/internal/orchestrator"
	gormrepository "betswarm/internal/repository/gorm"
	"betswarm/internal/research"
	"betswarm/internal/telemetry"
	"betswarm/internal/wallet"
)

func main() {
	cfgPath := os.Getenv("SWARM_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("SWARM_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if len(cfg.Agents) == 0 {
		logger.Fatal("no agent profiles configured")
	}

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer dbConn.Close()

	if err := dbConn.SetTimezone(cfg.DB.Timezone); err != nil {
		logger.Warn("failed to set timezone", zap.Error(err))
	}
	if err := dbConn.AutoMigrate(); err != nil {
		logger.Fatal("auto-migrate failed", zap.Error(err))
	}

	store := gormrepository.New(dbConn.Gorm)

	oracleClient := oracle.NewClient(
		&http.Client{Timeout: cfg.Oracle.Timeout},
		cfg.Oracle.BaseURL,
		os.Getenv(cfg.Oracle.APIKeyEnv),
		cfg.Oracle.Model,
	)
	marketClient := market.NewClient(&http.Client{Timeout: cfg.Market.Timeout}, cfg.Market.BaseURL)
	walletClient := wallet.NewClient(&http.Client{Timeout: cfg.Wallet.Timeout}, cfg.Wallet.BaseURL)

	publisher := initTelemetry(cfg.Telemetry, logger)

	cache := &research.Cache{Repo: store, Logger: logger}
	var refresher orchestrator.Refresher
	if researcher := researchAgent(cfg.Agents); researcher != nil {
		refresher = &research.Refresher{
			Cache:       cache,
			Oracle:      oracleClient,
			Logger:      logger,
			Researcher:  researcher.Name,
			Model:       researcher.Model,
			Temperature: researcher.Temperature,
			TTL:         cfg.Engine.ResearchTTL,
			Delay:       cfg.Engine.ResearchDelay,
		}
	}

	ledgers := make(map[string]*ledger.Ledger, len(cfg.Agents))
	for _, profile := range cfg.Agents {
		ledgers[profile.Name] = &ledger.Ledger{
			Agent:  profile.Name,
			Repo:   store,
			Logger: logger,
		}
	}

	reconcileLedgers(logger, cfg.Agents, ledgers, marketClient, walletClient)

	decider := &decision.Client{
		Oracle:    oracleClient,
		Telemetry: publisher,
		Logger:    logger,
		Model:     cfg.Oracle.Model,
	}

	orch := &orchestrator.Orchestrator{
		Agents:    cfg.Agents,
		Market:    marketClient,
		Wallet:    walletClient,
		Decider:   decider,
		Research:  cache,
		Refresher: refresher,
		Ledgers:   ledgers,
		Telemetry: publisher,
		Logger:    logger,
		Config:    cfg.Engine,
		ChatLimit: cfg.Market.ChatLimit,
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())

	healthHandler := &handler.HealthHandler{DB: dbConn}
	healthHandler.Register(engine)
	agentHandler := &handler.AgentHandler{Agents: cfg.Agents, Repo: store}
	agentHandler.Register(engine)
	researchHandler := &handler.ResearchHandler{Repo: store}
	researchHandler.Register(engine)

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cronRunner := cronrunner.New(logger, ctx)
	_, err = cronRunner.Add("@every 1m", func(ctx context.Context) {
		publisher.Event(ctx, "system", "heartbeat", map[string]any{
			"agents": len(cfg.Agents),
		})
	})
	if err != nil {
		logger.Warn("cron register heartbeat failed", zap.Error(err))
	}
	_, err = cronRunner.Add("@every 10m", func(ctx context.Context) {
		for _, profile := range cfg.Agents {
			led := ledgers[profile.Name]
			stats, err := led.Stats(ctx)
			if err != nil {
				logger.Warn("periodic stats failed", zap.String("agent", profile.Name), zap.Error(err))
				continue
			}
			publisher.Stats(ctx, profile.Name, stats)
		}
	})
	if err != nil {
		logger.Warn("cron register stats publish failed", zap.Error(err))
	}
	cronRunner.Start()
	defer cronRunner.Stop()

	go func() {
		if err := orch.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("orchestrator stopped", zap.Error(err))
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

// reconcileLedgers backfills empty ledgers from the wallet collaborator's
// authoritative history. Best-effort: a fresh deployment with no upstream
// history must still boot.
func reconcileLedgers(logger *zap.Logger, agents []config.AgentProfile, ledgers map[string]*ledger.Ledger, mkt *market.Client, wal *wallet.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	opps, err := mkt.ListOpportunities(ctx)
	if err != nil {
		logger.Warn("opportunity history unavailable, skipping ledger backfill", zap.Error(err))
		return
	}
	oppByID := make(map[int64]market.Opportunity, len(opps))
	for _, o := range opps {
		oppByID[o.ID] = o
	}

	for _, profile := range agents {
		history, err := wal.ListWagers(ctx, profile.Account)
		if err != nil {
			logger.Warn("wager history unavailable, skipping ledger backfill",
				zap.String("agent", profile.Name), zap.Error(err))
			continue
		}
		authority := make([]ledger.AuthorityWager, 0, len(history))
		for _, w := range history {
			authority = append(authority, ledger.AuthorityWager{
				OpportunityID: w.OpportunityID,
				Outcome:       w.Outcome,
				Amount:        w.Amount,
				Odds:          w.Odds,
				Reasoning:     w.Reasoning,
				CreatedAt:     w.CreatedAt,
			})
		}
		n, err := ledgers[profile.Name].ReconcileFromAuthority(ctx, authority, oppByID)
		if err != nil {
			logger.Warn("ledger backfill failed", zap.String("agent", profile.Name), zap.Error(err))
			continue
		}
		if n > 0 {
			logger.Info("ledger backfilled from authority",
				zap.String("agent", profile.Name), zap.Int("imported", n))
		}
	}
}

func researchAgent(agents []config.AgentProfile) *config.AgentProfile {
	for i := range agents {
		if agents[i].Research {
			return &agents[i]
		}
	}
	return nil
}

func initTelemetry(cfg config.TelemetryConfig, logger *zap.Logger) *telemetry.Publisher {
	base := strings.TrimSpace(cfg.BaseURL)
	apiKey := strings.TrimSpace(cfg.APIKey)
	if base == "" || apiKey == "" {
		logger.Info("telemetry disabled (no base url or api key)")
		return &telemetry.Publisher{Logger: logger}
	}

	client := &telemetry.Client{
		BaseURL: base,
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: cfg.Timeout},
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Login(ctx); err != nil {
		logger.Warn("telemetry login failed (publishing disabled)", zap.Error(err))
		return &telemetry.Publisher{Logger: logger}
	}
	logger.Info("telemetry login ok")
	return &telemetry.Publisher{
		Client:  client,
		Logger:  logger,
		Timeout: cfg.Timeout,
	}
}
