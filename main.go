// Command playerscope is the main entrypoint for the session correlation bot
// and its HTTP sidecar. It:
//   - Loads configuration and initializes structured logging.
//   - Connects to Postgres and runs idempotent migrations.
//   - Opens the Discord gateway and registers slash commands.
//   - Starts the watchlist monitor loop.
//   - Exposes an HTTP server with /healthz, /readyz, /status, /watchlist,
//     /correlate, and /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // G108: pprof endpoints enabled only when ENABLE_PPROF=1
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/sealldev/playerscope/battlemetrics"
	"github.com/sealldev/playerscope/bot"
	"github.com/sealldev/playerscope/config"
	"github.com/sealldev/playerscope/correlate"
	"github.com/sealldev/playerscope/db"
	"github.com/sealldev/playerscope/monitor"
	"github.com/sealldev/playerscope/server"
	"github.com/sealldev/playerscope/steamhistory"
	"github.com/sealldev/playerscope/telemetry"
)

const version = "1.0.0"

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load(".env")

	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	if format != "json" {
		format = "text"
	}
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()), slog.String("format", format))

	// Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	// Metrics / telemetry init
	telemetry.Init()

	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdown, err := telemetry.InitTracing("playerscope", version)
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	// DB
	database, err := db.Connect(cfg.DBDsn)
	if err != nil {
		slog.Error("failed to open db", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		if err := database.Close(); err != nil {
			slog.Error("failed to close database", slog.Any("err", err))
		}
	}()

	slog.Info("running database migrations", slog.String("component", "db_migrate"))
	if err := db.Migrate(context.Background(), database); err != nil {
		slog.Error("failed to migrate db", slog.Any("err", err))
		os.Exit(1)
	}

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// BattleMetrics credential: env wins and is persisted for the next boot;
	// otherwise fall back to the stored row. Empty means anonymous access.
	bmToken := resolveBMToken(ctx, database, cfg.BattleMetricsToken)
	bm := &battlemetrics.Client{Token: bmToken}

	correlator := &correlate.Correlator{
		Fetcher:     sessionFetcher(bm),
		Concurrency: cfg.CorrelateMaxPlayers,
	}

	// Discord surface. Without gateway credentials the binary still serves
	// HTTP correlation, but the monitor loop has nowhere to announce.
	var discordBot *bot.Bot
	if err := cfg.ValidateBotReady(); err != nil {
		slog.Warn("discord disabled, running HTTP-only", slog.Any("err", err))
	} else {
		discordBot, err = bot.New(cfg.DiscordToken, bot.Options{
			DB:               database,
			BattleMetrics:    bm,
			Correlator:       correlator,
			SteamHistory:     &steamhistory.Client{},
			MonitorChannelID: cfg.MonitorChannelID,
			DefaultDays:      cfg.CorrelateDefaultDays,
			MaxPlayers:       cfg.CorrelateMaxPlayers,
		})
		if err != nil {
			slog.Error("bot init failed", slog.Any("err", err))
			os.Exit(1)
		}
		if err := discordBot.Start(ctx); err != nil {
			slog.Error("bot start failed", slog.Any("err", err))
			os.Exit(1)
		}
	}

	if discordBot != nil {
		mon := &monitor.Monitor{
			Store:      dbStore{database},
			Source:     bmSource{bm},
			Notifier:   discordBot,
			Interval:   cfg.MonitorPollInterval,
			AfterCycle: func(cctx context.Context) { db.MarkJobRun(cctx, database, "monitor") },
		}
		go func() {
			if err := mon.Run(ctx); err != nil && ctx.Err() == nil {
				slog.Error("monitor loop exited", slog.Any("err", err))
			}
		}()
	}

	// Enable pprof profiling endpoints in debug mode (ENABLE_PPROF=1)
	if os.Getenv("ENABLE_PPROF") == "1" {
		pprofAddr := os.Getenv("PPROF_ADDR")
		if pprofAddr == "" {
			pprofAddr = "localhost:6060"
		}
		go func() {
			slog.Info("pprof profiling enabled", slog.String("addr", pprofAddr))
			// Use an http.Server with timeouts to satisfy G114 and avoid DoS risks
			srv := &http.Server{
				Addr:              pprofAddr,
				Handler:           nil, // default mux exposes /debug/pprof
				ReadHeaderTimeout: 5 * time.Second,
				ReadTimeout:       10 * time.Second,
				WriteTimeout:      10 * time.Second,
				IdleTimeout:       60 * time.Second,
			}
			if err := srv.ListenAndServe(); err != nil {
				slog.Error("pprof server error", slog.Any("err", err))
			}
		}()
	}

	// HTTP server (health/status/watchlist/correlate/metrics)
	deps := server.Deps{
		DB:          database,
		Correlator:  correlator,
		DefaultDays: cfg.CorrelateDefaultDays,
		MaxPlayers:  cfg.CorrelateMaxPlayers,
		Version:     version,
	}
	if discordBot != nil {
		deps.Ready = discordBot.Ready
	}
	go func() {
		if err := server.Start(ctx, deps, cfg.HTTPAddr); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
		}
	}()

	// Block until shutdown signal
	<-ctx.Done()
	slog.Info("shutting down")
}

// resolveBMToken prefers the env token and writes it through to api_tokens so
// a later boot without the env var keeps elevated access.
func resolveBMToken(ctx context.Context, database *sql.DB, envToken string) string {
	if envToken != "" {
		if err := db.UpsertAPIToken(ctx, database, "battlemetrics", envToken); err != nil {
			slog.Warn("persist battlemetrics token", slog.Any("err", err))
		}
		return envToken
	}
	stored, err := db.GetAPIToken(ctx, database, "battlemetrics")
	if err != nil {
		slog.Warn("read stored battlemetrics token", slog.Any("err", err))
		return ""
	}
	return stored
}
