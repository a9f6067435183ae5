package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/kiliankoe/gptdungeon/internal/ai"
	"github.com/kiliankoe/gptdungeon/internal/ai/ollama"
	"github.com/kiliankoe/gptdungeon/internal/ai/openai"
	"github.com/kiliankoe/gptdungeon/internal/api"
	"github.com/kiliankoe/gptdungeon/internal/config"
	"github.com/kiliankoe/gptdungeon/internal/content"
	"github.com/kiliankoe/gptdungeon/internal/game"
	"github.com/kiliankoe/gptdungeon/internal/messaging"
	"github.com/kiliankoe/gptdungeon/internal/storage/sqlite"
	"github.com/kiliankoe/gptdungeon/internal/ws"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var version = "dev" // Set at build time via -ldflags

func main() {
	var (
		showHelp    = flag.Bool("help", false, "Show help message")
		showVersion = flag.Bool("version", false, "Show version information")
		portFlag    = flag.String("port", "", "Port to listen on (overrides PORT env var)")
	)
	flag.BoolVar(showHelp, "h", false, "Show help message (shorthand)")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	flag.Parse()

	if *showHelp {
		fmt.Printf(`GPTdungeon - Multiplayer AI dungeon crawl server

Usage: %s [options]

Options:
  -h, --help      Show this help message
  -v, --version   Show version information
  --port PORT     Port to listen on (default: 8080 or PORT env var)

Environment Variables:
  PORT                    Port to listen on (default: 8080)
  LOG_LEVEL               zerolog level (default: info)
  DATABASE_PATH           SQLite database file (default: ./gptdungeon.db)
  DEFAULT_PROVIDER        AI provider: "openai" or "ollama" (default: openai)
  DEFAULT_MODEL           AI model to use (default: gpt-4o-mini)
  SYSTEM_PROMPT           System prompt for every generation (optional)
  OPENAI_API_KEY          OpenAI API key (required for OpenAI provider)
  OPENAI_BASE_URL         Custom OpenAI API base URL (optional)
  OLLAMA_HOST             Ollama host URL (default: http://localhost:11434)
  CONTENT_TIMEOUT         Per-generation deadline before the fallback is used (default: 20s)
  ACTION_TIMEOUT          Time a player has to act once a round is underway (default: 30s)
  IDLE_CLEANUP_DELAY      Grace period before an unattended room is removed (default: 30s)
  GAME_END_CLEANUP_DELAY  Delay before a finished room is removed (default: 60s)
  MAX_PARTY_SIZE          Players per room (default: 4)
  EVENT_BUS               "local" or "nats" (default: local)
  NATS_HOST, NATS_PORT    Embedded NATS listen address (default: 127.0.0.1:4222)
  EVENT_RATE, EVENT_BURST Socket events per second and burst per connection (default: 5, 10)
  GM_USER                 GM username for basic auth
  GM_PASS                 GM password for basic auth
  EXPORT_ENABLED          Append a chronicle of every finished game to a file (default: false)
  EXPORT_FILE             Chronicle file (default: ./gptdungeon-chronicles.txt)
  CORS_ORIGINS            Comma separated allowed origins (default: *)

A .env file in the working directory is loaded first if present.

Examples:
  %s                  Start server with default settings
  %s --port 3000      Start server on port 3000
`, os.Args[0], os.Args[0], os.Args[0])
		return
	}

	if *showVersion {
		fmt.Printf("GPTdungeon %s\n", version)
		return
	}

	zerolog.TimeFieldFormat = time.RFC3339
	cw := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	log.Logger = log.Output(cw)

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Msg("could not load .env")
	}
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if *portFlag != "" {
		cfg.Port = *portFlag
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}

func run(ctx context.Context, cfg config.Config) error {
	store, err := sqlite.Open(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	oa := openai.New(cfg.OpenAIKey, cfg.OpenAIBaseURL)
	ol := ollama.New(cfg.OllamaHost)
	provider := ai.Select(map[string]ai.Provider{"openai": oa, "ollama": ol}, cfg.DefaultProvider, oa)
	gen := content.WithFallback(
		content.NewLLM(provider, cfg.DefaultModel, cfg.SystemPrompt),
		content.NewFallback(nil),
		cfg.ContentTimeout,
	)
	log.Info().Str("provider", provider.Name()).Str("model", cfg.DefaultModel).Msg("content provider")

	gw := ws.New(cfg.EventRate, cfg.EventBurst)
	var bus game.Broadcaster = gw
	if cfg.EventBus == "nats" {
		ns, err := messaging.NewNatsServer(
			messaging.WithHost(cfg.NatsHost),
			messaging.WithPort(cfg.NatsPort),
			messaging.WithStartTimeout(cfg.NatsStartTimeout),
		)
		if err != nil {
			return fmt.Errorf("create nats server: %w", err)
		}
		if err := ns.Start(ctx); err != nil {
			return fmt.Errorf("start nats server: %w", err)
		}
		defer ns.Shutdown()
		nb := messaging.NewBus(ns)
		unsubscribe, err := nb.Relay(gw)
		if err != nil {
			return fmt.Errorf("relay room events: %w", err)
		}
		defer unsubscribe()
		bus = nb
		log.Info().Str("host", cfg.NatsHost).Int("port", cfg.NatsPort).Msg("event bus on nats")
	}

	opts := game.Options{
		ActionTimeout:       cfg.ActionTimeout,
		IdleCleanupDelay:    cfg.IdleCleanupDelay,
		GameEndCleanupDelay: cfg.GameEndCleanupDelay,
		MaxPartySize:        cfg.MaxPartySize,
	}
	if cfg.ExportEnabled {
		opts.ExportFile = cfg.ExportFile
	}
	rm := game.NewRoomManager(store, gen, bus, opts)
	defer rm.Close()
	gw.Attach(rm)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(api.CORS(cfg.CORSOrigins))
	r.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/socket.io") || path == "/health" {
			return
		}
		status := c.Writer.Status()
		dur := time.Since(start)
		log.Info().Str("method", c.Request.Method).Str("path", path).Int("status", status).Dur("dur", dur).Msg("http")
	})

	io := gw.Mount(r)
	defer io.Close()
	api.New(rm, store).Register(r, cfg.GMUser, cfg.GMPass)
	if cfg.GMUser == "" || cfg.GMPass == "" {
		log.Warn().Msg("GM_USER/GM_PASS not set, GM endpoints disabled")
	}

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	errc := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("version", version).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
