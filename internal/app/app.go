package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/lockstep/server/internal/controller"
	"github.com/lockstep/server/internal/repository/connection/inmemory"
	roomInmemory "github.com/lockstep/server/internal/repository/room/inmemory"
	userRedis "github.com/lockstep/server/internal/repository/user/redis"
	"github.com/lockstep/server/internal/service/auth"
	"github.com/lockstep/server/internal/service/room"
	"github.com/lockstep/server/pkg/ctxlogger"
	"github.com/lockstep/server/pkg/metrics"
	"github.com/lockstep/server/pkg/redisclient"
	"github.com/redis/go-redis/v9"
)

const writeWait = 10 * time.Second

type AppConfig struct {
	Secret        string        `json:"-"`
	Host          string        `json:"host"`
	Port          int           `json:"port"`
	LogLevel      string        `json:"log_level"`
	LogPath       string        `json:"log_path"`
	TokenTTL      time.Duration `json:"token_ttl"`
	SecureCookie  bool          `json:"secure_cookie"`
	WSSendBuffer  int           `json:"ws_send_buffer"`
	WSPingPeriod  time.Duration `json:"ws_ping_period"`
	WSReadLimit   int64         `json:"ws_read_limit"`
	RedisPort     int           `json:"redis_port"`
	RedisHost     string        `json:"redis_host"`
	RedisPassword string        `json:"-"`
}

func (cfg *AppConfig) Validate() error {
	if cfg.Secret == "" {
		return errors.New("secret must not be empty")
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("port must be in range 1-65535, got %d", cfg.Port)
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(cfg.LogLevel))); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	if cfg.TokenTTL <= 0 {
		return errors.New("token ttl must be greater than 0")
	}
	if cfg.WSSendBuffer < 1 {
		return errors.New("ws send buffer must be greater than 0")
	}
	if cfg.WSPingPeriod <= 0 {
		return errors.New("ws ping period must be greater than 0")
	}
	if cfg.WSReadLimit < 1 {
		return errors.New("ws read limit must be greater than 0")
	}
	if cfg.RedisHost == "" {
		return errors.New("redis host must not be empty")
	}

	return nil
}

func newLogger(cfg *AppConfig) (*slog.Logger, io.Closer, error) {
	logLevel := slog.LevelInfo
	if err := logLevel.UnmarshalText([]byte(strings.ToUpper(cfg.LogLevel))); err != nil {
		return nil, nil, err
	}

	var out io.Writer = os.Stdout
	var closer io.Closer = io.NopCloser(nil)
	if cfg.LogPath != "" {
		f, err := os.OpenFile(cfg.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		out = io.MultiWriter(os.Stdout, f)
		closer = f
	}

	h := ctxlogger.ContextHandler{
		Handler: slog.NewJSONHandler(out, &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: true,
		}),
	}

	return slog.New(&h), closer, nil
}

// newHandler wires repositories, services and the controller into one http.Handler.
func newHandler(cfg *AppConfig, rc *redis.Client, logger *slog.Logger) http.Handler {
	m := metrics.New()

	connRepo := inmemory.NewRepo(inmemory.Config{
		SendBuffer: cfg.WSSendBuffer,
		WriteWait:  writeWait,
		PingPeriod: cfg.WSPingPeriod,
	}, m, logger)
	registry := roomInmemory.NewRegistry(connRepo, logger)
	userRepo := userRedis.NewRepo(rc, logger)

	authService := auth.NewService(userRepo, &auth.Config{
		Secret:   cfg.Secret,
		TokenTTL: cfg.TokenTTL,
	}, logger)
	roomService := room.NewService(registry, connRepo, m, logger)

	return controller.NewController(authService, roomService, connRepo, m, controller.Config{
		ReadLimit:    cfg.WSReadLimit,
		PongWait:     cfg.WSPingPeriod * 10 / 9,
		SecureCookie: cfg.SecureCookie,
	}, logger).GetMux()
}

func Run(ctx context.Context, cfg *AppConfig) error {
	logger, logCloser, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	rc, err := redisclient.NewRedisClient(ctx, &redisclient.Config{
		Port:     cfg.RedisPort,
		Host:     cfg.RedisHost,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		return fmt.Errorf("failed to create redis client: %w", err)
	}
	defer rc.Close()

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: newHandler(cfg, rc, logger),
	}

	// graceful shutdown
	serverCtx, serverStopCtx := context.WithCancel(ctx)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-sig

		shutdownCtx, c := context.WithTimeout(serverCtx, 30*time.Second)
		defer c()

		go func() {
			<-shutdownCtx.Done()
			if shutdownCtx.Err() == context.DeadlineExceeded {
				log.Fatal("graceful shutdown timed out.. forcing exit.")
			}
		}()

		logger.InfoContext(shutdownCtx, "shutting down server")
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Fatal(err)
		}
		serverStopCtx()
	}()

	logger.InfoContext(serverCtx, "starting server", "address", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	<-serverCtx.Done()

	return nil
}
