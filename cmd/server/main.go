// Command server runs the lottery checking web frontend.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"takarakuji"
	"takarakuji/internal/history"
	"takarakuji/internal/web"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Local development keeps credentials in a .env file; production
	// sets real environment variables and has no such file.
	_ = godotenv.Load()

	base := logrus.New()
	base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if level, err := logrus.ParseLevel(os.Getenv("TAKARA_LOG_LEVEL")); err == nil {
		base.SetLevel(level)
	}

	manager := takarakuji.NewConfigManager()
	config, err := manager.LoadConfig()
	if err != nil {
		base.Fatalf("configuration: %v", err)
	}

	checkerLogger := takarakuji.NewLogrusLogger(base, "checker")
	breaker := takarakuji.NewProviderBreaker(config.CircuitBreaker, checkerLogger)
	source := takarakuji.NewMizuhoSource(config.Fetch, breaker, checkerLogger)
	checker := takarakuji.NewServiceWithConfigAndLogger(source, config, checkerLogger)

	var store *history.Store
	redisClient := connectRedis(config, base)
	if redisClient != nil {
		defer redisClient.Close()
	}
	store = history.NewStore(redisClient, config.History, takarakuji.NewLogrusLogger(base, "history"))
	if store.Enabled() {
		checker.SetHistoryRecorder(store)
	}

	server, err := web.NewServer(checker, config, store, takarakuji.NewLogrusLogger(base, "web"))
	if err != nil {
		base.Fatalf("web server: %v", err)
	}

	if err := manager.WatchConfig(func(updated *takarakuji.Config) {
		base.Info("configuration reloaded from disk")
	}); err != nil {
		base.Warnf("config watch unavailable: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			base.Fatalf("server: %v", err)
		}
	case <-ctx.Done():
		base.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			base.Errorf("shutdown: %v", err)
		}
	}
}

// connectRedis opens the history backend when it is configured and
// reachable. The checker works fine without it.
func connectRedis(config *takarakuji.Config, log *logrus.Logger) *redis.Client {
	if config.History == nil || !config.History.Enabled {
		return nil
	}

	client := takarakuji.NewRedisClientFromConfig(config.Redis)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Warnf("redis unreachable, search history disabled: %v", err)
		client.Close()
		return nil
	}
	return client
}
