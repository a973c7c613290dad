// Package main provides the tunesync service entry point.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"tunesync/internal/cache"
	"tunesync/internal/core"
	httpserver "tunesync/internal/http"
	"tunesync/internal/musicbrainz"
	"tunesync/internal/provider"
	"tunesync/internal/task"
	"tunesync/internal/worker"
)

var (
	cfgFile string
	config  *core.Config
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "tunesyncd",
	Short: "tunesync - playlist synchronization between streaming services",
	Long: `tunesync replicates playlists between Spotify, YouTube, Subsonic and Deezer.
It matches every source track on the target service by identifier and fuzzy
text search, and runs transfers asynchronously through a Redis-backed task queue.`,
	RunE: runTunesync,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("redis-addr", "localhost:6379", "Redis address")
	rootCmd.PersistentFlags().String("redis-password", "", "Redis password")
	rootCmd.PersistentFlags().Int("redis-db", 0, "Redis database number")
	rootCmd.PersistentFlags().String("database-path", "./tunesync.db", "SQLite database path")
	rootCmd.PersistentFlags().Int("worker-count", 3, "Number of task workers")
	rootCmd.PersistentFlags().String("server-host", "0.0.0.0", "HTTP server host")
	rootCmd.PersistentFlags().Int("server-port", 8080, "HTTP server port")
	rootCmd.PersistentFlags().String("spotify-client-id", "", "Spotify client ID")
	rootCmd.PersistentFlags().String("spotify-client-secret", "", "Spotify client secret")
	rootCmd.PersistentFlags().String("youtube-client-id", "", "YouTube OAuth client ID")
	rootCmd.PersistentFlags().String("youtube-client-secret", "", "YouTube OAuth client secret")
	rootCmd.PersistentFlags().String("subsonic-base-url", "", "Subsonic server base URL")
	rootCmd.PersistentFlags().Int("subsonic-port", 4533, "Subsonic server port")
	rootCmd.PersistentFlags().String("musicbrainz-base-url", "https://musicbrainz.org/ws/2", "MusicBrainz API base URL")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bind flags: %v\n", err)
		os.Exit(1)
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(".env")
		viper.SetConfigType("env")
	}

	viper.SetEnvPrefix("TUNESYNC")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
			os.Exit(1)
		}
	}

	config = buildConfig()
	logger = buildLogger(config.Log.Level)
}

func buildConfig() *core.Config {
	cfg := core.DefaultConfig()

	cfg.Redis.Addr = viper.GetString("redis-addr")
	cfg.Redis.Password = viper.GetString("redis-password")
	cfg.Redis.DB = viper.GetInt("redis-db")

	cfg.Database.Path = viper.GetString("database-path")

	cfg.Workers.Count = viper.GetInt("worker-count")
	if cfg.Workers.Count <= 0 {
		cfg.Workers.Count = 3
	}

	cfg.Server.Host = viper.GetString("server-host")
	cfg.Server.Port = viper.GetInt("server-port")

	cfg.Log.Level = viper.GetString("log-level")

	cfg.Spotify.ClientID = viper.GetString("spotify-client-id")
	cfg.Spotify.ClientSecret = viper.GetString("spotify-client-secret")

	cfg.YouTube.ClientID = viper.GetString("youtube-client-id")
	cfg.YouTube.ClientSecret = viper.GetString("youtube-client-secret")

	cfg.Subsonic.BaseURL = viper.GetString("subsonic-base-url")
	cfg.Subsonic.Port = viper.GetInt("subsonic-port")

	cfg.MusicBrainz.BaseURL = viper.GetString("musicbrainz-base-url")

	return cfg
}

func buildLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch strings.ToLower(level) {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)

	builtLogger, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("Failed to build logger: %v", err))
	}

	return builtLogger
}

func runTunesync(_ *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("Starting tunesync",
		zap.String("redis_addr", config.Redis.Addr),
		zap.String("database_path", config.Database.Path),
		zap.Int("workers", config.Workers.Count))

	rdb := redis.NewClient(&redis.Options{
		Addr:     config.Redis.Addr,
		Password: config.Redis.Password,
		DB:       config.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	defer func() {
		_ = rdb.Close()
	}()

	db, err := sql.Open("sqlite3", config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		_ = db.Close()
	}()

	identity, err := cache.NewIdentityCache(db, logger.Named("cache"))
	if err != nil {
		return fmt.Errorf("failed to initialize track cache: %w", err)
	}
	credentials, err := provider.NewCredentialStore(db, logger.Named("credentials"))
	if err != nil {
		return fmt.Errorf("failed to initialize credential store: %w", err)
	}
	users, err := provider.NewUserStore(db)
	if err != nil {
		return fmt.Errorf("failed to initialize user store: %w", err)
	}

	tasks := task.NewStore(rdb, logger.Named("tasks"))

	// Fail tasks orphaned by a previous crash before accepting new work.
	sweeper := worker.NewRecoverySweeper(tasks, logger.Named("sweeper"))
	if err := sweeper.Sweep(ctx); err != nil {
		return fmt.Errorf("recovery sweep failed: %w", err)
	}

	factory := provider.NewFactory(config, credentials, rdb, identity, logger.Named("provider"))
	mb := musicbrainz.NewClient(config.MusicBrainz, logger.Named("musicbrainz"))

	transferHandler := worker.NewPlaylistTransferHandler(factory, tasks, mb, logger.Named("transfer"))
	pool := worker.NewPool(tasks, users, map[task.TaskKind]worker.Handler{
		task.KindPlaylistTransfer: transferHandler,
	}, config.Workers.Count, logger.Named("worker"))

	server := httpserver.NewServer(&config.Server, tasks, users, prometheus.NewRegistry(), logger.Named("http"))

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.Start(gCtx)
	})

	g.Go(func() error {
		return pool.Run(gCtx)
	})

	logger.Info("tunesync started successfully",
		zap.String("http_addr", fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)))

	if err := g.Wait(); err != nil {
		logger.Error("tunesync stopped with error", zap.Error(err))
		return err
	}

	logger.Info("tunesync stopped gracefully")
	return nil
}
