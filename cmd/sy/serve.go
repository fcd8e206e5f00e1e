package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/zulandar/switchyard/internal/api"
	"github.com/zulandar/switchyard/internal/auth"
	"github.com/zulandar/switchyard/internal/board"
	"github.com/zulandar/switchyard/internal/card"
	"github.com/zulandar/switchyard/internal/config"
	"github.com/zulandar/switchyard/internal/db"
	"github.com/zulandar/switchyard/internal/list"
	"github.com/zulandar/switchyard/internal/maintenance"
	"github.com/zulandar/switchyard/internal/notify"
	"github.com/zulandar/switchyard/internal/reorder"
	"github.com/zulandar/switchyard/internal/user"
	"gorm.io/gorm"
)

// relayReadyTimeout bounds how long serve waits for the first Redis
// subscription before accepting connections.
const relayReadyTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Switchyard API server",
		Long: `Starts the HTTP API, the websocket and event-stream endpoints, and the
optional compaction schedule. With redis.addr set, board signals are relayed
through Redis so several instances can serve the same boards.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "switchyard.yaml", "path to Switchyard config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides server.port)")
	return cmd
}

// newLogger builds the process logger from the log section of the config.
func newLogger(cfg config.LogConfig, out io.Writer) (*log.Logger, error) {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	logger := log.New()
	logger.SetOutput(out)
	logger.SetLevel(level)
	if cfg.Format == "json" {
		logger.SetFormatter(&log.JSONFormatter{})
	} else {
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return logger, nil
}

// openStore opens and migrates the configured database.
func openStore(cfg *config.Config) (*gorm.DB, error) {
	gormDB, err := db.Open(cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return nil, err
	}
	return gormDB, nil
}

// services wires the domain services around one store and publisher.
type services struct {
	engine *reorder.Engine
	users  *user.Service
	boards *board.Service
	lists  *list.Service
	cards  *card.Service
}

func newServices(cfg *config.Config, gormDB *gorm.DB, pub notify.Publisher) services {
	engine := reorder.New(gormDB, reorder.WithCompactOnDelete(cfg.Ordering.CompactOnDelete))
	boards := board.NewService(gormDB, pub, cfg.Boards.DefaultLists)
	return services{
		engine: engine,
		users:  user.NewService(gormDB),
		boards: boards,
		lists:  list.NewService(gormDB, engine, boards, pub),
		cards:  card.NewService(gormDB, engine, boards, pub),
	}
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := newLogger(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	if port == 0 {
		port = cfg.Server.Port
	}

	gormDB, err := openStore(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The hub exists before any connection is accepted.
	hub := notify.NewHub(logger)
	var pub notify.Publisher = hub
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		relay := notify.NewRedisRelay(rdb, cfg.Redis.ChannelPrefix, hub, logger)
		ready := make(chan struct{})
		go relay.Run(ctx, ready)
		select {
		case <-ready:
		case <-time.After(relayReadyTimeout):
			logger.WithField("addr", cfg.Redis.Addr).Warn("redis relay not subscribed yet, starting anyway")
		case <-ctx.Done():
			return nil
		}
		pub = relay
		logger.WithField("addr", cfg.Redis.Addr).Info("relaying board signals through redis")
	}

	svc := newServices(cfg, gormDB, pub)

	if cfg.Ordering.CompactSchedule != "" {
		sched, err := maintenance.NewScheduler(cfg.Ordering.CompactSchedule, svc.engine, logger)
		if err != nil {
			return err
		}
		go sched.Run(ctx)
		logger.WithField("schedule", cfg.Ordering.CompactSchedule).Info("position compaction scheduled")
	}

	return api.Start(ctx, api.StartOpts{
		Server: &api.Server{
			Users:          svc.users,
			Tokens:         auth.NewTokens(cfg.Auth.JWTSecret, cfg.TokenTTL()),
			Boards:         svc.boards,
			Lists:          svc.lists,
			Cards:          svc.cards,
			Hub:            hub,
			Logger:         logger,
			AllowedOrigins: cfg.Server.AllowedOrigins,
		},
		Port:            port,
		ShutdownTimeout: cfg.ShutdownTimeout(),
		Out:             cmd.OutOrStdout(),
	})
}
