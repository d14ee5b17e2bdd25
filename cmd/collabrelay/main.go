package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"collabdoc/relay"
)

var (
	flagAddr     string
	flagRedisURL string
	flagNodeID   int64
	flagDebug    bool
)

func main() {
	root := &cobra.Command{
		Use:   "collabrelay",
		Short: "Operation relay for shared collaborative documents",
		RunE:  runServe,
	}
	root.Flags().StringVar(&flagAddr, "addr", ":8437", "listen address")
	root.Flags().StringVar(&flagRedisURL, "redis", "", "redis URL for the durable journal (empty: in-memory)")
	root.Flags().Int64Var(&flagNodeID, "node-id", 1, "relay node id for sequence generation")
	root.Flags().BoolVar(&flagDebug, "debug", false, "enable debug logging")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	logger, err := buildLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	journal, err := buildJournal(cmd.Context(), logger)
	if err != nil {
		return err
	}

	hub, err := relay.NewHub(journal, flagNodeID, logger)
	if err != nil {
		return err
	}
	server := relay.NewServer(hub, logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return server.ListenAndServe(ctx, flagAddr)
}

func buildLogger() (*zap.Logger, error) {
	if flagDebug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func buildJournal(ctx context.Context, logger *zap.Logger) (relay.Journal, error) {
	if flagRedisURL == "" {
		logger.Info("using in-memory journal")
		return relay.NewMemoryJournal(), nil
	}

	opts, err := redis.ParseURL(flagRedisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	logger.Info("using redis journal", zap.String("addr", opts.Addr))
	return relay.NewRedisJournal(client), nil
}
