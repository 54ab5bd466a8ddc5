package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	pb "market-agent/src/grpc_control"
	"market-agent/src/logger"
	"market-agent/src/reconciler"
	"market-agent/src/relay"

	tea "github.com/charmbracelet/bubbletea"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

type clientConfig struct {
	grpcAddr       string
	wsURL          string
	pusherKey      string
	pusherCluster  string
	channel        string
	loadingTimeout time.Duration
	logLevel       string
}

func main() {
	var cfg clientConfig
	flag.StringVar(&cfg.grpcAddr, "grpc", "127.0.0.1:50051", "control service address")
	flag.StringVar(&cfg.wsURL, "ws", "ws://127.0.0.1:8080/ws", "relay websocket URL")
	flag.StringVar(&cfg.pusherKey, "pusher-key", "", "subscribe on hosted Pusher with this app key instead of -ws")
	flag.StringVar(&cfg.pusherCluster, "pusher-cluster", "", "hosted Pusher cluster")
	flag.StringVar(&cfg.channel, "channel", "channel-1", "relay channel")
	flag.DurationVar(&cfg.loadingTimeout, "timeout", 30*time.Second, "give up on a request after this long (0 waits forever)")
	flag.StringVar(&cfg.logLevel, "log-level", "ERROR", "log level")
	flag.Parse()

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg clientConfig) error {
	// The TUI owns the terminal, so logs go to stderr at a quiet level
	log := logger.NewLoggerWithWriter(os.Stderr, cfg.logLevel, "client")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn, err := grpc.NewClient(cfg.grpcAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", cfg.grpcAddr, err)
	}
	defer conn.Close()

	wsURL := cfg.wsURL
	if cfg.pusherKey != "" {
		wsURL = relay.PusherURL(cfg.pusherKey, cfg.pusherCluster)
	}

	subCtx, subCancel := context.WithTimeout(ctx, 10*time.Second)
	sub, err := relay.Subscribe(subCtx, wsURL, cfg.channel, log)
	subCancel()
	if err != nil {
		return err
	}
	defer sub.Close()

	rec := reconciler.NewReconciler(cfg.loadingTimeout, log)
	go rec.Run(ctx, sub.Events())

	m := newModel(pb.NewControlClient(conn), rec, cfg.channel)
	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
