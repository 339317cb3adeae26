package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/moonhowl/werewolf-client/internal/client"
	"github.com/moonhowl/werewolf-client/internal/config"
	"github.com/moonhowl/werewolf-client/internal/session"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	var (
		configPath = flag.String("config", "config.yml", "path to the config file")
		roomID     = flag.String("room", "", "room id to join")
		profileID  = flag.String("profile", "", "profile id to join as")
	)
	flag.Parse()

	if *roomID == "" || *profileID == "" {
		return fmt.Errorf("both -room and -profile are required")
	}

	conf := config.MustLoad(*configPath)
	logger := initLogger(conf)
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		logger.Info("shutting down", zap.String("signal", sig.String()))
		cancel()
	}()

	tokens, err := session.OpenTokenStore(conf.SessionDBPath)
	if err != nil {
		return err
	}
	defer func() { _ = tokens.Close() }()

	manager := session.NewManager(logger, conf.ServerURL, conf.SocketURL, tokens)
	defer manager.Close()

	creds, err := manager.AcquireSession(ctx, *roomID, *profileID)
	if err != nil {
		return fmt.Errorf("acquire session: %w", err)
	}

	conn, err := manager.Connect(ctx, *roomID, creds)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	cl := client.New(ctx, logger, conf.Template, conn, creds.PlayerID)
	defer cl.Stop()

	// Thin terminal surface: mirror the event log as it grows. Real
	// rendering lives elsewhere.
	printed := 0
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-cl.Done():
			return nil
		case <-ticker.C:
			view := cl.View()
			for _, line := range view.Log[printed:] {
				fmt.Println(line)
				printed++
			}
			if view.Room != nil && view.Timed {
				fmt.Printf("[%s] %ds left\n", view.Room.Phase, view.Remaining)
			}
		}
	}
}

func initLogger(conf *config.Config) *zap.Logger {
	var logger *zap.Logger
	var err error
	if conf.LogLevel == "debug" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		panic(fmt.Errorf("build logger: %w", err))
	}
	return logger
}
