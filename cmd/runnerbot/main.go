package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"github.com/kbirk/runnerbot/internal/config"
	"github.com/kbirk/runnerbot/internal/model"
	"github.com/kbirk/runnerbot/internal/observability"
	"github.com/kbirk/runnerbot/internal/session"
	"github.com/kbirk/runnerbot/internal/strategy"
	"github.com/kbirk/runnerbot/pkg/hub"
	"github.com/kbirk/runnerbot/pkg/hub/websocket"
	"github.com/kbirk/runnerbot/pkg/log"
)

var (
	configPath string
	showWindow bool
)

func main() {

	flag.StringVar(&configPath, "config", "", "Optional YAML config file")
	flag.BoolVar(&showWindow, "window", false, "Print the hero window with every state update")

	flag.Parse()

	red := color.New(color.FgRed, color.Bold).SprintFunc()
	green := color.New(color.FgGreen, color.Bold).SprintFunc()
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()

	cfg, err := config.Load(configPath)
	if err != nil {
		os.Stderr.WriteString(red("ERROR: ") + fmt.Sprintf("Failed to load config: %v\n", err))
		os.Exit(1)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		os.Stderr.WriteString(red("ERROR: ") + fmt.Sprintf("Failed to build logger: %v\n", err))
		os.Exit(1)
	}

	strat, err := newStrategy(cfg.Bot)
	if err != nil {
		os.Stderr.WriteString(red("ERROR: ") + fmt.Sprintf("Failed to build strategy: %v\n", err))
		os.Exit(1)
	}

	code := run(cfg, logger, strat, session.NewTextReporter(session.TextReporterConfig{
		Out:     os.Stdout,
		Window:  showWindow,
		Info:    cyan,
		Success: green,
		Failure: red,
	}))
	logger.Sync()
	os.Exit(code)
}

func newStrategy(bot config.BotConfig) (strategy.Strategy, error) {
	opts := strategy.Options{SquareSize: bot.SquareSize}
	if bot.Strategy == strategy.FixedName {
		action, err := model.ParseAction(bot.Action)
		if err != nil {
			return nil, err
		}
		opts.Action = action
	}
	return strategy.New(bot.Strategy, opts)
}

func run(cfg config.Config, logger *zap.Logger, strat strategy.Strategy, reporter session.Reporter) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	transport := websocket.NewClientTransport(websocket.ClientTransportConfig{
		Host:            cfg.Runner.Host,
		Port:            cfg.Runner.Port,
		Path:            cfg.Runner.HubPath(),
		TLSConfig:       cfg.Runner.TLSConfig(),
		SkipNegotiation: cfg.Runner.SkipNegotiation,
	})

	client := hub.NewClient(hub.ClientConfig{
		Transport:         transport,
		Logger:            log.NewZap(logger.Named("hub")),
		KeepAliveInterval: cfg.Runner.KeepAlive,
	})
	defer client.Close()

	logger.Info("starting bot",
		zap.Stringer("url", transport.URL()),
		zap.String("nickname", cfg.Bot.Nickname),
		zap.String("strategy", cfg.Bot.Strategy))

	s := session.New(client, session.Config{
		Token:    cfg.Bot.Token,
		Nickname: cfg.Bot.Nickname,
		Strategy: strat,
		Reporter: reporter,
		Logger:   logger.Named("session"),
	})

	outcome, err := s.Run(ctx)
	if err != nil {
		logger.Error("session failed", zap.Error(err))
	}
	return outcome.ExitCode()
}
