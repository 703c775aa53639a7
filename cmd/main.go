package main

import (
	"chatter-box/api"
	"chatter-box/auth"
	"chatter-box/gateway"
	"chatter-box/internal"
	"chatter-box/moderation"
	"chatter-box/observability"
	"chatter-box/repositories"
	"chatter-box/runtime"
	"chatter-box/runtime/workers"
	"chatter-box/services"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "chatter-box terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run wires every component and blocks until a termination signal.
// Deferred cleanups run before main exits.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	censor, err := buildCensor(config, log)
	if err != nil {
		return exitConfig, err
	}

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	userRepository := repositories.NewUserRepository(db)
	messageRepository := repositories.NewMessageRepository(db, log)

	// 3. Services
	tokens := auth.NewJWTManager(config.JWTSecret, config.AuthTokenDuration)
	metrics := observability.NewMetrics()
	registry := runtime.NewRegistry()
	fanout := workers.NewPresenceFanout(log, registry, config.PresenceBufferSize, config.SinkTimeout).
		OnBroadcast(metrics.SetOnlineUsers)

	chatService := services.NewChatService(log, messageRepository, userRepository, censor, config.MaxContentLength)
	conversationService := services.NewConversationService(log, messageRepository, userRepository)
	authService := services.NewAuthService(userRepository, tokens)

	// 4. Transport
	live := gateway.New(log, config.Gateway(), tokens, registry, fanout, chatService, metrics)
	fanout.BroadcastTo(live)
	server := api.NewServer(log, conversationService, authService, tokens, metrics).
		WithAuthRateLimit(config.AuthRateLimitRPS, config.AuthRateLimitBurst)
	httpServer := &http.Server{
		Addr:              config.Address(),
		Handler:           server.Router(live),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 5. Supervision
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sup := workers.NewSupervisor(log, config.RestartInterval)
	sup.Add(
		fanout,
		observability.NewReporter(log, metrics, config.MetricInterval),
		api.NewServerWorker(log, httpServer, live, config.ShutdownTimeout),
	)
	sup.Run(ctx)

	log.Info("Program stopped cleanly")
	return exitOK, nil
}

func buildCensor(config internal.Config, log *slog.Logger) (moderation.Censor, error) {
	if !config.EnableModeration {
		return moderation.Noop{}, nil
	}
	char, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return nil, err
	}

	var words []string
	if config.CensoredWordsPath != "" {
		words, err = moderation.LoadWords(os.DirFS(config.CensoredWordsPath), ".")
	} else {
		words, err = moderation.LoadEmbedded()
	}
	if err != nil {
		return nil, fmt.Errorf("loading censored words: %w", err)
	}

	moderator, err := moderation.NewModerator(words, char)
	if err != nil {
		return nil, err
	}
	log.Info("Moderation enabled", "words", len(words))
	return moderator, nil
}
