package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"

	"dm-chat/internal/chatstore"
	"dm-chat/internal/config"
	"dm-chat/internal/gateway"
	"dm-chat/internal/models"
	"dm-chat/internal/observability"
	"dm-chat/internal/transport"
)

func main() {
	configPath := flag.String("config", os.Getenv("CHAT_CONFIG"), "path to YAML config file")
	email := flag.String("email", os.Getenv("CHAT_EMAIL"), "account email")
	password := flag.String("password", os.Getenv("CHAT_PASSWORD"), "account password")
	fullName := flag.String("name", "", "full name; with -signup creates the account first")
	signup := flag.Bool("signup", false, "create the account before logging in")
	logPath := flag.String("log", "chat-cli.log", "log file; the terminal is owned by the UI")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logOut := io.Discard
	if *logPath != "" {
		f, err := os.OpenFile(*logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			log.Fatalf("failed to open log file: %v", err)
		}
		defer f.Close()
		logOut = f
	}
	logger := observability.NewLoggerTo(logOut, cfg.Logging.Level, cfg.Logging.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	api := gateway.NewClient(cfg.Client.BaseURL, cfg.Client.Timeout, gateway.WithToken(cfg.Client.Token))
	me, err := authenticate(ctx, api, *signup, *fullName, *email, *password)
	if err != nil {
		log.Fatalf("failed to authenticate: %v", err)
	}

	session := chatstore.NewStaticSession(me.ID, nil)
	push, err := transport.Dial(ctx, api.BaseURL(), api.Token(), logger)
	if err != nil {
		// The store logs "socket not initialized" and history still works.
		logger.Error("push channel unavailable", "error", err)
	} else {
		session.SetChannel(push)
		defer push.Close()
	}

	bridge := &programBridge{}
	store := chatstore.New(api, session, bridge,
		chatstore.WithObserver(bridge.observe),
		chatstore.WithLogger(logger),
		chatstore.WithMetrics(chatstore.NewMetrics(prometheus.NewRegistry())),
	)
	defer store.Close()

	p := tea.NewProgram(newModel(store, me), tea.WithAltScreen(), tea.WithContext(ctx))
	bridge.attach(p)

	if push != nil {
		go func() {
			runErr := push.Run(ctx)
			if errors.Is(runErr, transport.ErrClosed) || errors.Is(runErr, context.Canceled) {
				return
			}
			bridge.send(transportClosedMsg{err: runErr})
		}()
	}

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		fmt.Fprintf(os.Stderr, "chat-cli: %v\n", err)
		os.Exit(1)
	}
}

func authenticate(ctx context.Context, api *gateway.Client, signup bool, fullName, email, password string) (models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if signup {
		session, err := api.Signup(ctx, fullName, email, password)
		if err != nil {
			return models.User{}, fmt.Errorf("signup: %w", err)
		}
		return session.User, nil
	}
	if email != "" {
		session, err := api.Login(ctx, email, password)
		if err != nil {
			return models.User{}, fmt.Errorf("login: %w", err)
		}
		return session.User, nil
	}
	if api.Token() == "" {
		return models.User{}, errors.New("provide -email/-password or client.token")
	}
	return api.Me(ctx)
}
