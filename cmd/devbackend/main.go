package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/jrsteele09/go-auth-session/internal/config"
	"github.com/jrsteele09/go-auth-session/internal/logging"
	"github.com/jrsteele09/go-auth-session/server"
	"github.com/jrsteele09/go-auth-session/server/loginsession"
	fakeuserrepo "github.com/jrsteele09/go-auth-session/users/repofake"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

func main() {
	configPath := flag.String("config", "", "optional TOML config file")
	flag.Parse()

	// A missing .env is fine; real environment variables still apply
	_ = godotenv.Load()

	for {
		if err := run(*configPath); err != nil {
			log.Fatal().Err(err).Msg("Error running server")
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Info().Msg("Server stopped")
}

func run(configPath string) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	c, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logging.Setup(c)
	displayAppname(c.GetAppName())

	options := []server.ServerOption{}
	sessions, err := loginSessions(c)
	if err != nil {
		return err
	}
	options = append(options, server.WithLoginSessions(sessions))

	verifier, err := server.NewProviderVerifier(context.Background(), c)
	if err != nil {
		return err
	}
	if verifier != nil {
		options = append(options, server.WithProviderVerifier(verifier))
	}

	handler, err := server.New(c, fakeuserrepo.NewFakeUserRepo(), options...)
	if err != nil {
		return err
	}

	srv := &http.Server{Addr: c.GetPort(), Handler: handler}
	errs := make(chan error, 1)
	go func() { errs <- listenAndServe(srv) }()

	select {
	case err := <-errs:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(srv)
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.New(), nil
	}
	return config.Load(path)
}

func loginSessions(c config.Config) (loginsession.Repo, error) {
	if c.GetSessionStore() != config.StoreRedis {
		return loginsession.NewInMemoryLoginSessionRepo(), nil
	}
	opts, err := redis.ParseURL(c.GetRedisURL())
	if err != nil {
		return nil, fmt.Errorf("redis parse url: %w", err)
	}
	log.Info().Str("addr", opts.Addr).Msg("Tracking login sessions in redis")
	return loginsession.NewRedisLoginSessionRepo(redis.NewClient(opts), 2*time.Second), nil
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
