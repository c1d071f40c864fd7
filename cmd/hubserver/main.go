package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	adminredis "github.com/varzeaprime/go-hub-server/adminauth/redisrepo"
	"github.com/varzeaprime/go-hub-server/audit"
	"github.com/varzeaprime/go-hub-server/auth"
	"github.com/varzeaprime/go-hub-server/internal/config"
	"github.com/varzeaprime/go-hub-server/pgstore"
	"github.com/varzeaprime/go-hub-server/provision"
	"github.com/varzeaprime/go-hub-server/server"
	sessionredis "github.com/varzeaprime/go-hub-server/sessions/redisrepo"
)

func main() {
	for {
		if err := run(); err != nil {
			log.Fatal().Err(err).Msg("error running server")
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Info().Msg("server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	setupLogging(c)
	displayAppname(c.GetAppName())

	ctx := context.Background()

	store, err := pgstore.New(ctx, c.GetDatabaseURL())
	if err != nil {
		return fmt.Errorf("pgstore.New: %w", err)
	}
	defer store.Close()
	if err := store.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("pgstore.EnsureSchema: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: c.GetRedisAddr()})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	defer redisClient.Close()

	recorder := audit.NewRecorder(store.Audit())
	repos := auth.Repos{
		Users:    store.Users(),
		Tenants:  store.Tenants(),
		Sessions: sessionredis.New(redisClient),
	}
	provisioner := provision.New(
		store.Tenants(),
		store.Users(),
		recorder,
		c.GetTenantAdminDSN(),
		c.GetTenantDSNFormat(),
		c.GetTemplatesDir(),
		c.GetTenantDBHost(),
	)

	hub, err := server.New(c, repos, adminredis.New(redisClient), provisioner, recorder)
	if err != nil {
		return fmt.Errorf("server.New: %w", err)
	}

	httpServer := &http.Server{Addr: c.GetPort(), Handler: hub}
	go listenAndServe(httpServer)
	waitForStopSignal()
	returnError = shutdown(httpServer)
	return returnError
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func setupLogging(c config.Config) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if c.GetEnv() == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
