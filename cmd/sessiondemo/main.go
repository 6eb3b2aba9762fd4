package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/LucianaVC752/CajasDelCampo-sub000/api"
	"github.com/LucianaVC752/CajasDelCampo-sub000/credentials"
	"github.com/LucianaVC752/CajasDelCampo-sub000/csrf"
	"github.com/LucianaVC752/CajasDelCampo-sub000/inactivity"
	"github.com/LucianaVC752/CajasDelCampo-sub000/internal/config"
	"github.com/LucianaVC752/CajasDelCampo-sub000/session"
	"github.com/LucianaVC752/CajasDelCampo-sub000/throttle"
)

func main() {
	for {
		if err := run(); err != nil {
			log.Fatal().Err(err).Msg("Error running session demo")
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Info().Msg("Session demo stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Msgf("Recovered from panic: %v", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	_ = godotenv.Load()
	c := config.New()
	setupLogging(c)
	displayAppname(c.GetAppName())

	controller, dispose, err := wireSession(c)
	if err != nil {
		return err
	}
	defer dispose()

	controller.Bootstrap(context.Background())
	logSnapshot(controller.Snapshot())

	unsubscribe := controller.Subscribe(logSnapshot)
	defer unsubscribe()

	waitForStopSignal()
	return nil
}

// wireSession assembles the full security layer: file-backed credential
// store, throttle, CSRF coordinator wrapped around the API client's
// transport, stdin-driven inactivity monitor and the session controller.
func wireSession(c config.Config) (*session.Controller, func(), error) {
	persistent, err := newFileKeyValue(filepath.Join(c.GetDataFolder(), "session.json"))
	if err != nil {
		return nil, nil, err
	}
	store, err := credentials.NewStore(persistent)
	if err != nil {
		return nil, nil, err
	}

	throttler, err := throttle.New(store,
		throttle.WithMaxAttempts(c.GetMaxLoginAttempts()),
		throttle.WithLockoutWindow(c.GetLockoutWindow()))
	if err != nil {
		return nil, nil, err
	}

	client, err := api.New(c.GetAPIBaseURL(),
		api.WithHTTPClient(&http.Client{Timeout: c.GetRequestTimeout()}))
	if err != nil {
		return nil, nil, err
	}

	coordinator, err := csrf.NewCoordinator(store,
		csrf.WithHeaderName(c.GetCSRFHeaderName()),
		csrf.WithTokenMaxAge(c.GetCSRFTokenMaxAge()),
		csrf.WithPathPrefix(c.GetAPIPathPrefix()))
	if err != nil {
		return nil, nil, err
	}
	// The coordinator fetches through the client whose transport it guards;
	// bind the fetcher after both exist.
	coordinator.SetFetcher(client.FetchCSRFToken)
	client.WrapTransport(func(base http.RoundTripper) http.RoundTripper {
		return csrf.NewTransport(coordinator, base)
	})

	source := newStdinActivitySource()
	monitor, err := inactivity.NewMonitor(source, store,
		inactivity.WithTimeout(c.GetSessionTimeout()))
	if err != nil {
		return nil, nil, err
	}

	controller, err := session.NewController(session.Deps{
		Backend:  client,
		Store:    store,
		Throttle: throttler,
		Monitor:  monitor,
		CSRF:     coordinator,
	}, session.WithSessionTimeout(c.GetSessionTimeout()))
	if err != nil {
		return nil, nil, err
	}
	client.SetTokenSource(controller.AccessToken)

	dispose := func() {
		controller.Dispose()
		source.Close()
	}
	return controller, dispose, nil
}

func setupLogging(c config.Config) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if c.GetEnv() != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

func logSnapshot(snapshot session.Snapshot) {
	event := log.Info().
		Str("state", string(snapshot.State)).
		Bool("authenticated", snapshot.Authenticated)
	if snapshot.User != nil {
		event = event.Str("user", snapshot.User.Email).Str("role", string(snapshot.User.Role))
	}
	event.Msg("session state")
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
