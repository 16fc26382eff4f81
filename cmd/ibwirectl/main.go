package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/danmuck/ibwire/internal/gateway"
	"github.com/danmuck/ibwire/internal/logging"
	"github.com/danmuck/ibwire/internal/protocol/message"
)

func main() {
	configPath := flag.String("config", "cmd/ibwirectl/ex.config.toml", "path to the ibwire config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "ibwirectl: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	logging.ConfigureRuntime()
	log := logging.New("ibwirectl")

	cfg, err := loadServiceConfig(configPath)
	if err != nil {
		return err
	}

	var conn *gateway.Conn
	router := newEventRouter(func() *gateway.Conn { return conn }, logging.New("dispatch"))
	conn = gateway.NewConn(cfg.Session, router, logging.New("gateway"))
	sup := gateway.NewSupervisor(conn, cfg.Target, cfg.Session.Backoff, logging.New("supervisor"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              cfg.AdminListenAddr,
		Handler:           newAdminRouter(conn, cfg.CORSOrigins, logging.New("admin")),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", cfg.AdminListenAddr).Msg("ibwirectl admin server stopped")
		}
	}()
	log.Info().
		Str("gateway", fmt.Sprintf("%s:%d", cfg.Target.Host, cfg.Target.Port)).
		Int("client_id", cfg.Target.ClientID).
		Str("admin", cfg.AdminListenAddr).
		Msg("ibwirectl starting")

	err = sup.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// newEventRouter logs session traffic and asks for the server clock on each
// connect.
func newEventRouter(conn func() *gateway.Conn, log zerolog.Logger) *gateway.Router {
	r := gateway.NewRouter()
	r.OnConnect(func(ev gateway.Connected) {
		log.Info().
			Str("session_id", ev.SessionID).
			Int("server_version", ev.ServerVersion).
			Str("server_time", ev.ServerTime).
			Msg("connected")
		if err := conn().Send(message.ReqCurrentTime.Tag(), "1"); err != nil {
			log.Warn().Err(err).Msg("request current time")
		}
	})
	r.OnDisconnect(func(ev gateway.Disconnected) {
		if ev.Reason == "" {
			log.Info().Str("session_id", ev.SessionID).Msg("disconnected")
			return
		}
		log.Warn().Str("session_id", ev.SessionID).Str("reason", ev.Reason).Msg("disconnected")
	})
	r.Handle(message.NextValidID, func(m gateway.MessageReceived) {
		id, _ := m.Frame.Field(2)
		log.Info().Str("next_valid_id", id).Msg("order ids")
	})
	r.Handle(message.ManagedAccts, func(m gateway.MessageReceived) {
		accounts, _ := m.Frame.Field(2)
		log.Info().Str("accounts", accounts).Msg("managed accounts")
	})
	r.Handle(message.CurrentTime, func(m gateway.MessageReceived) {
		ts, _ := m.Frame.Field(2)
		log.Info().Str("server_clock", ts).Msg("current time")
	})
	r.Handle(message.ErrMsg, func(m gateway.MessageReceived) {
		notice, err := message.ParseErrorNotice(m.Frame)
		if err != nil {
			log.Warn().Err(err).Stringer("frame", m.Frame).Msg("unreadable error message")
			return
		}
		e := log.Warn()
		if message.IsWarningCode(notice.Code) {
			e = log.Info()
		}
		e.Int64("req_id", notice.RequestID).Int("code", notice.Code).Str("msg", notice.Message).Msg("gateway notice")
	})
	r.HandleDefault(func(m gateway.MessageReceived) {
		log.Debug().Stringer("kind", m.Kind).Stringer("frame", m.Frame).Msg("unhandled message")
	})
	r.HandleUnknown(func(m gateway.MessageReceived) {
		log.Debug().Stringer("kind", m.Kind).Stringer("frame", m.Frame).Msg("unknown message kind")
	})
	return r
}
