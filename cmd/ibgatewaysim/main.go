package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/ibwire/internal/gatewaysim"
	"github.com/danmuck/ibwire/internal/logging"
	"github.com/danmuck/ibwire/internal/protocol/session"
)

func main() {
	listen := flag.String("listen", "127.0.0.1:4002", "address to accept clients on")
	version := flag.Int("version", session.ProtocolVersion, "server version announced in the handshake")
	account := flag.String("account", "DU0000001", "account reported after session start")
	flag.Parse()

	logging.ConfigureRuntime()
	log := logging.New("ibgatewaysim")

	srv, err := gatewaysim.Listen(*listen, gatewaysim.Config{Version: *version, Account: *account}, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ibgatewaysim: %v\n", err)
		os.Exit(1)
	}
	host, port := srv.Addr()
	log.Info().Str("host", host).Int("port", port).Int("version", *version).Msg("ibgatewaysim listening")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	if err := srv.Close(); err != nil {
		log.Debug().Err(err).Msg("ibgatewaysim close")
	}
	log.Info().Int("connections", srv.Connections()).Msg("ibgatewaysim stopped")
}
