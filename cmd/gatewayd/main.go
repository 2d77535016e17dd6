// SPDX-License-Identifier: GPL-3.0-or-later

// Command gatewayd serves a registered application over HTTP/1.1.
//
// Usage:
//
//	gatewayd [module:callable]
//
// The default application is sharkapp:app and the default address is
// port 8080 on all interfaces. See [Config] for the GATEWAY_* variables.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/bassosimone/gateway"
	"github.com/spf13/viper"
	"go.uber.org/fx"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run starts the daemon and blocks until it receives a signal or the
// server stops. It returns the process exit code.
func run(args []string) int {
	cfg, err := loadConfig(viper.New(), args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gatewayd: %s\n", err.Error())
		return 2
	}
	logger, err := newLogger(cfg, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gatewayd: %s\n", err.Error())
		return 2
	}

	var d *daemon
	app := fx.New(
		fx.NopLogger,
		fx.Supply(cfg, logger),
		fx.Provide(newGatewayConfig, newApplication, newServer, newDaemon),
		fx.Populate(&d),
	)
	if err := app.Err(); err != nil {
		logger.Error("gatewaydInit", slog.Any("err", err))
		return 1
	}

	startCtx, cancel := context.WithTimeout(context.Background(), app.StartTimeout())
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		logger.Error("gatewaydStart", slog.Any("err", err))
		return 1
	}

	<-app.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), app.StopTimeout())
	defer cancel()
	if err := app.Stop(stopCtx); err != nil {
		logger.Error("gatewaydStop", slog.Any("err", err))
		return 1
	}
	return 0
}

// newApplication resolves the configured application.
func newApplication(cfg *Config, logger *slog.Logger) (gateway.Application, error) {
	return resolveApp(cfg.App, logger)
}

// newServer returns the server for app.
func newServer(gcfg *gateway.Config, app gateway.Application, logger *slog.Logger) *gateway.Server {
	return gateway.NewServer(gcfg, app, logger)
}

// daemon binds the server lifecycle to the fx lifecycle.
type daemon struct {
	address string
	cancel  context.CancelFunc
	done    chan error
	server  *gateway.Server
	sh      fx.Shutdowner
}

// newDaemon registers the lifecycle hooks for server.
func newDaemon(lc fx.Lifecycle, sh fx.Shutdowner, cfg *Config, server *gateway.Server) *daemon {
	d := &daemon{
		address: cfg.Address(),
		done:    make(chan error, 1),
		server:  server,
		sh:      sh,
	}
	lc.Append(fx.Hook{OnStart: d.start, OnStop: d.stop})
	return d
}

// start binds the listening socket and serves in the background. A bind
// failure aborts the start of the whole application.
func (d *daemon) start(ctx context.Context) error {
	listener, err := gateway.NewListenFunc(d.server.Config, d.server.Logger).Call(ctx, d.address)
	if err != nil {
		return err
	}
	serveCtx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	go func() {
		err := d.server.Serve(serveCtx, listener)
		d.done <- err
		if !errors.Is(err, context.Canceled) {
			d.sh.Shutdown()
		}
	}()
	return nil
}

// stop cancels serving and waits for the serve loop to return.
func (d *daemon) stop(ctx context.Context) error {
	d.cancel()
	select {
	case err := <-d.done:
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
