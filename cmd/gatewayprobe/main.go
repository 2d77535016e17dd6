// SPDX-License-Identifier: GPL-3.0-or-later

// Command gatewayprobe sends one GET request to a gateway and prints the
// response to the standard output. Structured logs go to the standard error.
//
// Usage:
//
//	gatewayprobe [ip:port] [path]
//
// The defaults are 127.0.0.1:8080 and /shark.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/netip"
	"os"
	"os/signal"
	"time"

	"github.com/bassosimone/gateway"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	os.Exit(run(ctx, os.Args[1:], os.Stdout, logger))
}

// run performs the probe and returns the process exit code.
func run(ctx context.Context, args []string, stdout io.Writer, logger *slog.Logger) int {
	address, path := "127.0.0.1:8080", "/shark"
	if len(args) > 0 {
		address = args[0]
	}
	if len(args) > 1 {
		path = args[1]
	}
	endpoint, err := netip.ParseAddrPort(address)
	if err != nil {
		logger.Error("probeConfig", slog.Any("err", err))
		return 2
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	spanLogger := logger.With("spanID", gateway.NewSpanID())
	hc, err := gateway.NewProbeFunc(gateway.NewConfig(), endpoint, spanLogger).Call(ctx, gateway.Unit{})
	if err != nil {
		logger.Error("probeConnect", slog.Any("err", err))
		return 1
	}
	defer hc.Close()

	resp, body, err := hc.Get(ctx, path)
	if err != nil {
		logger.Error("probeRoundTrip", slog.Any("err", err))
		return 1
	}
	fmt.Fprintf(stdout, "%s %s\n", resp.Proto, resp.Status)
	resp.Header.Write(stdout)
	fmt.Fprintf(stdout, "\n%s", body)
	return 0
}
