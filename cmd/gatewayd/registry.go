// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/bassosimone/gateway"
	"github.com/bassosimone/gateway/sharkapp"
)

// defaultAppName is the application served when none is configured.
const defaultAppName = "sharkapp:app"

// errInvalidAppName indicates a name not in "module:callable" form.
var errInvalidAppName = errors.New("gatewayd: application name must be module:callable")

// appFactory builds an application logging to the given logger.
type appFactory func(logger gateway.SLogger) gateway.Application

// registry contains the applications linked into the daemon, keyed by
// their "module:callable" name.
var registry = map[string]appFactory{
	"sharkapp:app": func(logger gateway.SLogger) gateway.Application {
		return sharkapp.New(logger)
	},
}

// resolveApp returns the application registered under name.
func resolveApp(name string, logger gateway.SLogger) (gateway.Application, error) {
	module, callable, found := strings.Cut(name, ":")
	if !found || module == "" || callable == "" {
		return nil, fmt.Errorf("%w: %q", errInvalidAppName, name)
	}
	factory, found := registry[name]
	if !found {
		return nil, fmt.Errorf("gatewayd: unknown application %q (available: %s)",
			name, strings.Join(slices.Sorted(maps.Keys(registry)), ", "))
	}
	return factory(logger), nil
}
