// SPDX-License-Identifier: GPL-3.0-or-later

package gateway

import (
	"io"
	"strings"
)

// GatewayVersion is the version of the calling convention, exposed to
// applications as wsgi.version and appended to the Server header.
var GatewayVersion = [2]int{1, 0}

// HeaderField is a header name/value pair.
//
// Headers are kept as ordered slices rather than maps: the order in which
// the application declares them is the order on the wire, and duplicates
// are preserved.
type HeaderField struct {
	Name  string
	Value string
}

// Environ is the call environment passed to the [Application].
//
// The gateway builds one Environ per request and never modifies it once
// the application has been invoked. Use [Environ.Vars] for the same data
// keyed by the CGI and WSGI variable names.
type Environ struct {
	// Version is wsgi.version.
	Version [2]int

	// URLScheme is wsgi.url_scheme, always "http".
	URLScheme string

	// Input is wsgi.input: the request body bytes that arrived with the
	// single read, i.e., whatever followed the blank line.
	Input io.Reader

	// Errors is wsgi.errors.
	Errors io.Writer

	// MultiThread is wsgi.multithread, always false.
	MultiThread bool

	// MultiProcess is wsgi.multiprocess, always false.
	MultiProcess bool

	// RunOnce is wsgi.run_once, always false.
	RunOnce bool

	// RequestMethod is REQUEST_METHOD, verbatim from the request line.
	RequestMethod string

	// PathInfo is PATH_INFO, verbatim from the request line (including
	// any query string).
	PathInfo string

	// QueryString is QUERY_STRING: what follows the first '?' in the path.
	QueryString string

	// ServerName is SERVER_NAME: the fully qualified server name.
	ServerName string

	// ServerPort is SERVER_PORT: the port the listener is bound to.
	ServerPort string

	// ServerProtocol is SERVER_PROTOCOL, verbatim from the request line.
	ServerProtocol string

	// ServerSoftware is SERVER_SOFTWARE.
	ServerSoftware string

	// RemoteAddr is REMOTE_ADDR: the peer's IP address.
	RemoteAddr string

	// ContentType is CONTENT_TYPE from the request headers, if any.
	ContentType string

	// ContentLength is CONTENT_LENGTH from the request headers, if any.
	ContentLength string

	// Header contains the request headers found in the read buffer.
	Header []HeaderField
}

// Vars returns the environment as a mapping keyed by CGI/WSGI names.
//
// The mapping is built on each call; modifying it has no effect on env.
func (env *Environ) Vars() map[string]any {
	vars := map[string]any{
		"wsgi.version":      env.Version,
		"wsgi.url_scheme":   env.URLScheme,
		"wsgi.input":        env.Input,
		"wsgi.errors":       env.Errors,
		"wsgi.multithread":  env.MultiThread,
		"wsgi.multiprocess": env.MultiProcess,
		"wsgi.run_once":     env.RunOnce,
		"REQUEST_METHOD":    env.RequestMethod,
		"PATH_INFO":         env.PathInfo,
		"QUERY_STRING":      env.QueryString,
		"SERVER_NAME":       env.ServerName,
		"SERVER_PORT":       env.ServerPort,
		"SERVER_PROTOCOL":   env.ServerProtocol,
		"SERVER_SOFTWARE":   env.ServerSoftware,
		"REMOTE_ADDR":       env.RemoteAddr,
	}
	if env.ContentType != "" {
		vars["CONTENT_TYPE"] = env.ContentType
	}
	if env.ContentLength != "" {
		vars["CONTENT_LENGTH"] = env.ContentLength
	}
	for _, field := range env.Header {
		key := cgiHeaderKey(field.Name)
		if key == "" {
			continue
		}
		if prev, found := vars[key]; found {
			vars[key] = prev.(string) + "," + field.Value
			continue
		}
		vars[key] = field.Value
	}
	return vars
}

// cgiHeaderKey maps a header name to its HTTP_* variable name. It returns
// the empty string for headers having a dedicated variable.
func cgiHeaderKey(name string) string {
	key := strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
	switch key {
	case "CONTENT_TYPE", "CONTENT_LENGTH":
		return ""
	}
	return "HTTP_" + key
}
