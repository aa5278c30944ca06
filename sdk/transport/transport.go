// Package transport is the public entry point to the relay transports: an
// in-process loopback for tests and embedding, and websocket connections
// between a surface process and an engine process.
package transport

import (
	"context"

	"github.com/leandrodaf/paramrelay/internal/transport/memory"
	"github.com/leandrodaf/paramrelay/internal/transport/wstransport"
	"github.com/leandrodaf/paramrelay/sdk/contracts"
)

type (
	// Loopback is a connected surface/engine pair delivering on Flush.
	Loopback = memory.Pair
	// Endpoint is one side of a Loopback.
	Endpoint = memory.Endpoint
	// Conn is a websocket transport with a single owner loop.
	Conn = wstransport.Conn
	// Server accepts one websocket session at a time.
	Server = wstransport.Server
	// SessionFunc is called for every accepted websocket session.
	SessionFunc = wstransport.SessionFunc
	// Option configures websocket connections and servers.
	Option = wstransport.Option
)

// Errors returned by the transports.
var (
	ErrNotQuiescent   = memory.ErrNotQuiescent
	ErrLoopbackClosed = memory.ErrClosed
	ErrClosed         = wstransport.ErrClosed
	ErrBusy           = wstransport.ErrBusy
)

// Websocket options.
var (
	WithClientOptions  = wstransport.WithClientOptions
	WithWriteTimeout   = wstransport.WithWriteTimeout
	WithReadLimit      = wstransport.WithReadLimit
	WithHTTPHeader     = wstransport.WithHTTPHeader
	WithOriginPatterns = wstransport.WithOriginPatterns
)

// NewLoopback creates an in-process transport pair.
func NewLoopback(opts ...contracts.Option) (*Loopback, error) {
	return memory.NewPair(opts...)
}

// Dial connects to a relay server.
func Dial(ctx context.Context, url string, opts ...Option) (*Conn, error) {
	return wstransport.Dial(ctx, url, opts...)
}

// NewServer returns an http.Handler running onConnect for each session.
func NewServer(onConnect SessionFunc, opts ...Option) (*Server, error) {
	return wstransport.NewServer(onConnect, opts...)
}
