package wstransport

import (
	"net/http"
	"time"

	"github.com/leandrodaf/paramrelay/sdk/contracts"
)

const (
	// DefaultWriteTimeout bounds a single frame write.
	DefaultWriteTimeout = 5 * time.Second
	// DefaultReadLimit is the largest accepted inbound frame in bytes.
	DefaultReadLimit = 64 << 10
	// SessionHeader carries the session ID assigned by the server.
	SessionHeader = "X-Relay-Session"
)

type options struct {
	clientOpts     []contracts.Option
	writeTimeout   time.Duration
	readLimit      int64
	header         http.Header
	originPatterns []string
}

// Option configures a Conn or a Server.
type Option func(*options)

// WithClientOptions passes logger options through.
func WithClientOptions(opts ...contracts.Option) Option {
	return func(o *options) { o.clientOpts = append(o.clientOpts, opts...) }
}

// WithWriteTimeout sets the deadline for writing one frame.
func WithWriteTimeout(d time.Duration) Option {
	return func(o *options) { o.writeTimeout = d }
}

// WithReadLimit sets the largest accepted inbound frame.
func WithReadLimit(n int64) Option {
	return func(o *options) { o.readLimit = n }
}

// WithHTTPHeader adds headers to the dial request.
func WithHTTPHeader(h http.Header) Option {
	return func(o *options) { o.header = h.Clone() }
}

// WithOriginPatterns lists the cross-origin hosts a Server accepts.
func WithOriginPatterns(patterns ...string) Option {
	return func(o *options) { o.originPatterns = append(o.originPatterns, patterns...) }
}

func applyOptions(opts []Option) options {
	o := options{writeTimeout: DefaultWriteTimeout, readLimit: DefaultReadLimit}
	for _, opt := range opts {
		opt(&o)
	}
	if o.writeTimeout <= 0 {
		o.writeTimeout = DefaultWriteTimeout
	}
	if o.readLimit <= 0 {
		o.readLimit = DefaultReadLimit
	}
	return o
}
