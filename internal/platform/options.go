package platform

import (
	"log/slog"
	"time"

	"github.com/Gertschi2011/kiana-ledger/pkg/core"
)

// options holds the internal configuration for a ledger node.
type options struct {
	repository core.Repository
	logger     *slog.Logger
	config     map[string]interface{}
}

// Option defines a functional option for configuring a ledger node.
type Option func(*options)

// defaultOptions returns the default configuration.
func defaultOptions() *options {
	return &options{
		repository: nil,
		logger:     nil,
		config:     make(map[string]interface{}),
	}
}

// WithLogger sets the logger for the node.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithRepository allows injecting a custom storage adapter (e.g. mock, s3).
// If provided, the default filesystem adapter will be skipped.
func WithRepository(repo core.Repository) Option {
	return func(o *options) {
		o.repository = repo
	}
}

// WithSystemDir allows specifying the hidden metadata directory name.
// Defaults to ".ledger".
func WithSystemDir(name string) Option {
	return func(o *options) {
		o.config["system_dir"] = name
	}
}

// WithEventBuffer allows specifying the size of the event broker buffer.
// Zero means default (100).
func WithEventBuffer(size int) Option {
	return func(o *options) {
		o.config["event_buffer"] = size
	}
}

// WithRole sets the identity role the node signs with. Defaults to "owner".
func WithRole(role string) Option {
	return func(o *options) {
		o.config["role"] = role
	}
}

// WithStrictVerify controls whether foreign signatures must come from a
// registered, unrevoked agent. Enabled by default once a registry exists.
func WithStrictVerify(strict bool) Option {
	return func(o *options) {
		o.config["strict_verify"] = strict
	}
}

// WithHTTPTimeout bounds HTTP requests made by the node's pull client.
func WithHTTPTimeout(d time.Duration) Option {
	return func(o *options) {
		o.config["http_timeout"] = d
	}
}
