// Package redis wires the go-redis client used by the distributed migration
// lock. The manager itself never imports this package directly — it depends
// only on migrationlock.Provider.
package redis

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/redis/go-redis/extra/redisotel/v9"
	r "github.com/redis/go-redis/v9"
)

type Cmdable = r.Cmdable

type Client interface {
	Cmdable
	Close() error
}

// Config describes how to connect to the Redis instance backing the
// distributed migration lock.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	Database int
	TLS      bool
}

// NewClient dials Redis and instruments the connection with OpenTelemetry
// tracing. Each caller gets its own client; there is no process-wide
// singleton, so collaborators can be constructed and torn down explicitly.
func NewClient(ctx context.Context, config *Config) (Client, error) {
	options := &r.Options{
		Addr:     fmt.Sprintf("%s:%d", config.Host, config.Port),
		Username: config.Username,
		Password: config.Password,
		DB:       config.Database,
	}

	if config.TLS {
		options.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	client := r.NewClient(options)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis client ping failed: %w", err)
	}

	if err := redisotel.InstrumentTracing(client); err != nil {
		return nil, fmt.Errorf("redis client instrumentation failed: %w", err)
	}

	return client, nil
}
