// Package backend selects and wires the invoice archive at startup.
package backend

import (
	"context"
	"errors"
	"fmt"

	"invoicepilot/internal/archive"
	"invoicepilot/internal/config"
)

// Kind names an archive implementation selectable through DATA_BACKEND.
type Kind string

const (
	SQLiteBackend Kind = "sqlite"
	MemoryBackend Kind = "memory"
)

func (k Kind) String() string { return string(k) }

// IsValid reports whether k names a supported archive.
func (k Kind) IsValid() bool {
	return k == SQLiteBackend || k == MemoryBackend
}

// Result is a ready archive plus its lifecycle hooks. Cleanup releases the
// store and any broker connection; Ready backs /readyz.
type Result struct {
	Archive archive.Archive
	Cleanup func() error
	Ready   func(ctx context.Context) error
}

type Factory interface {
	CreateBackend(ctx context.Context, cfg Config) (*Result, error)
}

// Config is the subset of the process configuration the factory needs.
// The AMQP fields are optional; an empty URL disables sync messages.
type Config struct {
	Type         Kind
	SQLiteDBPath string
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

func FromAppConfig(c *config.Config) (Config, error) {
	if c == nil {
		return Config{}, errors.New("backend: nil app config")
	}
	cfg := Config{
		Type:         Kind(c.DataBackend),
		SQLiteDBPath: c.SQLiteDBPath,
		AMQPURL:      c.AMQPURL,
		AMQPExchange: c.AMQPExchange,
		AMQPQueue:    c.AMQPQueue,
	}
	if !cfg.Type.IsValid() {
		return Config{}, fmt.Errorf("backend: unknown DATA_BACKEND %q", c.DataBackend)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch {
	case !c.Type.IsValid():
		return fmt.Errorf("backend: unknown type %q", c.Type)
	case c.Type == SQLiteBackend && c.SQLiteDBPath == "":
		return errors.New("backend: sqlite needs a database path")
	}
	return nil
}
