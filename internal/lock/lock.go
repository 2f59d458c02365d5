// Package lock keeps two batch runs from overlapping, within one host
// (file lock) or across hosts (Redis).
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrHeld = errors.New("batch lock is held by another run")

type Locker interface {
	// Acquire returns ErrHeld without waiting when another holder exists.
	Acquire(ctx context.Context) (release func(), err error)
	Close() error
}

type Options struct {
	Backend  string // file | redis | none
	Path     string
	RedisURL string
	Key      string
	TTL      time.Duration
}

func Open(ctx context.Context, o Options) (Locker, error) {
	switch o.Backend {
	case "", "file":
		if o.Path == "" {
			return nil, errors.New("lock: file backend needs a path")
		}
		return &File{Path: o.Path}, nil
	case "redis":
		client, err := NewRedisClient(ctx, o.RedisURL)
		if err != nil {
			return nil, err
		}
		return &Redis{Client: client, Key: o.Key, TTL: o.TTL}, nil
	case "none":
		return Noop{}, nil
	default:
		return nil, fmt.Errorf("lock: unknown backend %q", o.Backend)
	}
}

type Noop struct{}

func (Noop) Acquire(context.Context) (func(), error) { return func() {}, nil }
func (Noop) Close() error { return nil }
