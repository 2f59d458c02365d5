package lock

import (
	"context"
	"fmt"
	"log"

	"github.com/gofrs/flock"
)

// File is an advisory lock on a file in the data dir.
type File struct {
	Path string
}

func (f *File) Acquire(ctx context.Context) (func(), error) {
	fl := flock.New(f.Path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", f.Path, err)
	}
	if !ok {
		return nil, ErrHeld
	}
	log.Printf("[lock] acquired file=%s", f.Path)
	return func() {
		if err := fl.Unlock(); err != nil {
			log.Printf("[lock] release file=%s error: %v", f.Path, err)
		}
	}, nil
}

func (f *File) Close() error { return nil }
