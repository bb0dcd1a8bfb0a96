// Package ingest reads content into memory under a size cap and a read
// deadline before it is turned into a card.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"mcard-go/internal/mcard"
)

// Ingester bounds how much is read and for how long.
type Ingester struct {
	// MaxBytes is the largest payload accepted. Larger input fails with
	// mcard.ErrIngestTooLarge; it is never truncated.
	MaxBytes int64

	// ReadTimeout bounds a single read. Zero means no deadline.
	ReadTimeout time.Duration
}

// New creates an Ingester.
func New(maxBytes int64, readTimeout time.Duration) *Ingester {
	return &Ingester{MaxBytes: maxBytes, ReadTimeout: readTimeout}
}

// Read consumes r up to MaxBytes. It returns mcard.ErrIngestTimeout when the
// deadline passes first; the read is abandoned, and closing r is up to the
// caller.
func (in *Ingester) Read(ctx context.Context, r io.Reader) ([]byte, error) {
	if in.ReadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, in.ReadTimeout)
		defer cancel()
	}

	type result struct {
		data []byte
		err  error
	}
	done := make(chan result, 1)
	go func() {
		data, err := io.ReadAll(io.LimitReader(r, in.MaxBytes+1))
		done <- result{data, err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return nil, fmt.Errorf("reading content: %w", res.err)
		}
		if int64(len(res.data)) > in.MaxBytes {
			return nil, fmt.Errorf("%w: more than %d bytes", mcard.ErrIngestTooLarge, in.MaxBytes)
		}
		return res.data, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", mcard.ErrIngestTimeout, in.ReadTimeout)
		}
		return nil, ctx.Err()
	}
}

// ReadFile reads a regular file at path. Symlinks, directories, devices,
// pipes and sockets are rejected.
func (in *Ingester) ReadFile(ctx context.Context, path string) ([]byte, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving absolute path: %w", err)
	}

	info, err := os.Lstat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat path: %w", err)
	}
	if err := checkRegular(absPath, info.Mode()); err != nil {
		return nil, err
	}
	if info.Size() > in.MaxBytes {
		return nil, fmt.Errorf("%w: %s is %d bytes, limit is %d", mcard.ErrIngestTooLarge, absPath, info.Size(), in.MaxBytes)
	}

	f, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", absPath, err)
	}
	// Closing unblocks an abandoned read after a timeout.
	defer f.Close()

	data, err := in.Read(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", absPath, err)
	}
	return data, nil
}

func checkRegular(path string, mode os.FileMode) error {
	switch {
	case mode&os.ModeSymlink != 0:
		return fmt.Errorf("symlinks not supported: %s", path)
	case mode.IsDir():
		return fmt.Errorf("path is a directory: %s", path)
	case mode&os.ModeDevice != 0:
		return fmt.Errorf("device files not supported: %s", path)
	case mode&os.ModeNamedPipe != 0:
		return fmt.Errorf("named pipes not supported: %s", path)
	case mode&os.ModeSocket != 0:
		return fmt.Errorf("sockets not supported: %s", path)
	case !mode.IsRegular():
		return fmt.Errorf("not a regular file: %s", path)
	}
	return nil
}
