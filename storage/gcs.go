package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"cloud.google.com/go/storage"
	"github.com/codeGROOVE-dev/retry"
	"google.golang.org/api/iterator"
)

// gcsBucket stores objects in a Cloud Storage bucket. Every call is retried
// with backoff except for missing objects.
type gcsBucket struct {
	client *storage.Client
	logger *slog.Logger
	bucket string
}

func (g *gcsBucket) String() string { return "gs://" + g.bucket }

func (g *gcsBucket) do(ctx context.Context, op, key string, fn func() error) error {
	return retry.Do(fn,
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(2*time.Minute),
		retry.MaxJitter(10*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			g.logger.Info("Retrying storage operation after error", "op", op, "attempt", n, "key", key, "error", err)
		}),
	)
}

func (g *gcsBucket) put(ctx context.Context, key string, data []byte) error {
	return g.do(ctx, "put", key, func() error {
		w := g.client.Bucket(g.bucket).Object(key).NewWriter(ctx)
		w.ContentType = "application/json"
		if _, err := w.Write(data); err != nil {
			if closeErr := w.Close(); closeErr != nil {
				g.logger.Warn("Failed to close writer after error", "error", closeErr)
			}
			return err
		}
		return w.Close()
	})
}

func (g *gcsBucket) get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	missing := false
	err := g.do(ctx, "get", key, func() error {
		r, err := g.client.Bucket(g.bucket).Object(key).NewReader(ctx)
		if errors.Is(err, storage.ErrObjectNotExist) {
			missing = true
			return retry.Unrecoverable(err)
		}
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := r.Close(); closeErr != nil {
				g.logger.Warn("Failed to close storage reader", "error", closeErr)
			}
		}()
		data, err = io.ReadAll(r)
		return err
	})
	if missing {
		return nil, ErrNotFound
	}
	return data, err
}

func (g *gcsBucket) remove(ctx context.Context, key string) error {
	return g.do(ctx, "delete", key, func() error {
		err := g.client.Bucket(g.bucket).Object(key).Delete(ctx)
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil
		}
		return err
	})
}

func (g *gcsBucket) keys(ctx context.Context) ([]string, error) {
	var names []string
	it := g.client.Bucket(g.bucket).Objects(ctx, &storage.Query{Prefix: keyPrefix})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return names, nil
		}
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", g, err)
		}
		names = append(names, attrs.Name)
	}
}
