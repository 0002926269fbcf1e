// Package storage handles persistence of cached post pages.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"froidapi/pkg/froid"

	"cloud.google.com/go/storage"
)

const keyPrefix = "post-"

// ErrNotFound is returned when a post is not in the cache.
var ErrNotFound = errors.New("storage: object doesn't exist")

// blobs is a flat namespace of JSON documents.
type blobs interface {
	put(ctx context.Context, key string, data []byte) error
	get(ctx context.Context, key string) ([]byte, error) // ErrNotFound when absent
	remove(ctx context.Context, key string) error         // absent keys are not an error
	keys(ctx context.Context) ([]string, error)
	String() string
}

// Store keeps parsed post pages in Cloud Storage or a local directory.
type Store struct {
	blobs  blobs
	logger *slog.Logger
}

// New creates a new storage handler. A non-empty localPath takes
// precedence over the bucket.
func New(client *storage.Client, bucket string, localPath string, logger *slog.Logger) *Store {
	var b blobs
	if localPath != "" {
		b = localDir{path: localPath, logger: logger}
	} else {
		b = &gcsBucket{client: client, bucket: bucket, logger: logger}
	}
	return &Store{blobs: b, logger: logger}
}

// PostKey returns the object name for a post id.
func PostKey(id int) string {
	if id <= 0 {
		return ""
	}
	return keyPrefix + strconv.Itoa(id) + ".json"
}

func postIDFromKey(key string) (int, bool) {
	digits, ok := strings.CutPrefix(key, keyPrefix)
	if !ok {
		return 0, false
	}
	if digits, ok = strings.CutSuffix(digits, ".json"); !ok {
		return 0, false
	}
	id, err := strconv.Atoi(digits)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// SavePost stores a snapshot of a parsed post.
func (s *Store) SavePost(ctx context.Context, post *froid.CachedPost) error {
	if post == nil || post.Page == nil {
		return errors.New("empty post")
	}
	key := PostKey(post.Page.PostID)
	if key == "" {
		return errors.New("invalid post id")
	}

	data, err := json.MarshalIndent(post, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal post: %w", err)
	}
	if err := s.blobs.put(ctx, key, data); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	s.logger.Info("Post cached", "post_id", post.Page.PostID, "backend", s.blobs.String())
	return nil
}

// LoadPost loads a cached post by id.
func (s *Store) LoadPost(ctx context.Context, id int) (*froid.CachedPost, error) {
	key := PostKey(id)
	if key == "" {
		return nil, ErrNotFound
	}
	data, err := s.blobs.get(ctx, key)
	if err != nil {
		if IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load %s: %w", key, err)
	}

	var post froid.CachedPost
	if err := json.Unmarshal(data, &post); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", key, err)
	}
	if post.Page == nil {
		return nil, fmt.Errorf("unmarshal %s: no page", key)
	}
	return &post, nil
}

// DeletePost removes a cached post. Deleting a missing post is not an error.
func (s *Store) DeletePost(ctx context.Context, id int) error {
	key := PostKey(id)
	if key == "" {
		return errors.New("invalid post id")
	}
	if err := s.blobs.remove(ctx, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	s.logger.Info("Post dropped from cache", "post_id", id, "backend", s.blobs.String())
	return nil
}

// List loads every cached post. Unreadable entries are logged and skipped.
func (s *Store) List(ctx context.Context) ([]*froid.CachedPost, error) {
	names, err := s.blobs.keys(ctx)
	if err != nil {
		return nil, err
	}

	var posts []*froid.CachedPost
	for _, name := range names {
		id, ok := postIDFromKey(name)
		if !ok {
			continue
		}
		post, err := s.LoadPost(ctx, id)
		if err != nil {
			s.logger.Warn("Skipping unreadable cache entry", "key", name, "error", err)
			continue
		}
		posts = append(posts, post)
	}
	return posts, nil
}

// IsNotFound checks if an error indicates a post was not cached.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
