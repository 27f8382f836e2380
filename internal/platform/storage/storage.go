package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
)

var (
	ErrInvalidKey    = errors.New("invalid object key")
	ErrObjectMissing = errors.New("object not found")
)

// Store keeps objects as files under root/<bucket>/<key>. Writes go to a
// temp file that is synced and renamed over the target, so an upload to an
// existing key replaces it atomically.
type Store struct {
	root          string
	publicBaseURL string
	mu            sync.Mutex
}

func New(root, publicBaseURL string) (*Store, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create storage root %s: %w", root, err)
	}
	return &Store{root: root, publicBaseURL: strings.TrimRight(publicBaseURL, "/")}, nil
}

func (s *Store) Upload(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target, err := s.objectPath(bucket, key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return fmt.Errorf("create bucket dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp object: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write object: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close object: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		cleanup()
		return fmt.Errorf("publish object: %w", err)
	}
	return nil
}

func (s *Store) Read(ctx context.Context, bucket, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	target, err := s.objectPath(bucket, key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(target)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrObjectMissing
	}
	return data, err
}

// Delete removes an object. Deleting a missing object is not an error.
func (s *Store) Delete(ctx context.Context, bucket, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target, err := s.objectPath(bucket, key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *Store) PublicURL(bucket, key string) (string, error) {
	if _, err := s.objectPath(bucket, key); err != nil {
		return "", err
	}
	if s.publicBaseURL == "" {
		return "", errors.New("public base url not configured")
	}
	return s.publicBaseURL + "/" + url.PathEscape(bucket) + "/" + escapeKey(key), nil
}

// KeyFromURL reverses PublicURL for objects served by this store.
func (s *Store) KeyFromURL(publicURL string) (bucket, key string, err error) {
	prefix := s.publicBaseURL + "/"
	if s.publicBaseURL == "" || !strings.HasPrefix(publicURL, prefix) {
		return "", "", ErrInvalidKey
	}
	rest := strings.TrimPrefix(publicURL, prefix)
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 {
		return "", "", ErrInvalidKey
	}
	if bucket, err = url.PathUnescape(parts[0]); err != nil {
		return "", "", ErrInvalidKey
	}
	if key, err = url.PathUnescape(parts[1]); err != nil {
		return "", "", ErrInvalidKey
	}
	return bucket, key, nil
}

// Handler serves GET /{bucket}/{key...} relative to its mount point. Only
// the listed buckets are reachable; every other bucket answers 404.
func (s *Store) Handler(publicBuckets ...string) http.Handler {
	allowed := make(map[string]bool, len(publicBuckets))
	for _, bucket := range publicBuckets {
		allowed[bucket] = true
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		parts := strings.SplitN(strings.TrimPrefix(r.URL.Path, "/"), "/", 2)
		if len(parts) != 2 || !allowed[parts[0]] {
			http.NotFound(w, r)
			return
		}
		target, err := s.objectPath(parts[0], parts[1])
		if err != nil {
			http.NotFound(w, r)
			return
		}
		f, err := os.Open(target)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		defer f.Close()
		info, err := f.Stat()
		if err != nil || info.IsDir() {
			http.NotFound(w, r)
			return
		}
		if mtype, err := mimetype.DetectReader(f); err == nil {
			w.Header().Set("Content-Type", mtype.String())
		}
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			http.Error(w, "read object", http.StatusInternalServerError)
			return
		}
		http.ServeContent(w, r, info.Name(), info.ModTime(), f)
	})
}

func (s *Store) objectPath(bucket, key string) (string, error) {
	if !validSegment(bucket) || strings.TrimSpace(key) == "" {
		return "", ErrInvalidKey
	}
	for _, segment := range strings.Split(key, "/") {
		if !validSegment(segment) {
			return "", ErrInvalidKey
		}
	}
	return filepath.Join(s.root, bucket, filepath.FromSlash(key)), nil
}

func validSegment(segment string) bool {
	if segment == "" || segment == "." || segment == ".." {
		return false
	}
	return !strings.ContainsAny(segment, `\`+"\x00")
}

func escapeKey(key string) string {
	segments := strings.Split(key, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.Join(segments, "/")
}
