package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// Source lists and opens the raw corpus files (.txt) to ingest.
type Source interface {
	List(ctx context.Context) ([]string, error)
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// DirSource reads corpus files from a local directory.
type DirSource struct {
	Dir string
}

func (s DirSource) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus directory %s: %w", s.Dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".txt" {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

func (s DirSource) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	return os.Open(filepath.Join(s.Dir, name))
}

// GCSSource reads corpus files from a bucket prefix.
type GCSSource struct {
	Client *storage.Client
	Bucket string
	Prefix string
}

func (s GCSSource) List(ctx context.Context) ([]string, error) {
	it := s.Client.Bucket(s.Bucket).Objects(ctx, &storage.Query{Prefix: s.Prefix})
	var names []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list gs://%s/%s: %w", s.Bucket, s.Prefix, err)
		}
		if path.Ext(attrs.Name) != ".txt" {
			continue
		}
		names = append(names, strings.TrimPrefix(attrs.Name, s.Prefix))
	}
	sort.Strings(names)
	return names, nil
}

func (s GCSSource) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	r, err := s.Client.Bucket(s.Bucket).Object(s.Prefix + name).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open gs://%s/%s%s: %w", s.Bucket, s.Prefix, name, err)
	}
	return r, nil
}
