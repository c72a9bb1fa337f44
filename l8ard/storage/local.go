package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalPublisher mirrors published keys under a root directory. It backs dry runs
// and file:// destinations.
type LocalPublisher struct {
	Root string
}

// Location returns the root directory.
func (l LocalPublisher) Location() string {
	return l.Root
}

// URI returns the file:// URI of key.
func (l LocalPublisher) URI(key string) string {
	return "file://" + filepath.ToSlash(filepath.Join(l.Root, filepath.FromSlash(key)))
}

// Publish copies localPath to Root/key and returns the number of bytes written.
func (l LocalPublisher) Publish(ctx context.Context, localPath, key string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	dest := filepath.Join(l.Root, filepath.Clean(filepath.FromSlash(key)))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, fmt.Errorf("storage: create %s: %w", filepath.Dir(dest), err)
	}
	src, err := os.Open(localPath)
	if err != nil {
		return 0, fmt.Errorf("storage: open %s: %w", localPath, err)
	}
	defer src.Close()

	tmp := dest + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return 0, fmt.Errorf("storage: create temp file: %w", err)
	}
	n, err := io.Copy(out, src)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("storage: write %s: %w", dest, err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("storage: rename temp file: %w", err)
	}
	return n, nil
}

// LocalCatalog serves source objects from a directory tree laid out like the bucket.
type LocalCatalog struct {
	Root string
}

// Exists reports whether any file exists under Root/key.
func (l LocalCatalog) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, err := os.Stat(filepath.Join(l.Root, filepath.FromSlash(key)))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// Fetch copies Root/key to destPath.
func (l LocalCatalog) Fetch(ctx context.Context, key, destPath string) (int64, error) {
	src := filepath.Join(l.Root, filepath.FromSlash(key))
	return LocalPublisher{Root: filepath.Dir(destPath)}.Publish(ctx, src, filepath.Base(destPath))
}
