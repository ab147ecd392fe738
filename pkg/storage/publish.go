package storage

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
)

// PublishDir copies every regular file under localDir to store, keyed by
// its slash path relative to localDir below prefix. It returns the
// number of files copied.
func PublishDir(ctx context.Context, store FileStore, localDir, prefix string) (int, error) {
	n := 0
	err := filepath.WalkDir(localDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(localDir, p)
		if err != nil {
			return err
		}
		f, err := os.Open(p)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := store.Put(ctx, path.Join(prefix, filepath.ToSlash(rel)), f); err != nil {
			return err
		}
		n++
		return nil
	})
	if err != nil {
		return n, fmt.Errorf("storage: publish %s: %w", localDir, err)
	}
	return n, nil
}
