package item

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// Scan walks the item tree under root and returns the paths of every
// definition file found, in lexical order.
//
// A missing root is a valid empty tree and returns no paths and no error.
// An unreadable subdirectory is logged and skipped; the rest of the scan
// continues. The only hard failures are a cancelled context and a root
// that exists but is not a directory.
func Scan(ctx context.Context, root string, logger *slog.Logger) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to stat item root %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("item root %s is not a directory", root)
	}

	var paths []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			logger.Warn("skipping unreadable directory", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.IsDir() && d.Name() == DefinitionFile {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan item root %s: %w", root, err)
	}
	return paths, nil
}
