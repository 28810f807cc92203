package item

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"
)

// readConcurrency bounds parallel file reads during a bulk load.
const readConcurrency = 16

// ReadFile reads and parses a single item-definition file. The item id is
// taken from the directory holding the file. Malformed content is returned
// as an error; it never panics.
func ReadFile(path string) (*WorkItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read item file %s: %w", path, err)
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse item file %s: %w", path, err)
	}

	f.SetDefaults()
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("invalid item file %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	return f.ToItem(filepath.Base(dir), dir), nil
}

// ReadAll reads the listed item-definition files concurrently. Files that
// fail to read or parse are skipped with a logged warning, so one corrupt
// file costs exactly one item. The result preserves input order.
func ReadAll(ctx context.Context, paths []string, logger *slog.Logger) []*WorkItem {
	results := make([]*WorkItem, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(readConcurrency)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			it, err := ReadFile(path)
			if err != nil {
				logger.Warn("skipping unreadable item file", "path", path, "error", err)
				return nil
			}
			results[i] = it
			return nil
		})
	}
	// The only error a worker returns is context cancellation; partial
	// results are still good.
	_ = g.Wait()

	items := make([]*WorkItem, 0, len(results))
	for _, it := range results {
		if it != nil {
			items = append(items, it)
		}
	}
	return items
}

// Sibling reads an optional companion file (DocFile or ContextFile) from
// the item's directory. A missing file reports ok=false with no error.
func Sibling(it *WorkItem, name string) (string, bool, error) {
	data, err := os.ReadFile(filepath.Join(it.Dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read %s for %s: %w", name, it.ID, err)
	}
	return string(data), true, nil
}

// LoadDetail returns a copy of the item with its companion files attached.
// Absent companions stay empty; read failures are ignored here because
// detail loads must not fail on optional extras.
func LoadDetail(it *WorkItem) *WorkItem {
	detail := *it
	if doc, ok, err := Sibling(it, DocFile); err == nil && ok {
		detail.Doc = doc
	}
	if ctx, ok, err := Sibling(it, ContextFile); err == nil && ok {
		detail.Context = ctx
	}
	return &detail
}
