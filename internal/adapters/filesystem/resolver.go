// Package filesystem contains filesystem-based adapter implementations.
package filesystem

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/example/apm/internal/ports/secondary"
)

// Resolver implements secondary.AmalgamationResolver by checking referenced
// paths against a project's source root.
type Resolver struct {
	fs afero.Fs
}

var _ secondary.AmalgamationResolver = (*Resolver)(nil)

// NewResolver creates a resolver over fs. A nil fs means the OS filesystem.
func NewResolver(fs afero.Fs) *Resolver {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Resolver{fs: fs}
}

// Resolve reports, for each path, whether a regular file exists under root.
// Output order matches input order. Paths that escape root never resolve,
// and an empty root resolves nothing.
func (r *Resolver) Resolve(ctx context.Context, root string, paths []string) ([]secondary.ResolvedRef, error) {
	out := make([]secondary.ResolvedRef, len(paths))
	var base afero.Fs
	if root != "" {
		base = afero.NewBasePathFs(r.fs, root)
	}

	for i, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = secondary.ResolvedRef{Path: p}
		if base == nil {
			continue
		}
		rel, ok := withinRoot(p)
		if !ok {
			continue
		}
		info, err := base.Stat(rel)
		if err != nil || info.IsDir() {
			continue
		}
		out[i].Resolved = true
		out[i].Size = info.Size()
	}
	return out, nil
}

// withinRoot cleans a reference path and rejects absolute paths and any path
// that climbs above the root.
func withinRoot(p string) (string, bool) {
	p = strings.TrimSpace(p)
	if p == "" || filepath.IsAbs(p) {
		return "", false
	}
	clean := filepath.Clean(filepath.FromSlash(p))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", false
	}
	return clean, true
}
