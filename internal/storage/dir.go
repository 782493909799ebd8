package storage

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
)

// Dir serves folders that are sub-directories of a local root.
type Dir struct {
	root string
}

func NewDir(root string) (*Dir, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	return &Dir{root: abs}, nil
}

func (d *Dir) List(ctx context.Context, folder string) ([]Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(filepath.Join(d.root, filepath.FromSlash(folder)))
	if err != nil {
		return nil, fmt.Errorf("list %q: %w", folder, err)
	}
	var objects []Object
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		objects = append(objects, Object{Name: e.Name()})
	}
	return objects, nil
}

func (d *Dir) PublicURL(objectPath string) string {
	u := url.URL{
		Scheme: "file",
		Path:   filepath.ToSlash(filepath.Join(d.root, filepath.FromSlash(objectPath))),
	}
	return u.String()
}
