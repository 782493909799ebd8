// Package storage lists clip files in remote or local folders and resolves
// URLs the player can fetch them from.
package storage

import (
	"context"
	"path"
	"strings"
)

// Object is one entry of a folder listing.
type Object struct {
	Name string
}

// Bucket is the read-only view of clip storage the catalog needs.
type Bucket interface {
	List(ctx context.Context, folder string) ([]Object, error)
	PublicURL(objectPath string) string
}

// Join builds an object path from a folder and a file name.
func Join(folder, name string) string {
	return strings.TrimPrefix(path.Join(folder, name), "/")
}
