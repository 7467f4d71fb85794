package rollback

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/MrSnakeDoc/deltasync/internal/utils"
)

var ErrReadOnly = errors.New("resource is read-only")

// ResourceSet is the active set of installed files, addressed by logical
// (slash-separated, relative) name.
type ResourceSet interface {
	Names(ctx context.Context) ([]string, error)
	Read(ctx context.Context, name string) ([]byte, error)
	Write(ctx context.Context, name string, data []byte) error
	Remove(ctx context.Context, name string) error
}

// DirResourceSet stores resources as files below Root.
type DirResourceSet struct {
	Root string
}

func NewDirResourceSet(root string) (*DirResourceSet, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create resource dir: %w", err)
	}
	return &DirResourceSet{Root: root}, nil
}

func (d *DirResourceSet) Names(_ context.Context) ([]string, error) {
	var names []string
	err := filepath.WalkDir(d.Root, func(p string, e fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if e.IsDir() || strings.HasSuffix(p, ".tmp") {
			return nil
		}
		rel, err := filepath.Rel(d.Root, p)
		if err != nil {
			return err
		}
		names = append(names, filepath.ToSlash(rel))
		return nil
	})
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

func (d *DirResourceSet) Read(_ context.Context, name string) ([]byte, error) {
	p, err := d.path(name)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(p)
}

// Write replaces name atomically. An existing file without the owner write
// bit is reported as ErrReadOnly and left untouched.
func (d *DirResourceSet) Write(_ context.Context, name string, data []byte) error {
	p, err := d.path(name)
	if err != nil {
		return err
	}
	perm := os.FileMode(0o644)
	if fi, err := os.Stat(p); err == nil {
		if fi.Mode().Perm()&0o200 == 0 {
			return fmt.Errorf("write %s: %w", name, ErrReadOnly)
		}
		perm = fi.Mode().Perm()
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return utils.WriteFileAtomic(p+".tmp", p, bytes.NewReader(data), perm)
}

func (d *DirResourceSet) Remove(_ context.Context, name string) error {
	p, err := d.path(name)
	if err != nil {
		return err
	}
	if fi, err := os.Stat(p); err == nil && fi.Mode().Perm()&0o200 == 0 {
		return fmt.Errorf("remove %s: %w", name, ErrReadOnly)
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", name, err)
	}
	return nil
}

func (d *DirResourceSet) path(name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if clean == "." || filepath.IsAbs(clean) || strings.HasPrefix(clean, ".."+string(filepath.Separator)) || clean == ".." {
		return "", fmt.Errorf("invalid resource name %q", name)
	}
	return filepath.Join(d.Root, clean), nil
}
