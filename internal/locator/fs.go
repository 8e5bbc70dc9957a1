package locator

import (
	"context"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/conneroisu/tmplview/internal/errors"
)

// DefaultExtension is appended to view names that have none.
const DefaultExtension = ".html"

// FSLocator reads views from a file system, appending Extension to names
// without one.
type FSLocator struct {
	FS        fs.FS
	Extension string
	root      string
}

// NewFSLocator creates a locator over fsys.
func NewFSLocator(fsys fs.FS, ext string) *FSLocator {
	if ext == "" {
		ext = DefaultExtension
	}
	return &FSLocator{FS: fsys, Extension: ext}
}

// NewDirLocator creates a locator over the directory root.
func NewDirLocator(root, ext string) *FSLocator {
	l := NewFSLocator(os.DirFS(root), ext)
	if abs, err := filepath.Abs(root); err == nil {
		l.root = abs
	} else {
		l.root = root
	}
	return l
}

// Root returns the directory the locator reads from, if it has one.
func (l *FSLocator) Root() string { return l.root }

// FindView implements ViewLocator.
func (l *FSLocator) FindView(ctx context.Context, name string) (string, bool, error) {
	p := l.file(name)
	if p == "" {
		return "", false, nil
	}

	data, err := fs.ReadFile(l.FS, p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, errors.WrapIO(err, "VIEW_READ", "failed to read view "+p)
	}
	return string(data), true, nil
}

func (l *FSLocator) file(name string) string {
	p := strings.TrimLeft(path.Clean("/"+filepath.ToSlash(strings.TrimSpace(name))), "/")
	if p == "" || p == "." || !fs.ValidPath(p) {
		return ""
	}
	if !strings.HasSuffix(p, l.Extension) {
		p += l.Extension
	}
	return p
}

// Identify maps a changed file path under the locator's root to a view
// identity. ok is false for paths outside the root or with another extension.
func (l *FSLocator) Identify(file string) (string, bool) {
	if l.root == "" {
		return "", false
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		return "", false
	}
	rel, err := filepath.Rel(l.root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	if filepath.Ext(rel) != l.Extension {
		return "", false
	}
	return Normalize(filepath.ToSlash(rel), l.Extension), true
}

// List returns the identities of every view under the locator.
func (l *FSLocator) List() ([]string, error) {
	var names []string
	err := fs.WalkDir(l.FS, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != "." && strings.HasPrefix(d.Name(), ".") {
				return fs.SkipDir
			}
			return nil
		}
		if path.Ext(p) == l.Extension {
			names = append(names, Normalize(p, l.Extension))
		}
		return nil
	})
	return names, err
}
