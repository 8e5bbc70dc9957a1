package compiler

import (
	"crypto/sha256"
	"encoding/hex"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/natefinch/atomic"

	"github.com/conneroisu/tmplview/internal/errors"
)

const (
	hashPrefix = "{{/* source-sha256: "
	hashSuffix = " */}}"
	persistExt = ".tmpl"
)

// Persister writes generated code to Dir and loads it back, so restarts can
// skip code generation for unchanged sources.
type Persister struct {
	Dir   string
	Funcs template.FuncMap
}

// NewPersister creates a persister rooted at dir.
func NewPersister(dir string, funcs template.FuncMap) *Persister {
	return &Persister{Dir: dir, Funcs: funcs}
}

// Path returns the file holding the persisted code for name.
func (p *Persister) Path(name string) string {
	clean := filepath.FromSlash(strings.TrimLeft(filepath.ToSlash(filepath.Clean("/"+name)), "/"))
	return filepath.Join(p.Dir, clean+persistExt)
}

// CompileAndPersist writes generated atomically, tagged with the hash of the
// source it came from, then compiles what was written.
func (p *Persister) CompileAndPersist(name, source, generated string) (*Template, error) {
	path := p.Path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.NewPersistError(name, generated, err)
	}

	body := hashPrefix + SourceHash(source) + hashSuffix + "\n" + generated
	if err := atomic.WriteFile(path, strings.NewReader(body)); err != nil {
		return nil, errors.NewPersistError(name, generated, err)
	}

	t, ok, err := p.Load(name, source)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.NewPersistError(name, generated, errors.New("persisted code could not be read back"))
	}
	return t, nil
}

// Load returns the persisted template for name when it was generated from
// source. ok is false when nothing usable is on disk.
func (p *Persister) Load(name, source string) (t *Template, ok bool, err error) {
	data, err := os.ReadFile(p.Path(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, errors.NewPersistError(name, "", err)
	}

	header, generated, found := strings.Cut(string(data), "\n")
	if !found || header != hashPrefix+SourceHash(source)+hashSuffix {
		return nil, false, nil
	}

	t, err = Compile(name, generated, p.Funcs)
	if err != nil {
		return nil, false, err
	}
	return t, true, nil
}

// Remove deletes the persisted code for name, if any.
func (p *Persister) Remove(name string) error {
	err := os.Remove(p.Path(name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errors.NewPersistError(name, "", err)
	}
	return nil
}

// SourceHash is the hex sha256 of a template source.
func SourceHash(source string) string {
	sum := sha256.Sum256([]byte(source))
	return hex.EncodeToString(sum[:])
}
