package vfs

import (
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// GuardedFs wraps an afero.BasePathFs rooted at root. Open, OpenFile, Stat,
// Mkdir, Remove and Rename call filepath.EvalSymlinks against the real host
// root before delegating, and reject a target that would leave root. Every
// other afero.Fs method (Create, MkdirAll, RemoveAll, Lstat, Chmod, Chown,
// Chtimes, ...) goes straight to the BasePathFs without that check.
// BasePathFs alone joins paths lexically: a symlink planted inside root that
// points outside it is followed straight through.
type GuardedFs struct {
	afero.Fs
	root string
}

// NewGuardedFs returns a GuardedFs rooted at root, which must already exist.
func NewGuardedFs(root string) (*GuardedFs, error) {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, os.ErrNotExist
	}

	return &GuardedFs{
		Fs:   afero.NewBasePathFs(afero.NewOsFs(), root),
		root: root,
	}, nil
}

func (g *GuardedFs) allowed(name string) error {
	resolvedRoot, err := filepath.EvalSymlinks(g.root)
	if err != nil {
		return err
	}

	full := filepath.Join(g.root, filepath.FromSlash(name))

	resolved, err := filepath.EvalSymlinks(full)
	if err != nil {
		if os.IsNotExist(err) {
			parent, perr := filepath.EvalSymlinks(filepath.Dir(full))
			if perr != nil {
				return perr
			}

			resolved = filepath.Join(parent, filepath.Base(full))
		} else {
			return err
		}
	}

	if !isUnderDir(resolved, resolvedRoot) {
		return ErrPathEscape
	}

	return nil
}

// Open delegates to the backing Fs after a containment check.
func (g *GuardedFs) Open(name string) (afero.File, error) {
	if err := g.allowed(name); err != nil {
		return nil, err
	}

	return g.Fs.Open(name)
}

// OpenFile delegates to the backing Fs after a containment check.
func (g *GuardedFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if err := g.allowed(name); err != nil {
		return nil, err
	}

	return g.Fs.OpenFile(name, flag, perm)
}

// Stat delegates to the backing Fs after a containment check.
func (g *GuardedFs) Stat(name string) (os.FileInfo, error) {
	if err := g.allowed(name); err != nil {
		return nil, err
	}

	return g.Fs.Stat(name)
}

// Mkdir delegates to the backing Fs after a containment check on its parent.
func (g *GuardedFs) Mkdir(name string, perm os.FileMode) error {
	if err := g.allowed(filepath.Dir(filepath.FromSlash(name))); err != nil {
		return err
	}

	return g.Fs.Mkdir(name, perm)
}

// Remove delegates to the backing Fs after a containment check.
func (g *GuardedFs) Remove(name string) error {
	if err := g.allowed(name); err != nil {
		return err
	}

	return g.Fs.Remove(name)
}

// Rename delegates to the backing Fs after containment checks on both ends.
func (g *GuardedFs) Rename(oldname, newname string) error {
	if err := g.allowed(oldname); err != nil {
		return err
	}

	if err := g.allowed(filepath.Dir(filepath.FromSlash(newname))); err != nil {
		return err
	}

	return g.Fs.Rename(oldname, newname)
}
