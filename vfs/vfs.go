// Package vfs implements the chroot-like FTP path namespace rooted at a
// host directory, with path translation and containment enforcement
// centralized here rather than left to whatever filesystem backs it.
package vfs

import (
	"errors"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// ErrPathEscape is returned when a resolved path would leave the root,
// typically because a symlink inside the root points outside it.
var ErrPathEscape = errors.New("path escapes filesystem root")

// FS is an FTP-path namespace backed by a host directory. All FTP-side
// paths are slash-separated and rooted at "/"; all operations translate
// them to host paths under Root before touching the backing afero.Fs.
type FS struct {
	Root    string
	backing afero.Fs // rooted at Root via afero.NewBasePathFs
	host    afero.Fs // unrooted host filesystem; no FS method reads it
}

// New returns a FS rooted at root, backed by an afero.OsFs restricted via
// afero.NewBasePathFs. root must already exist.
func New(root string) (*FS, error) {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, os.ErrNotExist
	}

	osFs := afero.NewOsFs()

	return &FS{
		Root:    root,
		backing: afero.NewBasePathFs(osFs, root),
		host:    osFs,
	}, nil
}

// Ftp2Fs translates an FTP-side path (absolute or relative to cwd) into a
// host path rooted at Root. It never lets the result ascend above "/".
func Ftp2Fs(cwd, ftpPath string) string {
	if !strings.HasPrefix(ftpPath, "/") {
		ftpPath = path.Join(cwd, ftpPath)
	}

	return path.Clean("/" + ftpPath)
}

// Fs2Ftp is the inverse of Ftp2Fs for a path already expressed relative to
// Root (i.e. what afero.BasePathFs operates on): it returns the FTP-side
// path, mapping anything that escapes Root to "/".
func Fs2Ftp(relHostPath string) string {
	cleaned := path.Clean(filepath.ToSlash(relHostPath))
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "/"
	}

	return path.Clean("/" + cleaned)
}

// ValidPath reports whether ftpPath, once resolved through Ftp2Fs and with
// all symlinks followed, stays at or under Root. afero.BasePathFs alone
// does not catch a symlink planted inside Root that points outside it;
// this resolves the real, absolute host path and checks containment
// explicitly.
func (fs *FS) ValidPath(cwd, ftpPath string) bool {
	_, err := fs.resolve(cwd, ftpPath)

	return err == nil
}

// resolve returns the real, symlink-resolved host path for ftpPath, or
// ErrPathEscape if it would leave Root.
func (fs *FS) resolve(cwd, ftpPath string) (string, error) {
	rel := Ftp2Fs(cwd, ftpPath)
	full := filepath.Join(fs.Root, filepath.FromSlash(rel))

	resolvedRoot, err := filepath.EvalSymlinks(fs.Root)
	if err != nil {
		return "", err
	}

	resolved, err := filepath.EvalSymlinks(full)
	if err != nil {
		// The final path component may not exist yet (e.g. a pending
		// STOR or MKD target); resolve its parent instead and rejoin.
		if os.IsNotExist(err) {
			parent, rerr := filepath.EvalSymlinks(filepath.Dir(full))
			if rerr != nil {
				return "", rerr
			}

			resolved = filepath.Join(parent, filepath.Base(full))
		} else {
			return "", err
		}
	}

	if !isUnderDir(resolved, resolvedRoot) {
		return "", ErrPathEscape
	}

	return resolved, nil
}

func isUnderDir(p, dir string) bool {
	p = filepath.Clean(p)
	dir = filepath.Clean(dir)

	if p == dir {
		return true
	}

	rel, err := filepath.Rel(dir, p)
	if err != nil {
		return false
	}

	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// relToRoot turns a cwd+ftpPath pair into the path afero.BasePathFs (i.e.
// fs.backing) expects: rooted at "/" but relative to Root, not the host.
func relToRoot(cwd, ftpPath string) string {
	return filepath.FromSlash(Ftp2Fs(cwd, ftpPath))
}

// Stat returns file info for ftpPath.
func (fs *FS) Stat(cwd, ftpPath string) (os.FileInfo, error) {
	if !fs.ValidPath(cwd, ftpPath) {
		return nil, ErrPathEscape
	}

	return fs.backing.Stat(relToRoot(cwd, ftpPath))
}

// Open opens ftpPath for reading.
func (fs *FS) Open(cwd, ftpPath string) (afero.File, error) {
	if !fs.ValidPath(cwd, ftpPath) {
		return nil, ErrPathEscape
	}

	return fs.backing.Open(relToRoot(cwd, ftpPath))
}

// Create creates or truncates ftpPath for writing.
func (fs *FS) Create(cwd, ftpPath string) (afero.File, error) {
	if !fs.ValidPath(cwd, ftpPath) {
		return nil, ErrPathEscape
	}

	return fs.backing.Create(relToRoot(cwd, ftpPath))
}

// OpenAppend opens ftpPath for appending, creating it if necessary.
func (fs *FS) OpenAppend(cwd, ftpPath string) (afero.File, error) {
	if !fs.ValidPath(cwd, ftpPath) {
		return nil, ErrPathEscape
	}

	return fs.backing.OpenFile(relToRoot(cwd, ftpPath), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
}

// Mkdir creates a directory at ftpPath.
func (fs *FS) Mkdir(cwd, ftpPath string) error {
	if !fs.ValidPath(cwd, ftpPath) {
		return ErrPathEscape
	}

	return fs.backing.Mkdir(relToRoot(cwd, ftpPath), 0o755)
}

// Rmdir removes the directory at ftpPath.
func (fs *FS) Rmdir(cwd, ftpPath string) error {
	if !fs.ValidPath(cwd, ftpPath) {
		return ErrPathEscape
	}

	return fs.backing.Remove(relToRoot(cwd, ftpPath))
}

// Remove removes the file at ftpPath.
func (fs *FS) Remove(cwd, ftpPath string) error {
	if !fs.ValidPath(cwd, ftpPath) {
		return ErrPathEscape
	}

	return fs.backing.Remove(relToRoot(cwd, ftpPath))
}

// Rename moves fromPath to toPath, both resolved against cwd.
func (fs *FS) Rename(cwd, fromPath, toPath string) error {
	if !fs.ValidPath(cwd, fromPath) || !fs.ValidPath(cwd, toPath) {
		return ErrPathEscape
	}

	return fs.backing.Rename(relToRoot(cwd, fromPath), relToRoot(cwd, toPath))
}

// Chmod changes the mode of ftpPath.
func (fs *FS) Chmod(cwd, ftpPath string, mode os.FileMode) error {
	if !fs.ValidPath(cwd, ftpPath) {
		return ErrPathEscape
	}

	return fs.backing.Chmod(relToRoot(cwd, ftpPath), mode)
}

// Utime sets the modification time of ftpPath.
func (fs *FS) Utime(cwd, ftpPath string, mtime time.Time) error {
	if !fs.ValidPath(cwd, ftpPath) {
		return ErrPathEscape
	}

	return fs.backing.Chtimes(relToRoot(cwd, ftpPath), mtime, mtime)
}

// GetSize returns the size in bytes of ftpPath.
func (fs *FS) GetSize(cwd, ftpPath string) (int64, error) {
	info, err := fs.Stat(cwd, ftpPath)
	if err != nil {
		return 0, err
	}

	return info.Size(), nil
}

// GetMtime returns the modification time of ftpPath.
func (fs *FS) GetMtime(cwd, ftpPath string) (time.Time, error) {
	info, err := fs.Stat(cwd, ftpPath)
	if err != nil {
		return time.Time{}, err
	}

	return info.ModTime(), nil
}

// ListDir returns the directory entries at ftpPath, sorted by name.
func (fs *FS) ListDir(cwd, ftpPath string) ([]os.FileInfo, error) {
	if !fs.ValidPath(cwd, ftpPath) {
		return nil, ErrPathEscape
	}

	return afero.ReadDir(fs.backing, relToRoot(cwd, ftpPath))
}
