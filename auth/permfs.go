package auth

import (
	"errors"
	"os"
	"time"

	"github.com/spf13/afero"
)

// ErrPermissionDenied is returned by PermFs operations the user's
// permission string (or an override) does not grant.
var ErrPermissionDenied = errors.New("permission denied")

// PermFs wraps an afero.Fs and enforces an Authorizer's per-user,
// per-path permission letters on every mutating or content-reading call.
// Read-only metadata calls (Stat, Name) are left to the backing Fs, since
// gating them would block routine operations like SIZE/MDTM that pyftpdlib
// itself never restricts by permission letter.
type PermFs struct {
	afero.Fs
	Authorizer *Authorizer
	User       string
}

// NewPermFs wraps fs so every call is checked against authorizer's
// permissions for user.
func NewPermFs(fs afero.Fs, authorizer *Authorizer, user string) *PermFs {
	return &PermFs{Fs: fs, Authorizer: authorizer, User: user}
}

func (f *PermFs) check(letter byte, path string) error {
	if !f.Authorizer.HasPerm(f.User, letter, path) {
		return ErrPermissionDenied
	}

	return nil
}

// Create implements afero.Fs, requiring the "w" (store) permission.
func (f *PermFs) Create(name string) (afero.File, error) {
	if err := f.check('w', name); err != nil {
		return nil, err
	}

	return f.Fs.Create(name)
}

// Mkdir implements afero.Fs, requiring the "m" (make directory) permission.
func (f *PermFs) Mkdir(name string, perm os.FileMode) error {
	if err := f.check('m', name); err != nil {
		return err
	}

	return f.Fs.Mkdir(name, perm)
}

// MkdirAll implements afero.Fs, requiring the "m" (make directory) permission.
func (f *PermFs) MkdirAll(path string, perm os.FileMode) error {
	if err := f.check('m', path); err != nil {
		return err
	}

	return f.Fs.MkdirAll(path, perm)
}

// Open implements afero.Fs, requiring either the "l" (list) or "r"
// (retrieve) permission: list is granted when either is present, since
// a single Open call serves both LIST-then-Readdir and RETR-then-Read
// and afero's interface gives no way to distinguish the caller's intent.
func (f *PermFs) Open(name string) (afero.File, error) {
	if !f.Authorizer.HasPerm(f.User, 'l', name) && !f.Authorizer.HasPerm(f.User, 'r', name) {
		return nil, ErrPermissionDenied
	}

	return f.Fs.Open(name)
}

// OpenFile implements afero.Fs, requiring "a" (append), "w" (store/create
// or truncate), or "r" (retrieve) depending on flag.
func (f *PermFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	var letter byte

	switch {
	case flag&os.O_APPEND != 0:
		letter = 'a'
	case flag&(os.O_WRONLY|os.O_RDWR) != 0:
		letter = 'w'
	default:
		letter = 'r'
	}

	if err := f.check(letter, name); err != nil {
		return nil, err
	}

	return f.Fs.OpenFile(name, flag, perm)
}

// Remove implements afero.Fs, requiring the "d" (delete) permission.
func (f *PermFs) Remove(name string) error {
	if err := f.check('d', name); err != nil {
		return err
	}

	return f.Fs.Remove(name)
}

// RemoveAll implements afero.Fs, requiring the "d" (delete) permission.
func (f *PermFs) RemoveAll(path string) error {
	if err := f.check('d', path); err != nil {
		return err
	}

	return f.Fs.RemoveAll(path)
}

// Rename implements afero.Fs, requiring the "f" (rename from) permission
// on the source path.
func (f *PermFs) Rename(oldname, newname string) error {
	if err := f.check('f', oldname); err != nil {
		return err
	}

	return f.Fs.Rename(oldname, newname)
}

// Chmod implements afero.Fs, requiring the "M" (change mode) permission.
func (f *PermFs) Chmod(name string, mode os.FileMode) error {
	if err := f.check('M', name); err != nil {
		return err
	}

	return f.Fs.Chmod(name, mode)
}

// Chtimes implements afero.Fs, requiring the "T" (change mtime) permission.
func (f *PermFs) Chtimes(name string, atime, mtime time.Time) error {
	if err := f.check('T', name); err != nil {
		return err
	}

	return f.Fs.Chtimes(name, atime, mtime)
}
