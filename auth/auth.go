// Package auth implements the authorization model: user records, per-path
// permission bits, credential validation and the pluggable hook points a
// caller can use to back it with an external credential store.
package auth

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
)

// Anonymous is the well-known login name that accepts any password.
const Anonymous = "anonymous"

// AllPermissions is every permission letter this library understands, in
// the order spec.md lists them.
const AllPermissions = "elradfmwMT"

// AuthFailed is returned by ValidateAuthentication when credentials don't
// match, and by Authorizer methods that are asked about an unknown user.
var AuthFailed = errors.New("authentication failed") //nolint:stylecheck,errname

// ErrUserExists is returned by AddUser/AddAnonymous for a duplicate login.
var ErrUserExists = errors.New("user already exists")

// ErrNoSuchUser is returned when an operation targets an unregistered user.
var ErrNoSuchUser = errors.New("no such user")

// ErrNoSuchPermission is returned when a permission string contains a letter
// outside AllPermissions.
var ErrNoSuchPermission = errors.New("no such permission")

// ErrNoSuchDirectory is returned when a home directory or override path does
// not exist on disk at registration time.
var ErrNoSuchDirectory = errors.New("no such directory")

// ErrHomeDirOverride is returned by OverridePerm when the path is exactly the
// user's home directory: overrides cannot apply to the home itself.
var ErrHomeDirOverride = errors.New("can't override home directory permissions")

// ErrPathEscape is returned by OverridePerm when the path is not the home
// directory or a descendant of it.
var ErrPathEscape = errors.New("path escapes user home directory")

// AnonymousWriteWarning, when non-nil after AddAnonymous/OverridePerm,
// signals that a write letter was granted to the anonymous user. Callers
// that want pyftpdlib's RuntimeWarning-on-stderr behavior can log it; it is
// intentionally not an error so registration still succeeds.
type AnonymousWriteWarning struct {
	Letter byte
}

func (w *AnonymousWriteWarning) Error() string {
	return fmt.Sprintf("write permissions assigned to anonymous user: %q", string(w.Letter))
}

// writeLetters are the permission letters that grant write access; granting
// any of these to the anonymous user is legal but surprising.
const writeLetters = "adfmw"

// PermOverride is a (path, perm, recursive) rule that replaces a user's
// default permission string for paths at or under Path.
type PermOverride struct {
	Path      string // host path, must be the user's home or a descendant
	Perm      string
	Recursive bool
}

// User is a registered account: credentials, home directory, default
// permissions and the messages shown at login/quit.
type User struct {
	Name      string
	Password  string // opaque verification token; empty is valid for anonymous
	HomeDir   string // absolute host path, must exist at registration
	Perm      string
	LoginMsg  string
	QuitMsg   string
	overrides []PermOverride
}

// Authorizer validates credentials and answers permission questions. It is
// read-mostly: all mutation is expected to happen during setup, before the
// server starts serving, after which many goroutines (one per session) call
// HasPerm/ValidateAuthentication/GetHomeDir concurrently.
type Authorizer struct {
	mu    sync.RWMutex
	users map[string]*User
}

// NewAuthorizer returns an empty Authorizer.
func NewAuthorizer() *Authorizer {
	return &Authorizer{users: make(map[string]*User)}
}

func validatePerm(perm string) error {
	for i := 0; i < len(perm); i++ {
		if !strings.ContainsRune(AllPermissions, rune(perm[i])) {
			return fmt.Errorf("%w: %q", ErrNoSuchPermission, perm[i])
		}
	}

	return nil
}

func anonymousWarning(name, perm string) error {
	if name != Anonymous {
		return nil
	}

	for i := 0; i < len(perm); i++ {
		if strings.ContainsRune(writeLetters, rune(perm[i])) {
			return &AnonymousWriteWarning{Letter: perm[i]}
		}
	}

	return nil
}

func checkHomeDir(home string) error {
	info, err := os.Stat(home)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNoSuchDirectory, home)
	}

	return nil
}

// AddUser registers a new user. It fails if the user already exists, the
// home directory does not exist, or perm contains an unknown letter. A
// non-nil *AnonymousWriteWarning is returned alongside a successful
// registration when name is "anonymous" and perm grants a write letter.
func (a *Authorizer) AddUser(name, password, home, perm, loginMsg, quitMsg string) error {
	if err := validatePerm(perm); err != nil {
		return err
	}

	if err := checkHomeDir(home); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.users[name]; ok {
		return fmt.Errorf("%w: %q", ErrUserExists, name)
	}

	a.users[name] = &User{
		Name:     name,
		Password: password,
		HomeDir:  home,
		Perm:     perm,
		LoginMsg: loginMsg,
		QuitMsg:  quitMsg,
	}

	return anonymousWarning(name, perm)
}

// AddAnonymous registers the anonymous user. perm defaults to "elr" when
// empty. Returns an *AnonymousWriteWarning (non-fatal) if perm grants write.
func (a *Authorizer) AddAnonymous(home, perm string) error {
	if perm == "" {
		perm = "elr"
	}

	return a.AddUser(Anonymous, "", home, perm, "", "")
}

// RemoveUser unregisters a user.
func (a *Authorizer) RemoveUser(name string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.users[name]; !ok {
		return fmt.Errorf("%w: %q", ErrNoSuchUser, name)
	}

	delete(a.users, name)

	return nil
}

// OverridePerm adds a per-path permission override for user. It fails if the
// path does not exist (or isn't a directory), equals the user's home
// directory, escapes above it, or perm contains an unknown letter.
func (a *Authorizer) OverridePerm(name, path, perm string, recursive bool) error {
	if err := validatePerm(perm); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	user, ok := a.users[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNoSuchUser, name)
	}

	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNoSuchDirectory, path)
	}

	if samePath(path, user.HomeDir) {
		return ErrHomeDirOverride
	}

	if !isUnderDir(path, user.HomeDir) {
		return ErrPathEscape
	}

	// replace an existing override for the same path, if any
	for i := range user.overrides {
		if samePath(user.overrides[i].Path, path) {
			user.overrides[i] = PermOverride{Path: path, Perm: perm, Recursive: recursive}

			return anonymousWarning(name, perm)
		}
	}

	user.overrides = append(user.overrides, PermOverride{Path: path, Perm: perm, Recursive: recursive})

	// longest path first so HasPerm's linear scan finds the most specific
	// match without having to compute prefix lengths every lookup.
	sort.Slice(user.overrides, func(i, j int) bool {
		return len(user.overrides[i].Path) > len(user.overrides[j].Path)
	})

	return anonymousWarning(name, perm)
}

// ValidateAuthentication checks user/password. The anonymous user
// authenticates unconditionally (any password, including empty) as long as
// it is registered.
func (a *Authorizer) ValidateAuthentication(user, password string) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	u, ok := a.users[user]
	if !ok {
		return AuthFailed
	}

	if user == Anonymous {
		return nil
	}

	if u.Password != password {
		return AuthFailed
	}

	return nil
}

// HasPerm reports whether user may perform the operation identified by
// letter on path. The most specific override (longest matching prefix)
// wins; with no override, the user's default Perm is checked.
func (a *Authorizer) HasPerm(user string, letter byte, path string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()

	u, ok := a.users[user]
	if !ok {
		return false
	}

	for _, ov := range u.overrides {
		if samePath(ov.Path, path) || (ov.Recursive && isUnderDir(path, ov.Path)) {
			return strings.IndexByte(ov.Perm, letter) >= 0
		}
	}

	return strings.IndexByte(u.Perm, letter) >= 0
}

// GetHomeDir returns the user's home directory, or "" if unregistered.
func (a *Authorizer) GetHomeDir(user string) string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if u, ok := a.users[user]; ok {
		return u.HomeDir
	}

	return ""
}

// GetMsgLogin returns the user's login banner.
func (a *Authorizer) GetMsgLogin(user string) string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if u, ok := a.users[user]; ok {
		return u.LoginMsg
	}

	return ""
}

// GetMsgQuit returns the user's quit banner.
func (a *Authorizer) GetMsgQuit(user string) string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if u, ok := a.users[user]; ok {
		return u.QuitMsg
	}

	return ""
}

// UserExists reports whether name is registered.
func (a *Authorizer) UserExists(name string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()

	_, ok := a.users[name]

	return ok
}
