package vfs

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MlsxFacts is the set of RFC-3659 facts FormatMlsx may report. No OPTS MLST
// handling selects among them.
var MlsxFacts = []string{"type", "size", "perm", "modify", "create", "unique", "unix.mode", "unix.uid", "unix.gid"}

// month abbreviations for the Unix ls -l date column.
var months = [...]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

// FormatList renders the entries of ftpPath in Unix `ls -l` style, one
// CRLF-terminated line per entry, passed to yield one line at a time. The
// directory's entries are all read (through ListDir) before the first line
// is yielded.
func (fs *FS) FormatList(cwd, ftpPath string, yield func([]byte) error) error {
	entries, err := fs.ListDir(cwd, ftpPath)
	if err != nil {
		return err
	}

	now := time.Now()

	for _, info := range entries {
		if err := yield(formatListLine(info, now)); err != nil {
			return err
		}
	}

	return nil
}

func formatListLine(info os.FileInfo, now time.Time) []byte {
	mode := info.Mode()

	var b strings.Builder

	b.WriteString(unixModeString(mode))
	fmt.Fprintf(&b, " %3d %-8s %-8s %8d ", linkCount(info), ownerName(info), groupName(info), info.Size())
	b.WriteString(formatListTime(info.ModTime(), now))
	b.WriteByte(' ')
	b.WriteString(info.Name())
	b.WriteString("\r\n")

	return []byte(b.String())
}

func unixModeString(mode os.FileMode) string {
	var b strings.Builder

	switch {
	case mode.IsDir():
		b.WriteByte('d')
	case mode&os.ModeSymlink != 0:
		b.WriteByte('l')
	default:
		b.WriteByte('-')
	}

	perm := mode.Perm()
	triplet := "rwxrwxrwx"

	for i := 0; i < 9; i++ {
		if perm&(1<<uint(8-i)) != 0 {
			b.WriteByte(triplet[i])
		} else {
			b.WriteByte('-')
		}
	}

	return b.String()
}

func formatListTime(t, now time.Time) string {
	if t.Year() == now.Year() {
		return fmt.Sprintf("%s %2d %02d:%02d", months[t.Month()-1], t.Day(), t.Hour(), t.Minute())
	}

	return fmt.Sprintf("%s %2d %5d", months[t.Month()-1], t.Day(), t.Year())
}

// FormatMlsx renders the entries of ftpPath in RFC-3659 MLSD
// `fact=value;... name` form, restricted to facts named in facts (a subset
// of MlsxFacts), passed to yield one line at a time. As in FormatList, the
// directory's entries are all read before the first line is yielded.
func (fs *FS) FormatMlsx(cwd, ftpPath string, facts []string, yield func([]byte) error) error {
	entries, err := fs.ListDir(cwd, ftpPath)
	if err != nil {
		return err
	}

	uniqueCounter := &uniqueIDs{ids: make(map[string]uint64)}

	for _, info := range entries {
		if err := yield(formatMlsxLine(info, facts, uniqueCounter)); err != nil {
			return err
		}
	}

	return nil
}

type uniqueIDs struct {
	mu   sync.Mutex
	next uint64
	ids  map[string]uint64
}

func (u *uniqueIDs) idFor(name string) uint64 {
	u.mu.Lock()
	defer u.mu.Unlock()

	if id, ok := u.ids[name]; ok {
		return id
	}

	u.next++
	u.ids[name] = u.next

	return u.next
}

func formatMlsxLine(info os.FileInfo, facts []string, unique *uniqueIDs) []byte {
	var b strings.Builder

	for _, fact := range facts {
		switch fact {
		case "type":
			if info.IsDir() {
				b.WriteString("type=dir;")
			} else {
				b.WriteString("type=file;")
			}
		case "size":
			fmt.Fprintf(&b, "size=%d;", info.Size())
		case "perm":
			b.WriteString("perm=" + mlsxPerm(info) + ";")
		case "modify":
			b.WriteString("modify=" + info.ModTime().UTC().Format("20060102150405") + ";")
		case "create":
			b.WriteString("create=" + info.ModTime().UTC().Format("20060102150405") + ";")
		case "unique":
			fmt.Fprintf(&b, "unique=%x;", unique.idFor(info.Name()))
		case "unix.mode":
			fmt.Fprintf(&b, "unix.mode=%s;", strconv.FormatUint(uint64(info.Mode().Perm()), 8))
		case "unix.uid":
			fmt.Fprintf(&b, "unix.uid=%d;", statUID(info))
		case "unix.gid":
			fmt.Fprintf(&b, "unix.gid=%d;", statGID(info))
		}
	}

	b.WriteByte(' ')
	b.WriteString(info.Name())
	b.WriteString("\r\n")

	return []byte(b.String())
}

func mlsxPerm(info os.FileInfo) string {
	if info.IsDir() {
		return "el"
	}

	return "r"
}

func linkCount(info os.FileInfo) uint64 {
	if n, ok := sysNlink(info); ok {
		return n
	}

	if info.IsDir() {
		return 2
	}

	return 1
}

func ownerName(info os.FileInfo) string {
	if uid, ok := sysUID(info); ok {
		return strconv.FormatUint(uint64(uid), 10)
	}

	return "owner"
}

func groupName(info os.FileInfo) string {
	if gid, ok := sysGID(info); ok {
		return strconv.FormatUint(uint64(gid), 10)
	}

	return "group"
}

func statUID(info os.FileInfo) uint32 {
	uid, _ := sysUID(info)

	return uid
}

func statGID(info os.FileInfo) uint32 {
	gid, _ := sysGID(info)

	return gid
}
