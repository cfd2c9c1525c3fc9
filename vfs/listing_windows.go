//go:build windows
// +build windows

package vfs

import "os"

func sysNlink(info os.FileInfo) (uint64, bool) { return 0, false }

func sysUID(info os.FileInfo) (uint32, bool) { return 0, false }

func sysGID(info os.FileInfo) (uint32, bool) { return 0, false }
