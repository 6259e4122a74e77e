//go:build linux

package sysutil

import (
	"golang.org/x/sys/unix"
)

// OSVersion e.g. "Linux 6.8.0 x86_64"
func OSVersion() string {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return "Linux (version unknown)"
	}
	return unix.ByteSliceToString(uts.Sysname[:]) + " " +
		unix.ByteSliceToString(uts.Release[:]) + " " +
		unix.ByteSliceToString(uts.Machine[:])
}
