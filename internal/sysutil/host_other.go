//go:build !linux

package sysutil

import "runtime"

func OSVersion() string {
	return runtime.GOOS + " " + runtime.GOARCH
}
