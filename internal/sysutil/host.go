package sysutil

import (
	"os"
	"os/user"
)

const unknown = "unknown"

func Hostname() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return unknown
	}
	return name
}

func Username() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	for _, key := range []string{"USER", "LOGNAME", "USERNAME"} {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return unknown
}
