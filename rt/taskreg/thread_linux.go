//go:build linux

package taskreg

import (
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

func gettid() int { return unix.Gettid() }

func threadName(tid int) string {
	if tid <= 0 {
		return UnknownThreadName
	}
	b, err := os.ReadFile("/proc/self/task/" + strconv.Itoa(tid) + "/comm")
	if err != nil {
		return UnknownThreadName
	}
	name := strings.TrimSpace(string(b))
	if name == "" {
		return UnknownThreadName
	}
	return name
}
