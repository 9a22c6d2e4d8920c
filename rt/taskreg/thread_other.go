//go:build !linux

package taskreg

func gettid() int { return 0 }

func threadName(int) string { return UnknownThreadName }
