//go:build !unix

package inflight

import "os"

func defaultSignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}
