// Command txdemo runs the demo firmware on the simulated kernel, with the
// thread table in a window (or headless) and the kernel state served over
// HTTP.
package main

import (
	"github.com/tebeka/atexit"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		atexit.Exit(1)
	}
	atexit.Exit(0)
}
