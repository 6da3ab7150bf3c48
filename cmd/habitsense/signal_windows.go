//go:build windows

package main

import (
	"os"
)

// terminationSignals stop the server gracefully. Windows only delivers os.Interrupt (Ctrl+C).
var terminationSignals = []os.Signal{os.Interrupt}
