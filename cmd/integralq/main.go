// Command integralq cleans, merges and analyses tabular files. It runs
// one-off analyses from the command line or serves the HTTP API.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
