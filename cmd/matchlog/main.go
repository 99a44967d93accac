// Command matchlog is the operational CLI for match event logs: append
// events, inspect the timeline and derived stats, and run the opt-in
// recovery path against a damaged snapshot.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
