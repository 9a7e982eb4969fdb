// Command refinery runs the registry, the pipeline agents and the client
// that asks questions through them.
//
//	refinery registry
//	refinery agent critic
//	refinery agent refiner
//	refinery agent scraper
//	refinery ask "What is a goroutine?"
package main

import (
	"os"
)

// Set by the release build.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
