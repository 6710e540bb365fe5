// Command ragpipe is the entry point for the ragpipe retrieval pipeline.
// It provides a Cobra CLI for ingesting documents, querying assembled
// context, and managing the vector store.
package main

import (
	"fmt"
	"os"

	"github.com/54b3r/ragpipe-go/cmd/ragpipe/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
