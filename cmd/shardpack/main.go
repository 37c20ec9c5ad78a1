// Command shardpack packs speech corpora into WebDataset TAR shards and
// uploads them to a Hugging Face dataset repository.
package main

import (
	"os"

	"github.com/spicor/shardpack/internal/cli"
	"github.com/spicor/shardpack/pkg/version"
)

func main() {
	os.Exit(run())
}

// run executes the root command and maps any error to exit code 1.
// Cobra has already printed the error by the time Execute returns.
func run() int {
	root := cli.NewRootCmd(version.GetVersion())
	if err := root.Execute(); err != nil {
		return 1
	}
	return 0
}
