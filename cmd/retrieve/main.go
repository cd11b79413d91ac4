// Command retrieve ranks documents for a query using the strategies in
// pkg/text, pkg/vector and pkg/composite.
package main

import (
	"os"

	"github.com/milad-o/agenticflow-sub002/cmd/retrieve/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
