// main.go - zerotrace daemon and demo client.
//
// Usage:
//
//	zerotraced serve --config zerotrace.yaml
//	zerotraced demo --server http://127.0.0.1:8080

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "zerotraced",
		Short:         "Privacy-preserving messaging core with verifiable state transitions",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newDemoCmd())
	return root
}
