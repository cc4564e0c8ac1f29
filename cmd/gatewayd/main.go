// Command gatewayd runs the remote-agent gateway: the HTTP boundary, the
// Agent WebSocket endpoint, and the metrics/audit sidecars, wired together
// at startup per spec.md §9's guidance against ambient global state.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "gatewayd",
		Short: "remote-agent gateway server",
	}
	root.AddCommand(serveCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
