// Command warden inspects event catalogs, prices usage events and resolves
// session permissions offline.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/xraph/warden/registry"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var catalog string

	root := &cobra.Command{
		Use:           "warden",
		Short:         "Session permission and usage metering tools",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&catalog, "registry", "", "YAML event catalog (default: built-in)")

	load := func() (*registry.Registry, error) {
		if catalog == "" {
			return registry.Default(), nil
		}
		return registry.LoadFile(catalog)
	}

	root.AddCommand(
		newRegistryCmd(load),
		newCreditsCmd(load),
		newResolveCmd(),
	)
	return root
}
