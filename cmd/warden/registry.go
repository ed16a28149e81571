package main

import (
	"fmt"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/xraph/warden/registry"
)

type registryLoader func() (*registry.Registry, error)

func newRegistryCmd(load registryLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Inspect the event catalog",
	}

	var category string
	list := &cobra.Command{
		Use:   "list",
		Short: "List event types with their base cost",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := load()
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "EVENT TYPE\tCATEGORY\tBASE COST\tFEATURES")
			for _, d := range reg.All() {
				if category != "" && d.Category != category {
					continue
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", d.EventType, d.Category, d.BaseCost, features(d))
			}
			return tw.Flush()
		},
	}
	list.Flags().StringVar(&category, "category", "", "only list this category")

	validate := &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a YAML catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := registry.LoadFile(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d event types in %d categories\n",
				args[0], reg.Len(), len(reg.Categories()))
			return nil
		},
	}

	cmd.AddCommand(list, validate)
	return cmd
}

func features(d registry.Definition) string {
	if len(d.Features) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(d.Features))
	for name, credits := range d.Features {
		parts = append(parts, fmt.Sprintf("%s=%d", name, credits))
	}
	slices.Sort(parts)
	return strings.Join(parts, ",")
}
