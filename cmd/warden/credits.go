package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xraph/warden"
	"github.com/xraph/warden/directory"
	"github.com/xraph/warden/meter"
	"github.com/xraph/warden/store/memory"
)

func newCreditsCmd(load registryLoader) *cobra.Command {
	var (
		complexity float64
		used       []string
	)

	cmd := &cobra.Command{
		Use:   "credits <event-type>",
		Short: "Price a usage event without recording it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := load()
			if err != nil {
				return err
			}

			w, err := warden.New(memory.New(), directory.New().Collaborators(), warden.WithRegistry(reg))
			if err != nil {
				return err
			}

			rec := meter.Record{EventType: args[0], Complexity: complexity, Features: used}
			def := reg.Lookup(args[0])

			out := cmd.OutOrStdout()
			if !reg.Known(args[0]) {
				fmt.Fprintf(out, "warning: %s is not in the catalog\n", args[0])
			}
			fmt.Fprintf(out, "event type:  %s (%s)\n", def.EventType, def.Category)
			fmt.Fprintf(out, "complexity:  %.2f\n", w.Clamp(args[0], complexity))
			fmt.Fprintf(out, "credits:     %d\n", w.Credits(rec))
			return nil
		},
	}
	cmd.Flags().Float64Var(&complexity, "complexity", 1.0, "complexity multiplier")
	cmd.Flags().StringSliceVar(&used, "feature", nil, "feature used (repeatable)")
	return cmd
}
