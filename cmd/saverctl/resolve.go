package main

import (
	"encoding/json"

	"instantsaver/internal/resolver"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

func newResolveCmd(e env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve <url>",
		Short: "Print the preview description for a link as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := classifyArg(args[0], lo.Must(cmd.Flags().GetString("platform")))
			if err != nil {
				return err
			}
			opts := resolver.Options{HeightCeiling: lo.Must(cmd.Flags().GetInt("height"))}

			return withPipeline(e, func(p *pipeline) error {
				result, err := p.resolver.Resolve(cmd.Context(), ref, opts)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			})
		},
	}

	cmd.Flags().StringP("platform", "p", "", "Only accept links for this platform (instagram, youtube)")
	cmd.Flags().Int("height", 0, "Preview height ceiling in pixels (0 = none)")
	return cmd
}
