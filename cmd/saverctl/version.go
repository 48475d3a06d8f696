package main

import (
	"fmt"

	"instantsaver/internal/startup"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

func newVersionCmd(e env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print build information and the yt-dlp version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := startup.GetBuildInfo()
			out := cmd.OutOrStdout()

			if lo.Must(cmd.Flags().GetBool("short")) {
				fmt.Fprintln(out, info.Version)
				return nil
			}

			fmt.Fprintf(out, "saverctl %s\n", info.Version)
			fmt.Fprintf(out, "  Commit:     %s\n", info.Commit)
			fmt.Fprintf(out, "  Built:      %s\n", info.BuildTime)
			fmt.Fprintf(out, "  Go:         %s\n", info.GoVersion)
			fmt.Fprintf(out, "  Platform:   %s/%s\n", info.OS, info.Arch)

			p, err := e.load()
			if err != nil {
				fmt.Fprintf(out, "  yt-dlp:     unavailable (%v)\n", err)
				return nil
			}
			if p.close != nil {
				defer p.close()
			}
			version, err := p.extractor.Version(cmd.Context())
			if err != nil {
				fmt.Fprintf(out, "  yt-dlp:     unavailable (%v)\n", err)
				return nil
			}
			fmt.Fprintf(out, "  yt-dlp:     %s\n", version)
			return nil
		},
	}

	cmd.Flags().BoolP("short", "s", false, "Print only the version string")
	return cmd
}
