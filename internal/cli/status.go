package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/soyeahso/parley/internal/config"
	"github.com/soyeahso/parley/internal/version"
)

func newStatusCmd() *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show parley configuration and backend reachability",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "parley %s (commit %s)\n\n", version.Version, version.Commit)

			fmt.Fprintf(out, "Config:   %s\n", paths.Config)
			fmt.Fprintf(out, "Archive:  %s\n", archivePath())
			fmt.Fprintln(out)

			fmt.Fprintf(out, "Server:   %s\n", cfg.Server.BaseURL)
			if url, err := cfg.Server.ResolveChannelURL(); err == nil {
				fmt.Fprintf(out, "Channel:  %s (policy=%s queue=%d)\n", url, cfg.Channel.SendPolicy, cfg.Channel.QueueSize)
			} else {
				fmt.Fprintf(out, "Channel:  error: %v\n", err)
			}
			if cfg.Auth.Token != "" {
				fmt.Fprintln(out, "Token:    set")
			} else {
				fmt.Fprintln(out, "Token:    (not set)")
			}

			if !offline && cfg.Auth.Token != "" {
				me, err := newAPIClient().Profile(cmd.Context())
				if err != nil {
					fmt.Fprintf(out, "Profile:  error: %v\n", err)
				} else {
					fmt.Fprintf(out, "Profile:  %s (%s)\n", me.Name, me.ID)
				}
			}

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				fmt.Fprintf(out, "\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Fprintf(out, "  - %s: %s\n", issue.Path, issue.Message)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "skip contacting the backend")
	return cmd
}

func archivePath() string {
	if cfg.Archive.Path != "" {
		return cfg.Archive.Path
	}
	return paths.Archive
}
