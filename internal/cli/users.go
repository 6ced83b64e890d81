package cli

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/soyeahso/parley/internal/domain"
)

func newUsersCmd() *cobra.Command {
	var (
		asJSON     bool
		onlineOnly bool
	)

	cmd := &cobra.Command{
		Use:   "users",
		Short: "List users you can chat with",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newAPIClient()
			users, err := client.Users(cmd.Context())
			if err != nil {
				return fmt.Errorf("listing users: %w", err)
			}

			if me, err := currentUser(cmd.Context(), client); err == nil {
				users = lo.Reject(users, func(u domain.UserIdentity, _ int) bool { return u.ID == me.ID })
			}
			if onlineOnly {
				users = lo.Filter(users, func(u domain.UserIdentity, _ int) bool { return u.Online })
			}
			sort.SliceStable(users, func(i, j int) bool { return users[i].Name < users[j].Name })

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(users)
			}

			if len(users) == 0 {
				fmt.Fprintln(out, "No users found.")
				return nil
			}
			for _, u := range users {
				status := "offline"
				if u.Online {
					status = "online"
				}
				fmt.Fprintf(out, "%-26s %-24s %s\n", u.ID, u.Name, status)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	cmd.Flags().BoolVar(&onlineOnly, "online", false, "only show users that are online")
	return cmd
}
