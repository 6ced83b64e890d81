package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/soyeahso/parley/internal/store"
)

func newTranscriptsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "transcripts",
		Aliases: []string{"tx"},
		Short:   "Browse conversations archived with chat --archive",
	}

	cmd.AddCommand(newTranscriptsListCmd())
	cmd.AddCommand(newTranscriptsShowCmd())
	cmd.AddCommand(newTranscriptsSearchCmd())
	cmd.AddCommand(newTranscriptsDeleteCmd())
	return cmd
}

func openArchive() (*store.DB, error) {
	return store.Open(archivePath(), log)
}

func newTranscriptsListCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List archived conversations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openArchive()
			if err != nil {
				return err
			}
			defer db.Close()

			list, err := db.ListTranscripts()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(list)
			}
			if len(list) == 0 {
				fmt.Fprintln(out, "No transcripts archived.")
				return nil
			}
			for _, t := range list {
				fmt.Fprintf(out, "%-26s peer=%-24s messages=%-5d saved=%s\n",
					t.ConversationID, t.PeerID, t.Messages, t.SavedAt.Local().Format(time.DateTime))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func newTranscriptsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <conversation-id>",
		Short: "Print an archived conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openArchive()
			if err != nil {
				return err
			}
			defer db.Close()

			msgs, err := db.Transcript(args[0])
			if err != nil {
				return fmt.Errorf("transcript %s: %w", args[0], err)
			}

			out := cmd.OutOrStdout()
			for _, m := range msgs {
				fmt.Fprintf(out, "[%s] %s: %s\n", m.SentAt.Local().Format(time.DateTime), m.SenderID, m.Body)
			}
			return nil
		},
	}
}

func newTranscriptsSearchCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Full-text search across archived messages",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openArchive()
			if err != nil {
				return err
			}
			defer db.Close()

			hits, err := db.Search(strings.Join(args, " "), limit)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(hits) == 0 {
				fmt.Fprintln(out, "No matches.")
				return nil
			}
			for _, h := range hits {
				fmt.Fprintf(out, "%s [%s] %s: %s\n",
					h.ConversationID, h.SentAt.Local().Format(time.DateTime), h.SenderID, h.Body)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of matches")
	return cmd
}

func newTranscriptsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <conversation-id>",
		Short: "Remove an archived conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openArchive()
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.DeleteTranscript(args[0]); err != nil {
				return fmt.Errorf("transcript %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}
