package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/book-expert/chat-tts-service/internal/cache"
	"github.com/book-expert/chat-tts-service/internal/text"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect the synthesis cache",
	}

	var maxLength int

	keyCmd := &cobra.Command{
		Use:   "key [text...]",
		Short: "Print the cache key the service would use for a message",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sanitizer := text.NewSanitizer(text.Options{})
			normalized := sanitizer.Normalize(strings.Join(args, " "), maxLength)

			fmt.Fprintf(cmd.OutOrStdout(), "%s  %q\n", cache.Key(normalized), normalized)

			return nil
		},
	}
	keyCmd.Flags().IntVar(&maxLength, "max-length", 150, "maximum message length in characters")

	var dbPath string

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show the number of entries in a sqlite cache",
		RunE: func(cmd *cobra.Command, _ []string) error {
			info, err := os.Stat(dbPath)
			if err != nil {
				return fmt.Errorf("failed to stat cache database: %w", err)
			}

			store, err := cache.NewSQLiteStore(dbPath)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			count, err := store.Count(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Entries: %d\nSize:    %s\n", count, humanize.Bytes(uint64(info.Size())))

			return nil
		},
	}
	statsCmd.Flags().StringVar(&dbPath, "db", "cache/tts-cache.db", "path to the sqlite cache database")

	cmd.AddCommand(keyCmd, statsCmd)

	return cmd
}
