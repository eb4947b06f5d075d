package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// songsCmd lists the indexed songs
var songsCmd = &cobra.Command{
	Use:   "songs",
	Short: "List indexed songs",
	Long: `Lists every song the server knows about, with its measure count.

Requires a running server (etude serve).`,
	RunE: runSongs,
}

func runSongs(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	songs, err := newAPIClient(cfg).ListSongs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list songs (is 'etude serve' running at %s?): %w", cfg.Client.BaseURL, err)
	}
	if len(songs) == 0 {
		fmt.Println("No songs indexed. Put song folders in the data directory and run 'etude scan'.")
		return nil
	}
	for _, s := range songs {
		composer := s.Composer
		if composer == "" {
			composer = "-"
		}
		fmt.Printf("%4d  %-36s %-24s %3d measures\n", s.ID, s.Title, composer, s.TotalMeasures)
	}
	return nil
}
