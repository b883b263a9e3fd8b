package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jfmyers9/upnp-scribbles/internal/config"
	"github.com/jfmyers9/upnp-scribbles/internal/library"
	"github.com/jfmyers9/upnp-scribbles/pkg/subsonic"
)

var libraryCmd = &cobra.Command{
	Use:   "library",
	Short: "Inspect how tracks map onto the Subsonic library",
}

var libraryResolveCmd = &cobra.Command{
	Use:   "resolve <uri>",
	Short: "Extract a library song id from a renderer stream URI",
	Args:  cobra.ExactArgs(1),
	RunE:  runLibraryResolve,
}

var libraryMatchCmd = &cobra.Command{
	Use:   "match",
	Short: "Search the library for a song by title and artist",
	RunE:  runLibraryMatch,
}

func init() {
	rootCmd.AddCommand(libraryCmd)
	libraryCmd.AddCommand(libraryResolveCmd)
	libraryCmd.AddCommand(libraryMatchCmd)

	libraryMatchCmd.Flags().String("title", "", "Track title (required)")
	libraryMatchCmd.Flags().String("artist", "", "Track artist")
	libraryMatchCmd.Flags().String("album", "", "Album, to narrow the match")
	_ = libraryMatchCmd.MarkFlagRequired("title")
}

func loadLibraryConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if !cfg.Subsonic.Enabled() {
		return nil, errors.New("no Subsonic library configured: set subsonic.base_url, subsonic.username and subsonic.password")
	}
	return cfg, nil
}

func runLibraryResolve(cmd *cobra.Command, args []string) error {
	cfg, err := loadLibraryConfig()
	if err != nil {
		return err
	}

	id, ok := library.NewResolver(cfg.Subsonic.BaseURL, cfg.Subsonic.Port).ResolveTrackID(args[0])
	if !ok {
		return fmt.Errorf("%s does not point at the library", args[0])
	}

	logger := setupLogger(logFile, logLevel)
	client, err := newSubsonicClient(cfg, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	song, err := client.GetSong(ctx, id)
	if errors.Is(err, subsonic.ErrNotFound) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s (not in library)\n", id)
		return nil
	}
	if err != nil {
		return err
	}
	printSong(cmd, song)
	return nil
}

func runLibraryMatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadLibraryConfig()
	if err != nil {
		return err
	}

	title, _ := cmd.Flags().GetString("title")
	artist, _ := cmd.Flags().GetString("artist")
	album, _ := cmd.Flags().GetString("album")

	logger := setupLogger(logFile, logLevel)
	client, err := newSubsonicClient(cfg, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	song, err := library.NewMatcher(client).FindTrack(ctx, title, artist, album)
	if err != nil {
		return err
	}
	printSong(cmd, song)
	return nil
}

func printSong(cmd *cobra.Command, song *subsonic.Song) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s - %s (%s) [%s]\n",
		song.ID, song.Artist, song.Title, song.Album, shortDuration(song.Length()))
}
