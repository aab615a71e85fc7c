package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	historyGuild string
	historyLimit int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show a guild's recent plays, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openAgent()
		if err != nil {
			return err
		}
		defer a.Close()

		plays, err := a.store.RecentPlays(cmd.Context(), historyGuild, historyLimit)
		if err != nil {
			return err
		}
		if len(plays) == 0 {
			fmt.Println("no plays recorded")
			return nil
		}
		for _, p := range plays {
			at := time.Unix(0, p.At).Format(time.RFC3339)
			title := p.Title
			if p.Artist != "" {
				title += " - " + p.Artist
			}
			fmt.Printf("%s  %-20s %s\n", at, p.TrackID, title)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().StringVarP(&historyGuild, "guild", "g", "default", "guild id")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of plays to show")
	rootCmd.AddCommand(historyCmd)
}
