package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vexolabs/vexo/pkg/cli"
	"github.com/vexolabs/vexo/pkg/discover"
)

var (
	traceGuild     string
	traceListener  string
	traceListeners []string
)

var styles = cli.NewStyles(cli.DefaultTheme)

var traceCmd = &cobra.Command{
	Use:   "trace",
	Short: "Run one selection round and explain the pick",
	Long: `Run a single discovery round for a guild and print the
reasoning trace: the blended taste vector, the top candidates with
their similarity scores, and which one was drawn.

The round plays nothing; it exists to answer "why this song?".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openAgent()
		if err != nil {
			return err
		}
		defer a.Close()

		sess := a.host.Open(traceGuild)
		if len(traceListeners) > 0 {
			sess.SetListeners(traceListeners)
		}

		choice, err := sess.SelectNext(cmd.Context(), traceListener)
		if err != nil {
			return err
		}
		defer sess.Stop()

		fmt.Println(renderTrace(choice.Track, choice.Trace))
		return nil
	},
}

// renderTrace formats one selection trace for the terminal.
func renderTrace(chosen discover.ScoredCandidate, tr discover.Trace) string {
	var b strings.Builder

	b.WriteString(styles.Title.Render("selection trace"))
	b.WriteString("\n")
	b.WriteString(styles.Dim.Render(fmt.Sprintf("  composite: %s", tr.Composite)))
	b.WriteString("\n")
	b.WriteString(styles.Dim.Render(fmt.Sprintf("  temperature=%.2f top_k=%d", tr.Temperature, tr.K)))
	b.WriteString("\n\n")

	for i, e := range tr.Top {
		marker := "  "
		line := fmt.Sprintf("%d. %-24s %s %s",
			i+1,
			trackLabel(e.Title, e.Artist, e.TrackID),
			styles.Score.Render(fmt.Sprintf("%+.4f", e.Score)),
			styles.Dim.Render(e.Reason),
		)
		if e.TrackID == chosen.TrackID {
			marker = styles.Chosen.Render("> ")
			line = styles.Chosen.Render(line)
		}
		b.WriteString(marker + line + "\n")
	}

	b.WriteString("\n")
	b.WriteString("chosen: " + styles.Chosen.Render(trackLabel(chosen.Title, chosen.Artist, chosen.TrackID)))
	return b.String()
}

func trackLabel(title, artist, id string) string {
	switch {
	case title != "" && artist != "":
		return title + " / " + artist
	case title != "":
		return title
	}
	return id
}

func init() {
	traceCmd.Flags().StringVarP(&traceGuild, "guild", "g", "default", "guild id")
	traceCmd.Flags().StringVarP(&traceListener, "listener", "l", "", "triggering listener id")
	traceCmd.Flags().StringSliceVar(&traceListeners, "listeners", nil, "listener ids present in the session")
	rootCmd.AddCommand(traceCmd)
}
