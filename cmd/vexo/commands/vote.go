package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vexolabs/vexo/pkg/taste"
)

var (
	voteListener string
	voteKind     string
)

var voteCmd = &cobra.Command{
	Use:   "vote <track-id>",
	Short: "Record a listener's reaction to a track",
	Long: `Record a reaction and nudge the listener's taste vector.

Kinds and their weights:
  like      +5   pull taste toward the track
  request   +2
  skip      -2   push taste away from it
  dislike   -5

Replaying the same vote has no further effect.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind := taste.VoteKind(voteKind)
		if !kind.Valid() {
			return fmt.Errorf("unknown vote kind %q (like, dislike, skip, request)", voteKind)
		}

		a, err := openAgent()
		if err != nil {
			return err
		}
		defer a.Close()

		ev := taste.NewVoteEvent(voteListener, args[0], kind)
		if err := a.ledger.Record(cmd.Context(), ev); err != nil {
			return err
		}
		fmt.Printf("recorded %s by %s on %s\n", kind, voteListener, args[0])
		return nil
	},
}

func init() {
	voteCmd.Flags().StringVarP(&voteListener, "listener", "l", "", "listener id (required)")
	voteCmd.Flags().StringVarP(&voteKind, "kind", "k", "like", "vote kind: like, dislike, skip, request")
	voteCmd.MarkFlagRequired("listener")
	rootCmd.AddCommand(voteCmd)
}
