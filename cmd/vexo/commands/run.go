package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vexolabs/vexo/pkg/audio"
	"github.com/vexolabs/vexo/pkg/cli"
	"github.com/vexolabs/vexo/pkg/player"
)

var (
	runGuild     string
	runListeners []string
	runOut       string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the playback agent for a guild",
	Long: `Start a playback session: pick a track for the current
listeners, stream it frame by frame, prefetch the next pick before the
current track ends, and swap with no silence in between.

Audio frames go to --out as raw PCM (48kHz mono s16le), or are
discarded when no output is given, which still exercises the full
selection and playback path. Stop with Ctrl-C.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openAgent()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		sess := a.host.Open(runGuild)
		if len(runListeners) > 0 {
			sess.SetListeners(runListeners)
		}
		trigger := ""
		if len(runListeners) > 0 {
			trigger = runListeners[0]
		}

		var out io.Writer = io.Discard
		if runOut != "" {
			f, err := os.Create(runOut)
			if err != nil {
				return fmt.Errorf("create output: %w", err)
			}
			defer f.Close()
			out = f
		}

		choice, err := sess.SelectNext(ctx, trigger)
		if err != nil {
			return err
		}
		pipe := a.pipe(runGuild)
		announce(choice, pipe)

		return streamLoop(ctx, sess, pipe, out)
	},
}

// streamLoop drives the pipe at frame rate until the context ends or
// playback stalls with nothing left to try.
func streamLoop(ctx context.Context, sess *player.Session, pipe *audio.Pipe, out io.Writer) error {
	frame := make([]byte, audio.FrameSize)
	ticker := time.NewTicker(audio.FrameDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return sess.Stop()
		case <-ticker.C:
			n, err := pipe.Read(frame)
			if err != nil {
				// Pipe stopped under us; the session is done.
				return nil
			}
			if n > 0 {
				if _, err := out.Write(frame[:n]); err != nil {
					return fmt.Errorf("write audio: %w", err)
				}
				continue
			}

			// Starving: the current track has ended.
			if sess.State() == player.StateIdle {
				continue
			}
			next, err := sess.TrackEnd(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return sess.Stop()
				}
				slog.Error("vexo: cannot advance", "guild", sess.Guild(), "err", err)
				return err
			}
			announce(next, pipe)
		}
	}
}

func announce(choice player.Choice, pipe *audio.Pipe) {
	label := trackLabel(choice.Track.Title, choice.Track.Artist, choice.Track.TrackID)
	if remaining := pipe.Remaining(); remaining > 0 {
		label += " (" + cli.FormatTrackDuration(remaining) + ")"
	}
	fmt.Printf("now playing: %s\n", label)
	if IsVerbose() {
		fmt.Println(renderTrace(choice.Track, choice.Trace))
	}
}

func init() {
	runCmd.Flags().StringVarP(&runGuild, "guild", "g", "default", "guild id")
	runCmd.Flags().StringSliceVar(&runListeners, "listeners", nil, "listener ids present in the session")
	runCmd.Flags().StringVarP(&runOut, "out", "o", "", "write raw PCM frames to this file")
	rootCmd.AddCommand(runCmd)
}
