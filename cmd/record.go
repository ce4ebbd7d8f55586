package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"geojournal/core/audio"
	"geojournal/core/journal"
	"geojournal/logger"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var recordManual bool

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record a geotagged voice clip from the local microphone",
	Long: `Record from the local capture device through ffmpeg and append the clip to
the timeline. Press Enter to stop and save, or type c and Enter to discard.
Coordinates are resolved before the microphone opens.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		b, err := openBackend(ctx, true)
		if err != nil {
			return err
		}
		defer b.Close()

		lines := stdinLines()
		dev := audio.Exclusive(audio.NewFFmpegDevice(cfg.FFmpegPath, cfg.FFmpegInputFormat, cfg.FFmpegInputDevice))
		session := audio.NewSession(dev,
			audio.WithClipStore(b.clips),
			audio.WithMIMEType(cfg.ClipMIMEType),
			audio.WithTickInterval(cfg.TickInterval),
		)
		composer := journal.NewComposer(newResolver(lines, out, recordManual), session, b.timeline)

		draft, err := composer.StartAudio(ctx)
		if errors.Is(err, journal.ErrAborted) {
			fmt.Fprintln(out, "Cancelled, nothing recorded.")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Recording at %s. Enter to stop, c + Enter to cancel.\n", draft.Coordinate)

		var bar *progressbar.ProgressBar
		if isatty.IsTerminal(os.Stderr.Fd()) {
			bar = progressbar.NewOptions(-1,
				progressbar.OptionSetDescription("Recording 00:00"),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionSpinnerType(14),
				progressbar.OptionClearOnFinish(),
			)
		}
		ticksDone := make(chan struct{})
		go func() {
			defer close(ticksDone)
			for elapsed := range draft.Ticks() {
				if bar == nil {
					fmt.Fprintln(out, elapsed)
					continue
				}
				bar.Describe("Recording " + elapsed)
				_ = bar.Add(1)
			}
			if bar != nil {
				_ = bar.Finish()
			}
		}()

		go func() {
			select {
			case line, ok := <-lines:
				if ok && strings.EqualFold(strings.TrimSpace(line), "c") {
					composer.CancelAudio()
					return
				}
				// EOF on stdin saves, same as Enter
				if err := composer.StopAudio(ctx); err != nil {
					logger.Warn("failed to stop recording", logger.ErrorField(err))
				}
			case <-ctx.Done():
				composer.CancelAudio()
			case <-draft.Done():
			}
		}()

		// the signal context may already be cancelled here; commit regardless
		entry, err := draft.Commit(context.WithoutCancel(ctx))
		<-ticksDone
		if errors.Is(err, journal.ErrAborted) {
			fmt.Fprintln(out, "Recording discarded.")
			return nil
		}
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "Saved %s (%s) at %s\n", entry.ID, entry.AudioURL(), entry.Coordinate())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(recordCmd)

	recordCmd.Flags().BoolVarP(&recordManual, "manual", "m", false, "skip the fix file and prompt for coordinates")
}
