package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"geojournal/core/coords"
	"geojournal/core/journal"
	"geojournal/model"

	"github.com/spf13/cobra"
)

var (
	postAt     string
	postManual bool
)

var postCmd = &cobra.Command{
	Use:   "post <text>",
	Short: "Append a geotagged text note",
	Long: `Append a text note to the timeline. The location comes from the fix file
(GEO_FIX_FILE); if no fix arrives in time you are asked to type coordinates.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.Join(args, " ")
		out := cmd.OutOrStdout()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		b, err := openBackend(ctx, false)
		if err != nil {
			return err
		}
		defer b.Close()

		var entry *model.Entry
		if postAt != "" {
			at, perr := coords.Parse(postAt)
			if perr != nil {
				return fmt.Errorf("--at: %w", perr)
			}
			entry, err = b.timeline.AddText(ctx, text, at)
		} else {
			composer := journal.NewComposer(newResolver(stdinLines(), out, postManual), nil, b.timeline)
			entry, err = composer.SubmitText(ctx, text)
		}
		if errors.Is(err, journal.ErrAborted) {
			fmt.Fprintln(out, "Cancelled, nothing saved.")
			return nil
		}
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "Saved %s at %s\n", entry.ID, entry.Coordinate())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(postCmd)

	postCmd.Flags().StringVar(&postAt, "at", "", `coordinates to use instead of a lookup, e.g. "51.50851, -0.12572"`)
	postCmd.Flags().BoolVarP(&postManual, "manual", "m", false, "skip the fix file and prompt for coordinates")

	postCmd.Example = `  # geotag from the fix file, prompting if it stays silent
  geojournal post "Rain on the pier"

  # explicit coordinates
  geojournal post --at "[50.8225, -0.1372]" "Rain on the pier"`
}
