package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"geojournal/core/coords"
	"geojournal/model"

	"github.com/spf13/cobra"
)

var (
	listLimit  int
	listNear   string
	listRings  int
	clearForce bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the most recent entries, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := openBackend(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer b.Close()

		var entries []*model.Entry
		if listNear != "" {
			at, perr := coords.Parse(listNear)
			if perr != nil {
				return fmt.Errorf("--near: %w", perr)
			}
			entries, err = b.timeline.Near(cmd.Context(), at, listRings, listLimit)
		} else {
			entries, err = b.timeline.List(cmd.Context(), listLimit)
		}
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "The timeline is empty.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tLOCATION\tKIND\tCONTENT")
		for _, e := range entries {
			content := e.Payload
			if e.Kind == model.EntryKindAudio {
				content = e.AudioURL()
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.CreatedAt.Local().Format(time.DateTime), e.Coordinate(), e.Kind, content)
		}
		return w.Flush()
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every entry and stored clip",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !clearForce {
			return fmt.Errorf("refusing to clear the timeline without --force")
		}

		b, err := openBackend(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer b.Close()

		if err := b.timeline.Clear(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Timeline cleared.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd, clearCmd)

	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 20, "number of entries to show")
	listCmd.Flags().StringVar(&listNear, "near", "", `only entries written near these coordinates, e.g. "52.52, 13.405"`)
	listCmd.Flags().IntVar(&listRings, "rings", 1, "how many H3 cell rings around --near to include")
	clearCmd.Flags().BoolVar(&clearForce, "force", false, "confirm deleting everything")
}
