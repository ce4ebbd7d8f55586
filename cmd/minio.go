package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"geojournal/storage"

	"github.com/spf13/cobra"
)

var (
	minioPrefix string
	minioStats  bool
	minioPurge  bool
)

var minioCmd = &cobra.Command{
	Use:   "minio",
	Short: "Inspect the clip bucket",
	Long:  `List stored clips with their sizes, show bucket statistics, or purge clips under a prefix.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "MinIO: %s, bucket: %s\n", cfg.MinioEndpoint, cfg.MinioBucket)

		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()

		store, err := storage.NewClipStore(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to connect to MinIO: %w", err)
		}

		if minioPurge {
			n, err := store.RemovePrefix(ctx, minioPrefix)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Removed %d objects under %q.\n", n, minioPrefix)
			return nil
		}

		objects, stats, err := store.List(ctx, minioPrefix)
		if err != nil {
			return err
		}

		if !minioStats {
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tSIZE\tTYPE\tMODIFIED")
			for _, o := range objects {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", o.Key, storage.FormatSize(o.Size), o.ContentType, o.LastModified.Local().Format(time.DateTime))
			}
			if err := w.Flush(); err != nil {
				return err
			}
		}

		fmt.Fprintf(out, "\n%s\n", stats.Summary())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(minioCmd)

	minioCmd.Flags().StringVarP(&minioPrefix, "prefix", "p", storage.ClipPrefix, "only objects under this prefix")
	minioCmd.Flags().BoolVarP(&minioStats, "stats", "s", false, "only print bucket statistics")
	minioCmd.Flags().BoolVarP(&minioPurge, "purge", "d", false, "delete every object under the prefix")

	minioCmd.Example = `  # list stored clips
  geojournal minio

  # bucket statistics only
  geojournal minio -s

  # delete all clips
  geojournal minio -d -p clips/`
}
