package cmd

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kozaktomas/facewatch/internal/worker"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var reembedCmd = &cobra.Command{
	Use:   "reembed",
	Short: "Recompute case embeddings with the active match profile",
	Long: `Recomputes the face embedding of stored cases from their reference photos.
Run it after changing the model or the detector order: embeddings produced by
another profile are skipped during matching until they are regenerated.`,
	RunE: runReembed,
}

func init() {
	rootCmd.AddCommand(reembedCmd)

	reembedCmd.Flags().Bool("all", false, "Recompute every case, not only missing or stale embeddings")
	reembedCmd.Flags().Int("concurrency", 4, "Number of parallel extractions")
	reembedCmd.Flags().Int("limit", 0, "Limit number of cases to process (0 = no limit)")
}

func runReembed(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	reembedder := worker.NewReembedder(a.cases, a.images, newExtractor(a.cfg, a.log), registrationMode(a.cfg), a.log, nil)

	fmt.Printf("Match profile: %s\n", a.cfg.Match.Profile.Signature())

	var (
		mu  sync.Mutex
		bar *progressbar.ProgressBar
	)
	summary, err := reembedder.Reembed(ctx, worker.ReembedOptions{
		OnlyMissingOrStale: !mustGetBool(cmd, "all"),
		Concurrency:        mustGetInt(cmd, "concurrency"),
		Limit:              mustGetInt(cmd, "limit"),
		Progress: func(p worker.ReembedProgress) {
			mu.Lock()
			defer mu.Unlock()
			if bar == nil {
				bar = progressbar.NewOptions(p.Total,
					progressbar.OptionSetDescription("Computing embeddings"),
					progressbar.OptionShowCount(),
					progressbar.OptionShowIts(),
					progressbar.OptionSetItsString("cases"),
					progressbar.OptionShowElapsedTimeOnFinish(),
					progressbar.OptionSetPredictTime(true),
					progressbar.OptionFullWidth(),
				)
			}
			bar.Add(1)
		},
	})
	if bar != nil {
		fmt.Println()
	}
	if err != nil {
		return fmt.Errorf("reembed failed: %w", err)
	}

	fmt.Printf("Cases: %d, updated: %d, failed: %d, skipped: %d\n",
		summary.Total, summary.Succeeded, summary.Failed, summary.Skipped)

	if len(summary.Failures) > 0 {
		ids := make([]int64, 0, len(summary.Failures))
		for id := range summary.Failures {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		fmt.Println("\nFailures:")
		for _, id := range ids {
			fmt.Printf("  #%d: %v\n", id, summary.Failures[id])
		}
	}
	return nil
}
