package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"bililottery/pkg/harvest"
)

var resumeFile string

// harvestCmd crawls the comment area of a video or dynamic.
var harvestCmd = &cobra.Command{
	Use:   "harvest <id>",
	Short: "Collect every comment participant of a video or dynamic",
	Long: `Resolve a BV id or a numeric dynamic id, then crawl its whole comment
area. Reply trees are flattened so each record is one participant entry;
repeated comment content is linked back to its first occurrence.

If the platform rate-limits the crawl, the partial records are still
printed and the crawl state is written to --resume-file; running the
same command again continues from that point.`,
	Example: `  # Crawl a video's comments
  bililottery harvest BV1xx411c7abc

  # Crawl a dynamic's comments, resumable across rate limits
  bililottery harvest 712345678901234567 --resume-file lottery.resume`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHarvest(strings.TrimSpace(args[0]))
	},
}

func init() {
	rootCmd.AddCommand(harvestCmd)
	harvestCmd.Flags().StringVar(&resumeFile, "resume-file", "", "file to load/store crawl state across rate limits")
}

func runHarvest(id string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext()
	defer cancel()

	detail, err := a.client.FetchDetail(ctx, id)
	if err != nil {
		return err
	}
	if !quiet {
		fmt.Fprintf(os.Stderr, "target: %s by %s, %d comments\n", detail.SourceType, detail.AuthorName, detail.CommentCount)
	}

	resume, err := loadResumeState(resumeFile)
	if err != nil {
		return err
	}
	if resume != nil {
		fmt.Fprintf(os.Stderr, "resuming at %d processed records\n", resume.ProcessedCount)
	}

	records, err := a.harvester.Comments(ctx, detail, harvest.Options{
		Progress: progressPrinter("comments"),
		Resume:   resume,
	})
	if len(records) > 0 {
		if emitErr := emitJSON(records); emitErr != nil {
			return emitErr
		}
	}
	if err != nil {
		if state, ok := harvest.Interrupted(err); ok && resumeFile != "" {
			if saveErr := saveResumeState(resumeFile, state); saveErr != nil {
				return saveErr
			}
			return fmt.Errorf("rate limited after %d records; state saved to %s, rerun to continue", state.ProcessedCount, resumeFile)
		}
		return err
	}

	// A completed crawl leaves no state to resume from.
	if resumeFile != "" {
		if rmErr := os.Remove(resumeFile); rmErr != nil && !os.IsNotExist(rmErr) {
			a.log.WithError(rmErr).Warn("failed to remove resume file")
		}
	}
	return nil
}
