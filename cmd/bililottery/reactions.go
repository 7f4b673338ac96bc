package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"bililottery/pkg/harvest"
)

var reactionsResumeFile string

// reactionsCmd crawls the forward/like list of a dynamic.
var reactionsCmd = &cobra.Command{
	Use:   "reactions <dynamic-id>",
	Short: "Collect the forward and like participants of a dynamic",
	Long: `Crawl the reaction list of a dynamic: every account that forwarded or
liked it, one record each, with the action classified as 转发了 or 赞了.

The crawl stops once the forward + like totals reported by the dynamic
have been covered, or when the server runs out of pages.`,
	Example: `  bililottery reactions 712345678901234567
  bililottery reactions 712345678901234567 --resume-file reactions.resume`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReactions(strings.TrimSpace(args[0]))
	},
}

func init() {
	rootCmd.AddCommand(reactionsCmd)
	reactionsCmd.Flags().StringVar(&reactionsResumeFile, "resume-file", "", "file to load/store crawl state across rate limits")
}

func runReactions(id string) error {
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
		fmt.Fprintf(os.Stderr, "target: %s by %s, %d forwards + %d likes\n",
			detail.SourceType, detail.AuthorName, detail.ForwardCount, detail.LikeCount)
	}

	resume, err := loadResumeState(reactionsResumeFile)
	if err != nil {
		return err
	}

	records, err := a.harvester.Reactions(ctx, id, detail, harvest.Options{
		Progress: progressPrinter("reactions"),
		Resume:   resume,
	})
	if len(records) > 0 {
		if emitErr := emitJSON(records); emitErr != nil {
			return emitErr
		}
	}
	if err != nil {
		if state, ok := harvest.Interrupted(err); ok && reactionsResumeFile != "" {
			if saveErr := saveResumeState(reactionsResumeFile, state); saveErr != nil {
				return saveErr
			}
			return fmt.Errorf("rate limited after %d records; state saved to %s, rerun to continue", state.ProcessedCount, reactionsResumeFile)
		}
		return err
	}

	if reactionsResumeFile != "" {
		if rmErr := os.Remove(reactionsResumeFile); rmErr != nil && !os.IsNotExist(rmErr) {
			a.log.WithError(rmErr).Warn("failed to remove resume file")
		}
	}
	return nil
}
