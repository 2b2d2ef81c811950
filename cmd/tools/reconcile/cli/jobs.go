package cli

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"neunet-backend/internal/reconcile"
)

var unifyCmd = &cobra.Command{
	Use:   "unify",
	Short: "Unify divergent candidate ids across application documents",
	Run: func(*cobra.Command, []string) {
		jobs, db, zl := setup()
		defer db.Close()

		report, err := jobs.UnifyCandidateIDs(context.Background(), viper.GetBool("apply"))
		if err != nil {
			zl.Fatal("unification failed", zap.Error(err))
		}
		zl.Info("done",
			zap.Int("scanned", report.Scanned),
			zap.Int("divergent_emails", report.Divergent),
			zap.Int("planned", len(report.Changes)),
			zap.Int("applied", report.Applied))
	},
}

var rerankCmd = &cobra.Command{
	Use:   "rerank",
	Short: "Re-rank applications with a zero score or missing explanation",
	Run: func(*cobra.Command, []string) {
		jobs, db, zl := setup()
		defer db.Close()

		report, err := jobs.RerankIncomplete(context.Background(), viper.GetBool("apply"))
		if err != nil {
			zl.Fatal("re-rank failed", zap.Error(err))
		}
		zl.Info("done",
			zap.Int("scanned", report.Scanned),
			zap.Int("incomplete", report.Incomplete),
			zap.Int("reranked", len(report.Reranked)),
			zap.Int("planned", len(report.Planned)),
			zap.Int("skipped", len(report.Skipped)))
	},
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Detect and optionally delete incomplete application documents",
	Run: func(*cobra.Command, []string) {
		jobs, db, zl := setup()
		defer db.Close()

		ctx := context.Background()
		flagged, err := jobs.DetectIncomplete(ctx)
		if err != nil {
			zl.Fatal("detection failed", zap.Error(err))
		}
		if !viper.GetBool("apply") {
			zl.Info("dry run complete", zap.Int("flagged", len(flagged)))
			return
		}
		deleted, err := jobs.DeleteIncomplete(ctx, flagged)
		if err != nil {
			zl.Fatal("cleanup failed", zap.Error(err), zap.Int("deleted", deleted))
		}
		zl.Info("done", zap.Int("flagged", len(flagged)), zap.Int("deleted", deleted))
	},
}

var syncScoresCmd = &cobra.Command{
	Use:   "sync-scores",
	Short: "Sync denormalized score copies from the ranking records",
	Run: func(cmd *cobra.Command, _ []string) {
		jobs, db, zl := setup()
		defer db.Close()

		ctx := context.Background()
		apply := viper.GetBool("apply")
		jobID, _ := cmd.Flags().GetString("job")

		var (
			report *reconcile.SyncReport
			err    error
		)
		if jobID != "" {
			report, err = jobs.SyncScores(ctx, jobID, apply)
		} else {
			report, err = jobs.SyncAllScores(ctx, apply)
		}
		if err != nil {
			zl.Fatal("score sync failed", zap.Error(err))
		}
		zl.Info("done",
			zap.Int("jobs", report.Jobs),
			zap.Int("scanned", report.Scanned),
			zap.Int("drifted", len(report.Drifted)),
			zap.Int("applied", report.Applied),
			zap.Strings("orphan_rankings", report.Unranked))
	},
}

var questionnairesCmd = &cobra.Command{
	Use:   "questionnaires",
	Short: "Generate questionnaires for jobs that lack one",
	Run: func(*cobra.Command, []string) {
		jobs, db, zl := setup()
		defer db.Close()

		report, err := jobs.BackfillQuestionnaires(context.Background(), viper.GetBool("apply"))
		if err != nil {
			zl.Fatal("questionnaire backfill failed", zap.Error(err))
		}
		zl.Info("done",
			zap.Strings("missing", report.Missing),
			zap.Strings("generated", report.Generated),
			zap.Strings("failed", report.Failed))
	},
}

var githubAnalysisCmd = &cobra.Command{
	Use:   "github-analysis",
	Short: "Refresh stale GitHub profile analyses from resume evidence",
	Run: func(*cobra.Command, []string) {
		jobs, db, zl := setup()
		defer db.Close()

		report, err := jobs.RefreshAnalyses(context.Background(), viper.GetBool("apply"))
		if err != nil {
			zl.Fatal("analysis pass failed", zap.Error(err))
		}
		zl.Info("done",
			zap.Int("scanned", report.Scanned),
			zap.Int("with_links", report.WithLinks),
			zap.Int("analyzed", report.Analyzed),
			zap.Int("skipped", report.Skipped),
			zap.Int("failed", report.Failed))
	},
}

func init() {
	syncScoresCmd.Flags().String("job", "", "limit the sync to one job id")

	rootCmd.AddCommand(unifyCmd)
	rootCmd.AddCommand(rerankCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(syncScoresCmd)
	rootCmd.AddCommand(questionnairesCmd)
	rootCmd.AddCommand(githubAnalysisCmd)
}
