package cli

import (
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"neunet-backend/internal/config"
	"neunet-backend/internal/ghanalysis"
	"neunet-backend/internal/logger"
	"neunet-backend/internal/pipeline"
	"neunet-backend/internal/ranking"
	"neunet-backend/internal/reconcile"
	"neunet-backend/internal/storage"
)

const app = "reconcile"

var rootCmd = &cobra.Command{
	Use:   app,
	Short: "reconcile repairs consistency drift in the recruiting document store",
	Long: `reconcile runs the batch repair jobs against the document store:
candidate id unification, re-ranking of zero-score applications,
incomplete-document cleanup, ranking score sync, questionnaire backfill,
and the end-of-day GitHub analysis pass.

All subcommands run dry by default and only report what they would
change. Pass --apply to write.`,
}

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().Bool("apply", false, "write changes instead of reporting them")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("apply", rootCmd.PersistentFlags().Lookup("apply"))
	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

// setup builds the shared dependencies for every subcommand. The caller
// closes the returned store.
func setup() (*reconcile.Jobs, *storage.DB, *zap.Logger) {
	zl, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	cfg := config.LoadConfig()
	if cfg.DatabaseURL == "" {
		zl.Fatal("DATABASE_URL is required")
	}

	db, err := storage.NewDB(cfg.DatabaseURL, zl)
	if err != nil {
		zl.Fatal("connecting to the document store", zap.Error(err))
	}

	evaluator := ranking.NewLLMEvaluator(cfg.LLMProvider, cfg.LLMAPIKey, cfg.LLMModel, zl)

	var analyses *ghanalysis.Cache
	if cfg.AnalysisServiceURL != "" {
		analyzer := ghanalysis.NewServiceAnalyzer(cfg.AnalysisServiceURL, zl)
		analyses = ghanalysis.NewCache(db, analyzer, cfg.AnalysisMaxAge, zl)
	}

	ranker := pipeline.NewService(db, evaluator, analyses, cfg.QueueSize, zl)
	return reconcile.NewJobs(db, ranker, evaluator, analyses, zl), db, zl
}
