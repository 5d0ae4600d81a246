package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/firmlight-worker/internal/handler"
	"github.com/JakeFAU/firmlight-worker/internal/server"
)

// newCrawlCmd runs one crawl locally with the node's politeness settings
// and prints the per-seed results as JSON.
func newCrawlCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "crawl <url>...",
		Short: "Crawl seed URLs locally and print the results",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := resolveRuntime(cmd.Context())
			if err != nil {
				return err
			}
			engine, cleanup, err := server.NewCrawlEngine(cmd.Context(), rt.cfg, rt.logger.Named("crawler"))
			if err != nil {
				return err
			}
			defer func() {
				if cerr := cleanup(); cerr != nil {
					rt.logger.Warn("robots cache close failed", zap.Error(cerr))
				}
			}()

			if limit <= 0 {
				limit = rt.cfg.Crawler.DefaultCrawlLimit
			}
			results := make([]handler.SeedResult, 0, len(args))
			for _, seed := range args {
				rt.logger.Info("starting crawl", zap.String("seed", seed), zap.Int("limit", limit))
				results = append(results, handler.SeedResult{
					URL:     seed,
					Results: engine.Crawl(cmd.Context(), seed, limit),
				})
			}

			out, err := json.MarshalIndent(results, "", "  ")
			if err != nil {
				return fmt.Errorf("encode results: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "max pages per seed (default crawler.default_crawl_limit)")
	return cmd
}
