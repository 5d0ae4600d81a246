package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/firmlight-worker/internal/server"
)

// newRunCmd connects to the broker and works until interrupted or
// disconnected.
func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Connect to the broker and execute tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := resolveRuntime(cmd.Context())
			if err != nil {
				return err
			}
			app, err := server.Build(cmd.Context(), rt.cfg, rt.logger)
			if err != nil {
				rt.logger.Error("startup failed", zap.Error(err))
				return err
			}
			return app.Run(cmd.Context())
		},
	}
}
