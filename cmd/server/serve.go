package main

import (
	"context"

	"github.com/spf13/cobra"

	"payrolladmin/internal/app/server"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and scheduled jobs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, app *server.App) error {
				return app.Run(ctx)
			})
		},
	}
}
