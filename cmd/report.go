package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/fabtrack/internal/app"
	"github.com/JakeFAU/fabtrack/internal/config"
)

func newReportCmd() *cobra.Command {
	var projectID string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Exports a project report",
		Long: `Builds a point-in-time report for one project (progress, weights, stage
breakdown and time statistics) and uploads it to the configured export target.
The object URI is printed on success.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App, _ config.Config) error {
				uri, err := a.ExportReport(ctx, projectID)
				if err != nil {
					return fmt.Errorf("export report for %s: %w", projectID, err)
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), uri)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project ID to report on")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}
