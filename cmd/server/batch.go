package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"payrolladmin/internal/app/server"
	"payrolladmin/internal/domain/payslip"
	"payrolladmin/internal/platform/jobs"
	"payrolladmin/internal/transport/http/shared"
)

func newGenerateCmd() *cobra.Command {
	var tenantID string
	cmd := &cobra.Command{
		Use:   "generate [record-id...]",
		Short: "Generate payslips for payroll records",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if tenantID == "" {
				return errors.New("--tenant is required")
			}
			return withApp(cmd.Context(), func(ctx context.Context, app *server.App) error {
				out, err := app.Jobs.RunNow(ctx, jobs.JobPayslipGenerate, tenantID, func(ctx context.Context) (any, error) {
					return app.Generator.Generate(ctx, tenantID, args)
				})
				if err != nil {
					return err
				}
				results, _ := out.([]payslip.Result)
				failed := 0
				for _, res := range results {
					if !res.OK {
						failed++
					}
				}
				if err := printJSON(cmd, map[string]any{"results": results}); err != nil {
					return err
				}
				if failed > 0 {
					return fmt.Errorf("%d of %d payslips failed", failed, len(results))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&tenantID, "tenant", "", "tenant id")
	return cmd
}

func newClosePeriodCmd() *cobra.Command {
	var (
		tenantID   string
		actorID    string
		notes      string
		periodEnds []string
	)
	cmd := &cobra.Command{
		Use:   "close-period",
		Short: "Archive the active records of one or more pay periods",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if tenantID == "" {
				return errors.New("--tenant is required")
			}
			dates := make([]time.Time, 0, len(periodEnds))
			for _, raw := range periodEnds {
				d, err := shared.ParseDate(raw)
				if err != nil {
					return fmt.Errorf("invalid --period-end %q: %w", raw, err)
				}
				dates = append(dates, d)
			}
			return withApp(cmd.Context(), func(ctx context.Context, app *server.App) error {
				summary, err := app.Closure.Close(ctx, tenantID, actorID, dates, notes)
				if err != nil {
					return err
				}
				return printJSON(cmd, map[string]any{"summary": summary})
			})
		},
	}
	cmd.Flags().StringVar(&tenantID, "tenant", "", "tenant id")
	cmd.Flags().StringVar(&actorID, "actor", "cli", "user recorded as closing the periods")
	cmd.Flags().StringVar(&notes, "notes", "", "closure notes")
	cmd.Flags().StringSliceVar(&periodEnds, "period-end", nil, "period end date (YYYY-MM-DD), repeatable")
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
