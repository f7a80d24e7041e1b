package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/compace/hygiene/internal/hygiene"
	"github.com/compace/hygiene/internal/lock"
)

func newWorkerCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "worker <dedupe|urlcheck>",
		Short: "Run one hygiene pass and exit.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := buildServices(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.close()

			result, err := svc.runner.Run(cmd.Context(), hygiene.Task(args[0]), limit)
			if err != nil {
				if errors.Is(err, lock.ErrBusy) {
					return fmt.Errorf("worker is busy (locked)")
				}
				return err
			}
			svc.logger.Info("run finished",
				zap.Int("processed", result.Processed),
				zap.String("details", result.Details),
			)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "candidate cap for this run (0 = configured default)")
	return cmd
}
