package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/mmtn/deposition-molecular-dynamics/internal/campaign"
	"github.com/mmtn/deposition-molecular-dynamics/internal/config"
	"github.com/mmtn/deposition-molecular-dynamics/internal/logging"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a deposition campaign",
		Long: `Run a deposition campaign in the current directory.

A fresh campaign creates the working and archive directories and the
initial snapshot from the substrate file; a directory with an existing
status.yaml resumes from its checkpoint instead. The campaign runs until
the iteration budget is reached (exit 0), the consecutive-failure budget
is exhausted (exit 1) or something breaks (exit 2).

SIGINT and SIGTERM stop the campaign cleanly: the running engine process
is killed and the checkpoint is left pointing at the last completed
iteration.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			settingsPath, _ := cmd.Flags().GetString("settings")

			outcome, err := runCampaign(settingsPath)
			if err != nil {
				return err
			}
			if outcome == campaign.OutcomeFailureBudget {
				return fmt.Errorf("campaign abandoned: %s", outcome)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "campaign %s\n", outcome)
			return nil
		},
	}

	cmd.Flags().String("settings", "settings.yaml", "Campaign settings file")

	return cmd
}

// runCampaign drives a campaign to its outcome. Malfunctions come back
// as fatalError so main can exit 2; an exhausted failure budget is an
// outcome, not an error.
func runCampaign(settingsPath string) (campaign.Outcome, error) {
	settings, err := config.Load(settingsPath)
	if err != nil {
		return 0, &fatalError{err}
	}
	if err := settings.Validate(); err != nil {
		return 0, &fatalError{fmt.Errorf("invalid settings: %w", err)}
	}

	logger, logCloser, err := logging.NewFileLogger(settings.LogLevel, settings.LogFilename)
	if err != nil {
		return 0, &fatalError{err}
	}
	defer logCloser.Close()

	events := logging.NewEventLogger(".", settings.LogLevel)
	defer events.Close()

	controller, err := campaign.New(settings, settingsPath)
	if err != nil {
		return 0, &fatalError{err}
	}
	defer controller.Close()
	controller.SetLogger(logger, events)

	if err := controller.Setup(); err != nil {
		return 0, &fatalError{err}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	notifySignals(sigCh)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("signal received, stopping campaign", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	outcome, err := controller.Run(ctx)
	if err != nil {
		return 0, &fatalError{err}
	}
	return outcome, nil
}
