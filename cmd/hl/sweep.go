package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/helpline1930/helpline/internal/db"
	"github.com/helpline1930/helpline/internal/notify"
	"github.com/helpline1930/helpline/internal/record"
	"github.com/helpline1930/helpline/internal/report"
	"github.com/helpline1930/helpline/internal/sweep"
)

func newSweepCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Render missing reports for submitted complaints",
		Long:  "Runs a single sweep pass over submitted complaints and renders any missing PDF artifacts.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	return cmd
}

func runSweep(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	gdb, err := db.Connect(cfg.DB)
	if err != nil {
		return err
	}

	records, err := record.NewStore(gdb)
	if err != nil {
		return err
	}
	renderer, err := report.NewRenderer(report.Opts{
		Dir:      cfg.Report.Dir,
		MediaDir: cfg.Report.MediaDir,
	})
	if err != nil {
		return err
	}
	notifier := notify.New(notify.Opts{
		Token:     cfg.SlackToken(),
		ChannelID: cfg.Slack.Channel,
	})

	sweeper, err := sweep.New(sweep.Opts{
		Records:  records,
		Renderer: renderer,
		Notifier: notifier,
		Spec:     cfg.Report.SweepCron,
	})
	if err != nil {
		return err
	}

	n, err := sweeper.Run()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Rendered %d reports\n", n)
	return nil
}
