package main

import (
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/helpline1930/helpline/internal/conversation"
	"github.com/helpline1930/helpline/internal/db"
	"github.com/helpline1930/helpline/internal/dispatch"
	"github.com/helpline1930/helpline/internal/nlu"
	"github.com/helpline1930/helpline/internal/notify"
	"github.com/helpline1930/helpline/internal/record"
	"github.com/helpline1930/helpline/internal/report"
	"github.com/helpline1930/helpline/internal/sweep"
	"github.com/helpline1930/helpline/internal/webhook"
	"github.com/helpline1930/helpline/internal/whatsapp"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook server",
		Long:  "Starts the WhatsApp webhook server, the report sweep and all supporting services.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	gdb, err := db.Connect(cfg.DB)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(gdb); err != nil {
		return err
	}

	records, err := record.NewStore(gdb)
	if err != nil {
		return err
	}
	snapshots, err := conversation.NewGormSnapshotStore(gdb)
	if err != nil {
		return err
	}

	nluClient, err := nlu.NewClient(nlu.Opts{
		APIKey: cfg.GeminiAPIKey(),
		Model:  cfg.NLU.Model,
	})
	if err != nil {
		return err
	}

	engine, err := conversation.NewEngine(conversation.EngineOpts{
		Records:    records,
		Classifier: nluClient,
		Responder:  nluClient,
		Threshold:  cfg.NLU.Threshold,
	})
	if err != nil {
		return err
	}

	gateway, err := whatsapp.NewGateway(whatsapp.Opts{
		Token:         cfg.ChannelToken(),
		PhoneNumberID: cfg.Channel.PhoneNumberID,
		GraphVersion:  cfg.Channel.GraphVersion,
		MediaDir:      cfg.Report.MediaDir,
	})
	if err != nil {
		return err
	}
	if gateway.DryRun() {
		log.Printf("serve: no channel credentials, sends are dry-run")
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

	dispatcher, err := dispatch.New(dispatch.Opts{
		Engine:    engine,
		Snapshots: snapshots,
		Records:   records,
		Gateway:   gateway,
		Renderer:  renderer,
		Notifier:  notifier,
	})
	if err != nil {
		return err
	}

	server, err := webhook.New(webhook.Opts{
		DB:          gdb,
		Dispatcher:  dispatcher,
		Media:       gateway,
		Records:     records,
		Renderer:    renderer,
		VerifyToken: cfg.Channel.VerifyToken,
		MediaDir:    cfg.Report.MediaDir,
	})
	if err != nil {
		return err
	}

	sweeper, err := sweep.New(sweep.Opts{
		Records:  records,
		Renderer: renderer,
		Notifier: notifier,
		Spec:     cfg.Report.SweepCron,
	})
	if err != nil {
		return err
	}
	// Catch up on artifacts missed before the last shutdown.
	if _, err := sweeper.Run(); err != nil {
		log.Printf("serve: initial sweep: %v", err)
	}
	if err := sweeper.Start(); err != nil {
		return err
	}
	defer sweeper.Stop()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(out, "Serving on port %d\n", cfg.HTTP.Port)
	return server.Start(ctx, cfg.HTTP.Port, out)
}
