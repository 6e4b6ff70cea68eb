package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/helpline1930/helpline/internal/db"
	"github.com/helpline1930/helpline/internal/record"
	"github.com/helpline1930/helpline/internal/report"
)

func newReportCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "report <record-id>",
		Short: "Render the PDF report for a complaint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd, configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	return cmd
}

func runReport(cmd *cobra.Command, configPath, idArg string) error {
	out := cmd.OutOrStdout()

	id, err := strconv.ParseUint(idArg, 10, 32)
	if err != nil {
		return fmt.Errorf("invalid record id %q", idArg)
	}

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
	rec, err := records.Get(uint(id))
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

	path, err := renderer.Render(rec)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Rendered %s\n", path)
	return nil
}
