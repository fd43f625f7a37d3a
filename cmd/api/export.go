package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eris-support/triage-service/internal/domain"
	"github.com/eris-support/triage-service/internal/escalation"
	"github.com/eris-support/triage-service/internal/export"
	"github.com/eris-support/triage-service/internal/service"
	"github.com/eris-support/triage-service/internal/store"
	"github.com/eris-support/triage-service/internal/view"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the ticket table to a CSV or XLSX file",
	RunE:  runExport,
}

var exportFlags struct {
	format string
	out    string
	query  view.Query
	status string
}

func init() {
	f := exportCmd.Flags()
	f.StringVar(&exportFlags.format, "format", "csv", "csv or xlsx")
	f.StringVarP(&exportFlags.out, "out", "o", "", "output path (default tickets_<date>.<format>)")
	f.StringVarP(&exportFlags.query.Text, "query", "q", "", "substring filter over name, company, email, summary and device type")
	f.StringVar(&exportFlags.query.Sort, "sort", "", "sort key")
	f.StringVar(&exportFlags.query.Dir, "dir", "", "asc or desc")
	f.StringVar(&exportFlags.status, "status", "", "only tickets in this status")
}

func runExport(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	format, err := export.ParseFormat(exportFlags.format)
	if err != nil {
		return err
	}
	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	ticketStore := store.New(store.Dependencies{
		Backend: rt.backend,
		Machine: escalation.New(rt.cfg.Escalation.Triggers),
		Logger:  rt.logger.Named("store"),
	})
	if err := ticketStore.Load(ctx); err != nil {
		return fmt.Errorf("load tickets: %w", err)
	}

	svc := service.NewTicketService(service.TicketDependencies{
		Store:      ticketStore,
		Serializer: export.NewSerializer(rt.cfg.Export.Location()),
		Logger:     rt.logger,
	})
	q := exportFlags.query
	q.Status = domain.TicketStatus(exportFlags.status)
	file, err := svc.Export(ctx, q, format)
	if err != nil {
		return err
	}

	path := exportFlags.out
	if path == "" {
		path = file.Name
	}
	if err := os.WriteFile(path, file.Body, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	rt.logger.Info("export written", zap.String("path", path), zap.Int("bytes", len(file.Body)))
	return nil
}
