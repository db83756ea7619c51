package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"homeinspect/internal/amqp"
	"homeinspect/internal/core"
	"homeinspect/internal/log"
	"homeinspect/internal/metrics"
	"homeinspect/internal/sheets"
)

// systemSession is the identity the worker reads matrices with.
var systemSession = core.Session{UserID: "report-worker", Role: core.RoleAgent}

// MatrixSource rebuilds an owner's completion matrix from the metadata store.
type MatrixSource interface {
	Matrix(ctx context.Context, s core.Session, ownerID string) (core.CompletionMatrix, error)
	Checklist() core.Checklist
}

// EventConsumer delivers upload events until ctx is cancelled.
type EventConsumer interface {
	ConsumeEvents(ctx context.Context, handler func(context.Context, *amqp.UploadEvent) error) error
}

// ReportWorker keeps each owner's reviewer report in line with their uploads.
type ReportWorker struct {
	source   MatrixSource
	exporter sheets.ReportExporter
	logger   *log.Logger
	now      func() time.Time
}

func NewReportWorker(source MatrixSource, exporter sheets.ReportExporter, logger *log.Logger) *ReportWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &ReportWorker{
		source:   source,
		exporter: exporter,
		logger:   logger.WithComponent(log.ComponentWorker),
		now:      time.Now,
	}
}

// Run consumes events until ctx is cancelled.
func (w *ReportWorker) Run(ctx context.Context, consumer EventConsumer) error {
	w.logger.InfoContext(ctx, "Report worker consuming upload events")
	err := consumer.ConsumeEvents(ctx, w.HandleEvent)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// HandleEvent processes a single upload event. A returned error asks the
// broker to redeliver.
func (w *ReportWorker) HandleEvent(ctx context.Context, ev *amqp.UploadEvent) error {
	fields := log.NewFields().
		WithUpload(ev.OwnerID, ev.ItemType, ev.RecordID, ev.StorageKey).
		With(log.FieldEventType, string(ev.Type)).
		With(log.FieldPeriod, ev.Period)

	switch ev.Type {
	case amqp.EventCreated, amqp.EventDeleted, amqp.EventSuperseded:
		w.logger.DebugContext(ctx, "Processing upload event", fields.ToSlice()...)
		ref, err := w.ExportOwner(ctx, ev.OwnerID)
		if err != nil {
			w.logger.ErrorContext(ctx, "Report export failed", fields.WithOperation(log.OpExport).WithError(err).ToSlice()...)
			return err
		}
		w.logger.InfoContext(ctx, "Report exported", fields.With("ref", ref).ToSlice()...)
		return nil

	case amqp.EventOrphanedBlob, amqp.EventMetadataDeleteFailed, amqp.EventSupersedeFailed:
		gap := gapOf(ev.Type)
		metrics.ConsistencyGap(gap)
		w.logger.ErrorContext(ctx, "Stores diverged, manual cleanup required",
			fields.WithConsistencyGap(gap).ToSlice()...)
		return nil

	default:
		w.logger.WarnContext(ctx, "Ignoring unknown event type", fields.ToSlice()...)
		return nil
	}
}

// ExportOwner rebuilds and exports one owner's report.
func (w *ReportWorker) ExportOwner(ctx context.Context, ownerID string) (string, error) {
	m, err := w.source.Matrix(ctx, systemSession, ownerID)
	if err != nil {
		metrics.ReportExported(metrics.OutcomeExportFailed)
		return "", fmt.Errorf("build matrix for %s: %w", ownerID, err)
	}
	report := sheets.BuildReport(ownerID, m, w.source.Checklist(), w.now())
	ref, err := w.exporter.Export(ctx, report)
	if err != nil {
		metrics.ReportExported(metrics.OutcomeExportFailed)
		return "", fmt.Errorf("export report for %s: %w", ownerID, err)
	}
	metrics.ReportExported(metrics.OutcomeOK)
	return ref, nil
}

func gapOf(t amqp.EventType) string {
	switch t {
	case amqp.EventOrphanedBlob:
		return log.GapOrphanedBlob
	case amqp.EventMetadataDeleteFailed:
		return log.GapDanglingMetadata
	default:
		return log.GapSupersedeLeftover
	}
}
