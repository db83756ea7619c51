package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"homeinspect/internal/amqp"
	blobmem "homeinspect/internal/blob/memory"
	"homeinspect/internal/capture"
	"homeinspect/internal/core"
	"homeinspect/internal/log"
	metamem "homeinspect/internal/metadata/memory"
	"homeinspect/internal/services"
	"homeinspect/internal/sheets"
	sheetsmem "homeinspect/internal/sheets/memory"
)

type fakeConsumer struct {
	events []*amqp.UploadEvent
	errs   []error
}

func (f *fakeConsumer) ConsumeEvents(ctx context.Context, handler func(context.Context, *amqp.UploadEvent) error) error {
	for _, ev := range f.events {
		f.errs = append(f.errs, handler(ctx, ev))
	}
	return context.Canceled
}

type failingExporter struct{}

func (failingExporter) Export(context.Context, sheets.Report) (string, error) {
	return "", errors.New("quota exceeded")
}

func newCoordinator(t *testing.T) *services.UploadCoordinator {
	t.Helper()
	clock := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	return services.NewUploadCoordinator(
		blobmem.New("https://blobs.test"),
		metamem.New(),
		core.NewCalendar(time.UTC),
		core.DefaultChecklist(),
		services.WithClock(func() time.Time { return clock }),
		services.WithLogger(log.Discard()),
	)
}

func TestHandleEvent_CreatedExportsOwnerReport(t *testing.T) {
	ctx := context.Background()
	coord := newCoordinator(t)
	owner := core.Session{UserID: "user-1", Role: core.RoleUser}
	rec, err := coord.Create(ctx, owner, capture.Payload{
		ItemType:    "Home roof",
		Bytes:       []byte{0xff, 0xd8},
		ContentType: "image/jpeg",
		StorageKey:  "Home roof-1710072000000-roof.jpg",
		FileName:    "roof.jpg",
	}, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	exporter := sheetsmem.New()
	w := NewReportWorker(coord, exporter, log.Discard())

	ev := amqp.NewUploadEvent(amqp.EventCreated, "user-1", "Home roof")
	ev.RecordID = rec.ID
	if err := w.HandleEvent(ctx, ev); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	report, ok := exporter.Report("user-1")
	if !ok {
		t.Fatal("expected a report for user-1")
	}
	if len(report.Rows) != 1 || report.Rows[0].PeriodKey != "2024-03-H1" {
		t.Fatalf("unexpected rows %+v", report.Rows)
	}
	if report.Rows[0].Cells[0] != rec.PublicURL {
		t.Fatalf("roof cell = %q, want %q", report.Rows[0].Cells[0], rec.PublicURL)
	}
	for _, c := range report.Rows[0].Cells[1:] {
		if c != "" {
			t.Fatalf("other items should be empty, got %q", c)
		}
	}
}

func TestHandleEvent_ConsistencyEventsDoNotExport(t *testing.T) {
	exporter := sheetsmem.New()
	w := NewReportWorker(newCoordinator(t), exporter, log.Discard())

	for _, typ := range []amqp.EventType{amqp.EventOrphanedBlob, amqp.EventMetadataDeleteFailed, amqp.EventSupersedeFailed} {
		t.Run(string(typ), func(t *testing.T) {
			if err := w.HandleEvent(context.Background(), amqp.NewUploadEvent(typ, "user-1", "Thermostat")); err != nil {
				t.Fatalf("HandleEvent: %v", err)
			}
		})
	}
	if exporter.Exports() != 0 {
		t.Fatalf("consistency events must not export, got %d exports", exporter.Exports())
	}
}

func TestGapOf(t *testing.T) {
	tests := map[amqp.EventType]string{
		amqp.EventOrphanedBlob:         log.GapOrphanedBlob,
		amqp.EventMetadataDeleteFailed: log.GapDanglingMetadata,
		amqp.EventSupersedeFailed:      log.GapSupersedeLeftover,
	}
	for typ, want := range tests {
		if got := gapOf(typ); got != want {
			t.Errorf("gapOf(%s) = %s, want %s", typ, got, want)
		}
	}
}

func TestHandleEvent_ExportFailureRequestsRedelivery(t *testing.T) {
	w := NewReportWorker(newCoordinator(t), failingExporter{}, log.Discard())
	err := w.HandleEvent(context.Background(), amqp.NewUploadEvent(amqp.EventDeleted, "user-1", "Thermostat"))
	if err == nil {
		t.Fatal("expected export error")
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	exporter := sheetsmem.New()
	w := NewReportWorker(newCoordinator(t), exporter, log.Discard())
	consumer := &fakeConsumer{events: []*amqp.UploadEvent{
		amqp.NewUploadEvent(amqp.EventCreated, "user-1", "Thermostat"),
		amqp.NewUploadEvent(amqp.EventSuperseded, "user-2", "Thermostat"),
	}}

	if err := w.Run(context.Background(), consumer); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if exporter.Exports() != 2 {
		t.Fatalf("exports = %d, want 2", exporter.Exports())
	}
	for i, err := range consumer.errs {
		if err != nil {
			t.Errorf("event %d: %v", i, err)
		}
	}
}
