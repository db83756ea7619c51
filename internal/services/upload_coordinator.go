package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"homeinspect/internal/amqp"
	"homeinspect/internal/blob"
	"homeinspect/internal/capture"
	"homeinspect/internal/core"
	"homeinspect/internal/log"
	"homeinspect/internal/metadata"
	"homeinspect/internal/metrics"
)

// EventPublisher receives best-effort notifications about uploads.
type EventPublisher interface {
	PublishEvent(ctx context.Context, ev *amqp.UploadEvent) error
}

// UploadCoordinator keeps the blob store and the metadata store consistent
// under create, reupload and delete. Within one operation the two remote
// writes are strictly sequential; blob first on create, blob first on delete.
type UploadCoordinator struct {
	blobs     blob.Store
	records   metadata.Store
	calendar  core.Calendar
	checklist core.Checklist
	events    EventPublisher
	logger    *log.Logger
	supersede bool
	now       func() time.Time
	slots     *slotTracker
}

type Option func(*UploadCoordinator)

func WithEvents(p EventPublisher) Option { return func(c *UploadCoordinator) { c.events = p } }

func WithLogger(l *log.Logger) Option { return func(c *UploadCoordinator) { c.logger = l } }

func WithClock(now func() time.Time) Option { return func(c *UploadCoordinator) { c.now = now } }

// WithSupersede controls whether a reupload removes prior records for the
// same (owner, item, period). Enabled by default.
func WithSupersede(on bool) Option { return func(c *UploadCoordinator) { c.supersede = on } }

func NewUploadCoordinator(blobs blob.Store, records metadata.Store, cal core.Calendar, checklist core.Checklist, opts ...Option) *UploadCoordinator {
	c := &UploadCoordinator{
		blobs:     blobs,
		records:   records,
		calendar:  cal,
		checklist: checklist,
		supersede: true,
		now:       time.Now,
		slots:     newSlotTracker(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.logger == nil {
		c.logger = log.New(log.DefaultConfig())
	}
	c.logger = c.logger.WithComponent(log.ComponentUpload)
	return c
}

func (c *UploadCoordinator) Calendar() core.Calendar   { return c.calendar }
func (c *UploadCoordinator) Checklist() core.Checklist { return c.checklist }

// Create writes the payload to the blob store, then inserts its metadata row.
// A blob failure aborts before any metadata call. A metadata failure leaves
// the blob orphaned; that gap is logged and published, not healed.
func (c *UploadCoordinator) Create(ctx context.Context, s core.Session, p capture.Payload, loc *core.Location) (core.UploadRecord, error) {
	start := time.Now()
	defer metrics.ObserveDuration(log.OpCreate, start)

	if s.UserID == "" {
		return core.UploadRecord{}, ErrForbidden
	}
	if !c.checklist.Contains(p.ItemType) {
		return core.UploadRecord{}, fmt.Errorf("%w: %q", core.ErrUnknownItem, p.ItemType)
	}
	if len(p.Bytes) == 0 {
		return core.UploadRecord{}, capture.ErrNoBytesAvailable
	}
	if p.StorageKey == "" || p.ContentType == "" {
		return core.UploadRecord{}, fmt.Errorf("%w: storage key and content type are required", ErrInvalidPayload)
	}

	release, err := c.slots.acquire(s.UserID, p.ItemType, SlotUploading)
	if err != nil {
		metrics.UploadAttempt(metrics.OutcomeBusy, 0)
		return core.UploadRecord{}, err
	}
	defer release()

	fields := func() log.LogFields {
		return log.NewFields().WithUpload(s.UserID, string(p.ItemType), "", p.StorageKey)
	}

	if err := c.blobs.Put(ctx, p.StorageKey, p.Bytes, p.ContentType); err != nil {
		metrics.UploadAttempt(metrics.OutcomeBlobFailed, 0)
		c.logger.WarnContext(ctx, "Blob write failed, slot unchanged", fields().WithError(err).ToSlice()...)
		return core.UploadRecord{}, fmt.Errorf("%w: %w", ErrBlobWriteFailed, err)
	}

	rec := core.UploadRecord{
		OwnerID:     s.UserID,
		ItemType:    p.ItemType,
		StorageKey:  p.StorageKey,
		PublicURL:   c.blobs.PublicURL(p.StorageKey),
		ContentType: p.ContentType,
		Location:    loc,
		Timestamp:   c.now().Truncate(time.Millisecond),
	}

	saved, err := c.records.Insert(ctx, rec)
	if err != nil {
		metrics.UploadAttempt(metrics.OutcomeMetadataFailed, 0)
		metrics.ConsistencyGap(log.GapOrphanedBlob)
		c.logger.ErrorContext(ctx, "Metadata write failed after blob write, blob orphaned",
			fields().WithError(err).WithConsistencyGap(log.GapOrphanedBlob).ToSlice()...)
		c.publish(ctx, c.event(amqp.EventOrphanedBlob, rec))
		return core.UploadRecord{}, fmt.Errorf("%w: %w", ErrMetadataWriteFailed, err)
	}

	metrics.UploadAttempt(metrics.OutcomeOK, len(p.Bytes))
	c.logger.InfoContext(ctx, "Upload created",
		log.NewFields().WithUpload(s.UserID, string(p.ItemType), saved.ID, saved.StorageKey).
			WithOperation(log.OpCreate).ToSlice()...)
	c.publish(ctx, c.event(amqp.EventCreated, saved))

	if c.supersede {
		c.supersedePrior(context.WithoutCancel(ctx), saved)
	}
	return saved, nil
}

// supersedePrior removes older records in the new record's slot. It runs
// only after the new blob and row are stored, so a failed reupload leaves
// the previous upload in place instead of an empty slot. Failures are
// reported but never undo the create.
func (c *UploadCoordinator) supersedePrior(ctx context.Context, current core.UploadRecord) {
	bounds := c.calendar.BoundsOf(c.calendar.PeriodOf(current.Timestamp))
	q := metadata.Query{OwnerID: current.OwnerID, ItemType: current.ItemType}.InBounds(bounds)

	prior, err := c.records.List(ctx, q)
	if err != nil {
		c.supersedeFailed(ctx, current, err)
		return
	}
	for _, r := range prior {
		if r.ID == current.ID {
			continue
		}
		var err error
		if r.BlobKey() == current.StorageKey {
			// same-millisecond key collision: the blob now belongs to current
			err = c.records.Delete(ctx, r.OwnerID, r.ID)
		} else {
			err = c.remove(ctx, r)
		}
		if err != nil {
			c.supersedeFailed(ctx, r, err)
			continue
		}
		c.logger.InfoContext(ctx, "Prior upload superseded",
			log.NewFields().WithUpload(r.OwnerID, string(r.ItemType), r.ID, r.BlobKey()).
				WithOperation(log.OpSupersede).ToSlice()...)
		c.publish(ctx, c.event(amqp.EventSuperseded, r))
	}
}

func (c *UploadCoordinator) supersedeFailed(ctx context.Context, r core.UploadRecord, err error) {
	metrics.ConsistencyGap(log.GapSupersedeLeftover)
	c.logger.ErrorContext(ctx, "Could not remove prior upload for slot",
		log.NewFields().WithUpload(r.OwnerID, string(r.ItemType), r.ID, r.BlobKey()).
			WithOperation(log.OpSupersede).WithError(err).WithConsistencyGap(log.GapSupersedeLeftover).ToSlice()...)
	c.publish(ctx, c.event(amqp.EventSupersedeFailed, r))
}

// Delete removes the blob, then the metadata row. If the blob delete fails
// the row is kept. If the row delete fails the stores have diverged and the
// error is ErrMetadataDeleteFailed.
func (c *UploadCoordinator) Delete(ctx context.Context, s core.Session, rec core.UploadRecord) error {
	start := time.Now()
	defer metrics.ObserveDuration(log.OpDelete, start)

	if s.UserID == "" || s.UserID != rec.OwnerID {
		metrics.DeleteAttempt(metrics.OutcomeForbidden)
		return ErrForbidden
	}
	if rec.ID == "" || rec.BlobKey() == "" {
		return ErrInvalidRecord
	}

	release, err := c.slots.acquire(rec.OwnerID, rec.ItemType, SlotDeleting)
	if err != nil {
		metrics.DeleteAttempt(metrics.OutcomeBusy)
		return err
	}
	defer release()

	if err := c.remove(ctx, rec); err != nil {
		return err
	}
	metrics.DeleteAttempt(metrics.OutcomeOK)
	c.logger.InfoContext(ctx, "Upload deleted",
		log.NewFields().WithUpload(rec.OwnerID, string(rec.ItemType), rec.ID, rec.BlobKey()).
			WithOperation(log.OpDelete).ToSlice()...)
	c.publish(ctx, c.event(amqp.EventDeleted, rec))
	return nil
}

// DeleteByID loads the caller's record and deletes it.
func (c *UploadCoordinator) DeleteByID(ctx context.Context, s core.Session, id string) error {
	if s.UserID == "" {
		return ErrForbidden
	}
	rec, err := c.records.Get(ctx, s.UserID, id)
	if err != nil {
		if errors.Is(err, metadata.ErrNotFound) {
			metrics.DeleteAttempt(metrics.OutcomeNotFound)
		}
		return fmt.Errorf("load upload %s: %w", id, err)
	}
	return c.Delete(ctx, s, rec)
}

func (c *UploadCoordinator) remove(ctx context.Context, rec core.UploadRecord) error {
	key := rec.BlobKey()
	if err := c.blobs.Delete(ctx, key); err != nil {
		metrics.DeleteAttempt(metrics.OutcomeBlobFailed)
		c.logger.WarnContext(ctx, "Blob delete failed, metadata kept",
			log.NewFields().WithUpload(rec.OwnerID, string(rec.ItemType), rec.ID, key).WithError(err).ToSlice()...)
		return fmt.Errorf("%w: %w", ErrBlobDeleteFailed, err)
	}
	if err := c.records.Delete(ctx, rec.OwnerID, rec.ID); err != nil {
		metrics.DeleteAttempt(metrics.OutcomeMetadataFailed)
		metrics.ConsistencyGap(log.GapDanglingMetadata)
		c.logger.ErrorContext(ctx, "Metadata delete failed after blob delete, row points at a missing blob",
			log.NewFields().WithUpload(rec.OwnerID, string(rec.ItemType), rec.ID, key).
				WithError(err).WithConsistencyGap(log.GapDanglingMetadata).ToSlice()...)
		c.publish(ctx, c.event(amqp.EventMetadataDeleteFailed, rec))
		return fmt.Errorf("%w: %w", ErrMetadataDeleteFailed, err)
	}
	return nil
}

// List returns ownerID's records in the store's natural order, optionally
// limited to bounds.
func (c *UploadCoordinator) List(ctx context.Context, s core.Session, ownerID string, bounds *core.Bounds) ([]core.UploadRecord, error) {
	if !s.CanRead(ownerID) || ownerID == "" {
		return nil, ErrForbidden
	}
	q := metadata.Query{OwnerID: ownerID}
	if bounds != nil {
		q = q.InBounds(*bounds)
	}
	records, err := c.records.List(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	return records, nil
}

// Matrix rebuilds ownerID's completion matrix from the full upload history.
func (c *UploadCoordinator) Matrix(ctx context.Context, s core.Session, ownerID string) (core.CompletionMatrix, error) {
	records, err := c.List(ctx, s, ownerID, nil)
	if err != nil {
		return core.CompletionMatrix{}, err
	}
	return core.Group(c.calendar, records), nil
}

// Slots reports every checklist item's state for the period containing now.
func (c *UploadCoordinator) Slots(ctx context.Context, s core.Session, now time.Time) ([]Slot, error) {
	period := c.calendar.PeriodOf(now)
	bounds := c.calendar.BoundsOf(period)
	records, err := c.List(ctx, s, s.UserID, &bounds)
	if err != nil {
		return nil, err
	}
	m := core.Group(c.calendar, records)

	items := c.checklist.Items()
	out := make([]Slot, 0, len(items))
	for _, item := range items {
		slot := Slot{Item: item, State: SlotEmpty}
		if r, ok := m.Record(period, item); ok {
			slot.Record = &r
			slot.State = SlotPresent
		}
		if st, ok := c.slots.state(s.UserID, item); ok {
			slot.State = st
		}
		out = append(out, slot)
	}
	return out, nil
}

func (c *UploadCoordinator) event(t amqp.EventType, r core.UploadRecord) *amqp.UploadEvent {
	ev := amqp.NewUploadEvent(t, r.OwnerID, string(r.ItemType))
	ev.RecordID = r.ID
	ev.StorageKey = r.BlobKey()
	if !r.Timestamp.IsZero() {
		ev.Period = c.calendar.PeriodOf(r.Timestamp).Key()
	}
	return ev
}

func (c *UploadCoordinator) publish(ctx context.Context, ev *amqp.UploadEvent) {
	if c.events == nil {
		return
	}
	if err := c.events.PublishEvent(context.WithoutCancel(ctx), ev); err != nil {
		c.logger.WarnContext(ctx, "Failed to publish upload event",
			log.NewFields().WithUpload(ev.OwnerID, ev.ItemType, ev.RecordID, ev.StorageKey).
				WithOperation(log.OpPublish).WithError(err).ToSlice()...)
	}
}
