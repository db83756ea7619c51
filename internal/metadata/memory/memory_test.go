package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"homeinspect/internal/core"
	"homeinspect/internal/metadata"
)

func TestStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()
	at := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	a, err := s.Insert(ctx, core.UploadRecord{OwnerID: "u1", ItemType: "Home roof", Timestamp: at})
	if err != nil || a.ID == "" {
		t.Fatalf("insert: %+v %v", a, err)
	}
	b, _ := s.Insert(ctx, core.UploadRecord{OwnerID: "u1", ItemType: "Thermostat", Timestamp: at.AddDate(0, 0, 10)})
	_, _ = s.Insert(ctx, core.UploadRecord{OwnerID: "u2", ItemType: "Home roof", Timestamp: at})

	all, _ := s.List(ctx, metadata.Query{OwnerID: "u1"})
	if len(all) != 2 || all[0].ID != a.ID || all[1].ID != b.ID {
		t.Fatalf("expected insertion order for u1, got %+v", all)
	}

	cal := core.NewCalendar(time.UTC)
	first, _ := s.List(ctx, metadata.Query{OwnerID: "u1"}.InBounds(cal.BoundsOf(cal.PeriodOf(at))))
	if len(first) != 1 || first[0].ID != a.ID {
		t.Fatalf("expected only the first-half record, got %+v", first)
	}

	if _, err := s.Get(ctx, "u2", a.ID); !errors.Is(err, metadata.ErrNotFound) {
		t.Fatalf("records must be scoped by owner, got %v", err)
	}
	if err := s.Delete(ctx, "u1", a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete(ctx, "u1", a.ID); !errors.Is(err, metadata.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
	if _, err := s.Insert(ctx, core.UploadRecord{}); err == nil {
		t.Fatal("expected error without owner")
	}
}
