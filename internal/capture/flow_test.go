package capture

import (
	"context"
	"errors"
	"testing"

	"homeinspect/internal/core"
)

type fixedPrompter struct{ choice Choice }

func (p fixedPrompter) ChooseSource(context.Context, core.ChecklistItem) (Choice, error) {
	return p.choice, nil
}

type fakeDevice struct {
	camera    Result
	cameraErr error
	loc       *core.Location
	locErr    error
	calls     int
}

func (d *fakeDevice) Camera(context.Context) (Result, error) {
	d.calls++
	return d.camera, d.cameraErr
}

func (d *fakeDevice) Gallery(context.Context) (Result, error) {
	d.calls++
	return Result{Source: GalleryPhoto{Photo{Bytes: []byte{1}}}}, nil
}

func (d *fakeDevice) PickDocument(context.Context) (Result, error) {
	d.calls++
	return Result{Cancelled: true}, nil
}

func (d *fakeDevice) Locate(context.Context) (*core.Location, error) {
	return d.loc, d.locErr
}

func TestFlowRun(t *testing.T) {
	n := NewNormalizer(nil, fixedClock)
	photo := Result{Source: CameraPhoto{Photo{Bytes: []byte{1, 2}, FileName: "a.jpg"}}}

	t.Run("cancel at prompt short-circuits", func(t *testing.T) {
		dev := &fakeDevice{}
		_, err := NewFlow(fixedPrompter{ChoiceCancel}, dev, n).Run(context.Background(), "Thermostat")
		if !errors.Is(err, ErrUserCancelled) {
			t.Fatalf("expected ErrUserCancelled, got %v", err)
		}
		if dev.calls != 0 {
			t.Fatalf("device should not be used after cancel, got %d calls", dev.calls)
		}
	})

	t.Run("cancel in picker", func(t *testing.T) {
		_, err := NewFlow(fixedPrompter{ChoiceFiles}, &fakeDevice{}, n).Run(context.Background(), "Thermostat")
		if !errors.Is(err, ErrUserCancelled) {
			t.Fatalf("expected ErrUserCancelled, got %v", err)
		}
	})

	t.Run("permission denied", func(t *testing.T) {
		dev := &fakeDevice{cameraErr: ErrPermissionDenied}
		_, err := NewFlow(fixedPrompter{ChoiceCamera}, dev, n).Run(context.Background(), "Thermostat")
		if !errors.Is(err, ErrPermissionDenied) {
			t.Fatalf("expected ErrPermissionDenied, got %v", err)
		}
	})

	t.Run("location denied still uploads", func(t *testing.T) {
		dev := &fakeDevice{camera: photo, locErr: ErrPermissionDenied}
		c, err := NewFlow(fixedPrompter{ChoiceCamera}, dev, n).Run(context.Background(), "Thermostat")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if c.Location != nil {
			t.Fatalf("expected nil location, got %+v", c.Location)
		}
		if c.Payload.StorageKey != "Thermostat-1710072000000-a.jpg" {
			t.Fatalf("unexpected key %q", c.Payload.StorageKey)
		}
	})

	t.Run("location attached", func(t *testing.T) {
		dev := &fakeDevice{camera: photo, loc: &core.Location{Latitude: 45.1, Longitude: 9.2}}
		c, err := NewFlow(fixedPrompter{ChoiceCamera}, dev, n).Run(context.Background(), "Thermostat")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if c.Location == nil || c.Location.Latitude != 45.1 {
			t.Fatalf("unexpected location %+v", c.Location)
		}
	})
}
