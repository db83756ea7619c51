package capture

import (
	"context"
	"fmt"

	"homeinspect/internal/core"
)

// Prompter asks the user where an upload should come from.
type Prompter interface {
	ChooseSource(ctx context.Context, item core.ChecklistItem) (Choice, error)
}

// Device is the capture surface. Camera and Gallery return
// ErrPermissionDenied when access is declined. Locate returns an error or a
// nil location when no position is available.
type Device interface {
	Camera(ctx context.Context) (Result, error)
	Gallery(ctx context.Context) (Result, error)
	PickDocument(ctx context.Context) (Result, error)
	Locate(ctx context.Context) (*core.Location, error)
}

// Capture is a normalized payload plus the optional capture position.
type Capture struct {
	Payload  Payload
	Location *core.Location
}

// Flow runs choice, capture, location and normalization in order.
type Flow struct {
	prompter   Prompter
	device     Device
	normalizer *Normalizer
}

func NewFlow(prompter Prompter, device Device, normalizer *Normalizer) *Flow {
	return &Flow{prompter: prompter, device: device, normalizer: normalizer}
}

// Run returns ErrUserCancelled when the user backs out at any step.
func (f *Flow) Run(ctx context.Context, item core.ChecklistItem) (Capture, error) {
	choice, err := f.prompter.ChooseSource(ctx, item)
	if err != nil {
		return Capture{}, fmt.Errorf("choose source: %w", err)
	}

	var res Result
	switch choice {
	case ChoiceCancel:
		return Capture{}, ErrUserCancelled
	case ChoiceCamera:
		res, err = f.device.Camera(ctx)
	case ChoiceGallery:
		res, err = f.device.Gallery(ctx)
	case ChoiceFiles:
		res, err = f.device.PickDocument(ctx)
	default:
		return Capture{}, fmt.Errorf("%w: choice %d", ErrUnsupportedSource, choice)
	}
	if err != nil {
		return Capture{}, fmt.Errorf("capture from %s: %w", choice, err)
	}
	if res.Cancelled {
		return Capture{}, ErrUserCancelled
	}

	// A denied or unavailable position leaves the record without coordinates.
	loc, err := f.device.Locate(ctx)
	if err != nil {
		loc = nil
	}

	payload, err := f.normalizer.Normalize(ctx, res, item)
	if err != nil {
		return Capture{}, err
	}
	return Capture{Payload: payload, Location: loc}, nil
}
