// Package capture turns what a device produced (a camera photo, a gallery
// photo or a picked document) into a normalized upload payload.
package capture

import (
	"errors"
)

var (
	// ErrUserCancelled is a normal outcome: the user dismissed the prompt.
	// Callers stop the upload flow without showing an error.
	ErrUserCancelled = errors.New("capture cancelled by user")
	// ErrPermissionDenied means the device declined camera or gallery access.
	ErrPermissionDenied = errors.New("capture permission denied")
	// ErrNoBytesAvailable means the source produced neither inline data nor a readable URI.
	ErrNoBytesAvailable = errors.New("no bytes available from capture source")
	// ErrUnsupportedSource is returned for a nil or unknown source variant.
	ErrUnsupportedSource = errors.New("unsupported capture source")
)

// Choice is the answer to "where should the upload come from".
type Choice int

const (
	ChoiceCancel Choice = iota
	ChoiceCamera
	ChoiceGallery
	ChoiceFiles
)

func (c Choice) String() string {
	switch c {
	case ChoiceCamera:
		return "camera"
	case ChoiceGallery:
		return "gallery"
	case ChoiceFiles:
		return "files"
	default:
		return "cancel"
	}
}

// ParseChoice maps a user supplied source name to a Choice. Unknown names
// map to ChoiceCancel and ok=false.
func ParseChoice(s string) (Choice, bool) {
	switch s {
	case "camera":
		return ChoiceCamera, true
	case "gallery":
		return ChoiceGallery, true
	case "files", "document":
		return ChoiceFiles, true
	case "cancel":
		return ChoiceCancel, true
	default:
		return ChoiceCancel, false
	}
}

// Source is one of CameraPhoto, GalleryPhoto or Document.
type Source interface {
	isSource()
}

// Photo is the data a photo source can carry. Bytes and Base64 are inline
// data; URI points at the captured file.
type Photo struct {
	URI      string
	Base64   string
	Bytes    []byte
	FileName string // overrides the name derived from URI
}

// CameraPhoto is a photo taken with the camera.
type CameraPhoto struct{ Photo }

// GalleryPhoto is a photo picked from the device library.
type GalleryPhoto struct{ Photo }

// Document is a picked file. Its bytes are always read from URI.
type Document struct {
	URI      string
	FileName string
}

func (CameraPhoto) isSource()  {}
func (GalleryPhoto) isSource() {}
func (Document) isSource()     {}

// Result is what the device capture surface returns.
type Result struct {
	Source    Source
	Cancelled bool
}
