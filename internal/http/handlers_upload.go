package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"homeinspect/internal/capture"
	"homeinspect/internal/core"
	"homeinspect/internal/log"
	"homeinspect/internal/services"
)

func (s *Server) handleChecklist(w http.ResponseWriter, _ *http.Request) {
	items := s.uploads.Checklist().Items()
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = string(item)
	}
	writeJSON(w, http.StatusOK, map[string][]string{"items": out})
}

func (s *Server) handleSlots(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFrom(r.Context())
	now := s.now()
	slots, err := s.uploads.Slots(r.Context(), sess, now)
	if err != nil {
		writeError(w, r, err)
		return
	}
	cal := s.uploads.Calendar()
	out := make([]slotJSON, 0, len(slots))
	for _, slot := range slots {
		sj := slotJSON{Item: string(slot.Item), State: string(slot.State)}
		if slot.Record != nil {
			rec := toRecordJSON(cal, *slot.Record)
			sj.Record = &rec
		}
		out = append(out, sj)
	}
	period := cal.PeriodOf(now)
	writeJSON(w, http.StatusOK, map[string]any{
		"period": period.Key(),
		"label":  period.Label(),
		"slots":  out,
	})
}

// handleCreateUpload accepts a multipart form with item_type, source and
// either a file part or a base64 field.
func (s *Server) handleCreateUpload(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFrom(r.Context())
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: err.Error(), Kind: string(services.KindInvalid), Message: "The file is too large."})
			return
		}
		writeError(w, r, fmt.Errorf("%w: %w", services.ErrInvalidPayload, err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	item, err := s.uploads.Checklist().Parse(r.FormValue("item_type"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := s.captureResult(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	loc, err := parseLocation(r.FormValue("latitude"), r.FormValue("longitude"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	staged := capture.NewStagedFiles()
	if data, name, ok, err := formFile(r); err != nil {
		writeError(w, r, err)
		return
	} else if ok {
		uri := staged.Stage(name, data)
		res = withURI(res, uri)
	}

	payload, err := s.normalizer.WithReader(staged).Normalize(r.Context(), res, item)
	if err != nil {
		writeError(w, r, err)
		return
	}

	rec, err := s.uploads.Create(r.Context(), sess, payload, loc)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.matrices.invalidate(sess.UserID)
	writeJSON(w, http.StatusCreated, toRecordJSON(s.uploads.Calendar(), rec))
}

// captureResult builds the capture source named by the "source" field.
// The file part, if any, is attached later through withURI.
func (s *Server) captureResult(r *http.Request) (capture.Result, error) {
	choice, ok := capture.ParseChoice(strings.ToLower(strings.TrimSpace(r.FormValue("source"))))
	if !ok {
		return capture.Result{}, fmt.Errorf("%w: source %q", capture.ErrUnsupportedSource, r.FormValue("source"))
	}
	fileName := strings.TrimSpace(r.FormValue("filename"))
	photo := capture.Photo{Base64: r.FormValue("base64"), FileName: fileName}

	switch choice {
	case capture.ChoiceCamera:
		return capture.Result{Source: capture.CameraPhoto{Photo: photo}}, nil
	case capture.ChoiceGallery:
		return capture.Result{Source: capture.GalleryPhoto{Photo: photo}}, nil
	case capture.ChoiceFiles:
		return capture.Result{Source: capture.Document{FileName: fileName}}, nil
	default:
		return capture.Result{Cancelled: true}, nil
	}
}

func withURI(res capture.Result, uri string) capture.Result {
	switch src := res.Source.(type) {
	case capture.CameraPhoto:
		src.URI = uri
		res.Source = src
	case capture.GalleryPhoto:
		src.URI = uri
		res.Source = src
	case capture.Document:
		src.URI = uri
		res.Source = src
	}
	return res
}

// formFile reads the optional "file" part.
func formFile(r *http.Request) ([]byte, string, bool, error) {
	f, hdr, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, "", false, nil
	}
	if err != nil {
		return nil, "", false, fmt.Errorf("%w: %w", services.ErrInvalidPayload, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, "", false, fmt.Errorf("%w: read file: %w", services.ErrInvalidPayload, err)
	}
	return data, hdr.Filename, true, nil
}

// parseLocation returns nil when either coordinate is missing; a denied
// location is not an error.
func parseLocation(lat, lon string) (*core.Location, error) {
	lat, lon = strings.TrimSpace(lat), strings.TrimSpace(lon)
	if lat == "" || lon == "" {
		return nil, nil
	}
	la, err := strconv.ParseFloat(lat, 64)
	if err != nil || la < -90 || la > 90 {
		return nil, fmt.Errorf("%w: latitude %q", services.ErrInvalidPayload, lat)
	}
	lo, err := strconv.ParseFloat(lon, 64)
	if err != nil || lo < -180 || lo > 180 {
		return nil, fmt.Errorf("%w: longitude %q", services.ErrInvalidPayload, lon)
	}
	return &core.Location{Latitude: la, Longitude: lo}, nil
}

func (s *Server) handleDeleteUpload(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFrom(r.Context())
	id := chi.URLParam(r, "id")
	err := s.uploads.DeleteByID(r.Context(), sess, id)
	if err == nil || errors.Is(err, services.ErrMetadataDeleteFailed) {
		s.matrices.invalidate(sess.UserID)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Upload deleted", log.FieldRecordID, id)
	w.WriteHeader(http.StatusNoContent)
}

// handleListUploads lists the caller's uploads, or another owner's for
// agents, optionally limited to one period.
func (s *Server) handleListUploads(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFrom(r.Context())
	owner := strings.TrimSpace(r.URL.Query().Get("owner"))
	if owner == "" {
		owner = sess.UserID
	}

	cal := s.uploads.Calendar()
	var bounds *core.Bounds
	if key := strings.TrimSpace(r.URL.Query().Get("period")); key != "" {
		p, err := core.ParsePeriodKey(key)
		if err != nil {
			writeError(w, r, err)
			return
		}
		b := cal.BoundsOf(p)
		bounds = &b
	}

	records, err := s.uploads.List(r.Context(), sess, owner, bounds)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]recordJSON, 0, len(records))
	for _, rec := range records {
		out = append(out, toRecordJSON(cal, rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"uploads": out})
}

func (s *Server) handleMatrix(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFrom(r.Context())
	s.writeMatrix(w, r, sess, sess.UserID)
}

func (s *Server) handleOwnerMatrix(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFrom(r.Context())
	s.writeMatrix(w, r, sess, chi.URLParam(r, "ownerID"))
}

func (s *Server) writeMatrix(w http.ResponseWriter, r *http.Request, sess core.Session, owner string) {
	if owner == "" || !sess.CanRead(owner) {
		writeError(w, r, services.ErrForbidden)
		return
	}
	gen := s.matrices.generation(owner)
	m, ok := s.matrices.get(owner)
	if !ok {
		var err error
		m, err = s.uploads.Matrix(r.Context(), sess, owner)
		if err != nil {
			writeError(w, r, err)
			return
		}
		s.matrices.set(owner, gen, m)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"owner_id": owner,
		"rows":     toRowsJSON(s.uploads.Calendar(), m, s.uploads.Checklist()),
	})
}
