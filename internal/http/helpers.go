package http

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"homeinspect/internal/core"
	"homeinspect/internal/identity"
	"homeinspect/internal/log"
	"homeinspect/internal/metadata"
	"homeinspect/internal/services"
)

type errorBody struct {
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err to a status code and a message the user can act on.
// Cancellations produce 499 with no message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := errorResponse(err)
	logger := log.FromContext(r.Context())
	if status >= 500 {
		logger.ErrorContext(r.Context(), "Request failed", log.FieldError, err.Error(), log.FieldErrorKind, body.Kind)
	} else {
		logger.DebugContext(r.Context(), "Request rejected", log.FieldError, err.Error(), log.FieldErrorKind, body.Kind)
	}
	writeJSON(w, status, body)
}

func errorResponse(err error) (int, errorBody) {
	switch {
	case errors.Is(err, identity.ErrInvalidCredentials), errors.Is(err, identity.ErrNoSession):
		return http.StatusUnauthorized, errorBody{Error: err.Error(), Kind: "unauthorized", Message: "Sign in to continue."}
	case errors.Is(err, identity.ErrEmailTaken):
		return http.StatusConflict, errorBody{Error: err.Error(), Kind: "conflict", Message: "That email is already registered."}
	case errors.Is(err, identity.ErrInvalidSignup):
		return http.StatusBadRequest, errorBody{Error: err.Error(), Kind: string(services.KindInvalid), Message: "Check the email and password and try again."}
	}

	kind := services.Classify(err)
	body := errorBody{Error: err.Error(), Kind: string(kind), Message: services.UserMessage(kind)}
	switch kind {
	case services.KindCancelled:
		return 499, body
	case services.KindPermission, services.KindForbidden:
		return http.StatusForbidden, body
	case services.KindInvalid:
		return http.StatusBadRequest, body
	case services.KindNotFound:
		return http.StatusNotFound, body
	case services.KindBusy:
		return http.StatusConflict, body
	case services.KindTransient:
		return http.StatusServiceUnavailable, body
	case services.KindPartialConsistency:
		return http.StatusBadGateway, body
	default:
		return http.StatusInternalServerError, body
	}
}

// bearerToken extracts the token from "Authorization: Bearer <token>".
func bearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}

// requestID reuses an inbound X-Request-ID or generates one.
func requestID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get("X-Request-ID")); id != "" && len(id) <= 64 {
		return id
	}
	return generateRequestID()
}

// generateRequestID creates a unique request ID for tracing.
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

type locationJSON struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type recordJSON struct {
	ID          string        `json:"id"`
	OwnerID     string        `json:"owner_id"`
	ItemType    string        `json:"item_type"`
	StorageKey  string        `json:"storage_key"`
	PublicURL   string        `json:"public_url"`
	ContentType string        `json:"content_type"`
	Location    *locationJSON `json:"location"`
	Timestamp   string        `json:"timestamp"`
	Period      string        `json:"period"`
}

func toRecordJSON(cal core.Calendar, r core.UploadRecord) recordJSON {
	out := recordJSON{
		ID:          r.ID,
		OwnerID:     r.OwnerID,
		ItemType:    string(r.ItemType),
		StorageKey:  r.StorageKey,
		PublicURL:   r.PublicURL,
		ContentType: r.ContentType,
		Timestamp:   r.Timestamp.UTC().Format(metadata.TimestampLayout),
		Period:      cal.PeriodOf(r.Timestamp).Key(),
	}
	if r.Location != nil {
		out.Location = &locationJSON{Latitude: r.Location.Latitude, Longitude: r.Location.Longitude}
	}
	return out
}

type cellJSON struct {
	Item   string      `json:"item"`
	Record *recordJSON `json:"record"`
}

type rowJSON struct {
	Period string     `json:"period"`
	Label  string     `json:"label"`
	Cells  []cellJSON `json:"cells"`
}

func toRowsJSON(cal core.Calendar, m core.CompletionMatrix, checklist core.Checklist) []rowJSON {
	rows := m.Rows(checklist)
	out := make([]rowJSON, 0, len(rows))
	for _, row := range rows {
		rj := rowJSON{Period: row.Period.Key(), Label: row.Label, Cells: make([]cellJSON, 0, len(row.Cells))}
		for _, c := range row.Cells {
			cj := cellJSON{Item: string(c.Item)}
			if c.Record != nil {
				rec := toRecordJSON(cal, *c.Record)
				cj.Record = &rec
			}
			rj.Cells = append(rj.Cells, cj)
		}
		out = append(out, rj)
	}
	return out
}

type slotJSON struct {
	Item   string      `json:"item"`
	State  string      `json:"state"`
	Record *recordJSON `json:"record,omitempty"`
}

type sessionJSON struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	Token  string `json:"token,omitempty"`
}

func toSessionJSON(s core.Session) sessionJSON {
	return sessionJSON{UserID: s.UserID, Role: string(s.Role), Token: s.Token}
}
