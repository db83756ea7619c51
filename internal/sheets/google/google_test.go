package google

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"homeinspect/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), " ", "", Credentials{JSON: "{}"})
	if err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	_, err := New(context.Background(), "sheet-id", "", Credentials{})
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err = New(context.Background(), "sheet-id", "", Credentials{File: "/does/not/exist.json"})
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSheetName(t *testing.T) {
	tests := []struct {
		prefix, owner, want string
	}{
		{"Inspection", "user-1", "Inspection user-1"},
		{"Inspection", "a'b!c", "Inspection abc"},
		{"", "user-1", "user-1"},
	}
	for _, tt := range tests {
		if got := sheetName(tt.prefix, tt.owner); got != tt.want {
			t.Errorf("sheetName(%q, %q) = %q, want %q", tt.prefix, tt.owner, got, tt.want)
		}
	}
	if got := sheetName("p", strings.Repeat("x", 200)); len(got) != 100 {
		t.Errorf("expected truncation to 100, got %d", len(got))
	}
}

func TestColumnName(t *testing.T) {
	for n, want := range map[int]string{1: "A", 6: "F", 26: "Z", 27: "AA", 52: "AZ", 703: "AAA"} {
		if got := columnName(n); got != want {
			t.Errorf("columnName(%d) = %q, want %q", n, got, want)
		}
	}
}

// fakeSheetsAPI records the calls the exporter makes.
type fakeSheetsAPI struct {
	mu       sync.Mutex
	calls    []string
	existing []string
	updated  [][]any
}

func (f *fakeSheetsAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, r.Method+" "+r.URL.Path)
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/spreadsheets/sheet-id"):
		var sheetsList []map[string]any
		for _, title := range f.existing {
			sheetsList = append(sheetsList, map[string]any{"properties": map[string]any{"title": title}})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"sheets": sheetsList})
	case strings.HasSuffix(r.URL.Path, ":batchUpdate"):
		_ = json.NewEncoder(w).Encode(map[string]any{"spreadsheetId": "sheet-id"})
	case strings.HasSuffix(r.URL.Path, ":clear"):
		_ = json.NewEncoder(w).Encode(map[string]any{"spreadsheetId": "sheet-id"})
	case r.Method == http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		var vr struct {
			Values [][]any `json:"values"`
		}
		_ = json.Unmarshal(body, &vr)
		f.updated = vr.Values
		_ = json.NewEncoder(w).Encode(map[string]any{"spreadsheetId": "sheet-id"})
	default:
		http.Error(w, "unexpected call", http.StatusNotFound)
	}
}

func newTestClient(t *testing.T, api *fakeSheetsAPI) *Client {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()),
		goption.WithoutAuthentication())
	if err != nil {
		t.Fatalf("create service: %v", err)
	}
	return NewWithService(svc, "sheet-id", "Inspection")
}

func TestExport(t *testing.T) {
	api := &fakeSheetsAPI{}
	c := newTestClient(t, api)

	report := sheets.Report{
		OwnerID:     "user-1",
		GeneratedAt: time.Now(),
		Items:       nil,
		Rows:        []sheets.ReportRow{{PeriodKey: "2024-03-H1", Label: "March 2024 (1st - 15th)"}},
	}
	ref, err := c.Export(context.Background(), report)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if ref != "'Inspection user-1'!A1:C2" {
		t.Fatalf("ref = %q", ref)
	}

	api.mu.Lock()
	defer api.mu.Unlock()
	if len(api.calls) != 4 {
		t.Fatalf("expected get, add sheet, clear, update; got %v", api.calls)
	}
	if !strings.HasSuffix(api.calls[1], ":batchUpdate") {
		t.Fatalf("missing tab should be created, calls %v", api.calls)
	}
	if len(api.updated) != 2 || api.updated[1][0] != "March 2024 (1st - 15th)" {
		t.Fatalf("unexpected values %v", api.updated)
	}
}

func TestExport_ExistingSheetSkipsCreate(t *testing.T) {
	api := &fakeSheetsAPI{existing: []string{"Inspection user-1"}}
	c := newTestClient(t, api)

	if _, err := c.Export(context.Background(), sheets.Report{OwnerID: "user-1"}); err != nil {
		t.Fatalf("Export: %v", err)
	}
	for _, call := range api.calls {
		if strings.HasSuffix(call, ":batchUpdate") {
			t.Fatalf("existing tab must not be re-created: %v", api.calls)
		}
	}
}

func TestExport_Uninitialized(t *testing.T) {
	c := &Client{spreadsheetID: "x"}
	if _, err := c.Export(context.Background(), sheets.Report{OwnerID: "u"}); err == nil {
		t.Fatal("expected error without service")
	}
}
