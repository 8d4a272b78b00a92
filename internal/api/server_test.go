package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/pbaille/attend/internal/store"
	"github.com/pbaille/attend/internal/tracker"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "attend.db"))
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	tr, err := tracker.Open(s)
	if err != nil {
		t.Fatalf("tracker.Open: %v", err)
	}
	srv := httptest.NewServer(New(tr, "").Handler())
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(data)
	} else {
		rd = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	var out map[string]any
	json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func upload(t *testing.T, url, filename, content string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte(content))
	mw.Close()

	resp, err := http.Post(url, mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	resp.Body.Close()
	return resp
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	resp, body := do(t, "GET", srv.URL+"/health", nil)
	if resp.StatusCode != http.StatusOK || body["status"] != "ok" {
		t.Errorf("health = %d %v", resp.StatusCode, body)
	}
}

func TestImportAndStats(t *testing.T) {
	srv := newTestServer(t)

	resp := upload(t, srv.URL+"/timetable/import", "week.csv", "Time,Monday\n9:00-10:00 AM,CS-101 Intro\n")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("import status = %d", resp.StatusCode)
	}

	resp, body := do(t, "GET", srv.URL+"/timetable/slots", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("slots status = %d", resp.StatusCode)
	}
	slots, _ := body["slots"].([]any)
	if len(slots) != 1 || slots[0] != "09:00-10:00" {
		t.Errorf("slots = %v", body["slots"])
	}

	for date, status := range map[string]string{"2024-01-01": "present", "2024-01-02": "absent"} {
		resp, _ := do(t, "POST", srv.URL+"/attendance", MarkRequest{Key: "Monday-09:00-10:00", Date: date, Status: status})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("mark %s status = %d", date, resp.StatusCode)
		}
	}

	resp, body = do(t, "GET", srv.URL+"/stats", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stats status = %d", resp.StatusCode)
	}
	overall := body["overall"].(map[string]any)
	if overall["total_classes"] != float64(2) || overall["percentage"] != float64(50) {
		t.Errorf("overall = %v", overall)
	}
	if body["below_target"] != true || body["display"] != "50.0%" {
		t.Errorf("stats = %v", body)
	}
	subjects := body["subjects"].([]any)
	sub := subjects[0].(map[string]any)
	if sub["code"] != "CS-101" || sub["percentage"] != "50.00" || sub["below_target"] != true {
		t.Errorf("subject = %v", sub)
	}

	resp, body = do(t, "GET", srv.URL+"/schedule?date=2024-01-01", nil)
	if resp.StatusCode != http.StatusOK || body["day"] != "Monday" {
		t.Fatalf("schedule = %d %v", resp.StatusCode, body)
	}
	classes := body["classes"].([]any)
	if len(classes) != 1 || classes[0].(map[string]any)["status"] != "present" {
		t.Errorf("schedule classes = %v", classes)
	}
}

func TestImportRejected(t *testing.T) {
	srv := newTestServer(t)

	resp := upload(t, srv.URL+"/timetable/import", "week.csv", "Period,Monday\n1,CS-101 Intro\n")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("import without time column = %d, want 400", resp.StatusCode)
	}
	resp = upload(t, srv.URL+"/timetable/import", "week.xlsx", "not a workbook")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unreadable import = %d, want 400", resp.StatusCode)
	}
}

func TestAddClassConflict(t *testing.T) {
	srv := newTestServer(t)

	add := map[string]any{"code": "CS-101", "name": "Intro", "day": "Monday", "start_time": "09:00", "end_time": "10:00"}
	if resp, _ := do(t, "POST", srv.URL+"/timetable/classes", add); resp.StatusCode != http.StatusCreated {
		t.Fatalf("add status = %d", resp.StatusCode)
	}

	clash := map[string]any{"code": "MA-110", "day": "Monday", "start_time": "09:00", "end_time": "10:00"}
	resp, body := do(t, "POST", srv.URL+"/timetable/classes", clash)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("clash status = %d, want 409", resp.StatusCode)
	}
	if existing := body["existing"].(map[string]any); existing["code"] != "CS-101" {
		t.Errorf("existing = %v", existing)
	}

	clash["overwrite"] = true
	resp, body = do(t, "POST", srv.URL+"/timetable/classes", clash)
	if resp.StatusCode != http.StatusCreated || body["code"] != "MA-110" {
		t.Errorf("overwrite = %d %v", resp.StatusCode, body)
	}

	missing := map[string]any{"code": "CS-101", "day": "Monday", "start_time": "09:00"}
	if resp, _ := do(t, "POST", srv.URL+"/timetable/classes", missing); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing end time = %d, want 400", resp.StatusCode)
	}
}

func TestRemoveAndDestructiveConfirmation(t *testing.T) {
	srv := newTestServer(t)

	add := map[string]any{"code": "CS-101", "day": "Monday", "start_time": "09:00", "end_time": "10:00"}
	do(t, "POST", srv.URL+"/timetable/classes", add)

	resp, body := do(t, "DELETE", srv.URL+"/timetable/classes/Sunday-09:00-10:00", nil)
	if resp.StatusCode != http.StatusOK || body["removed"] != false {
		t.Errorf("remove absent = %d %v", resp.StatusCode, body)
	}
	if resp, _ := do(t, "DELETE", srv.URL+"/timetable/classes/Funday-09:00", nil); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("remove bad key = %d, want 400", resp.StatusCode)
	}

	if resp, _ := do(t, "DELETE", srv.URL+"/timetable", nil); resp.StatusCode != http.StatusPreconditionRequired {
		t.Errorf("clear without confirm = %d, want 428", resp.StatusCode)
	}
	_, body = do(t, "GET", srv.URL+"/timetable", nil)
	if classes := body["classes"].([]any); len(classes) != 1 {
		t.Errorf("classes after unconfirmed clear = %v", classes)
	}

	if resp, _ := do(t, "DELETE", srv.URL+"/timetable?confirm=true", nil); resp.StatusCode != http.StatusOK {
		t.Errorf("confirmed clear = %d", resp.StatusCode)
	}
	_, body = do(t, "GET", srv.URL+"/timetable", nil)
	if classes := body["classes"].([]any); len(classes) != 0 {
		t.Errorf("classes after clear = %v", classes)
	}

	if resp, _ := do(t, "DELETE", srv.URL+"/attendance", nil); resp.StatusCode != http.StatusPreconditionRequired {
		t.Errorf("reset without confirm = %d, want 428", resp.StatusCode)
	}
	if resp, _ := do(t, "DELETE", srv.URL+"/attendance?confirm=1", nil); resp.StatusCode != http.StatusOK {
		t.Errorf("confirmed reset = %d", resp.StatusCode)
	}
}

func TestTarget(t *testing.T) {
	srv := newTestServer(t)

	_, body := do(t, "GET", srv.URL+"/target", nil)
	if body["target"] != float64(75) {
		t.Errorf("default target = %v", body["target"])
	}

	resp, body := do(t, "PUT", srv.URL+"/target", map[string]any{"target": 60})
	if resp.StatusCode != http.StatusOK || body["target"] != float64(60) {
		t.Errorf("set target = %d %v", resp.StatusCode, body)
	}
	if resp, _ := do(t, "PUT", srv.URL+"/target", map[string]any{"target": "high"}); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("non-integer target = %d, want 400", resp.StatusCode)
	}
}

func TestMarkRejected(t *testing.T) {
	srv := newTestServer(t)

	cases := []MarkRequest{
		{Key: "Monday-09:00-10:00", Date: "2024-13-01", Status: "present"},
		{Key: "Monday-09:00-10:00", Date: "2024-01-01", Status: "late"},
		{Key: "nonsense", Date: "2024-01-01", Status: "present"},
	}
	for _, c := range cases {
		if resp, _ := do(t, "POST", srv.URL+"/attendance", c); resp.StatusCode != http.StatusBadRequest {
			t.Errorf("mark %+v = %d, want 400", c, resp.StatusCode)
		}
	}

	resp, body := do(t, "GET", srv.URL+"/stats", nil)
	if resp.StatusCode != http.StatusOK || body["display"] != "N/A" {
		t.Errorf("stats after rejected marks = %v", body)
	}
}
