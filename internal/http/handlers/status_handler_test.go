package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/tbourn/go-flight-scraper/internal/domain"
)

func TestStatus_BeforeFirstWrite(t *testing.T) {
	svc := &fakeFlightSvc{ttl: 10 * time.Minute}
	w := get(newTestRouter(svc), "/status")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body["cache_backend"] != "memory" || body["cache_ttl_seconds"] != float64(600) {
		t.Fatalf("unexpected body %v", body)
	}
	for _, k := range []string{"last_write_at", "last_write_ago", "last_write_key"} {
		v, present := body[k]
		if !present || v != nil {
			t.Fatalf("%s should be present and null, got %v", k, v)
		}
	}
}

func TestStatus_AfterWrite(t *testing.T) {
	svc := &fakeFlightSvc{
		ttl:    time.Minute,
		marked: true,
		mark:   domain.WriteMark{Key: "abc123", At: testNow.Add(-3 * time.Minute)},
	}
	w := get(newTestRouter(svc), "/status")

	var body StatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body.LastWriteKey == nil || *body.LastWriteKey != "abc123" {
		t.Fatalf("key = %v", body.LastWriteKey)
	}
	if body.LastWriteAt == nil || !body.LastWriteAt.Equal(svc.mark.At) {
		t.Fatalf("at = %v", body.LastWriteAt)
	}
	if body.LastWriteAgo == nil || *body.LastWriteAgo != "3 minutes ago" {
		t.Fatalf("ago = %v", body.LastWriteAgo)
	}
}

func TestStatus_StoreErrorIs500(t *testing.T) {
	svc := &fakeFlightSvc{markErr: errors.New("leveldb: closed")}
	w := get(newTestRouter(svc), "/status")
	if w.Code != http.StatusInternalServerError || decodeErr(t, w).Code != ErrCodeInternal {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
}
