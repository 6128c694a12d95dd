package httpadapter

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStatusRecorderTracksStatusAndBytes(t *testing.T) {
	rec := httptest.NewRecorder()
	recorder := &statusRecorder{ResponseWriter: rec, statusCode: http.StatusOK}

	recorder.WriteHeader(http.StatusCreated)
	if _, err := recorder.Write([]byte(`{"id":"d-1"}`)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	if recorder.statusCode != http.StatusCreated || rec.Code != http.StatusCreated {
		t.Fatalf("status = %d/%d, want %d", recorder.statusCode, rec.Code, http.StatusCreated)
	}
	if recorder.bytesWritten != len(`{"id":"d-1"}`) {
		t.Fatalf("bytesWritten = %d", recorder.bytesWritten)
	}
	var w http.ResponseWriter = recorder
	if _, ok := w.(http.Hijacker); ok {
		t.Fatal("recorder must not advertise connection hijacking")
	}
}
