package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func runRequestID(t *testing.T, inbound string) (header, inContext string) {
	t.Helper()

	h := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inContext = GetRequestID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	if inbound != "" {
		req.Header.Set(RequestIDHeader, inbound)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	return w.Header().Get(RequestIDHeader), inContext
}

func TestRequestIDGeneratesUUID(t *testing.T) {
	header, inContext := runRequestID(t, "")

	if header == "" || inContext == "" {
		t.Fatalf("header = %q, context = %q; both must carry the ID", header, inContext)
	}
	if header != inContext {
		t.Errorf("response header %q and context value %q disagree", header, inContext)
	}
	if _, err := uuid.Parse(inContext); err != nil {
		t.Errorf("generated ID %q is not a UUID: %v", inContext, err)
	}
}

func TestRequestIDKeepsInboundValue(t *testing.T) {
	header, inContext := runRequestID(t, "upstream-77")

	if inContext != "upstream-77" {
		t.Errorf("context ID = %q, want the inbound upstream-77", inContext)
	}
	if header != "upstream-77" {
		t.Errorf("echoed header = %q, want upstream-77", header)
	}
}

func TestRequestIDsAreUnique(t *testing.T) {
	a, _ := runRequestID(t, "")
	b, _ := runRequestID(t, "")
	if a == b {
		t.Errorf("two generated IDs collide: %q", a)
	}
}

func TestGetRequestIDWithoutMiddleware(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	if got := GetRequestID(req.Context()); got != "" {
		t.Errorf("GetRequestID = %q on a bare context, want empty", got)
	}
}
