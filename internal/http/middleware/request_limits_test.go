package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRequestSizeLimit(t *testing.T) {
	maxSize := int64(256)

	handler := RequestSizeLimit(maxSize)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{
			name:       "typical create payload accepted",
			body:       `{"name":"Acme Workspace"}`,
			wantStatus: http.StatusNoContent,
		},
		{
			name:       "body at the limit accepted",
			body:       strings.Repeat("x", 256),
			wantStatus: http.StatusNoContent,
		},
		{
			name:       "oversized body rejected",
			body:       strings.Repeat("x", 257),
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "empty body accepted",
			body:       "",
			wantStatus: http.StatusNoContent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/workspaces", bytes.NewBufferString(tt.body))
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("got status %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}
