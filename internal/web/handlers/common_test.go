package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRespondJSON(t *testing.T) {
	tests := []struct {
		name   string
		status int
		data   any
		body   string
	}{
		{"object", http.StatusOK, map[string]int{"count": 2}, "{\"count\":2}\n"},
		{"array", http.StatusOK, []string{"a"}, "[\"a\"]\n"},
		{"nil data", http.StatusNoContent, nil, ""},
		{"created", http.StatusCreated, map[string]bool{"ok": true}, "{\"ok\":true}\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			respondJSON(recorder, tc.status, tc.data)

			assertStatusCode(t, recorder, tc.status)
			assertContentType(t, recorder, "application/json")
			if recorder.Body.String() != tc.body {
				t.Errorf("body = %q, want %q", recorder.Body.String(), tc.body)
			}
		})
	}
}

func TestRespondError(t *testing.T) {
	recorder := httptest.NewRecorder()
	respondError(recorder, http.StatusBadRequest, "bad things")

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, "bad things")
}

func TestHealthCheck(t *testing.T) {
	for _, method := range []string{http.MethodGet, http.MethodHead, http.MethodPost} {
		t.Run(method, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			HealthCheck(recorder, httptest.NewRequest(method, "/api/v1/health", nil))

			assertStatusCode(t, recorder, http.StatusOK)
			var result map[string]string
			parseJSONResponse(t, recorder, &result)
			if result["status"] != "ok" {
				t.Errorf("expected status ok, got %q", result["status"])
			}
		})
	}
}

func TestNotFound(t *testing.T) {
	recorder := httptest.NewRecorder()
	NotFound(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil))

	assertStatusCode(t, recorder, http.StatusNotFound)
	assertJSONError(t, recorder, "endpoint not found")
}

func TestSanitizeForLog(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"line1\nline2", "line1line2"},
		{"a\r\nb", "ab"},
		{"", ""},
	}
	for _, tc := range tests {
		if got := sanitizeForLog(tc.in); got != tc.want {
			t.Errorf("sanitizeForLog(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
