package metadata_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"bastion/pkg/platform/middleware/metadata"
	"bastion/pkg/requestcontext"
)

func TestClientIPFromRequest(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		want       string
	}{
		{
			name:    "x-forwarded-for single",
			headers: map[string]string{"X-Forwarded-For": "203.0.113.7"},
			want:    "203.0.113.7",
		},
		{
			name:    "x-forwarded-for chain takes first hop",
			headers: map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1, 10.0.0.2"},
			want:    "203.0.113.7",
		},
		{
			name:    "x-real-ip fallback",
			headers: map[string]string{"X-Real-IP": "198.51.100.2"},
			want:    "198.51.100.2",
		},
		{
			name:       "remote addr strips port",
			remoteAddr: "192.0.2.9:54021",
			want:       "192.0.2.9",
		},
		{
			name:       "ipv6 remote addr strips port",
			remoteAddr: "[::1]:54021",
			want:       "[::1]",
		},
		{
			name: "nothing known",
			want: "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, metadata.ClientIPFromRequest(r))
		})
	}
}

func TestClientMetadata_PopulatesContext(t *testing.T) {
	var gotIP, gotUA, gotReqID string
	handler := metadata.ClientMetadata(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotIP = requestcontext.ClientIP(r.Context())
		gotUA = requestcontext.UserAgent(r.Context())
		gotReqID = requestcontext.RequestID(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Forwarded-For", "203.0.113.7")
	r.Header.Set("User-Agent", "curl/8.0")
	handler.ServeHTTP(httptest.NewRecorder(), r)

	assert.Equal(t, "203.0.113.7", gotIP)
	assert.Equal(t, "curl/8.0", gotUA)
	assert.NotEmpty(t, gotReqID, "request id generated when header absent")
}

func TestClientMetadata_HonorsUpstreamRequestID(t *testing.T) {
	var gotReqID string
	handler := metadata.ClientMetadata(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReqID = requestcontext.RequestID(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(metadata.RequestIDHeader, "upstream-42")
	handler.ServeHTTP(httptest.NewRecorder(), r)

	assert.Equal(t, "upstream-42", gotReqID)
}
