package attendance

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hosaammohammed1999-ai/radmeter1/internal/models"
)

func matcher(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f, hdr, err := r.FormFile("image")
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(f)
		assert.Equal(t, "face-bytes", string(data))
		assert.Equal(t, "face.jpg", hdr.Filename)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPIdentityResolver(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		status int
		body   string
		want   string
		code   models.ErrorCode
	}{
		{"matched", http.StatusOK, `{"matched": true, "employee_id": "E42", "distance": 0.31}`, "E42", ""},
		{"no match", http.StatusOK, `{"matched": false}`, "", models.CodeIdentityNotFound},
		{"not found status", http.StatusNotFound, `{"error": "no face"}`, "", models.CodeIdentityNotFound},
		{"matcher error", http.StatusBadRequest, `{"error": "bad image"}`, "", models.CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := matcher(t, tt.status, tt.body)
			r := NewHTTPIdentityResolver(srv.URL+"/identify", time.Second, zap.NewNop())

			id, err := r.ResolveIdentity(ctx, []byte("face-bytes"), "face.jpg")
			if tt.code != "" {
				require.Error(t, err)
				assert.Equal(t, tt.code, models.CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, id)
		})
	}
}

func TestHTTPIdentityResolver_EmptySample(t *testing.T) {
	r := NewHTTPIdentityResolver("http://127.0.0.1:1/identify", time.Second, zap.NewNop())
	_, err := r.ResolveIdentity(context.Background(), nil, "")
	assert.Equal(t, models.CodeValidation, models.CodeOf(err))
}
