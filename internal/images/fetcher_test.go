package images

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lehigh-university-libraries/catalog-admin/internal/gateway"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		base, ref, want string
	}{
		{"http://localhost:8000", "/uploads/a.png", "http://localhost:8000/uploads/a.png"},
		{"http://localhost:8000/", "uploads/a.png", "http://localhost:8000/uploads/a.png"},
		{"http://localhost:8000", "https://cdn.example.com/a.png", "https://cdn.example.com/a.png"},
		{"http://localhost:8000", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.base, tt.ref))
		})
	}
}

func TestFetcherDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/uploads/Desk_Lamp_1.png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png-bytes"))
	}))
	defer srv.Close()

	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/out", 0o755))
	f := NewFetcher(srv.URL, gateway.New(srv.URL+"/api", gateway.WithHTTPClient(srv.Client())), fs)

	path, err := f.Download(context.Background(), "/uploads/Desk_Lamp_1.png", "/out")
	require.NoError(t, err)
	assert.Equal(t, "/out/Desk_Lamp_1.png", path)
	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	path, err = f.Download(context.Background(), "/uploads/Desk_Lamp_1.png", "/elsewhere/lamp.png")
	require.NoError(t, err)
	assert.Equal(t, "/elsewhere/lamp.png", path)

	_, err = f.Download(context.Background(), "/uploads/missing.png", "/out")
	assert.ErrorIs(t, err, gateway.ErrNotFound)

	_, err = f.Download(context.Background(), "", "/out")
	assert.Error(t, err)
}
