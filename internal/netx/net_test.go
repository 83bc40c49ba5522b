package netx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostJSON(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		var got map[string]string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.WriteHeader(http.StatusNoContent)
		}))
		defer srv.Close()

		err := PostJSON(context.Background(), srv.Client(), srv.URL, map[string]string{"owner": "alice"})
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"owner": "alice"}, got)
	})

	t.Run("non-2xx status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", http.StatusForbidden)
		}))
		defer srv.Close()

		err := PostJSON(context.Background(), nil, srv.URL, struct{}{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "403")
		assert.Contains(t, err.Error(), "nope")
	})

	t.Run("bad url", func(t *testing.T) {
		require.Error(t, PostJSON(context.Background(), nil, "://bad", nil))
	})

	t.Run("unencodable body", func(t *testing.T) {
		require.Error(t, PostJSON(context.Background(), nil, "http://localhost", make(chan int)))
	})

	t.Run("cancelled context", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		defer srv.Close()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		require.Error(t, PostJSON(ctx, srv.Client(), srv.URL, nil))
	})
}
