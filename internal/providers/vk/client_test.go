package vk

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veriloft/vmusic/internal/config"
	providerhttp "github.com/veriloft/vmusic/internal/providers/http"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	httpClient := providerhttp.NewClient(providerhttp.ClientConfig{Timeout: 5 * time.Second, MaxRetries: 1})
	return NewClient(config.APIConfig{
		SearchURL:    server.URL + "/method/audio.search",
		Autocomplete: true,
		Sort:         2,
		Count:        300,
	}, httpClient, nil)
}

func TestClient_Search(t *testing.T) {
	t.Run("sends search parameters", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			assert.Equal(t, "/method/audio.search", r.URL.Path)
			assert.Equal(t, "daft punk", q.Get("q"))
			assert.Equal(t, "tok", q.Get("access_token"))
			assert.Equal(t, "1", q.Get("autocomplete"))
			assert.Equal(t, "2", q.Get("sort"))
			assert.Equal(t, "300", q.Get("count"))
			_, _ = w.Write([]byte(`{"response":[1,{"aid":7,"owner_id":-3,"artist":"Daft Punk","title":"Veridis Quo","duration":345,"url":"http://cdn/1.mp3"}]}`))
		})

		audios, err := client.Search(context.Background(), "daft punk", "tok")
		require.NoError(t, err)
		require.Len(t, audios, 1)
		assert.Equal(t, Audio{ID: 7, OwnerID: -3, Artist: "Daft Punk", Title: "Veridis Quo", Duration: 345, URL: "http://cdn/1.mp3"}, audios[0])
	})

	t.Run("skips metadata element", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"response":[3,{"id":1,"artist":"A","title":"One"},{"id":2,"artist":"B","title":"Two"},{"id":3,"artist":"C","title":"Three"}]}`))
		})

		audios, err := client.Search(context.Background(), "x", "tok")
		require.NoError(t, err)
		require.Len(t, audios, 3)
		assert.Equal(t, []string{"One", "Two", "Three"}, []string{audios[0].Title, audios[1].Title, audios[2].Title})
	})

	t.Run("metadata only is not found", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"response":[0]}`))
		})

		_, err := client.Search(context.Background(), "x", "tok")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("auth error", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"error":{"error_code":5,"error_msg":"User authorization failed"}}`))
		})

		_, err := client.Search(context.Background(), "x", "stale")
		require.Error(t, err)
		assert.True(t, IsAuthFailed(err))
	})

	t.Run("other api error keeps message", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"error":{"error_code":6,"error_msg":"Too many requests per second"}}`))
		})

		_, err := client.Search(context.Background(), "x", "tok")
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, 6, apiErr.Code)
		assert.Equal(t, "Too many requests per second", apiErr.Message)
		assert.False(t, IsAuthFailed(err))
	})

	t.Run("non-2xx is transport error", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		})

		_, err := client.Search(context.Background(), "x", "tok")
		assert.ErrorIs(t, err, ErrTransport)
	})

	t.Run("html body is malformed", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<html>maintenance</html>`))
		})

		_, err := client.Search(context.Background(), "x", "tok")
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("options can be replaced", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "0", r.URL.Query().Get("autocomplete"))
			assert.Equal(t, "10", r.URL.Query().Get("count"))
			_, _ = w.Write([]byte(`{"response":[0]}`))
		})
		client.SetOptions(Options{Autocomplete: false, Sort: 0, Count: 10})

		_, err := client.Search(context.Background(), "x", "tok")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantLen int
		wantErr error
	}{
		{name: "empty envelope", body: `{}`, wantErr: ErrMalformed},
		{name: "empty response", body: `{"response":[]}`, wantErr: ErrNotFound},
		{name: "two items", body: `{"response":[1,{"id":1}]}`, wantLen: 1},
		{name: "not json", body: `nope`, wantErr: ErrMalformed},
		{name: "null item", body: `{"response":[1,null]}`, wantErr: ErrNotObject},
		{name: "number item", body: `{"response":[2,{"id":1},7]}`, wantErr: ErrNotObject},
		{name: "array item", body: `{"response":[1, ["x"]]}`, wantErr: ErrNotObject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			audios, err := ParseResponse([]byte(tt.body))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Len(t, audios, tt.wantLen)
		})
	}

	t.Run("bad item reports index", func(t *testing.T) {
		_, err := ParseResponse([]byte(`{"response":[2,{"id":1},"oops"]}`))
		var itemErr *ItemError
		require.True(t, errors.As(err, &itemErr))
		assert.Equal(t, 2, itemErr.Index)
	})

	t.Run("null item is not a blank track", func(t *testing.T) {
		audios, err := ParseResponse([]byte(`{"response":[1, null ]}`))
		assert.Nil(t, audios)
		var itemErr *ItemError
		require.True(t, errors.As(err, &itemErr))
		assert.Equal(t, 1, itemErr.Index)
		assert.ErrorIs(t, err, ErrNotObject)
	})

	t.Run("invalid number in item", func(t *testing.T) {
		_, err := ParseResponse([]byte(`{"response":[1,{"id":"twelve"}]}`))
		var itemErr *ItemError
		assert.True(t, errors.As(err, &itemErr))
	})
}

func TestAudio(t *testing.T) {
	var a Audio
	require.NoError(t, json.Unmarshal([]byte(`{"aid":42,"owner_id":100,"artist":"Simon &amp; Garfunkel","title":"The Boxer","duration":3725}`), &a))

	assert.Equal(t, int64(42), a.ID)
	assert.Equal(t, "Simon & Garfunkel", a.Artist)
	assert.Equal(t, "100_42", a.Key())
	assert.Equal(t, "Simon & Garfunkel - The Boxer", a.DisplayName())
	assert.Equal(t, "1:02:05", a.FormatDuration())

	a.Duration = 65
	assert.Equal(t, "1:05", a.FormatDuration())

	t.Run("numbers sent as strings", func(t *testing.T) {
		var a Audio
		require.NoError(t, json.Unmarshal([]byte(`{"id":"12","owner_id":"-100","duration":"215","genre":"18","lyrics_id":null,"url":"https://cs1.vk.me/a.mp3"}`), &a))

		assert.Equal(t, int64(12), a.ID)
		assert.Equal(t, int64(-100), a.OwnerID)
		assert.Equal(t, 215, a.Duration)
		assert.Equal(t, 18, a.GenreID)
		assert.Zero(t, a.LyricsID)
		assert.Equal(t, "-100_12", a.Key())
	})

	t.Run("legacy aid as string", func(t *testing.T) {
		var a Audio
		require.NoError(t, json.Unmarshal([]byte(`{"aid":"7","owner_id":1,"duration":59.0}`), &a))

		assert.Equal(t, int64(7), a.ID)
		assert.Equal(t, 59, a.Duration)
	})
}
