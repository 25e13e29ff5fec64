package conference

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateMeeting(t *testing.T) {
	start := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	req := MeetingRequest{
		Subject:   "Quarterly review",
		Attendees: []Attendee{{Email: "ada@example.com", Name: "Ada"}},
		StartTime: start,
		EndTime:   start.Add(time.Hour),
	}

	t.Run("returns join url", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/create-teams-meeting", r.URL.Path)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

			var got MeetingRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			assert.Equal(t, "Quarterly review", got.Subject)
			assert.Len(t, got.Attendees, 1)

			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"meeting":{"joinUrl":"https://teams.example.com/join/abc"}}`))
		}))
		defer srv.Close()

		c := NewHTTPClient(srv.URL, time.Second, nil)
		url, err := c.CreateMeeting(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, "https://teams.example.com/join/abc", url)
	})

	t.Run("surfaces remote error message", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte(`{"error":"graph api unavailable"}`))
		}))
		defer srv.Close()

		c := NewHTTPClient(srv.URL, time.Second, nil)
		_, err := c.CreateMeeting(context.Background(), req)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "graph api unavailable")
	})

	t.Run("non-json failure reports status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("upstream blew up"))
		}))
		defer srv.Close()

		c := NewHTTPClient(srv.URL, time.Second, nil)
		_, err := c.CreateMeeting(context.Background(), req)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "500")
	})

	t.Run("missing join url is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"meeting":{}}`))
		}))
		defer srv.Close()

		c := NewHTTPClient(srv.URL, time.Second, nil)
		_, err := c.CreateMeeting(context.Background(), req)
		assert.Error(t, err)
	})

	t.Run("empty endpoint refuses", func(t *testing.T) {
		c := NewHTTPClient("", time.Second, nil)
		_, err := c.CreateMeeting(context.Background(), req)
		assert.Error(t, err)
	})
}
