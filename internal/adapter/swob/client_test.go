package swob_test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/storm-surge-forecast/internal/adapter/swob"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestFetchLatest(t *testing.T) {
	var requestedPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestedPath = r.URL.Path
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(sampleReport))
	}))
	defer srv.Close()

	c := swob.NewClient(srv.URL+"/observations/swob-ml/latest/%s.xml", 5*time.Second, discardLogger())
	records, err := c.FetchLatest(context.Background(), "4600146")
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.Equal(t, "/observations/swob-ml/latest/4600146.xml", requestedPath)
	assert.Equal(t, "4600146", records[0].BuoyID)
}

func TestFetchLatest_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := swob.NewClient(srv.URL+"/%s.xml", 5*time.Second, discardLogger())
	_, err := c.FetchLatest(context.Background(), "4600146")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestFetchLatest_ContextCancelled(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	c := swob.NewClient(srv.URL+"/%s.xml", 5*time.Second, discardLogger())
	_, err := c.FetchLatest(ctx, "4600146")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFetchLatest_BadTemplate(t *testing.T) {
	c := swob.NewClient("https://example.invalid/static.xml", 5*time.Second, discardLogger())
	_, err := c.FetchLatest(context.Background(), "4600146")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must contain exactly one")
}

func TestFetchLatest_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<unclosed"))
	}))
	defer srv.Close()

	c := swob.NewClient(srv.URL+"/%s.xml", 5*time.Second, discardLogger())
	_, err := c.FetchLatest(context.Background(), "4600146")
	require.Error(t, err)
}
