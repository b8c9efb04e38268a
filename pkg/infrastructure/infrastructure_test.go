package infrastructure

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJobsPool_BadURL(t *testing.T) {
	_, err := NewJobsPool(context.Background(), "://not a url", 1)
	assert.Error(t, err)
}

func TestChromedpRenderer_Print(t *testing.T) {
	path := os.Getenv("CVGEN_CHROME_PATH")
	if path == "" {
		t.Skip("set CVGEN_CHROME_PATH to run browser tests")
	}
	r := NewChromedpRenderer(path)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	s, err := r.Acquire(ctx)
	require.NoError(t, err)
	defer s.Release()

	require.NoError(t, s.Load(ctx, "<html><body><h1>Ada Lovelace</h1></body></html>"))
	pdf, err := s.Print(ctx)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(pdf[:4]))
}

func TestChromedpRenderer_AcquireHonoursContext(t *testing.T) {
	r := NewChromedpRenderer("/nonexistent/chrome")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := r.Acquire(ctx)
	assert.Error(t, err)
}
