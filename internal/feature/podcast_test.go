package feature

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"cv-generator/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	reply  string
	err    error
	prompt string
}

func (w *fakeWriter) ChatJSON(_ context.Context, input string, v interface{}) error {
	w.prompt = input
	if w.err != nil {
		return w.err
	}
	return json.Unmarshal([]byte(w.reply), v)
}

func generatePodcast(t *testing.T, w ScriptWriter, opts map[string]string) (Output, error) {
	t.Helper()
	g, err := PodcastFactory(w, "pt")()
	require.NoError(t, err)
	return g.Generate(context.Background(), Input{Resume: sampleResume(), JobID: "job-1", Options: opts})
}

func TestPodcastWithoutWriter(t *testing.T) {
	out, err := generatePodcast(t, nil, map[string]string{"podcastUrl": "https://cdn.test/a.mp3"})
	require.NoError(t, err)
	assert.Contains(t, string(out.HTML), `<audio controls preload="none" src="https://cdn.test/a.mp3">`)
	assert.NotContains(t, string(out.HTML), "cv-podcast-script")

	out, err = generatePodcast(t, nil, nil)
	require.NoError(t, err)
	assert.Contains(t, string(out.HTML), "cv-placeholder")
}

func TestPodcastScript(t *testing.T) {
	w := &fakeWriter{reply: `{"title":"Meet Ada","segments":["Hello, I am Ada.","  ","I build engines."]}`}
	out, err := generatePodcast(t, w, nil)
	require.NoError(t, err)

	html := string(out.HTML)
	assert.Contains(t, html, "<summary>Meet Ada</summary>")
	assert.Equal(t, 2, strings.Count(html, "<p>"))
	assert.Contains(t, html, "open")
	assert.NotContains(t, html, "cv-placeholder")

	assert.Contains(t, w.prompt, "Write in pt")
	assert.Contains(t, w.prompt, "Lead at Engines Ltd")
}

func TestPodcastScriptLanguageOption(t *testing.T) {
	w := &fakeWriter{reply: `{"segments":["Hi"]}`}
	_, err := generatePodcast(t, w, map[string]string{"language": "de"})
	require.NoError(t, err)
	assert.Contains(t, w.prompt, "Write in de")
}

func TestPodcastScriptFailures(t *testing.T) {
	_, err := generatePodcast(t, &fakeWriter{err: errors.New("ai down")}, nil)
	assert.ErrorContains(t, err, "ai down")

	_, err = generatePodcast(t, &fakeWriter{reply: `{"title":"x","segments":[]}`}, nil)
	assert.ErrorIs(t, err, errEmptyScript)
}

func TestPodcastScriptFailureIsIsolated(t *testing.T) {
	r := NewRegistry(WithFactory(domain.FeaturePodcast, PodcastFactory(&fakeWriter{err: errors.New("ai down")}, "")))
	res, err := r.GenerateFeatures(context.Background(), Input{Resume: sampleResume(), JobID: "job-1"},
		[]domain.FeatureID{domain.FeatureQRCode, domain.FeaturePodcast}, nil)
	require.NoError(t, err)
	assert.Equal(t, []domain.FeatureID{domain.FeatureQRCode}, res.Completed)
	assert.Contains(t, res.Failed, domain.FeaturePodcast)
}
