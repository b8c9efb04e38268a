package feature

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"cv-generator/internal/domain"
	"cv-generator/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	mu        sync.Mutex
	started   []domain.FeatureID
	completed []domain.FeatureID
	failed    map[domain.FeatureID]error
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{failed: map[domain.FeatureID]error{}}
}

func (o *recordingObserver) FeatureStarted(id domain.FeatureID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started = append(o.started, id)
}

func (o *recordingObserver) FeatureCompleted(id domain.FeatureID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.completed = append(o.completed, id)
}

func (o *recordingObserver) FeatureFailed(id domain.FeatureID, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failed[id] = err
}

func fixed(out Output, err error) Factory {
	return func() (Generator, error) {
		return GeneratorFunc(func(context.Context, Input) (Output, error) { return out, err }), nil
	}
}

func TestRegistry_FailureIsolation(t *testing.T) {
	r := NewRegistry(
		WithFactory(domain.FeatureQRCode, fixed(Output{HTML: "<p>qr</p>", Styles: ".qr{}"}, nil)),
		WithFactory(domain.FeaturePodcast, fixed(Output{}, errors.New("tts quota exceeded"))),
		WithFactory(domain.FeatureTimeline, func() (Generator, error) {
			return GeneratorFunc(func(context.Context, Input) (Output, error) { panic("boom") }), nil
		}),
		WithFactory(domain.FeatureLanguages, fixed(Output{HTML: "<p>lang</p>", Styles: ".lang{}", Scripts: "x()"}, nil)),
	)
	obs := newRecordingObserver()

	ids := []domain.FeatureID{domain.FeatureQRCode, domain.FeaturePodcast, domain.FeatureTimeline, domain.FeatureLanguages}
	res, err := r.GenerateFeatures(context.Background(), Input{JobID: "job-1"}, ids, obs)
	require.NoError(t, err)

	assert.ElementsMatch(t, []domain.FeatureID{domain.FeatureQRCode, domain.FeatureLanguages}, res.Completed)
	require.Len(t, res.Failed, 2)
	assert.EqualError(t, res.Failed[domain.FeaturePodcast], "tts quota exceeded")
	assert.Contains(t, res.Failed[domain.FeatureTimeline].Error(), "panicked")

	assert.Equal(t, "<p>qr</p>", string(res.Fragments[domain.SlotQRCode]))
	assert.Equal(t, "<p>lang</p>", string(res.Fragments[domain.SlotLanguages]))
	assert.NotContains(t, res.Fragments, domain.SlotPodcast)
	assert.Equal(t, ".qr{}\n.lang{}", res.CombinedStyles)
	assert.Equal(t, "x()", res.CombinedScripts)

	assert.Len(t, obs.started, 4)
	assert.Len(t, obs.completed, 2)
	assert.Len(t, obs.failed, 2)
}

func TestRegistry_StylesFollowRequestOrder(t *testing.T) {
	r := NewRegistry(
		WithFactory(domain.FeatureQRCode, func() (Generator, error) {
			return GeneratorFunc(func(context.Context, Input) (Output, error) {
				time.Sleep(20 * time.Millisecond)
				return Output{Styles: ".a{}"}, nil
			}), nil
		}),
		WithFactory(domain.FeaturePodcast, fixed(Output{Styles: ".b{}"}, nil)),
		WithFactory(domain.FeatureCalendar, fixed(Output{Styles: "  "}, nil)),
	)
	ids := []domain.FeatureID{domain.FeatureQRCode, domain.FeatureCalendar, domain.FeaturePodcast}
	res, err := r.GenerateFeatures(context.Background(), Input{}, ids, nil)
	require.NoError(t, err)
	assert.Equal(t, ".a{}\n.b{}", res.CombinedStyles)
}

func TestRegistry_UnknownSkippedAndLazyCache(t *testing.T) {
	var builds int32
	r := NewRegistry(WithFactory(domain.FeatureQRCode, func() (Generator, error) {
		atomic.AddInt32(&builds, 1)
		return GeneratorFunc(func(context.Context, Input) (Output, error) { return Output{HTML: "q"}, nil }), nil
	}))

	ids := []domain.FeatureID{"not-a-feature", domain.FeatureQRCode}
	for i := 0; i < 3; i++ {
		res, err := r.GenerateFeatures(context.Background(), Input{}, ids, nil)
		require.NoError(t, err)
		assert.Equal(t, []domain.FeatureID{domain.FeatureQRCode}, res.Completed)
		assert.Empty(t, res.Failed)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&builds))

	_, err := r.Get("not-a-feature")
	assert.ErrorIs(t, err, ErrUnknownFeature)
}

func TestRegistry_FactoryErrorIsFeatureFailure(t *testing.T) {
	r := NewRegistry(WithFactory(domain.FeaturePodcast, func() (Generator, error) {
		return nil, errors.New("tts not configured")
	}))
	res, err := r.GenerateFeatures(context.Background(), Input{}, []domain.FeatureID{domain.FeaturePodcast, domain.FeaturePrivacyMode}, nil)
	require.NoError(t, err)
	assert.Contains(t, res.Failed[domain.FeaturePodcast].Error(), "not configured")
	assert.Equal(t, []domain.FeatureID{domain.FeaturePrivacyMode}, res.Completed)
	assert.NotEmpty(t, res.CombinedStyles)
}

func TestRegistry_ContextCancelled(t *testing.T) {
	r := NewRegistry(WithConcurrency(1))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := r.GenerateFeatures(ctx, Input{Resume: &model.Resume{}}, []domain.FeatureID{domain.FeatureQRCode}, nil)
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Empty(t, res.Completed)
}
