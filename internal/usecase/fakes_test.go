package usecase

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"cv-generator/internal/domain"
	"cv-generator/internal/feature"
	"cv-generator/internal/filemanager"
	"cv-generator/internal/render"
)

// memJobStore keeps deep copies so callers never share a *domain.Job.
type memJobStore struct {
	mu      sync.Mutex
	jobs    map[string][]byte
	saves   int
	SaveErr error
	GetErr  error
}

func newMemJobStore(jobs ...*domain.Job) *memJobStore {
	s := &memJobStore{jobs: map[string][]byte{}}
	for _, j := range jobs {
		_ = s.Save(context.Background(), j)
	}
	s.saves = 0
	return s
}

func (s *memJobStore) Get(_ context.Context, id string) (*domain.Job, error) {
	if s.GetErr != nil {
		return nil, s.GetErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	var j domain.Job
	if err := json.Unmarshal(b, &j); err != nil {
		return nil, err
	}
	return &j, nil
}

func (s *memJobStore) Save(_ context.Context, job *domain.Job) error {
	if s.SaveErr != nil {
		return s.SaveErr
	}
	b, err := json.Marshal(job)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = b
	s.saves++
	return nil
}

func (s *memJobStore) all() []*domain.Job {
	s.mu.Lock()
	ids := make([]string, 0, len(s.jobs))
	for id := range s.jobs {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	sort.Strings(ids)
	out := make([]*domain.Job, 0, len(ids))
	for _, id := range ids {
		j, _ := s.Get(context.Background(), id)
		out = append(out, j)
	}
	return out
}

func (s *memJobStore) CountPendingBefore(_ context.Context, t time.Time) (int, error) {
	n := 0
	for _, j := range s.all() {
		if j.Status == domain.StatusPending && j.CreatedAt.Before(t) {
			n++
		}
	}
	return n, nil
}

func (s *memJobStore) ListByStatus(_ context.Context, status domain.JobStatus, before time.Time) ([]*domain.Job, error) {
	var out []*domain.Job
	for _, j := range s.all() {
		if j.Status == status && j.UpdatedAt.Before(before) {
			out = append(out, j)
		}
	}
	return out, nil
}

func (s *memJobStore) mustGet(id string) *domain.Job {
	j, err := s.Get(context.Background(), id)
	if err != nil {
		panic(err)
	}
	return j
}

type memResumes map[string]map[string]interface{}

func (m memResumes) GetParsedData(_ context.Context, jobID string) (map[string]interface{}, error) {
	d, ok := m[jobID]
	if !ok {
		return nil, domain.ErrResumeNotFound
	}
	return d, nil
}

type fakeDispatcher struct {
	DispatchFunc func(ctx context.Context, t Task) error
	mu           sync.Mutex
	tasks        []Task
	cancelled    []string
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, t Task) error {
	d.mu.Lock()
	d.tasks = append(d.tasks, t)
	d.mu.Unlock()
	if d.DispatchFunc != nil {
		return d.DispatchFunc(ctx, t)
	}
	return nil
}

func (d *fakeDispatcher) Cancel(jobID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelled = append(d.cancelled, jobID)
	return true
}

type memStorage struct {
	mu       sync.Mutex
	files    map[string][]byte
	SaveErr  error
	EmptyURL bool
}

func newMemStorage() *memStorage { return &memStorage{files: map[string][]byte{}} }

func (s *memStorage) Save(_ context.Context, path string, data []byte, _ string) (string, error) {
	if s.SaveErr != nil {
		return "", s.SaveErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path] = data
	return path, nil
}

func (s *memStorage) SignedURL(_ context.Context, path string, _ time.Duration) (string, error) {
	if s.EmptyURL {
		return "", nil
	}
	return "https://files.test/" + path, nil
}

type fakePDFSession struct{ PrintErr error }

func (s *fakePDFSession) Load(context.Context, string) error { return nil }
func (s *fakePDFSession) Print(context.Context) ([]byte, error) {
	if s.PrintErr != nil {
		return nil, s.PrintErr
	}
	return []byte("%PDF-1.4"), nil
}
func (s *fakePDFSession) Release() {}

type fakePDF struct{ session *fakePDFSession }

func (p fakePDF) Acquire(context.Context) (filemanager.PDFSession, error) { return p.session, nil }

type recordingNotifier struct {
	mu       sync.Mutex
	statuses []domain.JobStatus
}

func (n *recordingNotifier) Notify(_ context.Context, j *domain.Job) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.statuses = append(n.statuses, j.Status)
	return nil
}

// harness wires the real feature, render and file components around
// in-memory stores.
type harness struct {
	jobs       *memJobStore
	resumes    memResumes
	storage    *memStorage
	pdf        *fakePDFSession
	features   *feature.Registry
	templates  *render.Registry
	worker     *Worker
	dispatcher *fakeDispatcher
	notifier   *recordingNotifier
	orch       *Orchestrator
}

type harnessOpts struct {
	deadline       time.Duration
	featureOpts    []feature.Option
	inlineDispatch bool
}

func newHarness(opts harnessOpts, jobs ...*domain.Job) *harness {
	h := &harness{
		jobs:       newMemJobStore(jobs...),
		resumes:    memResumes{},
		storage:    newMemStorage(),
		pdf:        &fakePDFSession{},
		features:   feature.NewRegistry(opts.featureOpts...),
		dispatcher: &fakeDispatcher{},
		notifier:   &recordingNotifier{},
	}
	templates, err := render.NewRegistry()
	if err != nil {
		panic(err)
	}
	h.templates = templates

	files := filemanager.New(h.storage, fakePDF{session: h.pdf})
	wopts := []WorkerOption{}
	if opts.deadline > 0 {
		wopts = append(wopts, WithDeadline(opts.deadline))
	}
	h.worker = NewWorker(WorkerDeps{
		Jobs:      h.jobs,
		Resumes:   h.resumes,
		Features:  h.features,
		Templates: h.templates,
		Files:     files,
		Notifier:  h.notifier,
	}, wopts...)

	if opts.inlineDispatch {
		h.dispatcher.DispatchFunc = func(ctx context.Context, t Task) error {
			h.worker.Run(ctx, t)
			return nil
		}
	}

	h.orch = NewOrchestrator(OrchestratorDeps{
		Jobs:       h.jobs,
		Resumes:    h.resumes,
		Templates:  h.templates,
		Dispatcher: h.dispatcher,
		Worker:     h.worker,
		Notifier:   h.notifier,
	})
	return h
}

func pendingJob(id, user string) *domain.Job {
	now := time.Now().Add(-time.Minute)
	return &domain.Job{ID: id, UserID: user, Status: domain.StatusPending, CreatedAt: now, UpdatedAt: now}
}

func sampleParsed() map[string]interface{} {
	return map[string]interface{}{
		"personalInfo": map[string]interface{}{"name": "Ada Lovelace", "email": "ada@example.com", "website": "ada.dev"},
		"summary":      "Mathematician and first programmer.",
		"experience": []interface{}{
			map[string]interface{}{"company": "Analytical Engines", "title": "Programmer", "startDate": "1842"},
		},
		"skills": map[string]interface{}{"technical": []interface{}{"Algorithms"}},
	}
}
