package filemanager

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"time"

	"cv-generator/internal/domain"

	"github.com/oklog/ulid/v2"
)

// Storage persists binary artifacts and issues download URLs for them.
type Storage interface {
	Save(ctx context.Context, path string, data []byte, contentType string) (string, error)
	SignedURL(ctx context.Context, path string, ttl time.Duration) (string, error)
}

// PDFRenderer hands out browser sessions used to print one document each.
type PDFRenderer interface {
	Acquire(ctx context.Context) (PDFSession, error)
}

type PDFSession interface {
	Load(ctx context.Context, html string) error
	Print(ctx context.Context) ([]byte, error)
	Release()
}

// StageTimeouts bounds each PDF stage independently.
type StageTimeouts struct {
	Acquire time.Duration
	Load    time.Duration
	Print   time.Duration
}

var DefaultStageTimeouts = StageTimeouts{
	Acquire: 30 * time.Second,
	Load:    45 * time.Second,
	Print:   60 * time.Second,
}

var errNoPDFRenderer = errors.New("pdf renderer not configured")

// Files is the outcome of Persist. Errors lists non-fatal problems with the
// optional formats.
type Files struct {
	HTMLURL string
	PDFURL  string
	DOCXURL string
	Errors  []string
}

func (f Files) Generated() domain.GeneratedFiles {
	return domain.GeneratedFiles{HTMLURL: f.HTMLURL, PDFURL: f.PDFURL, DOCXURL: f.DOCXURL}
}

type Manager struct {
	storage  Storage
	pdf      PDFRenderer
	timeouts StageTimeouts
	urlTTL   time.Duration
	logger   *slog.Logger
	newName  func() string
}

type Option func(*Manager)

func WithStageTimeouts(t StageTimeouts) Option {
	return func(m *Manager) {
		if t.Acquire > 0 {
			m.timeouts.Acquire = t.Acquire
		}
		if t.Load > 0 {
			m.timeouts.Load = t.Load
		}
		if t.Print > 0 {
			m.timeouts.Print = t.Print
		}
	}
}

// WithURLTTL sets how long issued download URLs stay valid.
func WithURLTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.urlTTL = ttl
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// New returns a Manager. pdf may be nil, in which case every PDF attempt is
// recorded as skipped.
func New(storage Storage, pdf PDFRenderer, opts ...Option) *Manager {
	m := &Manager{
		storage:  storage,
		pdf:      pdf,
		timeouts: DefaultStageTimeouts,
		urlTTL:   7 * 24 * time.Hour,
		logger:   slog.Default(),
		newName:  func() string { return ulid.Make().String() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Persist stores html and derives the optional formats. An HTML failure is
// returned as an error with no URLs; PDF and DOCX problems only add entries
// to Files.Errors.
func (m *Manager) Persist(ctx context.Context, jobID, userID, html string) (Files, error) {
	base := path.Join("users", userID, "jobs", jobID, m.newName())

	htmlURL, err := m.store(ctx, base+".html", []byte(html), "text/html; charset=utf-8")
	if err != nil {
		return Files{}, fmt.Errorf("save html: %w", err)
	}
	files := Files{HTMLURL: htmlURL}

	pdfURL, err := m.persistPDF(ctx, base+".pdf", html)
	if err != nil {
		m.logger.Warn("pdf generation degraded", "job_id", jobID, "error", err)
		files.Errors = append(files.Errors, domain.E(domain.KindRenderDegraded, "pdf", err).Error())
	}
	files.PDFURL = pdfURL

	docxURL, err := m.persistDOCX(ctx, base+".docx", html)
	if err != nil {
		m.logger.Warn("docx generation degraded", "job_id", jobID, "error", err)
		files.Errors = append(files.Errors, domain.E(domain.KindRenderDegraded, "docx", err).Error())
	}
	files.DOCXURL = docxURL

	return files, nil
}

func (m *Manager) store(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	stored, err := m.storage.Save(ctx, key, data, contentType)
	if err != nil {
		return "", err
	}
	return m.storage.SignedURL(ctx, stored, m.urlTTL)
}

func (m *Manager) persistPDF(ctx context.Context, key, html string) (string, error) {
	if m.pdf == nil {
		return "", errNoPDFRenderer
	}
	printable, err := Printable(html)
	if err != nil {
		return "", fmt.Errorf("printable transform: %w", err)
	}

	actx, cancel := context.WithTimeout(ctx, m.timeouts.Acquire)
	session, err := m.pdf.Acquire(actx)
	cancel()
	if err != nil {
		return "", fmt.Errorf("acquire: %w", err)
	}
	defer session.Release()

	lctx, cancel := context.WithTimeout(ctx, m.timeouts.Load)
	err = session.Load(lctx, printable)
	cancel()
	if err != nil {
		return "", fmt.Errorf("load: %w", err)
	}

	pctx, cancel := context.WithTimeout(ctx, m.timeouts.Print)
	pdf, err := session.Print(pctx)
	cancel()
	if err != nil {
		return "", fmt.Errorf("print: %w", err)
	}
	if !bytes.HasPrefix(pdf, []byte("%PDF")) {
		return "", fmt.Errorf("print: output is not a pdf document")
	}

	return m.store(ctx, key, pdf, "application/pdf")
}

// persistDOCX is a placeholder until a document converter is wired in; it
// produces no file and no error.
func (m *Manager) persistDOCX(_ context.Context, _, _ string) (string, error) {
	return "", nil
}
