// Command test_processor runs one generation end to end against a throwaway
// SQLite database and a local file directory. It is meant for eyeballing
// templates and features without the API, a queue or Postgres.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cv-generator/internal/adapter/repository"
	"cv-generator/internal/domain"
	"cv-generator/internal/feature"
	"cv-generator/internal/filemanager"
	"cv-generator/internal/infrastructure/logger"
	"cv-generator/internal/render"
	"cv-generator/internal/usecase"
	"cv-generator/pkg/infrastructure"
	"cv-generator/pkg/storage"

	"github.com/google/uuid"
)

var sample = map[string]interface{}{
	"personalInfo": map[string]interface{}{
		"name":     "Test User",
		"title":    "Backend Engineer",
		"email":    "t@example.com",
		"location": "Lisbon",
		"website":  "https://example.com",
		"linkedin": "https://linkedin.com/in/test-user",
	},
	"summary": "Engineer focused on data pipelines and reliable services.",
	"experience": []interface{}{
		map[string]interface{}{
			"company":     "Acme",
			"title":       "Engineer",
			"startDate":   "2021",
			"endDate":     "present",
			"description": "Built a real-time processing pipeline.",
			"highlights":  []interface{}{"Cut processing time by half", "Introduced retries and alerting"},
		},
	},
	"education": []interface{}{
		map[string]interface{}{"institution": "University of Lisbon", "degree": "MSc Computer Science", "endDate": "2020"},
	},
	"skills": map[string]interface{}{
		"technical": []interface{}{"Go", "Postgres", "RabbitMQ"},
		"soft":      []interface{}{"Mentoring"},
	},
	"projects": []interface{}{
		map[string]interface{}{"name": "pipeline", "description": "Event-driven ingestion", "url": "https://github.com/test/pipeline"},
	},
}

func main() {
	input := flag.String("input", "", "parsed resume JSON (defaults to a built-in sample)")
	tmpl := flag.String("template", "modern", "template id")
	features := flag.String("features", "embed-qr-code,skills-visualization", "comma separated feature ids")
	out := flag.String("out", filepath.Join("resume-data", "generated"), "output directory")
	chrome := flag.String("chrome", "", "enable PDF output using this Chrome binary (\"auto\" to search PATH)")
	flag.Parse()

	l := logger.New(logger.Config{Level: "debug", Format: "text"})

	parsed := sample
	if *input != "" {
		b, err := os.ReadFile(*input)
		if err != nil {
			log.Fatalf("read input: %v", err)
		}
		if parsed, err = decode(b); err != nil {
			log.Fatalf("decode input: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), usecase.DefaultDeadline)
	defer cancel()

	db, err := repository.OpenGorm("sqlite", "file:test_processor?mode=memory&cache=shared")
	if err != nil {
		log.Fatalf("open sqlite: %v", err)
	}
	store := repository.NewGormStore(db)
	if err := store.Migrate(ctx); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	now := time.Now()
	job := &domain.Job{ID: uuid.NewString(), UserID: "local", Status: domain.StatusPending, CreatedAt: now, UpdatedAt: now}
	if err := store.Save(ctx, job); err != nil {
		log.Fatalf("seed job: %v", err)
	}
	if err := store.SaveParsedData(ctx, job.ID, parsed); err != nil {
		log.Fatalf("seed parsed data: %v", err)
	}

	local := storage.NewLocalStorage(*out, "file://"+absPath(*out), storage.NewSigner(uuid.NewString()))
	var pdf filemanager.PDFRenderer
	if *chrome != "" {
		path := *chrome
		if path == "auto" {
			path = ""
		}
		pdf = infrastructure.NewChromedpRenderer(path)
	}

	templates, err := render.NewRegistry(render.WithLogger(l))
	if err != nil {
		log.Fatalf("templates: %v", err)
	}
	worker := usecase.NewWorker(usecase.WorkerDeps{
		Jobs:      store,
		Resumes:   store,
		Features:  feature.NewRegistry(feature.WithLogger(l)),
		Templates: templates,
		Files:     filemanager.New(local, pdf, filemanager.WithLogger(l)),
	}, usecase.WithWorkerLogger(l))
	orch := usecase.NewOrchestrator(usecase.OrchestratorDeps{
		Jobs:      store,
		Resumes:   store,
		Templates: templates,
		Worker:    worker,
	}, usecase.WithOrchestratorLogger(l))

	start := time.Now()
	res, err := orch.Generate(ctx, usecase.InitiateRequest{
		JobID:      job.ID,
		UserID:     job.UserID,
		TemplateID: *tmpl,
		Features:   strings.Split(*features, ","),
	})
	if err != nil {
		if view, serr := orch.Status(ctx, job.ID, job.UserID); serr == nil && view.Error != nil {
			log.Fatalf("generation failed: %s: %s", view.Error.Code, view.Error.Message)
		}
		log.Fatalf("generation failed: %v", err)
	}

	fmt.Printf("job %s finished in %s\n", job.ID, time.Since(start).Round(time.Millisecond))
	fmt.Printf("features: %s\n", strings.Join(res.GeneratedCV.Features, ", "))
	fmt.Printf("html:     %s\n", res.GeneratedCV.Files.HTMLURL)
	if res.GeneratedCV.Files.PDFURL != "" {
		fmt.Printf("pdf:      %s\n", res.GeneratedCV.Files.PDFURL)
	}
	for _, w := range res.GeneratedCV.Warnings {
		fmt.Printf("warning:  %s\n", w)
	}
}

func decode(b []byte) (map[string]interface{}, error) {
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	// Accept both the bare document and {"parsedData": {...}} exports.
	if inner, ok := m["parsedData"].(map[string]interface{}); ok {
		m = inner
	}
	return m, nil
}

func absPath(p string) string {
	if a, err := filepath.Abs(p); err == nil {
		return a
	}
	return p
}
