// render_profile renders a parsed resume JSON file with one of the built-in
// templates and writes the HTML document, skipping the job pipeline.
//
//	go run ./tools -in profile.json -template classic -features embed-qr-code
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cv-generator/internal/domain"
	"cv-generator/internal/feature"
	"cv-generator/internal/model"
	"cv-generator/internal/render"
)

func main() {
	in := flag.String("in", "profile.json", "parsed resume JSON")
	tmpl := flag.String("template", "modern", "template id")
	features := flag.String("features", "", "comma separated feature ids")
	out := flag.String("out", filepath.Join("resume-data", "generated", "profile.html"), "output file")
	list := flag.Bool("list", false, "print the available templates and exit")
	flag.Parse()

	templates, err := render.NewRegistry()
	if err != nil {
		fatal("load templates", err)
	}
	if *list {
		fmt.Println(strings.Join(templates.Templates(), "\n"))
		return
	}

	b, err := os.ReadFile(*in)
	if err != nil {
		fatal("read profile", err)
	}
	resume, raw, err := model.FromJSON(b)
	if err != nil {
		fatal("decode profile", err)
	}
	if err := model.ValidateMap(raw); err != nil {
		fatal("validate profile", err)
	}

	var ids []domain.FeatureID
	if *features != "" {
		ids = domain.ParseFeatureIDs(strings.Split(*features, ","))
	}
	res, err := feature.NewRegistry().GenerateFeatures(context.Background(), feature.Input{Resume: resume, JobID: "preview"}, ids, nil)
	if err != nil {
		fatal("generate features", err)
	}
	for id, ferr := range res.Failed {
		fmt.Fprintf(os.Stderr, "feature %s skipped: %v\n", id, ferr)
	}

	id := templates.Resolve(*tmpl)
	html, err := templates.Get(id).Render(resume, "preview", ids, res)
	if err != nil {
		fatal("render", err)
	}
	if err := os.MkdirAll(filepath.Dir(*out), 0o755); err != nil {
		fatal("create output dir", err)
	}
	if err := os.WriteFile(*out, []byte(html), 0o644); err != nil {
		fatal("write output", err)
	}
	fmt.Printf("wrote %s (template %s)\n", *out, id)
}

func fatal(what string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", what, err)
	os.Exit(2)
}
