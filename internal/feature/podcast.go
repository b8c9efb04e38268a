package feature

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cv-generator/internal/model"
)

// ScriptWriter turns a prompt into a decoded JSON reply. *ai.Client
// satisfies it.
type ScriptWriter interface {
	ChatJSON(ctx context.Context, input string, v interface{}) error
}

// Script is the spoken introduction shown next to the audio player.
type Script struct {
	Title    string   `json:"title"`
	Segments []string `json:"segments"`
}

var errEmptyScript = errors.New("script has no segments")

const maxScriptSkills = 10

var podcastTpl = parse("podcast", `<div class="cv-podcast">
  {{if .URL}}<audio controls preload="none" src="{{.URL}}"></audio>
  {{else if not .Script}}<p class="cv-placeholder">An audio summary of {{.Name}}'s profile is being prepared.</p>{{end}}
  {{with .Script}}<details class="cv-podcast-script"{{if not $.URL}} open{{end}}>
    <summary>{{if .Title}}{{.Title}}{{else}}Transcript{{end}}</summary>
    {{range .Segments}}<p>{{.}}</p>{{end}}
  </details>{{end}}
</div>`)

type podcastGenerator struct {
	writer   ScriptWriter
	language string
}

// PodcastFactory builds the podcast generator. With a nil writer it only
// embeds the audio supplied through the podcastUrl option.
func PodcastFactory(w ScriptWriter, language string) Factory {
	if language == "" {
		language = "en"
	}
	return func() (Generator, error) {
		return podcastGenerator{writer: w, language: language}, nil
	}
}

func (g podcastGenerator) Generate(ctx context.Context, in Input) (Output, error) {
	data := struct {
		URL    string
		Name   string
		Script *Script
	}{
		URL:  in.option("podcastUrl", ""),
		Name: displayName(in.Resume),
	}
	if g.writer != nil && in.Resume != nil {
		s, err := g.script(ctx, in)
		if err != nil {
			return Output{}, fmt.Errorf("podcast script: %w", err)
		}
		data.Script = s
	}
	html, err := execute(podcastTpl, data)
	return Output{
		HTML:   html,
		Styles: `.cv-podcast audio{width:100%}.cv-podcast-script p{margin:.25rem 0}`,
	}, err
}

func (g podcastGenerator) script(ctx context.Context, in Input) (*Script, error) {
	var s Script
	if err := g.writer.ChatJSON(ctx, scriptPrompt(in.Resume, in.option("language", g.language)), &s); err != nil {
		return nil, err
	}
	segments := s.Segments[:0]
	for _, seg := range s.Segments {
		if seg = strings.TrimSpace(seg); seg != "" {
			segments = append(segments, seg)
		}
	}
	if len(segments) == 0 {
		return nil, errEmptyScript
	}
	s.Segments = segments
	return &s, nil
}

func scriptPrompt(r *model.Resume, language string) string {
	roles := make([]string, 0, len(r.Experience))
	for _, e := range r.Experience {
		roles = append(roles, strings.TrimSpace(e.Title+" at "+e.Company))
	}
	skills := r.Skills.All()
	if len(skills) > maxScriptSkills {
		skills = skills[:maxScriptSkills]
	}
	profile, _ := json.Marshal(map[string]interface{}{
		"name":     r.PersonalInfo.Name,
		"headline": r.PersonalInfo.Headline,
		"summary":  r.Summary,
		"roles":    roles,
		"skills":   skills,
	})
	return fmt.Sprintf(`Write a short spoken introduction of this candidate for a two minute audio clip.
Write in %s, first person, plain sentences without markup.
Return ONLY one JSON object: {"title": string, "segments": [3 to 5 short paragraphs]}.

PROFILE:
%s`, language, profile)
}
