package render

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"cv-generator/internal/domain"
	"cv-generator/internal/feature"
	"cv-generator/internal/model"
)

// HTMLRenderer renders the shared layout with one theme's stylesheet.
type HTMLRenderer struct {
	theme    Theme
	css      template.CSS
	layout   *template.Template
	language string
	now      func() time.Time
}

type contactItem struct {
	Class string
	Text  string
	Href  template.URL
}

type slotView struct {
	Slot    domain.Slot
	Heading string
	HTML    template.HTML
}

type view struct {
	Lang        string
	Title       string
	JobID       string
	ThemeClass  string
	ThemeCSS    template.CSS
	FeatureCSS  template.CSS
	FeatureJS   template.JS
	Labels      map[string]string
	Resume      *model.Resume
	Contact     []contactItem
	Slots       []slotView
	GeneratedAt string
}

func (h *HTMLRenderer) Render(resume *model.Resume, jobID string, featureIDs []domain.FeatureID, features *feature.Result) (string, error) {
	if resume == nil {
		resume = &model.Resume{}
	}
	lang := resume.Language
	if lang == "" {
		lang = h.language
	}
	labels := Labels(lang)

	v := view{
		Lang:        strings.ToLower(lang),
		Title:       resume.PersonalInfo.Name,
		JobID:       jobID,
		ThemeClass:  h.theme.Class,
		ThemeCSS:    h.css,
		Labels:      labels,
		Resume:      resume,
		Contact:     contactItems(resume.PersonalInfo),
		GeneratedAt: h.now().UTC().Format("2006-01-02"),
	}
	if v.Title == "" {
		v.Title = "Curriculum Vitae"
	}

	if features != nil {
		v.FeatureCSS = template.CSS(features.CombinedStyles)
		v.FeatureJS = template.JS(features.CombinedScripts)
		selected := make(map[domain.Slot]bool, len(featureIDs))
		for _, id := range featureIDs {
			if s, ok := id.Slot(); ok {
				selected[s] = true
			}
		}
		for _, s := range domain.SlotOrder {
			frag, ok := features.Fragments[s]
			if !ok || frag == "" || !selected[s] {
				continue
			}
			v.Slots = append(v.Slots, slotView{Slot: s, Heading: labels[slotLabels[s]], HTML: frag})
		}
	}

	var buf bytes.Buffer
	if err := h.layout.Execute(&buf, v); err != nil {
		return "", fmt.Errorf("render %s template: %w", h.theme.ID, err)
	}
	return buf.String(), nil
}

func contactItems(p model.PersonalInfo) []contactItem {
	var out []contactItem
	if p.Email != "" {
		out = append(out, contactItem{Class: "cv-contact-email cv-private", Text: p.Email, Href: template.URL("mailto:" + p.Email)})
	}
	if p.Phone != "" {
		out = append(out, contactItem{Class: "cv-contact-phone", Text: p.Phone, Href: template.URL("tel:" + strings.ReplaceAll(p.Phone, " ", ""))})
	}
	if p.Location != "" {
		out = append(out, contactItem{Class: "cv-contact-location", Text: p.Location})
	}
	for _, l := range []string{p.Website, p.LinkedIn, p.GitHub} {
		if l == "" {
			continue
		}
		href := model.Href(l)
		if !strings.HasPrefix(href, "http://") && !strings.HasPrefix(href, "https://") {
			continue
		}
		out = append(out, contactItem{Class: "cv-contact-link", Text: model.LinkLabel(l), Href: template.URL(href)})
	}
	return out
}
