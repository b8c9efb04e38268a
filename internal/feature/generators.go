package feature

import (
	"context"
	"fmt"
	"html/template"
	"net/url"
	"sort"
	"strings"

	"cv-generator/internal/domain"
	"cv-generator/internal/model"
)

func builtins() map[domain.FeatureID]Factory {
	return map[domain.FeatureID]Factory{
		domain.FeatureQRCode:          static(qrCode),
		domain.FeaturePodcast:         PodcastFactory(nil, ""),
		domain.FeatureVideoIntro:      static(videoIntro),
		domain.FeatureSkillsChart:     static(skillsChart),
		domain.FeatureTimeline:        static(timeline),
		domain.FeatureAchievements:    static(achievements),
		domain.FeatureTestimonials:    static(testimonials),
		domain.FeatureCertifications:  static(certifications),
		domain.FeatureLanguages:       static(languages),
		domain.FeaturePortfolio:       static(portfolio),
		domain.FeatureSocialLinks:     static(socialLinks),
		domain.FeatureContactForm:     static(contactForm),
		domain.FeatureCalendar:        static(calendar),
		domain.FeatureATSOptimization: static(atsInsights),
		domain.FeaturePersonality:     static(personality),
		domain.FeaturePrivacyMode:     static(privacyMode),
	}
}

func static(fn func(context.Context, Input) (Output, error)) Factory {
	return func() (Generator, error) { return GeneratorFunc(fn), nil }
}

func parse(name, src string) *template.Template {
	return template.Must(template.New(name).Funcs(template.FuncMap{
		"label": model.LinkLabel,
		"href":  model.Href,
		"join":  strings.Join,
	}).Parse(src))
}

// ---- media ----

var qrTpl = parse("qr", `<div class="cv-qr">
  <img src="{{.Image}}" alt="QR code linking to {{.Target}}" width="120" height="120">
  <p class="cv-qr-caption">{{.Target}}</p>
</div>`)

func qrCode(_ context.Context, in Input) (Output, error) {
	target := in.option("profileUrl", "")
	if target == "" && in.Resume != nil {
		target = model.Href(in.Resume.PersonalInfo.Website)
	}
	if target == "" {
		target = "/cv/" + url.PathEscape(in.JobID)
	}
	img := in.option("qrEndpoint", "https://api.qrserver.com/v1/create-qr-code/?size=120x120&data=") + url.QueryEscape(target)
	html, err := execute(qrTpl, map[string]string{"Image": img, "Target": target})
	return Output{
		HTML:   html,
		Styles: `.cv-qr{text-align:center}.cv-qr-caption{font-size:.75rem;word-break:break-all}`,
	}, err
}

var videoTpl = parse("video", `<div class="cv-video">
  {{if .URL}}<video controls preload="none" src="{{.URL}}"{{if .Poster}} poster="{{.Poster}}"{{end}}></video>
  {{else}}<p class="cv-placeholder">A video introduction from {{.Name}} will appear here.</p>{{end}}
</div>`)

func videoIntro(_ context.Context, in Input) (Output, error) {
	poster := ""
	if in.Resume != nil {
		poster = in.Resume.PersonalInfo.Photo
	}
	html, err := execute(videoTpl, map[string]string{
		"URL":    in.option("videoUrl", ""),
		"Poster": poster,
		"Name":   displayName(in.Resume),
	})
	return Output{HTML: html, Styles: `.cv-video video{width:100%;max-height:320px}`}, err
}

// ---- skills and history ----

var skillsTpl = parse("skills", `<div class="cv-skills-chart">
{{range .}}  <div class="cv-skill-group">
    <span class="cv-skill-name">{{.Name}}</span>
    <span class="cv-skill-bar"><span style="width: {{.Percent}}%"></span></span>
    <span class="cv-skill-count">{{.Count}}</span>
  </div>
{{end}}</div>`)

type skillBar struct {
	Name    string
	Count   int
	Percent int
}

func skillsChart(_ context.Context, in Input) (Output, error) {
	if in.Resume == nil || in.Resume.Skills.Empty() {
		return Output{}, nil
	}
	s := in.Resume.Skills
	groups := []skillBar{
		{Name: "Technical", Count: len(s.Technical)},
		{Name: "Tools", Count: len(s.Tools)},
		{Name: "Soft skills", Count: len(s.Soft)},
	}
	top := 0
	for _, g := range groups {
		if g.Count > top {
			top = g.Count
		}
	}
	bars := groups[:0]
	for _, g := range groups {
		if g.Count == 0 {
			continue
		}
		g.Percent = g.Count * 100 / top
		bars = append(bars, g)
	}
	html, err := execute(skillsTpl, bars)
	return Output{
		HTML:   html,
		Styles: `.cv-skill-group{display:flex;align-items:center;gap:.5rem}.cv-skill-bar{flex:1;background:#eee;height:.5rem}.cv-skill-bar span{display:block;height:100%;background:var(--cv-accent,#2b6cb0)}`,
	}, err
}

var timelineTpl = parse("timeline", `<ol class="cv-timeline">
{{range .}}  <li class="cv-timeline-item">
    <span class="cv-timeline-period">{{.Period}}</span>
    <strong>{{.Title}}</strong>{{if .Company}} &middot; {{.Company}}{{end}}
  </li>
{{end}}</ol>`)

func timeline(_ context.Context, in Input) (Output, error) {
	if in.Resume == nil || len(in.Resume.Experience) == 0 {
		return Output{}, nil
	}
	type entry struct{ Period, Title, Company, start string }
	entries := make([]entry, 0, len(in.Resume.Experience))
	for _, r := range in.Resume.Experience {
		entries = append(entries, entry{Period: r.Period(), Title: r.Title, Company: r.Company, start: r.StartDate})
	}
	// oldest first; undated entries keep their relative order at the end
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].start == "" || entries[j].start == "" {
			return entries[j].start == "" && entries[i].start != ""
		}
		return entries[i].start < entries[j].start
	})
	html, err := execute(timelineTpl, entries)
	return Output{
		HTML:    html,
		Styles:  `.cv-timeline{list-style:none;border-left:2px solid var(--cv-accent,#2b6cb0);padding-left:1rem}.cv-timeline-item{margin-bottom:.5rem}.cv-timeline-period{display:block;font-size:.8rem;color:#666}`,
		Scripts: `document.querySelectorAll('.cv-timeline-item').forEach(function(el){el.addEventListener('click',function(){el.classList.toggle('cv-open')})});`,
	}, err
}

var badgesTpl = parse("badges", `<ul class="cv-badges {{.Class}}">
{{range .Items}}  <li class="cv-badge" title="{{.Detail}}">{{if .URL}}<a href="{{href .URL}}">{{.Name}}</a>{{else}}{{.Name}}{{end}}{{if .Detail}} <small>{{.Detail}}</small>{{end}}</li>
{{end}}</ul>`)

type badge struct{ Name, Detail, URL string }

const badgeStyles = `.cv-badges{display:flex;flex-wrap:wrap;gap:.4rem;list-style:none;padding:0}.cv-badge{border:1px solid var(--cv-accent,#2b6cb0);border-radius:1rem;padding:.15rem .6rem;font-size:.85rem}`

func achievements(_ context.Context, in Input) (Output, error) {
	if in.Resume == nil || len(in.Resume.Achievements) == 0 {
		return Output{}, nil
	}
	items := make([]badge, 0, len(in.Resume.Achievements))
	for _, a := range in.Resume.Achievements {
		items = append(items, badge{Name: a})
	}
	html, err := execute(badgesTpl, map[string]interface{}{"Class": "cv-achievements", "Items": items})
	return Output{HTML: html, Styles: badgeStyles}, err
}

func certifications(_ context.Context, in Input) (Output, error) {
	if in.Resume == nil || len(in.Resume.Certifications) == 0 {
		return Output{}, nil
	}
	items := make([]badge, 0, len(in.Resume.Certifications))
	for _, c := range in.Resume.Certifications {
		detail := c.Issuer
		if c.Date != "" {
			detail = strings.TrimSpace(detail + " " + c.Date)
		}
		items = append(items, badge{Name: c.Name, Detail: detail, URL: c.URL})
	}
	html, err := execute(badgesTpl, map[string]interface{}{"Class": "cv-certifications", "Items": items})
	return Output{HTML: html, Styles: badgeStyles}, err
}

var testimonialsTpl = parse("testimonials", `<div class="cv-carousel" data-interval="6000">
{{range $i, $t := .}}  <blockquote class="cv-slide{{if eq $i 0}} cv-active{{end}}">
    <p>{{$t.Quote}}</p>
    <footer>{{$t.Author}}{{if $t.Role}}, {{$t.Role}}{{end}}</footer>
  </blockquote>
{{end}}</div>`)

func testimonials(_ context.Context, in Input) (Output, error) {
	if in.Resume == nil || len(in.Resume.Testimonials) == 0 {
		return Output{}, nil
	}
	html, err := execute(testimonialsTpl, in.Resume.Testimonials)
	return Output{
		HTML:    html,
		Styles:  `.cv-slide{display:none;margin:0}.cv-slide.cv-active{display:block}@media print{.cv-slide{display:block}}`,
		Scripts: `document.querySelectorAll('.cv-carousel').forEach(function(c){var s=c.querySelectorAll('.cv-slide'),i=0;if(s.length<2)return;setInterval(function(){s[i].classList.remove('cv-active');i=(i+1)%s.length;s[i].classList.add('cv-active')},+c.dataset.interval)});`,
	}, err
}

var languagesTpl = parse("languages", `<ul class="cv-languages">
{{range .}}  <li><span class="cv-language-name">{{.Name}}</span>{{if .Proficiency}} <span class="cv-language-level" data-level="{{.Level}}">{{.Proficiency}}</span>{{end}}</li>
{{end}}</ul>`)

var proficiencyLevels = map[string]int{
	"native":         5,
	"bilingual":      5,
	"fluent":         4,
	"advanced":       4,
	"professional":   4,
	"intermediate":   3,
	"conversational": 3,
	"basic":          2,
	"elementary":     2,
	"beginner":       1,
}

func languages(_ context.Context, in Input) (Output, error) {
	if in.Resume == nil || len(in.Resume.Languages) == 0 {
		return Output{}, nil
	}
	type row struct {
		model.Language
		Level int
	}
	rows := make([]row, 0, len(in.Resume.Languages))
	for _, l := range in.Resume.Languages {
		rows = append(rows, row{Language: l, Level: proficiencyLevels[strings.ToLower(strings.TrimSpace(l.Proficiency))]})
	}
	html, err := execute(languagesTpl, rows)
	return Output{
		HTML:   html,
		Styles: `.cv-languages{list-style:none;padding:0}.cv-language-level{font-size:.8rem;color:#666}`,
	}, err
}

var portfolioTpl = parse("portfolio", `<div class="cv-portfolio">
{{range .}}  <figure class="cv-portfolio-item">
    {{if .Image}}<img src="{{.Image}}" alt="{{.Name}}" loading="lazy">{{end}}
    <figcaption>{{if .URL}}<a href="{{href .URL}}">{{.Name}}</a>{{else}}{{.Name}}{{end}}{{if .Description}}<br><small>{{.Description}}</small>{{end}}</figcaption>
  </figure>
{{end}}</div>`)

func portfolio(_ context.Context, in Input) (Output, error) {
	if in.Resume == nil || len(in.Resume.Projects) == 0 {
		return Output{}, nil
	}
	html, err := execute(portfolioTpl, in.Resume.Projects)
	return Output{
		HTML:   html,
		Styles: `.cv-portfolio{display:grid;grid-template-columns:repeat(auto-fill,minmax(180px,1fr));gap:.75rem}.cv-portfolio-item img{width:100%;border-radius:4px}`,
	}, err
}

// ---- contact ----

var socialTpl = parse("social", `<ul class="cv-social">
{{range .}}  <li><a href="{{href .}}" rel="me noopener">{{label .}}</a></li>
{{end}}</ul>`)

func socialLinks(_ context.Context, in Input) (Output, error) {
	if in.Resume == nil {
		return Output{}, nil
	}
	links := in.Resume.Links()
	if len(links) == 0 {
		return Output{}, nil
	}
	html, err := execute(socialTpl, links)
	return Output{HTML: html, Styles: `.cv-social{display:flex;gap:.75rem;list-style:none;padding:0}`}, err
}

var contactTpl = parse("contact", `<form class="cv-contact-form" method="post" action="{{.Action}}">
  <input type="hidden" name="cv" value="{{.JobID}}">
  <label>Name <input type="text" name="name" required></label>
  <label>Email <input type="email" name="email" required></label>
  <label>Message <textarea name="message" rows="3" required></textarea></label>
  <button type="submit">Send a message to {{.Name}}</button>
</form>`)

func contactForm(_ context.Context, in Input) (Output, error) {
	html, err := execute(contactTpl, map[string]string{
		"Action": in.option("contactEndpoint", "#"),
		"JobID":  in.JobID,
		"Name":   displayName(in.Resume),
	})
	return Output{
		HTML:   html,
		Styles: `.cv-contact-form{display:grid;gap:.5rem;max-width:420px}.cv-contact-form label{display:grid}`,
	}, err
}

var calendarTpl = parse("calendar", `<div class="cv-calendar">
  <a class="cv-calendar-link" href="{{.URL}}">Book a call with {{.Name}}</a>
</div>`)

func calendar(_ context.Context, in Input) (Output, error) {
	link := in.option("calendarUrl", "")
	if link == "" && in.Resume != nil && in.Resume.PersonalInfo.Email != "" {
		link = "mailto:" + in.Resume.PersonalInfo.Email + "?subject=" + url.QueryEscape("Interview scheduling")
	}
	if link == "" {
		return Output{}, nil
	}
	html, err := execute(calendarTpl, map[string]interface{}{
		"URL":  link,
		"Name": displayName(in.Resume),
	})
	return Output{HTML: html, Styles: `.cv-calendar-link{font-weight:600}`}, err
}

// ---- analysis side-channel ----

var atsTpl = parse("ats", `<div class="cv-ats">
  {{if .Pending}}<p class="cv-placeholder">ATS analysis pending.</p>
  {{else}}{{if .Score}}<p class="cv-ats-score">ATS score: <strong>{{.Score}}</strong></p>{{end}}
  {{if .Keywords}}<p class="cv-ats-keywords">Matched keywords: {{join .Keywords ", "}}</p>{{end}}
  {{if .Suggestions}}<ul class="cv-ats-suggestions">{{range .Suggestions}}<li>{{.}}</li>{{end}}</ul>{{end}}{{end}}
</div>`)

func atsInsights(_ context.Context, in Input) (Output, error) {
	doc := in.Enrichment.ATS
	data := map[string]interface{}{"Pending": len(doc) == 0}
	if len(doc) > 0 {
		data["Score"] = scalar(doc["score"])
		data["Keywords"] = stringList(doc["keywords"])
		data["Suggestions"] = stringList(doc["suggestions"])
	}
	html, err := execute(atsTpl, data)
	return Output{HTML: html, Styles: `.cv-ats-score strong{color:var(--cv-accent,#2b6cb0)}`}, err
}

var personalityTpl = parse("personality", `<div class="cv-personality">
  {{if .Pending}}<p class="cv-placeholder">Personality insights pending.</p>
  {{else}}{{if .Type}}<p class="cv-personality-type">{{.Type}}</p>{{end}}
  {{if .Traits}}<ul class="cv-traits">{{range .Traits}}<li>{{.}}</li>{{end}}</ul>{{end}}{{end}}
</div>`)

func personality(_ context.Context, in Input) (Output, error) {
	doc := in.Enrichment.Personality
	data := map[string]interface{}{"Pending": len(doc) == 0}
	if len(doc) > 0 {
		data["Type"] = scalar(doc["type"])
		data["Traits"] = traitList(doc["traits"])
	}
	html, err := execute(personalityTpl, data)
	return Output{HTML: html, Styles: `.cv-traits{columns:2}`}, err
}

// ---- styles only ----

func privacyMode(_ context.Context, _ Input) (Output, error) {
	return Output{
		Styles: `.cv-private,.cv-contact-phone,.cv-contact-location{display:none!important}`,
	}, nil
}

func displayName(r *model.Resume) string {
	if r == nil || r.PersonalInfo.Name == "" {
		return "the candidate"
	}
	return r.PersonalInfo.Name
}

func scalar(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%.1f", t)
	}
	return fmt.Sprintf("%v", v)
}

func stringList(v interface{}) []string {
	items, ok := v.([]interface{})
	if !ok {
		if s := scalar(v); s != "" {
			return []string{s}
		}
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s := scalar(it); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// traitList accepts either a list of names or a name -> score object.
func traitList(v interface{}) []string {
	m, ok := v.(map[string]interface{})
	if !ok {
		return stringList(v)
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, fmt.Sprintf("%s: %s", k, scalar(m[k])))
	}
	return out
}
