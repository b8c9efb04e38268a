package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FromMap converts loosely typed parsed data into a Resume. Extraction output
// is inconsistent about shapes (a single string where a list is expected,
// objects where a string is expected), so each field is normalised on its own
// and unrecognised shapes are stringified rather than rejected.
func FromMap(m map[string]interface{}) *Resume {
	r := &Resume{}
	if m == nil {
		return r
	}

	if pi, ok := m["personalInfo"].(map[string]interface{}); ok {
		r.PersonalInfo = PersonalInfo{
			Name:     str(pi["name"]),
			Headline: firstStr(pi, "headline", "title"),
			Email:    str(pi["email"]),
			Phone:    str(pi["phone"]),
			Location: str(pi["location"]),
			Website:  firstStr(pi, "website", "portfolio"),
			LinkedIn: str(pi["linkedin"]),
			GitHub:   str(pi["github"]),
			Photo:    str(pi["photo"]),
		}
	}
	r.Summary = strings.TrimSpace(str(m["summary"]))
	r.Language = str(m["language"])

	for _, it := range list(m["experience"]) {
		switch v := it.(type) {
		case map[string]interface{}:
			r.Experience = append(r.Experience, Role{
				Company:   str(v["company"]),
				Title:     firstStr(v, "title", "position"),
				Location:  str(v["location"]),
				StartDate: str(v["startDate"]),
				EndDate:   str(v["endDate"]),
				Current:   v["current"] == true,
				Summary:   firstStr(v, "summary", "description"),
				Bullets:   strs(first(v, "bullets", "achievements", "highlights")),
			})
		default:
			r.Experience = append(r.Experience, Role{Title: str(v)})
		}
	}

	for _, it := range list(m["education"]) {
		switch v := it.(type) {
		case map[string]interface{}:
			r.Education = append(r.Education, Education{
				Institution: firstStr(v, "institution", "school"),
				Degree:      str(v["degree"]),
				Field:       firstStr(v, "field", "fieldOfStudy"),
				StartDate:   str(v["startDate"]),
				EndDate:     str(v["endDate"]),
			})
		default:
			r.Education = append(r.Education, Education{Institution: str(v)})
		}
	}

	switch s := m["skills"].(type) {
	case map[string]interface{}:
		r.Skills = Skills{
			Technical: strs(s["technical"]),
			Soft:      strs(s["soft"]),
			Tools:     strs(s["tools"]),
		}
	case nil:
	default:
		r.Skills.Technical = strs(s)
	}

	for _, it := range list(m["certifications"]) {
		switch v := it.(type) {
		case map[string]interface{}:
			r.Certifications = append(r.Certifications, Certification{
				Name:   str(v["name"]),
				Issuer: str(v["issuer"]),
				Date:   str(v["date"]),
				URL:    str(v["url"]),
			})
		default:
			r.Certifications = append(r.Certifications, Certification{Name: str(v)})
		}
	}

	for _, it := range list(m["projects"]) {
		switch v := it.(type) {
		case map[string]interface{}:
			r.Projects = append(r.Projects, Project{
				Name:        firstStr(v, "name", "title"),
				Description: str(v["description"]),
				URL:         str(v["url"]),
				Image:       str(v["image"]),
				Stack:       strs(first(v, "stack", "technologies")),
			})
		default:
			r.Projects = append(r.Projects, Project{Name: str(v)})
		}
	}

	for _, it := range list(m["languages"]) {
		switch v := it.(type) {
		case map[string]interface{}:
			r.Languages = append(r.Languages, Language{
				Name:        firstStr(v, "name", "language"),
				Proficiency: firstStr(v, "proficiency", "level"),
			})
		default:
			r.Languages = append(r.Languages, Language{Name: str(v)})
		}
	}

	r.Achievements = strs(m["achievements"])

	for _, it := range list(m["testimonials"]) {
		switch v := it.(type) {
		case map[string]interface{}:
			r.Testimonials = append(r.Testimonials, Testimonial{
				Author: firstStr(v, "author", "name"),
				Role:   str(v["role"]),
				Quote:  firstStr(v, "quote", "text"),
			})
		default:
			r.Testimonials = append(r.Testimonials, Testimonial{Quote: str(v)})
		}
	}

	r.SocialLinks = strs(m["socialLinks"])
	return r
}

// FromJSON decodes raw parsed data through FromMap.
func FromJSON(b []byte) (*Resume, map[string]interface{}, error) {
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, nil, fmt.Errorf("decode parsed resume: %w", err)
	}
	return FromMap(m), m, nil
}

func str(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	case map[string]interface{}:
		for _, k := range []string{"name", "title", "text", "value"} {
			if s, ok := t[k].(string); ok && s != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return fmt.Sprintf("%v", v)
}

func first(m map[string]interface{}, keys ...string) interface{} {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func firstStr(m map[string]interface{}, keys ...string) string {
	return str(first(m, keys...))
}

func list(v interface{}) []interface{} {
	switch t := v.(type) {
	case nil:
		return nil
	case []interface{}:
		return t
	case []string:
		out := make([]interface{}, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	case string:
		if strings.TrimSpace(t) == "" {
			return nil
		}
		return []interface{}{t}
	}
	return []interface{}{v}
}

// strs flattens a string, list or comma separated value into trimmed strings.
func strs(v interface{}) []string {
	if s, ok := v.(string); ok {
		var out []string
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	var out []string
	for _, it := range list(v) {
		if s := str(it); s != "" {
			out = append(out, s)
		}
	}
	return out
}
