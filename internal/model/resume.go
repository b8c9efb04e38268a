package model

// Parsed résumé as produced by the extraction pipeline. Every field is
// optional; renderers omit sections whose data is absent.

type PersonalInfo struct {
	Name     string `json:"name"`
	Headline string `json:"headline,omitempty"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Location string `json:"location,omitempty"`
	Website  string `json:"website,omitempty"`
	LinkedIn string `json:"linkedin,omitempty"`
	GitHub   string `json:"github,omitempty"`
	Photo    string `json:"photo,omitempty"`
}

type Role struct {
	Company   string   `json:"company"`
	Title     string   `json:"title"`
	Location  string   `json:"location,omitempty"`
	StartDate string   `json:"startDate,omitempty"`
	EndDate   string   `json:"endDate,omitempty"`
	Current   bool     `json:"current,omitempty"`
	Summary   string   `json:"summary,omitempty"`
	Bullets   []string `json:"bullets,omitempty"`
}

// Period formats the date range for display.
func (r Role) Period() string {
	end := r.EndDate
	if r.Current && end == "" {
		end = "Present"
	}
	switch {
	case r.StartDate != "" && end != "":
		return r.StartDate + " - " + end
	case r.StartDate != "":
		return r.StartDate
	}
	return end
}

type Education struct {
	Institution string `json:"institution"`
	Degree      string `json:"degree,omitempty"`
	Field       string `json:"field,omitempty"`
	StartDate   string `json:"startDate,omitempty"`
	EndDate     string `json:"endDate,omitempty"`
}

type Skills struct {
	Technical []string `json:"technical,omitempty"`
	Soft      []string `json:"soft,omitempty"`
	Tools     []string `json:"tools,omitempty"`
}

func (s Skills) Empty() bool {
	return len(s.Technical) == 0 && len(s.Soft) == 0 && len(s.Tools) == 0
}

// All returns every skill, technical first.
func (s Skills) All() []string {
	out := make([]string, 0, len(s.Technical)+len(s.Soft)+len(s.Tools))
	out = append(out, s.Technical...)
	out = append(out, s.Tools...)
	return append(out, s.Soft...)
}

type Certification struct {
	Name   string `json:"name"`
	Issuer string `json:"issuer,omitempty"`
	Date   string `json:"date,omitempty"`
	URL    string `json:"url,omitempty"`
}

type Project struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	URL         string   `json:"url,omitempty"`
	Image       string   `json:"image,omitempty"`
	Stack       []string `json:"stack,omitempty"`
}

type Language struct {
	Name        string `json:"name"`
	Proficiency string `json:"proficiency,omitempty"`
}

type Testimonial struct {
	Author string `json:"author"`
	Role   string `json:"role,omitempty"`
	Quote  string `json:"quote"`
}

type Resume struct {
	PersonalInfo   PersonalInfo    `json:"personalInfo"`
	Summary        string          `json:"summary,omitempty"`
	Experience     []Role          `json:"experience,omitempty"`
	Education      []Education     `json:"education,omitempty"`
	Skills         Skills          `json:"skills"`
	Certifications []Certification `json:"certifications,omitempty"`
	Projects       []Project       `json:"projects,omitempty"`
	Languages      []Language      `json:"languages,omitempty"`
	Achievements   []string        `json:"achievements,omitempty"`
	Testimonials   []Testimonial   `json:"testimonials,omitempty"`
	SocialLinks    []string        `json:"socialLinks,omitempty"`
	Language       string          `json:"language,omitempty"`
}

// Links returns the contact links in display order, skipping empty ones.
func (r *Resume) Links() []string {
	var out []string
	for _, l := range []string{r.PersonalInfo.Website, r.PersonalInfo.LinkedIn, r.PersonalInfo.GitHub} {
		if l != "" {
			out = append(out, l)
		}
	}
	return append(out, r.SocialLinks...)
}
