package domain

import "strings"

// FeatureID identifies an enhancement feature. The set is closed: every id
// has an entry in catalogue.
type FeatureID string

const (
	FeatureQRCode          FeatureID = "embed-qr-code"
	FeaturePodcast         FeatureID = "generate-podcast"
	FeatureVideoIntro      FeatureID = "video-introduction"
	FeatureSkillsChart     FeatureID = "skills-visualization"
	FeatureTimeline        FeatureID = "interactive-timeline"
	FeatureAchievements    FeatureID = "achievement-badges"
	FeatureTestimonials    FeatureID = "testimonials-carousel"
	FeatureCertifications  FeatureID = "certification-badges"
	FeatureLanguages       FeatureID = "language-proficiency"
	FeaturePortfolio       FeatureID = "portfolio-gallery"
	FeatureSocialLinks     FeatureID = "social-media-links"
	FeatureContactForm     FeatureID = "contact-form"
	FeatureCalendar        FeatureID = "calendar-integration"
	FeatureATSOptimization FeatureID = "ats-optimization"
	FeaturePersonality     FeatureID = "personality-insights"
	FeaturePrivacyMode     FeatureID = "privacy-mode"
)

// Slot names a place in the rendered document a feature fragment lands in.
type Slot string

const (
	SlotQRCode         Slot = "qrCode"
	SlotPodcast        Slot = "podcast"
	SlotVideoIntro     Slot = "videoIntroduction"
	SlotSkillsChart    Slot = "skillsChart"
	SlotTimeline       Slot = "timeline"
	SlotAchievements   Slot = "achievements"
	SlotTestimonials   Slot = "testimonials"
	SlotCertifications Slot = "certifications"
	SlotLanguages      Slot = "languages"
	SlotPortfolio      Slot = "portfolio"
	SlotSocialLinks    Slot = "socialLinks"
	SlotContactForm    Slot = "contactForm"
	SlotCalendar       Slot = "calendar"
	SlotATSInsights    Slot = "atsInsights"
	SlotPersonality    Slot = "personality"
)

// SlotOrder is the fixed order feature slots appear in a rendered document.
var SlotOrder = []Slot{
	SlotVideoIntro,
	SlotPodcast,
	SlotTimeline,
	SlotSkillsChart,
	SlotLanguages,
	SlotCertifications,
	SlotAchievements,
	SlotPortfolio,
	SlotTestimonials,
	SlotATSInsights,
	SlotPersonality,
	SlotSocialLinks,
	SlotCalendar,
	SlotContactForm,
	SlotQRCode,
}

// DefaultFeatureEstimate is charged for ids without a catalogue estimate.
const DefaultFeatureEstimate = 60

type featureSpec struct {
	estimate int
	slot     Slot
}

var catalogue = map[FeatureID]featureSpec{
	FeatureQRCode:          {25, SlotQRCode},
	FeaturePodcast:         {180, SlotPodcast},
	FeatureVideoIntro:      {200, SlotVideoIntro},
	FeatureSkillsChart:     {45, SlotSkillsChart},
	FeatureTimeline:        {60, SlotTimeline},
	FeatureAchievements:    {30, SlotAchievements},
	FeatureTestimonials:    {40, SlotTestimonials},
	FeatureCertifications:  {20, SlotCertifications},
	FeatureLanguages:       {15, SlotLanguages},
	FeaturePortfolio:       {90, SlotPortfolio},
	FeatureSocialLinks:     {15, SlotSocialLinks},
	FeatureContactForm:     {20, SlotContactForm},
	FeatureCalendar:        {35, SlotCalendar},
	FeatureATSOptimization: {120, SlotATSInsights},
	FeaturePersonality:     {90, SlotPersonality},
	FeaturePrivacyMode:     {15, ""},
}

// AllFeatures lists the catalogue in a stable order.
var AllFeatures = []FeatureID{
	FeatureQRCode, FeaturePodcast, FeatureVideoIntro, FeatureSkillsChart,
	FeatureTimeline, FeatureAchievements, FeatureTestimonials, FeatureCertifications,
	FeatureLanguages, FeaturePortfolio, FeatureSocialLinks, FeatureContactForm,
	FeatureCalendar, FeatureATSOptimization, FeaturePersonality, FeaturePrivacyMode,
}

func (f FeatureID) Known() bool {
	_, ok := catalogue[f]
	return ok
}

// Estimate returns the static duration estimate in seconds.
func (f FeatureID) Estimate() int {
	if s, ok := catalogue[f]; ok {
		return s.estimate
	}
	return DefaultFeatureEstimate
}

// Slot returns the output slot of the feature, if it has one.
func (f FeatureID) Slot() (Slot, bool) {
	s, ok := catalogue[f]
	if !ok || s.slot == "" {
		return "", false
	}
	return s.slot, true
}

// ParseFeatureIDs keeps known ids in request order, dropping unknown ones
// and duplicates.
func ParseFeatureIDs(raw []string) []FeatureID {
	out := make([]FeatureID, 0, len(raw))
	seen := make(map[FeatureID]bool, len(raw))
	for _, r := range raw {
		id := FeatureID(strings.ToLower(strings.TrimSpace(r)))
		if !id.Known() || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// FeatureStrings converts ids back to plain strings for responses.
func FeatureStrings(ids []FeatureID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
