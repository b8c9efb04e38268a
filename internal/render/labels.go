package render

import (
	"strings"

	"cv-generator/internal/domain"
)

const DefaultLanguage = "en"

var labelSets = map[string]map[string]string{
	"en": {
		"professional_summary": "Professional Summary",
		"experience":           "Experience",
		"education":            "Education",
		"skills":               "Skills",
		"skills_technical":     "Technical",
		"skills_tools":         "Tools",
		"skills_soft":          "Soft Skills",
		"video_introduction":   "Video Introduction",
		"podcast":              "Profile Podcast",
		"timeline":             "Career Timeline",
		"skills_chart":         "Skills Overview",
		"languages":            "Languages",
		"certifications":       "Certifications",
		"achievements":         "Top Achievements",
		"portfolio":            "Selected Projects",
		"testimonials":         "Testimonials",
		"ats_insights":         "ATS Insights",
		"personality":          "Personality Insights",
		"social_links":         "Find Me Online",
		"calendar":             "Schedule a Conversation",
		"contact_form":         "Get in Touch",
		"qr_code":              "Scan to View Online",
		"downloads":            "Downloads",
		"download_pdf":         "Download PDF",
		"download_docx":        "Download DOCX",
		"print":                "Print",
		"generated":            "Generated",
		"references_available": "References available on request",
	},
	"pt": {
		"professional_summary": "Resumo Profissional",
		"experience":           "Experiência",
		"education":            "Formação",
		"skills":               "Competências",
		"skills_technical":     "Técnicas",
		"skills_tools":         "Ferramentas",
		"skills_soft":          "Comportamentais",
		"video_introduction":   "Vídeo de Apresentação",
		"podcast":              "Podcast do Perfil",
		"timeline":             "Linha do Tempo",
		"skills_chart":         "Visão Geral de Competências",
		"languages":            "Idiomas",
		"certifications":       "Certificações",
		"achievements":         "Principais Conquistas",
		"portfolio":            "Projetos Selecionados",
		"testimonials":         "Depoimentos",
		"ats_insights":         "Análise ATS",
		"personality":          "Perfil Comportamental",
		"social_links":         "Redes",
		"calendar":             "Agende uma Conversa",
		"contact_form":         "Contato",
		"qr_code":              "Acesse Online",
		"downloads":            "Downloads",
		"download_pdf":         "Baixar PDF",
		"download_docx":        "Baixar DOCX",
		"print":                "Imprimir",
		"generated":            "Gerado em",
		"references_available": "Referências disponíveis mediante solicitação",
	},
	"es": {
		"professional_summary": "Resumen Profesional",
		"experience":           "Experiencia",
		"education":            "Educación",
		"skills":               "Habilidades",
		"skills_technical":     "Técnicas",
		"skills_tools":         "Herramientas",
		"skills_soft":          "Interpersonales",
		"video_introduction":   "Video de Presentación",
		"podcast":              "Podcast del Perfil",
		"timeline":             "Trayectoria",
		"skills_chart":         "Resumen de Habilidades",
		"languages":            "Idiomas",
		"certifications":       "Certificaciones",
		"achievements":         "Logros Destacados",
		"portfolio":            "Proyectos Seleccionados",
		"testimonials":         "Testimonios",
		"ats_insights":         "Análisis ATS",
		"personality":          "Perfil de Personalidad",
		"social_links":         "En Línea",
		"calendar":             "Agenda una Conversación",
		"contact_form":         "Contacto",
		"qr_code":              "Ver en Línea",
		"downloads":            "Descargas",
		"download_pdf":         "Descargar PDF",
		"download_docx":        "Descargar DOCX",
		"print":                "Imprimir",
		"generated":            "Generado",
		"references_available": "Referencias disponibles a solicitud",
	},
}

var slotLabels = map[domain.Slot]string{
	domain.SlotVideoIntro:     "video_introduction",
	domain.SlotPodcast:        "podcast",
	domain.SlotTimeline:       "timeline",
	domain.SlotSkillsChart:    "skills_chart",
	domain.SlotLanguages:      "languages",
	domain.SlotCertifications: "certifications",
	domain.SlotAchievements:   "achievements",
	domain.SlotPortfolio:      "portfolio",
	domain.SlotTestimonials:   "testimonials",
	domain.SlotATSInsights:    "ats_insights",
	domain.SlotPersonality:    "personality",
	domain.SlotSocialLinks:    "social_links",
	domain.SlotCalendar:       "calendar",
	domain.SlotContactForm:    "contact_form",
	domain.SlotQRCode:         "qr_code",
}

// Labels returns the heading set for lang, falling back to English for
// unknown languages. Regional variants ("pt-BR") use their base language.
func Labels(lang string) map[string]string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	if l, ok := labelSets[lang]; ok {
		return l
	}
	return labelSets[DefaultLanguage]
}
