package lifecycle

import "strings"

// Language is a supported UI locale.
type Language string

const (
	LangEnglish Language = "en"
	LangArabic  Language = "ar"
	LangFrench  Language = "fr"
)

// DefaultLanguage is used whenever a requested locale is not supported.
const DefaultLanguage = LangEnglish

var phaseLabels = map[Language]map[Phase]string{
	LangEnglish: {
		PhaseInitial:        "Foundation Setup",
		PhasePendingMembers: "Member Recruitment",
		PhaseVoteAdmins:     "Leadership Election",
		PhaseNegotiation:    "Active Negotiation",
		PhaseContracting:    "Contract Formation",
		PhaseSupervised:     "Execution",
		PhaseClosed:         "Closed",
		PhaseUnknown:        "Unknown Phase",
	},
	LangArabic: {
		PhaseInitial:        "التأسيس",
		PhasePendingMembers: "استقطاب الأعضاء",
		PhaseVoteAdmins:     "انتخاب القيادة",
		PhaseNegotiation:    "التفاوض النشط",
		PhaseContracting:    "إبرام العقود",
		PhaseSupervised:     "التنفيذ",
		PhaseClosed:         "مغلقة",
		PhaseUnknown:        "مرحلة غير معروفة",
	},
	LangFrench: {
		PhaseInitial:        "Mise en place",
		PhasePendingMembers: "Recrutement des membres",
		PhaseVoteAdmins:     "Élection des responsables",
		PhaseNegotiation:    "Négociation active",
		PhaseContracting:    "Formation du contrat",
		PhaseSupervised:     "Exécution",
		PhaseClosed:         "Clôturé",
		PhaseUnknown:        "Phase inconnue",
	},
}

// NormalizeLanguage accepts "fr", "FR", "fr-CA" or an Accept-Language
// value and returns a supported locale.
func NormalizeLanguage(raw string) Language {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if i := strings.IndexAny(raw, ",;"); i >= 0 {
		raw = raw[:i]
	}
	if i := strings.IndexAny(raw, "-_"); i >= 0 {
		raw = raw[:i]
	}
	lang := Language(raw)
	if _, ok := phaseLabels[lang]; ok {
		return lang
	}
	return DefaultLanguage
}

// SupportedLanguage reports whether lang has a label table.
func SupportedLanguage(lang Language) bool {
	_, ok := phaseLabels[lang]
	return ok
}

// Label returns the localized name of p. Phases outside the catalog get
// the localized "Unknown Phase" label.
func Label(p Phase, lang Language) string {
	table, ok := phaseLabels[lang]
	if !ok {
		table = phaseLabels[DefaultLanguage]
	}
	if !p.Known() {
		p = PhaseUnknown
	}
	return table[p]
}
