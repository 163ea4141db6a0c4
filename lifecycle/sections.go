package lifecycle

// Section names a client area that is shown or hidden per phase.
type Section string

const (
	SectionMembers       Section = "members"
	SectionJoin          Section = "join"
	SectionInvites       Section = "invites"
	SectionAdminElection Section = "admin_election"
	SectionVoting        Section = "voting"
	SectionOffers        Section = "offers"
	SectionNegotiation   Section = "negotiation"
	SectionContracts     Section = "contracts"
	SectionSupervision   Section = "supervision"
	SectionArbitration   Section = "arbitration"
	SectionSummary       Section = "summary"
)

var sectionPhases = map[Section][]Phase{
	SectionMembers:       phaseOrder,
	SectionJoin:          {PhaseInitial, PhasePendingMembers},
	SectionInvites:       {PhaseInitial, PhasePendingMembers},
	SectionAdminElection: {PhaseVoteAdmins},
	SectionVoting:        {PhaseVoteAdmins, PhaseNegotiation, PhaseContracting, PhaseSupervised},
	SectionOffers:        {PhaseNegotiation},
	SectionNegotiation:   {PhaseNegotiation},
	SectionContracts:     {PhaseContracting, PhaseSupervised},
	SectionSupervision:   {PhaseSupervised},
	SectionArbitration:   {PhaseContracting, PhaseSupervised},
	SectionSummary:       {PhaseClosed},
}

// Sections lists every gated section in a stable order.
func Sections() []Section {
	return []Section{
		SectionMembers,
		SectionJoin,
		SectionInvites,
		SectionAdminElection,
		SectionVoting,
		SectionOffers,
		SectionNegotiation,
		SectionContracts,
		SectionSupervision,
		SectionArbitration,
		SectionSummary,
	}
}

// CanShowComponent reports whether section is visible while a group is in
// phase p. Unknown sections and unknown phases are never shown.
func CanShowComponent(p Phase, section Section) bool {
	for _, allowed := range sectionPhases[section] {
		if allowed == p {
			return true
		}
	}
	return false
}

// PhasesShowing lists the phases in which section is visible.
func PhasesShowing(section Section) []Phase {
	out := make([]Phase, len(sectionPhases[section]))
	copy(out, sectionPhases[section])
	return out
}

// SectionVisibility evaluates every section for p.
func SectionVisibility(p Phase) map[Section]bool {
	out := make(map[Section]bool, len(sectionPhases))
	for _, s := range Sections() {
		out[s] = CanShowComponent(p, s)
	}
	return out
}
