package lifecycle

import "testing"

func TestCanShowComponent(t *testing.T) {
	tests := []struct {
		phase   Phase
		section Section
		want    bool
	}{
		{PhaseInitial, SectionJoin, true},
		{PhasePendingMembers, SectionInvites, true},
		{PhaseVoteAdmins, SectionJoin, false},
		{PhaseVoteAdmins, SectionAdminElection, true},
		{PhaseNegotiation, SectionAdminElection, false},
		{PhaseNegotiation, SectionOffers, true},
		{PhaseNegotiation, SectionVoting, true},
		{PhaseContracting, SectionContracts, true},
		{PhaseContracting, SectionArbitration, true},
		{PhaseSupervised, SectionSupervision, true},
		{PhaseClosed, SectionVoting, false},
		{PhaseClosed, SectionSummary, true},
		{PhaseClosed, SectionMembers, true},
		{PhaseUnknown, SectionMembers, false},
		{PhaseInitial, Section("nope"), false},
	}
	for _, tc := range tests {
		t.Run(string(tc.phase)+"/"+string(tc.section), func(t *testing.T) {
			if got := CanShowComponent(tc.phase, tc.section); got != tc.want {
				t.Fatalf("CanShowComponent = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSectionVisibilityCoversEverySection(t *testing.T) {
	vis := SectionVisibility(PhaseNegotiation)
	if len(vis) != len(Sections()) {
		t.Fatalf("got %d sections, want %d", len(vis), len(Sections()))
	}
	for s := range vis {
		if _, ok := sectionPhases[s]; !ok {
			t.Fatalf("section %q has no phase table", s)
		}
	}
}
