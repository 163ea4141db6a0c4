package lifecycle

import "testing"

func TestPipelineStatuses(t *testing.T) {
	steps := Pipeline(PhaseNegotiation, LangEnglish, PipelineMetrics{ClosedSessions: 1, TotalSessions: 4})
	want := []StepStatus{StepCompleted, StepCompleted, StepCompleted, StepActive, StepPending, StepLocked}
	if len(steps) != len(want) {
		t.Fatalf("got %d steps", len(steps))
	}
	for i, s := range steps {
		if s.Status != want[i] {
			t.Fatalf("step %s status = %s, want %s", s.ID, s.Status, want[i])
		}
	}
	if steps[3].Label != "Active Negotiation" {
		t.Fatalf("label = %q", steps[3].Label)
	}
	if steps[3].Progress == nil || *steps[3].Progress != 25 {
		t.Fatalf("active progress = %v", steps[3].Progress)
	}
	if steps[4].Progress != nil || steps[5].Progress != nil {
		t.Fatalf("future steps must not report progress")
	}
}

func TestPipelineActiveProgress(t *testing.T) {
	tests := []struct {
		name  string
		phase Phase
		m     PipelineMetrics
		want  *float64
	}{
		{"foundation fields", PhaseInitial, PipelineMetrics{FilledFields: 4, TotalFields: 5}, ptr(80)},
		{"recruitment ratio", PhasePendingMembers, PipelineMetrics{MemberCount: 3, MinMembers: 4}, ptr(75)},
		{"recruitment capped", PhasePendingMembers, PipelineMetrics{MemberCount: 9, MinMembers: 4}, ptr(100)},
		{"leadership without admin", PhaseVoteAdmins, PipelineMetrics{}, ptr(0)},
		{"contracting without sessions", PhaseContracting, PipelineMetrics{}, nil},
		{"recruitment without minimum", PhasePendingMembers, PipelineMetrics{MemberCount: 2}, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var active *Step
			for _, s := range Pipeline(tc.phase, LangEnglish, tc.m) {
				if s.Status == StepActive {
					s := s
					active = &s
				}
			}
			if active == nil {
				t.Fatalf("no active step")
			}
			switch {
			case tc.want == nil && active.Progress != nil:
				t.Fatalf("progress = %v, want nil", *active.Progress)
			case tc.want != nil && (active.Progress == nil || *active.Progress != *tc.want):
				t.Fatalf("progress = %v, want %v", active.Progress, *tc.want)
			}
		})
	}
}

func TestPipelineClosedAndUnknown(t *testing.T) {
	for _, s := range Pipeline(PhaseClosed, LangFrench, PipelineMetrics{}) {
		if s.Status != StepCompleted {
			t.Fatalf("closed: step %s is %s", s.ID, s.Status)
		}
	}
	for _, s := range Pipeline(Phase("bogus"), LangEnglish, PipelineMetrics{}) {
		if s.Status != StepLocked || s.Progress != nil {
			t.Fatalf("unknown: step %s is %s", s.ID, s.Status)
		}
	}
}

func ptr(v float64) *float64 { return &v }
