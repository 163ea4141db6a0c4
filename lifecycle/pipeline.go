package lifecycle

// StepStatus is the display state of a pipeline step.
type StepStatus string

const (
	StepCompleted StepStatus = "completed"
	StepActive    StepStatus = "active"
	StepPending   StepStatus = "pending"
	StepLocked    StepStatus = "locked"
)

type stepDef struct {
	id    string
	phase Phase
}

var pipelineSteps = []stepDef{
	{"foundation", PhaseInitial},
	{"recruitment", PhasePendingMembers},
	{"leadership", PhaseVoteAdmins},
	{"negotiation", PhaseNegotiation},
	{"contracting", PhaseContracting},
	{"execution", PhaseSupervised},
}

// PipelineMetrics are the measurable sub-tasks behind the active step.
type PipelineMetrics struct {
	FilledFields   int
	TotalFields    int
	MemberCount    int
	MinMembers     int
	Admins         int
	ClosedSessions int
	TotalSessions  int
}

// Step is one rendered pipeline entry. Progress is nil when there is
// nothing to measure.
type Step struct {
	ID       string     `json:"id"`
	Phase    Phase      `json:"phase"`
	Label    string     `json:"label"`
	Status   StepStatus `json:"status"`
	Progress *float64   `json:"progress"`
}

// Pipeline builds the six step pipeline for a group in phase current.
// An unknown phase locks every step.
func Pipeline(current Phase, lang Language, m PipelineMetrics) []Step {
	steps := make([]Step, len(pipelineSteps))
	cur := current.Index()
	for i, def := range pipelineSteps {
		step := Step{ID: def.id, Phase: def.phase, Label: Label(def.phase, lang)}
		idx := def.phase.Index()
		switch {
		case cur < 0:
			step.Status = StepLocked
		case idx < cur:
			step.Status = StepCompleted
			step.Progress = percent(1, 1)
		case idx == cur:
			step.Status = StepActive
			step.Progress = stepProgress(def.phase, m)
		case idx == cur+1:
			step.Status = StepPending
		default:
			step.Status = StepLocked
		}
		steps[i] = step
	}
	return steps
}

func stepProgress(p Phase, m PipelineMetrics) *float64 {
	switch p {
	case PhaseInitial:
		return percent(m.FilledFields, m.TotalFields)
	case PhasePendingMembers:
		return percent(m.MemberCount, m.MinMembers)
	case PhaseVoteAdmins:
		return percent(m.Admins, 1)
	default:
		return percent(m.ClosedSessions, m.TotalSessions)
	}
}

// percent returns done/total as a capped percentage, nil when total is 0.
func percent(done, total int) *float64 {
	if total <= 0 {
		return nil
	}
	if done > total {
		done = total
	}
	if done < 0 {
		done = 0
	}
	v := round1(100 * float64(done) / float64(total))
	return &v
}
