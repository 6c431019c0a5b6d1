// internal/warroom/phase.go
//
// Phases of a war room session and the input gates that unlock the
// operator's text box. A session moves forward through the phases in a
// fixed order; the only loop is review -> refactor -> re-review.

package warroom

// Phase represents a stage of the war room script
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseIntroPlaying
	PhaseAwaitingStakeholder
	PhaseAwaitingFirstInput
	PhaseRebuttalPlaying
	PhaseAwaitingApproval
	PhaseSynthesizing
	PhasePipelineRunning
	PhaseAwaitingResolution
	PhaseCodeWriting
	PhaseAwaitingReview1
	PhaseAwaitingRefactorDirective
	PhaseRefactoring
	PhaseAwaitingReview2
	PhaseApproved
	PhaseComplete
)

// String returns the stable kebab-case name used in events and metrics
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseIntroPlaying:
		return "intro-playing"
	case PhaseAwaitingStakeholder:
		return "awaiting-stakeholder"
	case PhaseAwaitingFirstInput:
		return "awaiting-first-input"
	case PhaseRebuttalPlaying:
		return "rebuttal-playing"
	case PhaseAwaitingApproval:
		return "awaiting-approval"
	case PhaseSynthesizing:
		return "synthesizing"
	case PhasePipelineRunning:
		return "pipeline-running"
	case PhaseAwaitingResolution:
		return "awaiting-resolution"
	case PhaseCodeWriting:
		return "code-writing"
	case PhaseAwaitingReview1:
		return "awaiting-review-1"
	case PhaseAwaitingRefactorDirective:
		return "awaiting-refactor-directive"
	case PhaseRefactoring:
		return "refactoring"
	case PhaseAwaitingReview2:
		return "awaiting-review-2"
	case PhaseApproved:
		return "approved"
	case PhaseComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// FriendlyName returns a short description suitable for the status header
func (p Phase) FriendlyName() string {
	switch p {
	case PhaseIdle:
		return "Standing By"
	case PhaseIntroPlaying:
		return "Briefing"
	case PhaseAwaitingStakeholder:
		return "Invite a Stakeholder"
	case PhaseAwaitingFirstInput, PhaseAwaitingApproval:
		return "Awaiting CTO"
	case PhaseRebuttalPlaying:
		return "Discussion"
	case PhaseSynthesizing:
		return "Synthesizing Decision"
	case PhasePipelineRunning:
		return "Pipeline Running"
	case PhaseAwaitingResolution:
		return "Incident: Awaiting Resolution"
	case PhaseCodeWriting:
		return "Agents Writing Code"
	case PhaseAwaitingReview1, PhaseAwaitingReview2:
		return "Pull Request Review"
	case PhaseAwaitingRefactorDirective:
		return "Awaiting Refactor Directive"
	case PhaseRefactoring:
		return "Agents Refactoring"
	case PhaseApproved:
		return "Deploying"
	case PhaseComplete:
		return "Operational"
	default:
		return p.String()
	}
}

// Phases lists every phase in script order.
func Phases() []Phase {
	out := make([]Phase, 0, int(PhaseComplete)+1)
	for p := PhaseIdle; p <= PhaseComplete; p++ {
		out = append(out, p)
	}
	return out
}

// IsReview reports whether a pull request is awaiting the operator.
func (p Phase) IsReview() bool {
	return p == PhaseAwaitingReview1 || p == PhaseAwaitingReview2
}

// IsTerminal returns true if the script has nothing left to play
func (p Phase) IsTerminal() bool {
	return p == PhaseComplete
}

// Gate selects where the operator's next submission is routed. GateNone
// means the input is locked; there is no separate lock flag.
type Gate int

const (
	GateNone Gate = iota
	GateFirstInput
	GateApproval
	GateResolution
	GateRefactorDirective
)

// String returns the gate key used for placeholders and events.
func (g Gate) String() string {
	switch g {
	case GateFirstInput:
		return "first_input"
	case GateApproval:
		return "approval"
	case GateResolution:
		return "resolution"
	case GateRefactorDirective:
		return "refactor_directive"
	default:
		return "none"
	}
}

// Open reports whether input is unlocked.
func (g Gate) Open() bool {
	return g != GateNone
}
