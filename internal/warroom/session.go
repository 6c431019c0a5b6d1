// Package warroom sequences the scripted war room: it advances the phase
// machine, schedules timed reveals of chat messages and pipeline node
// changes, gates operator input and branches on the stakeholder choice and
// the review outcome.
//
// All state lives on a Session guarded by one mutex. Timed steps run on the
// session's timeline one at a time; the single network call (decision
// synthesis) is made with the mutex released.
package warroom

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kingrea/warroom/internal/eventbridge"
	"github.com/kingrea/warroom/internal/logbook"
	"github.com/kingrea/warroom/internal/metrics"
	"github.com/kingrea/warroom/internal/script"
	"github.com/kingrea/warroom/internal/synthesis"
	"github.com/kingrea/warroom/internal/timeline"
)

const defaultSynthesisTimeout = 20 * time.Second

// Session is one playthrough of the script.
type Session struct {
	id           string
	catalog      *script.Catalog
	timing       script.Timing
	variant      Variant
	clock        timeline.Clock
	tl           *timeline.Timeline
	synth        synthesis.Synthesizer
	synthTimeout time.Duration
	publisher    eventbridge.Publisher
	logger       *zap.Logger
	metrics      *metrics.Metrics
	journal      *logbook.Logbook
	speed        float64

	mu           sync.Mutex
	closed       bool
	phase        Phase
	gate         Gate
	messages     []Message
	nodes        []Node
	composing    *script.Speaker
	stakeholder  *script.Stakeholder
	summary      *synthesis.Summary
	review       *script.Review
	status       SystemStatus
	deployMarker string
	synthCalls   int
	cancelSynth  context.CancelFunc
	seq          int64
	outbox       []eventbridge.Event
}

// Option customizes session construction.
type Option func(*Session)

// WithCatalog replaces the embedded script.
func WithCatalog(c *script.Catalog) Option {
	return func(s *Session) {
		if c != nil {
			s.catalog = c
		}
	}
}

// WithVariant selects the playable branches.
func WithVariant(v Variant) Option {
	return func(s *Session) {
		if v != "" {
			s.variant = v
		}
	}
}

// WithClock drives the session's timeline from clock. Tests pass a
// *timeline.Manual.
func WithClock(clock timeline.Clock) Option {
	return func(s *Session) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithSpeed divides every scripted delay by speed.
func WithSpeed(speed float64) Option {
	return func(s *Session) {
		if speed > 0 {
			s.speed = speed
		}
	}
}

// WithSynthesizer sets the decision synthesis adapter.
func WithSynthesizer(syn synthesis.Synthesizer) Option {
	return func(s *Session) {
		if syn != nil {
			s.synth = syn
		}
	}
}

// WithSynthesisTimeout bounds the synthesis call. Zero disables the bound.
func WithSynthesisTimeout(d time.Duration) Option {
	return func(s *Session) {
		s.synthTimeout = d
	}
}

// WithPublisher receives an event for every state change.
func WithPublisher(p eventbridge.Publisher) Option {
	return func(s *Session) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithLogger overrides the default no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics records session counters on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Session) {
		s.metrics = m
	}
}

// WithJournal writes the decision log to j.
func WithJournal(j *logbook.Logbook) Option {
	return func(s *Session) {
		if j != nil {
			s.journal = j
		}
	}
}

// WithID fixes the session ID, which keys event subscriptions.
func WithID(id string) Option {
	return func(s *Session) {
		if id = strings.TrimSpace(id); id != "" {
			s.id = id
		}
	}
}

// New prepares an idle session. Nothing is scheduled until Start.
func New(opts ...Option) *Session {
	s := &Session{
		id:           uuid.NewString(),
		catalog:      script.MustDefault(),
		variant:      VariantFull,
		synth:        synthesis.Disabled{},
		synthTimeout: defaultSynthesisTimeout,
		publisher:    eventbridge.Discard,
		logger:       zap.NewNop(),
		journal:      logbook.Memory(),
		speed:        1,
		phase:        PhaseIdle,
		gate:         GateNone,
		status:       SystemPending,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.tl = timeline.New(s.clock)
	s.timing = s.catalog.Timing.Scaled(s.speed)
	s.logger = s.logger.With(zap.String("session_id", s.id))
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Catalog returns the script the session plays.
func (s *Session) Catalog() *script.Catalog { return s.catalog }

// Journal returns the decision log.
func (s *Session) Journal() *logbook.Logbook { return s.journal }

// Start plays the opening dialogue. Only valid from idle.
func (s *Session) Start() {
	s.mu.Lock()
	defer s.commit()
	if s.closed || s.phase != PhaseIdle {
		return
	}
	s.metrics.SessionStarted()
	s.journal.Info("session %s started (%s variant)", shortID(s.id), s.variant)
	s.setPhaseLocked(PhaseIntroPlaying)
	s.revealLocked(s.catalog.Intro, s.timing.IntroStart, func() {
		if s.variant == VariantClassic {
			s.setPhaseLocked(PhaseAwaitingFirstInput)
			s.openGateLocked(GateFirstInput)
			return
		}
		s.setPhaseLocked(PhaseAwaitingStakeholder)
	})
}

// SelectStakeholder invites a stakeholder into the room. Only valid once,
// while awaiting the stakeholder, with a known id.
func (s *Session) SelectStakeholder(id script.SpeakerID) {
	s.mu.Lock()
	defer s.commit()
	if s.closed || s.phase != PhaseAwaitingStakeholder || s.stakeholder != nil {
		return
	}
	sh, ok := s.catalog.Stakeholder(id)
	if !ok {
		s.logger.Debug("unknown stakeholder ignored", zap.String("stakeholder", string(id)))
		return
	}
	s.stakeholder = &sh
	s.journal.Info("%s (%s) joined the room", sh.Name, sh.Role)
	s.revealLocked([]script.Line{sh.OpeningLine()}, s.timing.StakeholderOpeningStart, func() {
		s.setPhaseLocked(PhaseAwaitingFirstInput)
		s.openGateLocked(GateFirstInput)
	})
}

// Submit routes operator text through the open gate. Empty text, or any
// call while the gate is closed, is ignored. Submitting the approval
// directive blocks for the synthesis call.
func (s *Session) Submit(ctx context.Context, text string) {
	text = strings.TrimSpace(text)
	s.mu.Lock()
	if s.closed || !s.gate.Open() || text == "" {
		s.commit()
		return
	}
	gate := s.gate
	s.appendLocked(script.Line{Speaker: s.catalog.Operator, Text: text, Kind: script.KindChat})
	s.closeGateLocked()
	s.journal.Info("directive at %s: %q", gate, text)

	switch gate {
	case GateFirstInput:
		s.playRebuttalLocked()
	case GateApproval:
		s.setPhaseLocked(PhaseSynthesizing)
		history := s.historyLocked(len(s.messages) - 1)
		s.synthCalls++
		if ctx == nil {
			ctx = context.Background()
		}
		callCtx, cancel := context.WithCancel(ctx)
		s.cancelSynth = cancel
		s.commit()

		summary := s.synthesize(callCtx, text, history)
		cancel()

		s.mu.Lock()
		s.cancelSynth = nil
		if !s.closed {
			s.runPipelineLocked(summary)
		}
	case GateResolution:
		s.runCodeWritingLocked()
	case GateRefactorDirective:
		s.runRefactorLocked()
	}
	s.commit()
}

// RequestChanges rejects the first pull request and asks the operator for a
// refactor directive. Full variant only.
func (s *Session) RequestChanges() {
	s.mu.Lock()
	defer s.commit()
	if s.closed || s.phase != PhaseAwaitingReview1 || s.variant != VariantFull {
		return
	}
	s.journal.Info("changes requested on #%d", s.review.Number)
	s.review = nil
	s.setPhaseLocked(PhaseAwaitingRefactorDirective)
	s.openGateLocked(GateRefactorDirective)
}

// Approve merges the open pull request and plays the deployment.
func (s *Session) Approve() {
	s.mu.Lock()
	defer s.commit()
	if s.closed || !s.phase.IsReview() {
		return
	}
	s.journal.Info("approved and merged #%d", s.review.Number)
	s.review = nil
	s.setPhaseLocked(PhaseApproved)
	designated := s.catalog.DesignatedNode
	s.tl.After(s.timing.SuccessFlipAt, s.guarded(func() {
		s.updateNodesLocked(func(n *Node) {
			if n.ID == designated {
				n.Status = NodeSuccess
				n.Detail = s.detail(n.ID, script.StageSuccess)
			}
		})
	}))
	s.revealLocked([]script.Line{s.catalog.Lines.FinalNotice}, s.timing.FinalNoticeStart, nil)
	s.tl.After(s.timing.OperationalAt, s.guarded(func() {
		s.status = SystemOperational
		s.deployMarker = s.catalog.DeployMarker
		s.emitLocked(eventbridge.EventSystemOperational, s.deployMarker)
		s.journal.Info("deployed %s, system operational", s.deployMarker)
		s.setPhaseLocked(PhaseComplete)
		s.metrics.SessionCompleted()
	}))
}

// Close tears the session down. Pending steps are cancelled, an in-flight
// synthesis call is cancelled, and every later call is a no-op.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.composing = nil
	if s.cancelSynth != nil {
		s.cancelSynth()
	}
	s.tl.Close()
	s.emitLocked(eventbridge.EventSessionClosed, s.phase.String())
	s.commit()
	s.logger.Debug("session closed")
}

// Closed reports whether Close has run.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// SynthesisCalls reports how many times the synthesizer was invoked.
func (s *Session) SynthesisCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.synthCalls
}

// Pending reports scheduled steps that have not run yet.
func (s *Session) Pending() int {
	return s.tl.Pending()
}

// Snapshot returns a deep copy of the observable state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		SessionID:    s.id,
		Variant:      s.variant,
		Phase:        s.phase,
		Gate:         s.gate,
		Messages:     append([]Message(nil), s.messages...),
		Nodes:        append([]Node(nil), s.nodes...),
		Status:       s.status,
		DeployMarker: s.deployMarker,
		Synthesizing: s.phase == PhaseSynthesizing,
		Closed:       s.closed,
	}
	if s.gate.Open() {
		snap.Placeholder = s.catalog.Placeholder(s.gate.String())
	}
	if s.composing != nil {
		c := *s.composing
		snap.Composing = &c
	}
	if s.stakeholder != nil {
		sh := *s.stakeholder
		snap.Stakeholder = &sh
	}
	if s.summary != nil {
		sum := *s.summary
		sum.Components = append([]string(nil), s.summary.Components...)
		snap.Summary = &sum
	}
	if s.review != nil {
		r := *s.review
		r.Diff = append([]script.DiffLine(nil), s.review.Diff...)
		snap.Review = &r
	}
	return snap
}

func (s *Session) playRebuttalLocked() {
	s.setPhaseLocked(PhaseRebuttalPlaying)
	s.revealLocked([]script.Line{s.catalog.Lines.Rebuttal}, s.timing.RebuttalStart, func() {
		if s.stakeholder == nil {
			s.awaitApprovalLocked()
			return
		}
		s.revealLocked([]script.Line{s.stakeholder.FollowupLine()}, s.timing.StakeholderFollowupStart, s.awaitApprovalLocked)
	})
}

func (s *Session) awaitApprovalLocked() {
	s.setPhaseLocked(PhaseAwaitingApproval)
	s.openGateLocked(GateApproval)
}

func (s *Session) synthesize(ctx context.Context, directive string, history []synthesis.Turn) *synthesis.Summary {
	if s.synthTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.synthTimeout)
		defer cancel()
	}
	start := time.Now()
	summary, err := s.synth.Synthesize(ctx, directive, history)
	if err != nil {
		s.logger.Warn("decision synthesis failed, continuing without summary",
			zap.Error(err),
			zap.String("result", synthesis.Describe(err)),
			zap.Duration("elapsed", time.Since(start)),
		)
		s.journal.Warn("decision synthesis unavailable: %s", synthesis.Describe(err))
		return nil
	}
	s.journal.Info("decision: %s (risk %s, complexity %s)", summary.Title, summary.RiskLevel, summary.Complexity)
	return &summary
}

func (s *Session) runPipelineLocked(summary *synthesis.Summary) {
	s.setPhaseLocked(PhasePipelineRunning)
	if summary != nil {
		s.summary = summary
		s.emitLocked(eventbridge.EventSummaryStored, summary.Title)
	}
	s.nodes = make([]Node, 0, len(s.catalog.Nodes))
	for _, spec := range s.catalog.Nodes {
		s.nodes = append(s.nodes, Node{
			ID:         spec.ID,
			Label:      spec.Label,
			Status:     NodeWorking,
			Detail:     spec.Detail(script.StageWorking),
			Designated: spec.ID == s.catalog.DesignatedNode,
		})
	}
	s.emitLocked(eventbridge.EventNodesUpdated, "pipeline started")

	designated := s.catalog.DesignatedNode
	s.tl.After(s.timing.LockFailureAt, s.guarded(func() {
		s.updateNodesLocked(func(n *Node) {
			if n.ID == designated {
				n.Status = NodeError
				n.Detail = s.detail(n.ID, script.StageError)
			}
		})
		s.journal.Error("%s reported a lock leak", designated)
	}))
	s.revealLocked([]script.Line{s.catalog.Lines.LockAlert}, s.timing.AlertStart, func() {
		s.revealLocked([]script.Line{s.catalog.Lines.Escalation}, s.timing.EscalationStart, func() {
			s.setPhaseLocked(PhaseAwaitingResolution)
			s.openGateLocked(GateResolution)
		})
	})
}

func (s *Session) runCodeWritingLocked() {
	s.setPhaseLocked(PhaseCodeWriting)
	s.runAgentsLocked(script.StageCoding, s.catalog.Lines.CompileNotice, PhaseAwaitingReview1, 1)
}

func (s *Session) runRefactorLocked() {
	s.setPhaseLocked(PhaseRefactoring)
	s.runAgentsLocked(script.StageRefactoring, s.catalog.Lines.RefactorNotice, PhaseAwaitingReview2, 2)
}

// runAgentsLocked is the shared shape of code writing and refactoring: all
// nodes go back to work, a system notice plays, then a review opens.
func (s *Session) runAgentsLocked(stage script.Stage, notice script.Line, next Phase, version int) {
	s.tl.After(s.timing.WorkFlipAt, s.guarded(func() {
		s.updateNodesLocked(func(n *Node) {
			n.Status = NodeWorking
			n.Detail = s.detail(n.ID, stage)
		})
	}))
	s.revealLocked([]script.Line{notice}, s.timing.NoticeStart, nil)
	s.tl.After(s.timing.ReviewAt, s.guarded(func() {
		review, ok := s.catalog.Review(version)
		if !ok {
			s.logger.Error("review artifact missing", zap.Int("version", version))
			return
		}
		s.review = &review
		s.setPhaseLocked(next)
		s.emitLocked(eventbridge.EventReviewOpened, fmt.Sprintf("#%d", review.Number))
		s.journal.Info("pull request #%d opened: %s", review.Number, review.Title)
	}))
}

// revealLocked schedules lines on the timeline. onComplete runs under the
// session lock like every other step.
func (s *Session) revealLocked(lines []script.Line, startAt time.Duration, onComplete func()) {
	var done func()
	if onComplete != nil {
		done = s.guarded(onComplete)
	}
	timeline.Reveal(s.tl, timeline.Pace{Typing: s.timing.Typing, Pause: s.timing.Pause}, lines, startAt,
		timeline.Stage[script.Line]{
			Composing: func(line script.Line) {
				s.guarded(func() {
					sp := s.speaker(line.Speaker)
					s.composing = &sp
					s.emitLocked(eventbridge.EventComposing, sp.Name)
				})()
			},
			Deliver: func(line script.Line) {
				s.guarded(func() {
					s.composing = nil
					s.appendLocked(line)
				})()
			},
		}, done)
}

// guarded wraps a timeline step: it takes the lock, skips the step once the
// session is closed, and publishes whatever the step emitted.
func (s *Session) guarded(fn func()) func() {
	return func() {
		s.mu.Lock()
		defer s.commit()
		if s.closed {
			return
		}
		fn()
	}
}

func (s *Session) appendLocked(line script.Line) {
	kind := line.Kind
	if kind == "" {
		kind = script.KindChat
	}
	msg := Message{
		ID:        uuid.NewString(),
		Speaker:   s.speaker(line.Speaker),
		Text:      line.Text,
		Kind:      kind,
		CreatedAt: s.tl.Now(),
	}
	s.messages = append(s.messages, msg)
	s.emitLocked(eventbridge.EventMessageAppended, msg.Speaker.Name)
}

func (s *Session) historyLocked(n int) []synthesis.Turn {
	if n > len(s.messages) {
		n = len(s.messages)
	}
	turns := make([]synthesis.Turn, 0, n)
	for _, m := range s.messages[:n] {
		turns = append(turns, synthesis.Turn{SpeakerLabel: string(m.Speaker.ID), Text: m.Text})
	}
	return turns
}

func (s *Session) updateNodesLocked(mutate func(*Node)) {
	for i := range s.nodes {
		mutate(&s.nodes[i])
	}
	s.emitLocked(eventbridge.EventNodesUpdated, "")
}

func (s *Session) setPhaseLocked(p Phase) {
	if s.phase == p {
		return
	}
	prev := s.phase
	s.phase = p
	s.metrics.ObservePhase(p.String())
	s.logger.Debug("phase changed", zap.Stringer("from", prev), zap.Stringer("to", p))
	s.emitLocked(eventbridge.EventPhaseChanged, prev.String())
}

func (s *Session) openGateLocked(g Gate) {
	s.gate = g
	s.emitLocked(eventbridge.EventGateChanged, g.String())
}

func (s *Session) closeGateLocked() {
	s.gate = GateNone
	s.emitLocked(eventbridge.EventGateChanged, GateNone.String())
}

func (s *Session) speaker(id script.SpeakerID) script.Speaker {
	if sp, ok := s.catalog.Speaker(id); ok {
		return sp
	}
	return script.Speaker{ID: id, Name: string(id)}
}

func (s *Session) detail(nodeID string, stage script.Stage) string {
	spec, ok := s.catalog.Node(nodeID)
	if !ok {
		return ""
	}
	if d := spec.Detail(stage); d != "" {
		return d
	}
	return spec.Detail(script.StageWorking)
}

func (s *Session) emitLocked(kind eventbridge.EventType, detail string) {
	s.seq++
	s.outbox = append(s.outbox, eventbridge.Event{
		Version:   eventbridge.EventSchemaVersion,
		EventID:   fmt.Sprintf("%s-%d", s.id, s.seq),
		Sequence:  s.seq,
		Type:      kind,
		SessionID: s.id,
		Phase:     s.phase.String(),
		Time:      s.tl.Now(),
		Detail:    detail,
	})
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// commit releases the lock and then publishes queued events, so subscribers
// may call back into the session.
func (s *Session) commit() {
	events := s.outbox
	s.outbox = nil
	s.mu.Unlock()
	for _, e := range events {
		s.publisher.Publish(e)
	}
}
