// internal/script/script.go
//
// The script catalog is the fixed narrative the war room plays back: dialogue,
// roster, pipeline nodes, review artifacts and the timings that pace them.
// It is embedded into the binary and decoded once.

package script

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed script.yaml
var embedded []byte

// ErrInvalidCatalog marks catalogs that decode but fail validation.
var ErrInvalidCatalog = errors.New("script: invalid catalog")

// SpeakerID identifies a chat participant.
type SpeakerID string

// Kind classifies how a message is presented.
type Kind string

const (
	KindChat         Kind = "chat"
	KindSystemNotice Kind = "system_notice"
	KindAgentAlert   Kind = "agent_alert"
)

// Stage keys the per-node detail text shown at each point of the run.
type Stage string

const (
	StageWorking     Stage = "working"
	StageError       Stage = "error"
	StageSuccess     Stage = "success"
	StageCoding      Stage = "coding"
	StageRefactoring Stage = "refactoring"
)

// DiffOp is the marker of a single review diff line.
type DiffOp string

const (
	DiffContext DiffOp = "context"
	DiffAdded   DiffOp = "added"
	DiffRemoved DiffOp = "removed"
)

// Speaker is a roster entry that can author messages.
type Speaker struct {
	ID    SpeakerID `yaml:"id"`
	Name  string    `yaml:"name"`
	Role  string    `yaml:"role"`
	Agent bool      `yaml:"agent"`
}

// Line is one scripted message.
type Line struct {
	Speaker SpeakerID `yaml:"speaker"`
	Text    string    `yaml:"text"`
	Kind    Kind      `yaml:"kind"`
}

// Lines holds the single scripted messages revealed between gates.
type Lines struct {
	Rebuttal       Line `yaml:"rebuttal"`
	LockAlert      Line `yaml:"lock_alert"`
	Escalation     Line `yaml:"escalation"`
	CompileNotice  Line `yaml:"compile_notice"`
	RefactorNotice Line `yaml:"refactor_notice"`
	FinalNotice    Line `yaml:"final_notice"`
}

// Stakeholder is an optional voice the operator can invite into the room.
// Opening is revealed on selection and Followup after the rebuttal.
type Stakeholder struct {
	ID       SpeakerID `yaml:"id"`
	Name     string    `yaml:"name"`
	Role     string    `yaml:"role"`
	Opening  string    `yaml:"opening"`
	Followup string    `yaml:"followup"`
}

// OpeningLine returns the stakeholder's first scripted message.
func (s Stakeholder) OpeningLine() Line {
	return Line{Speaker: s.ID, Text: s.Opening, Kind: KindChat}
}

// FollowupLine returns the stakeholder's second scripted message.
func (s Stakeholder) FollowupLine() Line {
	return Line{Speaker: s.ID, Text: s.Followup, Kind: KindChat}
}

// NodeSpec declares a pipeline node and its detail text per stage.
type NodeSpec struct {
	ID      string           `yaml:"id"`
	Label   string           `yaml:"label"`
	Details map[Stage]string `yaml:"details"`
}

// Detail returns the node's text for stage, or "" when the node has none.
func (n NodeSpec) Detail(stage Stage) string {
	return n.Details[stage]
}

// DiffLine is a single line of a review diff.
type DiffLine struct {
	Op   DiffOp `yaml:"op"`
	Text string `yaml:"text"`
}

// Review is the pull request shown while a review phase is active.
type Review struct {
	Version     int        `yaml:"version"`
	Number      int        `yaml:"number"`
	Author      SpeakerID  `yaml:"author"`
	Base        string     `yaml:"base"`
	Title       string     `yaml:"title"`
	Description string     `yaml:"description"`
	File        string     `yaml:"file"`
	Revision    int        `yaml:"revision"`
	Delta       string     `yaml:"delta"`
	Diff        []DiffLine `yaml:"diff"`
}

// Telemetry is the latency series plotted once the fix is live.
type Telemetry struct {
	Unit   string    `yaml:"unit"`
	Series []float64 `yaml:"series"`
}

// Timing holds every scripted delay. Offsets are relative to the operation
// that schedules them.
type Timing struct {
	Typing                   time.Duration `yaml:"typing"`
	Pause                    time.Duration `yaml:"pause"`
	IntroStart               time.Duration `yaml:"intro_start"`
	StakeholderOpeningStart  time.Duration `yaml:"stakeholder_opening_start"`
	RebuttalStart            time.Duration `yaml:"rebuttal_start"`
	StakeholderFollowupStart time.Duration `yaml:"stakeholder_followup_start"`
	LockFailureAt            time.Duration `yaml:"lock_failure_at"`
	AlertStart               time.Duration `yaml:"alert_start"`
	EscalationStart          time.Duration `yaml:"escalation_start"`
	WorkFlipAt               time.Duration `yaml:"work_flip_at"`
	NoticeStart              time.Duration `yaml:"notice_start"`
	ReviewAt                 time.Duration `yaml:"review_at"`
	SuccessFlipAt            time.Duration `yaml:"success_flip_at"`
	FinalNoticeStart         time.Duration `yaml:"final_notice_start"`
	OperationalAt            time.Duration `yaml:"operational_at"`
}

// Scaled returns a copy with every delay divided by speed. A speed <= 0 is
// treated as 1.
func (t Timing) Scaled(speed float64) Timing {
	if speed <= 0 || speed == 1 {
		return t
	}
	scale := func(d time.Duration) time.Duration {
		return time.Duration(float64(d) / speed)
	}
	return Timing{
		Typing:                   scale(t.Typing),
		Pause:                    scale(t.Pause),
		IntroStart:               scale(t.IntroStart),
		StakeholderOpeningStart:  scale(t.StakeholderOpeningStart),
		RebuttalStart:            scale(t.RebuttalStart),
		StakeholderFollowupStart: scale(t.StakeholderFollowupStart),
		LockFailureAt:            scale(t.LockFailureAt),
		AlertStart:               scale(t.AlertStart),
		EscalationStart:          scale(t.EscalationStart),
		WorkFlipAt:               scale(t.WorkFlipAt),
		NoticeStart:              scale(t.NoticeStart),
		ReviewAt:                 scale(t.ReviewAt),
		SuccessFlipAt:            scale(t.SuccessFlipAt),
		FinalNoticeStart:         scale(t.FinalNoticeStart),
		OperationalAt:            scale(t.OperationalAt),
	}
}

// Catalog is the decoded script. Treat it as read-only once loaded.
type Catalog struct {
	Version        int               `yaml:"version"`
	DeployMarker   string            `yaml:"deploy_marker"`
	Operator       SpeakerID         `yaml:"operator"`
	DesignatedNode string            `yaml:"designated_node"`
	Timing         Timing            `yaml:"timing"`
	Speakers       []Speaker         `yaml:"speakers"`
	Intro          []Line            `yaml:"intro"`
	Lines          Lines             `yaml:"lines"`
	Stakeholders   []Stakeholder     `yaml:"stakeholders"`
	Nodes          []NodeSpec        `yaml:"nodes"`
	Reviews        []Review          `yaml:"reviews"`
	Placeholders   map[string]string `yaml:"placeholders"`
	Telemetry      Telemetry         `yaml:"telemetry"`
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
	defaultErr     error
)

// Default returns the embedded catalog, decoding it on first use.
func Default() (*Catalog, error) {
	defaultOnce.Do(func() {
		defaultCatalog, defaultErr = Parse(embedded)
	})
	return defaultCatalog, defaultErr
}

// MustDefault is Default for callers that cannot continue without a script.
func MustDefault() *Catalog {
	cat, err := Default()
	if err != nil {
		panic(err)
	}
	return cat
}

// Parse decodes and validates a catalog document.
func Parse(data []byte) (*Catalog, error) {
	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("script: decode: %w", err)
	}
	cat.normalize()
	if err := cat.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	return &cat, nil
}

func (c *Catalog) normalize() {
	if c.Version == 0 {
		c.Version = 1
	}
	for i := range c.Intro {
		c.Intro[i].normalize()
	}
	for _, line := range []*Line{
		&c.Lines.Rebuttal, &c.Lines.LockAlert, &c.Lines.Escalation,
		&c.Lines.CompileNotice, &c.Lines.RefactorNotice, &c.Lines.FinalNotice,
	} {
		line.normalize()
	}
	for i := range c.Stakeholders {
		c.Stakeholders[i].ID = SpeakerID(strings.ToLower(strings.TrimSpace(string(c.Stakeholders[i].ID))))
	}
	if c.Placeholders == nil {
		c.Placeholders = map[string]string{}
	}
}

func (l *Line) normalize() {
	l.Text = strings.TrimSpace(l.Text)
	if l.Kind == "" {
		l.Kind = KindChat
	}
}

func (c *Catalog) validate() error {
	if strings.TrimSpace(c.DeployMarker) == "" {
		return fmt.Errorf("deploy_marker is required")
	}
	if c.Timing.Typing <= 0 || c.Timing.Pause < 0 {
		return fmt.Errorf("timing.typing must be positive and timing.pause non-negative")
	}
	if len(c.Intro) == 0 {
		return fmt.Errorf("intro must contain at least one line")
	}
	speakers := map[SpeakerID]struct{}{}
	for i, sp := range c.Speakers {
		if sp.ID == "" {
			return fmt.Errorf("speakers[%d]: id is required", i)
		}
		if _, dup := speakers[sp.ID]; dup {
			return fmt.Errorf("speakers[%d]: duplicate id %q", i, sp.ID)
		}
		speakers[sp.ID] = struct{}{}
	}
	for i, sh := range c.Stakeholders {
		if sh.ID == "" || sh.Opening == "" || sh.Followup == "" {
			return fmt.Errorf("stakeholders[%d]: id, opening and followup are required", i)
		}
		if _, dup := speakers[sh.ID]; dup {
			return fmt.Errorf("stakeholders[%d]: id %q collides with another speaker", i, sh.ID)
		}
		speakers[sh.ID] = struct{}{}
	}
	if _, ok := speakers[c.Operator]; !ok {
		return fmt.Errorf("operator %q is not a known speaker", c.Operator)
	}
	check := func(name string, line Line) error {
		if line.Text == "" {
			return fmt.Errorf("%s: text is required", name)
		}
		if _, ok := speakers[line.Speaker]; !ok {
			return fmt.Errorf("%s: unknown speaker %q", name, line.Speaker)
		}
		switch line.Kind {
		case KindChat, KindSystemNotice, KindAgentAlert:
		default:
			return fmt.Errorf("%s: unknown kind %q", name, line.Kind)
		}
		return nil
	}
	for i, line := range c.Intro {
		if err := check(fmt.Sprintf("intro[%d]", i), line); err != nil {
			return err
		}
	}
	named := map[string]Line{
		"lines.rebuttal":        c.Lines.Rebuttal,
		"lines.lock_alert":      c.Lines.LockAlert,
		"lines.escalation":      c.Lines.Escalation,
		"lines.compile_notice":  c.Lines.CompileNotice,
		"lines.refactor_notice": c.Lines.RefactorNotice,
		"lines.final_notice":    c.Lines.FinalNotice,
	}
	for name, line := range named {
		if err := check(name, line); err != nil {
			return err
		}
	}
	if len(c.Nodes) == 0 {
		return fmt.Errorf("nodes must not be empty")
	}
	designated := false
	for i, n := range c.Nodes {
		if n.ID == "" || n.Label == "" {
			return fmt.Errorf("nodes[%d]: id and label are required", i)
		}
		if n.ID == c.DesignatedNode {
			designated = true
		}
	}
	if !designated {
		return fmt.Errorf("designated_node %q is not declared", c.DesignatedNode)
	}
	for _, version := range []int{1, 2} {
		if _, ok := c.Review(version); !ok {
			return fmt.Errorf("review version %d is required", version)
		}
	}
	return nil
}

// Speaker looks up a roster entry, including stakeholders.
func (c *Catalog) Speaker(id SpeakerID) (Speaker, bool) {
	for _, sp := range c.Speakers {
		if sp.ID == id {
			return sp, true
		}
	}
	if sh, ok := c.Stakeholder(id); ok {
		return Speaker{ID: sh.ID, Name: sh.Name, Role: sh.Role}, true
	}
	return Speaker{}, false
}

// Stakeholder looks up a stakeholder by id (case-insensitive).
func (c *Catalog) Stakeholder(id SpeakerID) (Stakeholder, bool) {
	key := SpeakerID(strings.ToLower(strings.TrimSpace(string(id))))
	for _, sh := range c.Stakeholders {
		if sh.ID == key {
			return sh, true
		}
	}
	return Stakeholder{}, false
}

// Node looks up a pipeline node declaration.
func (c *Catalog) Node(id string) (NodeSpec, bool) {
	for _, n := range c.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return NodeSpec{}, false
}

// Review returns the artifact for a review round.
func (c *Catalog) Review(version int) (Review, bool) {
	for _, r := range c.Reviews {
		if r.Version == version {
			return r, true
		}
	}
	return Review{}, false
}

// Placeholder returns the input hint for a gate name.
func (c *Catalog) Placeholder(gate string) string {
	return c.Placeholders[gate]
}
