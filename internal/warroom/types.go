package warroom

import (
	"fmt"
	"strings"
	"time"

	"github.com/kingrea/warroom/internal/script"
	"github.com/kingrea/warroom/internal/synthesis"
)

// Variant selects which branches of the script are playable.
type Variant string

const (
	// VariantFull offers stakeholder selection and a second review round.
	VariantFull Variant = "full"
	// VariantClassic goes straight from the intro to the first question and
	// only reviews once.
	VariantClassic Variant = "classic"
)

// ParseVariant accepts "full" or "classic", case-insensitively.
func ParseVariant(s string) (Variant, error) {
	switch Variant(strings.ToLower(strings.TrimSpace(s))) {
	case "", VariantFull:
		return VariantFull, nil
	case VariantClassic:
		return VariantClassic, nil
	default:
		return "", fmt.Errorf("warroom: unknown variant %q", s)
	}
}

// Message is one appended chat entry. Messages never change once appended.
type Message struct {
	ID        string
	Speaker   script.Speaker
	Text      string
	Kind      script.Kind
	CreatedAt time.Time
}

// NodeStatus is the traffic-light state of a pipeline node.
type NodeStatus string

const (
	NodeIdle    NodeStatus = "idle"
	NodeWorking NodeStatus = "working"
	NodeError   NodeStatus = "error"
	NodeSuccess NodeStatus = "success"
)

// Node is a pipeline diagram box.
type Node struct {
	ID         string
	Label      string
	Status     NodeStatus
	Detail     string
	Designated bool
}

// SystemStatus is the deployment banner state.
type SystemStatus string

const (
	SystemPending     SystemStatus = "pending"
	SystemOperational SystemStatus = "operational"
)

// Snapshot is a deep copy of a session's observable state.
type Snapshot struct {
	SessionID    string
	Variant      Variant
	Phase        Phase
	Gate         Gate
	Placeholder  string
	Messages     []Message
	Nodes        []Node
	Composing    *script.Speaker
	Stakeholder  *script.Stakeholder
	Summary      *synthesis.Summary
	Review       *script.Review
	Status       SystemStatus
	DeployMarker string
	Synthesizing bool
	Closed       bool
}

// InputLocked reports whether the operator's text box is disabled.
func (s Snapshot) InputLocked() bool {
	return !s.Gate.Open()
}

// Node returns the node with id.
func (s Snapshot) Node(id string) (Node, bool) {
	for _, n := range s.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}
