package script

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogLoads(t *testing.T) {
	cat, err := Default()
	require.NoError(t, err)

	assert.Equal(t, "a3f9c2e", cat.DeployMarker)
	assert.Equal(t, SpeakerID("charlie"), cat.Operator)
	assert.Equal(t, 1400*time.Millisecond, cat.Timing.Typing)
	assert.Equal(t, 700*time.Millisecond, cat.Timing.Pause)
	assert.Len(t, cat.Intro, 4)
	assert.Len(t, cat.Stakeholders, 7)
	assert.Len(t, cat.Nodes, 3)
	assert.Equal(t, KindAgentAlert, cat.Lines.LockAlert.Kind)
	assert.Equal(t, KindChat, cat.Lines.Rebuttal.Kind)
	assert.Equal(t, KindSystemNotice, cat.Lines.FinalNotice.Kind)
}

func TestDefaultCatalogIsShared(t *testing.T) {
	a := MustDefault()
	b := MustDefault()
	assert.Same(t, a, b)
}

func TestCatalogLookups(t *testing.T) {
	cat := MustDefault()

	sh, ok := cat.Stakeholder("Diana")
	require.True(t, ok)
	assert.Equal(t, SpeakerID("diana"), sh.ID)
	assert.Equal(t, sh.Opening, sh.OpeningLine().Text)
	assert.Equal(t, sh.Followup, sh.FollowupLine().Text)

	sp, ok := cat.Speaker("julia")
	require.True(t, ok)
	assert.Equal(t, "Legal Counsel", sp.Role)

	agent, ok := cat.Speaker("redis_agent")
	require.True(t, ok)
	assert.True(t, agent.Agent)

	node, ok := cat.Node(cat.DesignatedNode)
	require.True(t, ok)
	assert.Equal(t, "Watchdog heartbeat active.", node.Detail(StageSuccess))
	assert.Empty(t, node.Detail("missing"))

	review, ok := cat.Review(2)
	require.True(t, ok)
	assert.Equal(t, 48, review.Number)
	assert.Equal(t, 3, review.Revision)

	_, ok = cat.Review(3)
	assert.False(t, ok)

	assert.Equal(t, "Ask the team a question...", cat.Placeholder("first_input"))
}

func TestTimingScaled(t *testing.T) {
	base := MustDefault().Timing
	fast := base.Scaled(2)
	assert.Equal(t, 700*time.Millisecond, fast.Typing)
	assert.Equal(t, 1900*time.Millisecond, fast.ReviewAt)
	assert.Equal(t, base, base.Scaled(0))
	assert.Equal(t, base, base.Scaled(1))
}

func TestParseRejectsInvalidCatalogs(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{
			name: "missing deploy marker",
			doc: `
operator: charlie
timing: {typing: 1s}
speakers: [{id: charlie}]
intro: [{speaker: charlie, text: hi}]
`,
		},
		{
			name: "unknown intro speaker",
			doc: `
deploy_marker: abc
operator: charlie
timing: {typing: 1s}
speakers: [{id: charlie}]
intro: [{speaker: nobody, text: hi}]
`,
		},
		{
			name: "no typing delay",
			doc: `
deploy_marker: abc
operator: charlie
speakers: [{id: charlie}]
intro: [{speaker: charlie, text: hi}]
`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidCatalog))
		})
	}
}

func TestParseRejectsMalformedYAML(t *testing.T) {
	_, err := Parse([]byte("intro: [unterminated"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrInvalidCatalog))
}
