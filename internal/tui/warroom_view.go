package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/NimbleMarkets/ntcharts/sparkline"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/warroom/internal/eventbridge"
	"github.com/kingrea/warroom/internal/script"
	"github.com/kingrea/warroom/internal/warroom"
)

const (
	sparklineWidth  = 28
	sparklineHeight = 4
)

var (
	brandStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B"))
	panelTitleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	speakerStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#CCCCCC"))
	operatorStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F7B801"))
	roleStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	noticeStyle      = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("#A0AEC0"))
	alertStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B"))
	detailTextStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0AEC0"))
	hintStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA"))
	pendingStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F7B801"))
	operationalStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#4CAF50"))
	addedStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50"))
	removedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	sparklineStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50"))

	nodeStyleIdle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#999999"))
	nodeStyleWorking = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true)
	nodeStyleError   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	nodeStyleSuccess = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color("#5B8DEF")).
			Padding(0, 1)
)

// sessionEventMsg carries one event from the bridge. ok is false once the
// subscription has been closed.
type sessionEventMsg struct {
	sessionID string
	event     eventbridge.Event
	ok        bool
}

// submitDoneMsg reports that a blocking Submit call returned.
type submitDoneMsg struct {
	sessionID string
}

type restartMsg struct{}

type stakeholderItem struct {
	sh script.Stakeholder
}

func (i stakeholderItem) Title() string       { return fmt.Sprintf("%s · %s", i.sh.Name, i.sh.Role) }
func (i stakeholderItem) Description() string { return i.sh.Opening }
func (i stakeholderItem) FilterValue() string { return i.sh.Name }

type warRoomView struct {
	app     *App
	session *warroom.Session
	sub     eventbridge.Subscription
	snap    warroom.Snapshot

	input        textinput.Model
	transcript   viewport.Model
	spinner      spinner.Model
	stakeholders list.Model

	submitting bool
	width      int
	height     int
}

func newWarRoomView(app *App, session *warroom.Session) *warRoomView {
	input := textinput.New()
	input.Prompt = "❯ "
	input.CharLimit = 500

	sp := spinner.New()
	sp.Spinner = spinner.Points
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF"))

	var items []list.Item
	for _, sh := range session.Catalog().Stakeholders {
		items = append(items, stakeholderItem{sh: sh})
	}
	picker := list.New(items, list.NewDefaultDelegate(), 60, 12)
	picker.Title = "Who else should weigh in?"
	picker.SetShowStatusBar(false)
	picker.SetFilteringEnabled(false)
	picker.SetShowHelp(false)

	v := &warRoomView{
		app:          app,
		session:      session,
		sub:          app.router.Subscribe(session.ID()),
		input:        input,
		transcript:   viewport.New(60, 14),
		spinner:      sp,
		stakeholders: picker,
	}
	if app.width > 0 && app.height > 0 {
		v.resize(app.width, app.height)
	}
	return v
}

// Init starts the session and begins listening for its events.
func (v *warRoomView) Init() tea.Cmd {
	v.session.Start()
	v.refresh()
	return tea.Batch(v.listen(), v.spinner.Tick)
}

func (v *warRoomView) listen() tea.Cmd {
	events := v.sub.Events
	id := v.session.ID()
	return func() tea.Msg {
		event, ok := <-events
		return sessionEventMsg{sessionID: id, event: event, ok: ok}
	}
}

func (v *warRoomView) close() {
	v.sub.Close()
	v.session.Close()
}

func (v *warRoomView) Update(msg tea.Msg) tea.Cmd {
	switch m := msg.(type) {
	case sessionEventMsg:
		if m.sessionID != v.session.ID() || !m.ok {
			return nil
		}
		v.refresh()
		return v.listen()
	case submitDoneMsg:
		if m.sessionID != v.session.ID() {
			return nil
		}
		v.submitting = false
		v.refresh()
		return nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		v.spinner, cmd = v.spinner.Update(m)
		return cmd
	case tea.WindowSizeMsg:
		v.resize(m.Width, m.Height)
		return nil
	case tea.KeyMsg:
		return v.handleKeyMsg(m)
	}
	return nil
}

func (v *warRoomView) handleKeyMsg(msg tea.KeyMsg) tea.Cmd {
	snap := v.snap
	key := msg.String()
	switch {
	case snap.Phase == warroom.PhaseAwaitingStakeholder:
		if key == "enter" {
			if item, ok := v.stakeholders.SelectedItem().(stakeholderItem); ok {
				v.session.SelectStakeholder(item.sh.ID)
				v.refresh()
			}
			return nil
		}
		var cmd tea.Cmd
		v.stakeholders, cmd = v.stakeholders.Update(msg)
		return cmd
	case snap.Review != nil:
		switch key {
		case "a":
			v.session.Approve()
			v.refresh()
		case "c":
			v.session.RequestChanges()
			v.refresh()
		}
		return nil
	case snap.Phase == warroom.PhaseComplete:
		if key == "r" {
			return func() tea.Msg { return restartMsg{} }
		}
		return nil
	case snap.InputLocked() || v.submitting:
		return nil
	}

	if key == "enter" {
		text := strings.TrimSpace(v.input.Value())
		if text == "" {
			return nil
		}
		v.input.Reset()
		v.submitting = true
		return v.submit(text)
	}
	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return cmd
}

// submit runs Submit off the update loop; the approval directive blocks on
// the synthesis call.
func (v *warRoomView) submit(text string) tea.Cmd {
	session := v.session
	return func() tea.Msg {
		session.Submit(context.Background(), text)
		return submitDoneMsg{sessionID: session.ID()}
	}
}

func (v *warRoomView) refresh() {
	v.snap = v.session.Snapshot()
	if v.snap.InputLocked() {
		v.input.Blur()
		v.input.Placeholder = ""
	} else {
		v.input.Focus()
		v.input.Placeholder = v.snap.Placeholder
	}
	v.transcript.SetContent(v.renderMessages())
	v.transcript.GotoBottom()
}

func (v *warRoomView) resize(width, height int) {
	v.width = width
	v.height = height
	left, _ := v.columns()
	v.transcript.Width = max(20, left-4)
	v.transcript.Height = max(6, height-18)
	v.input.Width = max(10, left-8)
	v.stakeholders.SetSize(max(20, left-4), max(6, height/2))
}

func (v *warRoomView) columns() (int, int) {
	width := v.width
	if width <= 0 {
		width = 110
	}
	right := max(34, width/3)
	left := width - right - 4
	if left < 40 {
		return width - 4, 0
	}
	return left, right
}

func (v *warRoomView) View() string {
	left, right := v.columns()
	var body string
	switch {
	case v.snap.Phase == warroom.PhaseAwaitingStakeholder:
		body = boxStyle.Width(left).Render(v.stakeholders.View())
	case v.snap.Review != nil:
		body = v.renderReview(left)
	default:
		body = v.renderBoardroom(left)
	}
	if right > 0 {
		body = lipgloss.JoinHorizontal(lipgloss.Top, body, v.renderFactoryFloor(right))
	} else {
		body = lipgloss.JoinVertical(lipgloss.Left, body, v.renderFactoryFloor(left))
	}
	return lipgloss.JoinVertical(lipgloss.Left, v.renderHeader(), body, v.renderKeys())
}

func (v *warRoomView) renderHeader() string {
	env := "ENV staging"
	status := pendingStyle.Render("● System Pending")
	if v.snap.Status == warroom.SystemOperational {
		env = "ENV production"
		status = operationalStyle.Render("● System Operational")
		if v.snap.DeployMarker != "" {
			status += " " + roleStyle.Render(v.snap.DeployMarker)
		}
	}
	parts := []string{
		brandStyle.Render("⬡ WAR ROOM"),
		v.snap.Phase.FriendlyName(),
		roleStyle.Render(env),
		status,
	}
	return lipgloss.NewStyle().MarginBottom(1).Render(strings.Join(parts, "  ·  "))
}

func (v *warRoomView) renderMessages() string {
	operator := v.session.Catalog().Operator
	var rows []string
	for _, msg := range v.snap.Messages {
		switch msg.Kind {
		case script.KindSystemNotice:
			rows = append(rows, noticeStyle.Render("» "+msg.Text))
		case script.KindAgentAlert:
			rows = append(rows, alertStyle.Render(fmt.Sprintf("⚠ %s: %s", msg.Speaker.Name, msg.Text)))
		default:
			name := speakerStyle.Render(msg.Speaker.Name)
			if msg.Speaker.ID == operator {
				name = operatorStyle.Render(msg.Speaker.Name)
			}
			label := name
			if msg.Speaker.Role != "" {
				label += " " + roleStyle.Render(msg.Speaker.Role)
			}
			rows = append(rows, label+"\n  "+msg.Text)
		}
	}
	if len(rows) == 0 {
		return roleStyle.Render("The room is quiet.")
	}
	return strings.Join(rows, "\n")
}

func (v *warRoomView) renderBoardroom(width int) string {
	lines := []string{panelTitleStyle.Render("BOARDROOM"), v.transcript.View()}
	if c := v.snap.Composing; c != nil {
		lines = append(lines, fmt.Sprintf("%s %s is typing", v.spinner.View(), c.Name))
	} else {
		lines = append(lines, "")
	}
	if v.snap.Synthesizing {
		lines = append(lines, fmt.Sprintf("%s synthesizing decision...", v.spinner.View()))
	}
	lines = append(lines, v.input.View())
	if op, ok := v.session.Catalog().Speaker(v.session.Catalog().Operator); ok {
		lines = append(lines, hintStyle.Render(fmt.Sprintf("You are %s · %s", op.Name, op.Role)))
	}
	return boxStyle.Width(width).Render(strings.Join(lines, "\n"))
}

func (v *warRoomView) renderFactoryFloor(width int) string {
	lines := []string{panelTitleStyle.Render("FACTORY FLOOR")}
	if len(v.snap.Nodes) == 0 {
		lines = append(lines, roleStyle.Render("Pipeline idle"))
	}
	for i, node := range v.snap.Nodes {
		if i > 0 {
			lines = append(lines, roleStyle.Render("   ↓"))
		}
		label := node.Label
		if node.Designated {
			label += " ★"
		}
		lines = append(lines, fmt.Sprintf("%s %s", nodeStyleFor(node.Status).Render("■"), label))
		if node.Detail != "" {
			lines = append(lines, detailTextStyle.Render("  "+node.Detail))
		}
	}
	if v.snap.Synthesizing {
		lines = append(lines, "", fmt.Sprintf("%s synthesis in progress", v.spinner.View()))
	}
	if sum := v.snap.Summary; sum != nil {
		lines = append(lines, "", panelTitleStyle.Render("DECISION"),
			speakerStyle.Render(sum.Title),
			detailTextStyle.Render(sum.Strategy),
			fmt.Sprintf("Risk %s · Complexity %s", sum.RiskLevel, sum.Complexity),
		)
		if len(sum.Components) > 0 {
			lines = append(lines, roleStyle.Render(strings.Join(sum.Components, ", ")))
		}
	}
	if v.snap.Status == warroom.SystemOperational {
		lines = append(lines, "", panelTitleStyle.Render("TELEMETRY"), v.renderTelemetry())
	}
	return boxStyle.Width(width).Render(strings.Join(lines, "\n"))
}

func (v *warRoomView) renderTelemetry() string {
	telemetry := v.session.Catalog().Telemetry
	if len(telemetry.Series) == 0 {
		return roleStyle.Render("no data")
	}
	spark := sparkline.New(sparklineWidth, sparklineHeight)
	spark.PushAll(telemetry.Series)
	spark.Draw()
	last := telemetry.Series[len(telemetry.Series)-1]
	caption := roleStyle.Render(fmt.Sprintf("p99 write latency %.0f%s", last, telemetry.Unit))
	return sparklineStyle.Render(spark.View()) + "\n" + caption
}

func (v *warRoomView) renderReview(width int) string {
	r := v.snap.Review
	author := string(r.Author)
	if sp, ok := v.session.Catalog().Speaker(r.Author); ok {
		author = sp.Name
	}
	lines := []string{
		panelTitleStyle.Render(fmt.Sprintf("PULL REQUEST #%d", r.Number)),
		speakerStyle.Render(r.Title),
		roleStyle.Render(fmt.Sprintf("%s wants to merge into %s · revision %d · %s", author, r.Base, r.Revision, r.Delta)),
		detailTextStyle.Render(r.Description),
		"",
		roleStyle.Render(r.File),
	}
	for _, d := range r.Diff {
		switch d.Op {
		case script.DiffAdded:
			lines = append(lines, addedStyle.Render("+ "+d.Text))
		case script.DiffRemoved:
			lines = append(lines, removedStyle.Render("- "+d.Text))
		default:
			lines = append(lines, "  "+d.Text)
		}
	}
	actions := "a → approve & merge"
	if v.snap.Variant == warroom.VariantFull && v.snap.Phase == warroom.PhaseAwaitingReview1 {
		actions += "    c → request changes"
	}
	lines = append(lines, "", hintStyle.Render(actions))
	return modalStyle.Width(width).Render(strings.Join(lines, "\n"))
}

func (v *warRoomView) renderKeys() string {
	keys := "enter=send  esc=leave  ctrl+c=quit"
	switch {
	case v.snap.Phase == warroom.PhaseAwaitingStakeholder:
		keys = "↑/↓=choose  enter=invite  esc=leave"
	case v.snap.Phase == warroom.PhaseComplete:
		keys = "r=restart  esc=leave  ctrl+c=quit"
	}
	return hintStyle.MarginTop(1).Render(keys)
}

func nodeStyleFor(status warroom.NodeStatus) lipgloss.Style {
	switch status {
	case warroom.NodeWorking:
		return nodeStyleWorking
	case warroom.NodeError:
		return nodeStyleError
	case warroom.NodeSuccess:
		return nodeStyleSuccess
	default:
		return nodeStyleIdle
	}
}
