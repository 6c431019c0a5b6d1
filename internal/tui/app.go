// internal/tui/app.go
//
// This is the terminal front end for the war room. It uses bubbletea, which
// follows The Elm Architecture:
//
// 1. Model: the App and, once admitted, the war room view
// 2. Update: session events and key presses become state changes
// 3. View: the current Snapshot rendered to a string
//
// The session runs on its own timers and publishes to the event bridge; the
// view re-reads a Snapshot whenever an event arrives.

package tui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/kingrea/warroom/internal/access"
	"github.com/kingrea/warroom/internal/eventbridge"
	"github.com/kingrea/warroom/internal/logbook"
	"github.com/kingrea/warroom/internal/warroom"
)

// appState represents which "screen" we're on
type appState int

const (
	stateLanding appState = iota // Title screen with "Enter the War Room"
	stateWarRoom                 // Live session
)

const (
	menuEnter = "Enter the War Room"
	menuExit  = "Exit"
)

// SessionFactory builds a fresh, idle session that publishes to publisher.
type SessionFactory func(publisher eventbridge.Publisher) *warroom.Session

// AppOption customizes App construction for tests and alternate runtimes.
type AppOption func(*App)

// WithRouter shares an event router with other consumers.
func WithRouter(r *eventbridge.Router) AppOption {
	return func(a *App) {
		if r != nil {
			a.router = r
		}
	}
}

// WithPass overrides the access pass guarding the war room view.
func WithPass(p *access.Pass) AppOption {
	return func(a *App) {
		if p != nil {
			a.pass = p
		}
	}
}

// WithLogbook sets the decision log shown under the board.
func WithLogbook(lb *logbook.Logbook) AppOption {
	return func(a *App) {
		a.logbook = lb
	}
}

// WithLogger overrides the default no-op logger.
func WithLogger(l *zap.Logger) AppOption {
	return func(a *App) {
		if l != nil {
			a.logger = l
		}
	}
}

// App is the root bubbletea model.
type App struct {
	state   appState
	factory SessionFactory
	router  *eventbridge.Router
	pass    *access.Pass
	logbook *logbook.Logbook
	logger  *zap.Logger

	landing   list.Model
	view      *warRoomView
	statusMsg string

	width  int
	height int
}

// menuItem implements list.Item interface for our menu items
type menuItem struct {
	title string
	desc  string
}

func (i menuItem) Title() string       { return i.title }
func (i menuItem) Description() string { return i.desc }
func (i menuItem) FilterValue() string { return i.title }

// NewApp creates the landing screen. Sessions are built by factory on entry.
func NewApp(factory SessionFactory, opts ...AppOption) (*App, error) {
	if factory == nil {
		return nil, fmt.Errorf("tui: session factory is required")
	}
	items := []list.Item{
		menuItem{title: menuEnter, desc: "Take the CTO seat during a live production incident"},
		menuItem{title: menuExit, desc: "Leave"},
	}
	landing := list.New(items, list.NewDefaultDelegate(), 0, 0)
	landing.Title = "⬡ THE WAR ROOM"
	landing.SetShowStatusBar(false)
	landing.SetFilteringEnabled(false)

	app := &App{
		state:   stateLanding,
		factory: factory,
		pass:    &access.Pass{},
		logger:  zap.NewNop(),
		landing: landing,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(app)
		}
	}
	if app.router == nil {
		app.router = eventbridge.NewRouter(eventbridge.RouterWithLogger(app.logger))
	}
	return app, nil
}

// Init is called once when the program starts.
func (a *App) Init() tea.Cmd {
	return nil
}

// Update is called when a message is received.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.landing.SetSize(max(0, msg.Width-6), max(0, msg.Height-10))
		if a.view != nil {
			return a, a.view.Update(msg)
		}
		return a, nil

	case restartMsg:
		a.logInfo("Session restarted")
		a.closeSession()
		a.pass.Grant()
		return a.openWarRoom()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			a.closeSession()
			return a, tea.Quit
		case "q":
			if a.state == stateLanding {
				return a, tea.Quit
			}
		case "esc":
			if a.state == stateWarRoom {
				return a.returnToLanding()
			}
		case "enter":
			if a.state == stateLanding {
				return a.handleLandingSelection()
			}
		}
	}

	switch a.state {
	case stateLanding:
		var cmd tea.Cmd
		a.landing, cmd = a.landing.Update(msg)
		return a, cmd
	case stateWarRoom:
		if a.view != nil {
			return a, a.view.Update(msg)
		}
	}
	return a, nil
}

func (a *App) handleLandingSelection() (tea.Model, tea.Cmd) {
	item, ok := a.landing.SelectedItem().(menuItem)
	if !ok {
		return a, nil
	}
	switch item.title {
	case menuEnter:
		a.pass.Grant()
		return a.openWarRoom()
	case menuExit:
		return a, tea.Quit
	}
	return a, nil
}

// openWarRoom admits the player only with a granted pass; without one it
// stays on the landing screen.
func (a *App) openWarRoom() (tea.Model, tea.Cmd) {
	if !a.pass.Consume() {
		a.state = stateLanding
		a.statusMsg = "Enter the war room from the landing screen"
		return a, nil
	}
	session := a.factory(a.router)
	if session == nil {
		a.state = stateLanding
		a.statusMsg = "Session unavailable"
		return a, nil
	}
	a.view = newWarRoomView(a, session)
	a.state = stateWarRoom
	a.statusMsg = ""
	a.logInfo("Entered war room · session %s", shortID(session.ID()))
	return a, a.view.Init()
}

// returnToLanding tears the session down and shows the title screen.
func (a *App) returnToLanding() (tea.Model, tea.Cmd) {
	a.closeSession()
	a.state = stateLanding
	a.statusMsg = "Left the war room"
	return a, nil
}

func (a *App) closeSession() {
	if a.view == nil {
		return
	}
	a.view.close()
	a.router.Forget(a.view.session.ID())
	a.view = nil
}

func (a *App) logInfo(format string, args ...any) {
	if a.logbook != nil {
		a.logbook.Info(format, args...)
	}
}

// View renders the current state to a string.
func (a *App) View() string {
	var content string
	switch a.state {
	case stateLanding:
		content = a.renderLanding()
	case stateWarRoom:
		if a.view != nil {
			content = a.view.View()
		} else {
			content = "Opening the war room..."
		}
	}
	sections := []string{content}
	if logPanel := a.renderLogPanel(); logPanel != "" {
		sections = append(sections, logPanel)
	}
	if a.statusMsg != "" {
		footer := lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			MarginTop(1).
			Render(a.statusMsg)
		sections = append(sections, footer)
	}
	return strings.Join(sections, "\n")
}

func (a *App) renderLanding() string {
	tagline := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#AAAAAA")).
		Render("The limited drop oversold by 500 units. The agents are waiting on you.")
	hint := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#AAAAAA")).
		MarginTop(1).
		Render("Enter → select    q → quit")
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		Padding(0, 1).
		Render(lipgloss.JoinVertical(lipgloss.Left, a.landing.View(), tagline, hint))
}

func (a *App) renderLogPanel() string {
	journal := a.logbook
	if a.view != nil {
		journal = a.view.session.Journal()
	}
	if journal == nil {
		return ""
	}
	lines, _ := journal.Tail(6)
	if len(lines) == 0 {
		return ""
	}
	fileName := filepath.Base(journal.Path())
	if fileName == "." || fileName == "" {
		fileName = "decisions"
	}
	head := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#5B8DEF")).
		Render(fmt.Sprintf("LOG · %s", fileName))
	body := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#AAAAAA")).
		Render(strings.Join(lines, "\n"))
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		Padding(0, 1).
		Render(fmt.Sprintf("%s\n%s", head, body))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
