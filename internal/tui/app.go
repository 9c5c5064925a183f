package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/analyst/internal/pipeline"
)

const (
	maxLogEntries  = 200
	shownLogs      = 8
	shownExchanges = 5
)

// AskFunc answers one question. The CLI wires it to Orchestrator.Run plus
// history recording.
type AskFunc func(ctx context.Context, question string) (*pipeline.Report, error)

// EventMsg carries a pipeline event into the model.
type EventMsg struct {
	Event pipeline.Event
}

// AnswerMsg is sent when a run finishes.
type AnswerMsg struct {
	Question string
	Report   *pipeline.Report
	Err      error
}

// Exchange is one question and its outcome.
type Exchange struct {
	Question string
	Query    string
	Answer   string
	Err      error
	Retries  int
	Duration time.Duration
}

// LogEntry is one line of the activity log.
type LogEntry struct {
	Timestamp time.Time
	Stage     string
	Message   string
	Failed    bool
}

// App is the bubbletea model for interactive mode. It accepts one question
// at a time and shows pipeline progress while the run is in flight.
type App struct {
	ctx    context.Context
	ask    AskFunc
	events <-chan pipeline.Event

	input    *InputField
	spinner  spinner.Model
	renderer *glamour.TermRenderer

	running   bool
	cancelRun context.CancelFunc
	current   string
	stage     pipeline.Stage
	retries   int

	exchanges []Exchange
	logs      []LogEntry

	width    int
	height   int
	quitting bool

	headerStyle   lipgloss.Style
	questionStyle lipgloss.Style
	answerStyle   lipgloss.Style
	queryStyle    lipgloss.Style
	errorStyle    lipgloss.Style
	stageStyle    lipgloss.Style
	logStyle      lipgloss.Style
	logTimeStyle  lipgloss.Style
	helpStyle     lipgloss.Style
}

// NewApp creates the interactive model. events may be nil when no emitter
// is wired.
func NewApp(ctx context.Context, ask AskFunc, events <-chan pipeline.Event) *App {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return &App{
		ctx:      ctx,
		ask:      ask,
		events:   events,
		input:    NewInputField(),
		spinner:  s,
		renderer: newRenderer(80),

		headerStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")),

		questionStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true),

		answerStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")),

		queryStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true),

		errorStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true),

		stageStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Width(12),

		logStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")),

		logTimeStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),

		helpStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),
	}
}

// newRenderer returns a markdown renderer for answers, or nil when glamour
// cannot build one.
func newRenderer(width int) *glamour.TermRenderer {
	if width < 20 {
		width = 20
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil
	}
	return r
}

// NewProgram creates a Bubbletea program for interactive mode.
func NewProgram(app *App) *tea.Program {
	return tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(app.ctx))
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return tea.Batch(a.input.Focus(), waitForEvent(a.events))
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			a.quitting = true
			if a.cancelRun != nil {
				a.cancelRun()
			}
			return a, tea.Quit
		case "esc":
			if a.running && a.cancelRun != nil {
				a.cancelRun()
				return a, nil
			}
		}
		if a.running {
			return a, nil
		}
		var cmd tea.Cmd
		a.input, cmd = a.input.Update(msg)
		return a, cmd

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.input.SetWidth(msg.Width)
		a.renderer = newRenderer(msg.Width - 4)
		return a, nil

	case QuestionSubmittedMsg:
		if a.running {
			return a, nil
		}
		return a, a.start(msg.Question)

	case EventMsg:
		a.handleEvent(msg.Event)
		return a, waitForEvent(a.events)

	case AnswerMsg:
		a.finish(msg)
		return a, a.input.Focus()

	case spinner.TickMsg:
		if !a.running {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd
	}

	return a, nil
}

// start marks a run in flight and returns the commands that drive it.
func (a *App) start(question string) tea.Cmd {
	runCtx, cancel := context.WithCancel(a.ctx)
	a.running = true
	a.cancelRun = cancel
	a.current = question
	a.stage = pipeline.StageStart
	a.retries = 0
	a.input.Blur()

	return tea.Batch(a.spinner.Tick, a.askCmd(runCtx, question))
}

func (a *App) askCmd(ctx context.Context, question string) tea.Cmd {
	ask := a.ask
	return func() tea.Msg {
		report, err := ask(ctx, question)
		return AnswerMsg{Question: question, Report: report, Err: err}
	}
}

func (a *App) finish(msg AnswerMsg) {
	if a.cancelRun != nil {
		a.cancelRun()
		a.cancelRun = nil
	}
	a.running = false
	a.current = ""

	ex := Exchange{Question: msg.Question, Err: msg.Err}
	if msg.Report != nil {
		ex.Query = msg.Report.State.GeneratedQuery
		ex.Answer = msg.Report.State.FinalAnswer
		ex.Retries = msg.Report.State.RetryCount
		ex.Duration = msg.Report.Duration
	}
	a.exchanges = append(a.exchanges, ex)
}

func (a *App) handleEvent(ev pipeline.Event) {
	// Events from an earlier, cancelled run still go to the log.
	if a.running && ev.Question == a.current {
		a.retries = ev.RetryCount
		if ev.Type == pipeline.EventStageEntered {
			a.stage = ev.Stage
		}
	}

	a.logs = append(a.logs, LogEntry{
		Timestamp: ev.Timestamp,
		Stage:     ev.Stage.String(),
		Message:   describeEvent(ev),
		Failed:    ev.Type == pipeline.EventStepFailed || ev.Type == pipeline.EventFailed,
	})
	if len(a.logs) > maxLogEntries {
		a.logs = a.logs[len(a.logs)-maxLogEntries:]
	}
}

func describeEvent(ev pipeline.Event) string {
	switch ev.Type {
	case pipeline.EventStageEntered:
		if ev.RetryCount > 0 {
			return fmt.Sprintf("started (retry %d)", ev.RetryCount)
		}
		return "started"
	case pipeline.EventStepFailed:
		return fmt.Sprintf("failed: %v", ev.Error)
	case pipeline.EventSucceeded:
		return "answered"
	case pipeline.EventFailed:
		return fmt.Sprintf("gave up: %v", ev.Error)
	}
	return string(ev.Type)
}

// waitForEvent blocks on the next pipeline event.
func waitForEvent(events <-chan pipeline.Event) tea.Cmd {
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return nil
		}
		return EventMsg{Event: ev}
	}
}

// Running reports whether a question is in flight.
func (a *App) Running() bool {
	return a.running
}

// Exchanges returns the finished questions, oldest first.
func (a *App) Exchanges() []Exchange {
	return a.exchanges
}

// View implements tea.Model.
func (a *App) View() string {
	if a.quitting {
		return "Bye.\n"
	}

	var b strings.Builder
	b.WriteString(a.headerStyle.Render("=== Analyst ==="))
	b.WriteString("\n\n")

	b.WriteString(a.renderExchanges())

	if a.running {
		b.WriteString(a.questionStyle.Render("Q: " + a.current))
		b.WriteString("\n")
		status := fmt.Sprintf("%s %s", a.spinner.View(), a.stage)
		if a.retries > 0 {
			status += fmt.Sprintf(" (retry %d)", a.retries)
		}
		b.WriteString(status)
		b.WriteString("\n\n")
	}

	b.WriteString(a.renderLogs())
	b.WriteString("\n")
	b.WriteString(a.input.View())
	b.WriteString("\n")

	help := "enter: ask  ctrl+c: quit"
	if a.running {
		help = "esc: cancel question  ctrl+c: quit"
	}
	b.WriteString(a.helpStyle.Render(help))
	b.WriteString("\n")

	return b.String()
}

func (a *App) renderExchanges() string {
	if len(a.exchanges) == 0 {
		return ""
	}

	start := 0
	if len(a.exchanges) > shownExchanges {
		start = len(a.exchanges) - shownExchanges
	}

	var b strings.Builder
	for _, ex := range a.exchanges[start:] {
		b.WriteString(a.questionStyle.Render("Q: " + ex.Question))
		b.WriteString("\n")
		if ex.Query != "" {
			b.WriteString(a.queryStyle.Render(ex.Query))
			b.WriteString("\n")
		}
		if ex.Err != nil {
			b.WriteString(a.errorStyle.Render(failureText(ex.Err)))
		} else {
			b.WriteString(a.renderAnswer(ex.Answer))
		}
		b.WriteString("\n\n")
	}
	return b.String()
}

// renderAnswer renders the answer as markdown, falling back to plain text.
func (a *App) renderAnswer(answer string) string {
	if a.renderer != nil {
		if rendered, err := a.renderer.Render(answer); err == nil {
			return strings.Trim(rendered, "\n")
		}
	}
	return a.answerStyle.Render(answer)
}

// failureText renders the fixed message followed by the last cause.
func failureText(err error) string {
	var tf *pipeline.TerminalFailure
	if errors.As(err, &tf) && tf.Cause != nil {
		return fmt.Sprintf("%s (%v)", tf.Message, tf.Cause)
	}
	return "Error: " + err.Error()
}

func (a *App) renderLogs() string {
	if len(a.logs) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("252")).
		Render("Activity Log"))
	b.WriteString("\n")

	start := 0
	if len(a.logs) > shownLogs {
		start = len(a.logs) - shownLogs
	}
	for _, entry := range a.logs[start:] {
		ts := a.logTimeStyle.Render(entry.Timestamp.Format("15:04:05"))
		msgStyle := a.logStyle
		if entry.Failed {
			msgStyle = a.errorStyle
		}
		b.WriteString(fmt.Sprintf("  %s %s %s\n", ts, a.stageStyle.Render(entry.Stage), msgStyle.Render(entry.Message)))
	}
	return b.String()
}
