package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	pb "market-agent/src/grpc_control"
	"market-agent/src/models"
	"market-agent/src/reconciler"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const submitTimeout = 2 * time.Minute

// Messages
type (
	changedMsg    struct{}
	submitDoneMsg struct {
		requestID string
		err       error
	}
)

// -----------------------------------------------------------------------------

type theme struct {
	header lipgloss.Style
	label  lipgloss.Style
	ticker lipgloss.Style
	chart  lipgloss.Style
	failed lipgloss.Style
	muted  lipgloss.Style
	panel  lipgloss.Style
	footer lipgloss.Style
}

func newTheme() theme {
	blue := lipgloss.Color("#5fafff")
	pink := lipgloss.Color("#ff5f87")
	mint := lipgloss.Color("#05ffa1")
	muted := lipgloss.Color("#767676")

	return theme{
		header: lipgloss.NewStyle().Bold(true).Foreground(blue),
		label:  lipgloss.NewStyle().Foreground(muted).Width(9),
		ticker: lipgloss.NewStyle().Bold(true).Foreground(mint),
		chart:  lipgloss.NewStyle().Foreground(blue),
		failed: lipgloss.NewStyle().Foreground(pink),
		muted:  lipgloss.NewStyle().Foreground(muted),
		panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(muted).
			Padding(0, 1),
		footer: lipgloss.NewStyle().Foreground(muted).Italic(true),
	}
}

// -----------------------------------------------------------------------------

type model struct {
	control *pb.ControlClient
	rec     *reconciler.Reconciler
	channel string

	input   textinput.Model
	spinner spinner.Model
	theme   theme
	width   int
	status  string
}

func newModel(control *pb.ControlClient, rec *reconciler.Reconciler, channel string) model {
	input := textinput.New()
	input.Prompt = "❯ "
	input.CharLimit = 500
	input.Placeholder = "show me AAPL"
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#05ffa1"))

	return model{
		control: control,
		rec:     rec,
		channel: channel,
		input:   input,
		spinner: sp,
		theme:   newTheme(),
		width:   80,
		status:  "subscribed to " + channel,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, waitChanged(m.rec.Changed()))
}

// waitChanged turns reconciler change signals into messages
func waitChanged(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-ch
		return changedMsg{}
	}
}

// -----------------------------------------------------------------------------

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			text := strings.TrimSpace(m.input.Value())
			if text == "" {
				return m, nil
			}
			m.input.SetValue("")
			requestID := m.rec.Submit()
			m.status = "request " + shortID(requestID) + " sent"
			return m, m.submitCmd(requestID, text)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case changedMsg:
		return m, waitChanged(m.rec.Changed())

	case submitDoneMsg:
		if msg.err != nil {
			m.status = "request " + shortID(msg.requestID) + " failed: " + status.Convert(msg.err).Message()
		} else {
			m.status = "request " + shortID(msg.requestID) + " done"
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) submitCmd(requestID, text string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
		defer cancel()

		in, err := structpb.NewStruct(map[string]any{"message": text, "request_id": requestID})
		if err == nil {
			_, err = m.control.Submit(ctx, in)
		}
		return submitDoneMsg{requestID: requestID, err: err}
	}
}

// -----------------------------------------------------------------------------

func (m model) View() string {
	snap := m.rec.Snapshot()
	t := m.theme
	inner := max(m.width-6, 20)

	var b strings.Builder
	b.WriteString(t.header.Render("market-agent") + t.muted.Render("  "+m.channel) + "\n\n")

	slots := []string{
		t.label.Render("ticker") + m.renderSlot(snap.Ticker, func() string { return t.ticker.Render(snap.Ticker.Text()) }),
		t.label.Render("chart") + m.renderSlot(snap.Chart, func() string { return renderChart(t, snap.Series(), inner-9) }),
		t.label.Render("message") + m.renderSlot(snap.Message, func() string { return snap.Message.Text() }),
	}
	b.WriteString(t.panel.Width(inner).Render(strings.Join(slots, "\n")) + "\n\n")

	b.WriteString(m.input.View() + "\n")
	b.WriteString(t.footer.Render(m.status+"  ·  enter to send, esc to quit"))
	return b.String()
}

func (m model) renderSlot(slot reconciler.Slot, ready func() string) string {
	switch slot.Status {
	case reconciler.Loading:
		return m.spinner.View() + m.theme.muted.Render(" loading")
	case reconciler.Failed:
		return m.theme.failed.Render("failed: " + slot.Reason)
	case reconciler.Ready:
		return ready()
	default:
		return m.theme.muted.Render("-")
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// -----------------------------------------------------------------------------

func renderChart(t theme, series []models.MTimeSeriesPoint, width int) string {
	if len(series) == 0 {
		return t.muted.Render("no data")
	}
	first, last := series[0], series[len(series)-1]
	caption := fmt.Sprintf(" %s %.2f → %s %.2f", first.Date, first.Value, last.Date, last.Value)
	return t.chart.Render(Sparkline(series, max(width-len([]rune(caption)), 8))) + t.muted.Render(caption)
}
