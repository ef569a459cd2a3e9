package main

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"hark/pipeline"
)

const tuiRefresh = 100 * time.Millisecond

type tickMsg time.Time

type tuiModel struct {
	source        func() status
	st            status
	width, height int
}

var (
	styleTitle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("255"))
	styleOn     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	styleRemote = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	styleOff    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	styleInfo   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	styleText   = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	styleBox    = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1)
)

func newTUIProgram(source func() status) *tea.Program {
	return tea.NewProgram(tuiModel{source: source, st: source()}, tea.WithAltScreen())
}

func tuiTick() tea.Cmd {
	return tea.Tick(tuiRefresh, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tuiTick()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		}

	case tickMsg:
		m.st = m.source()
		return m, tuiTick()
	}
	return m, nil
}

func gateLabel(name string, on bool, style lipgloss.Style) string {
	if on {
		return style.Render("● " + name)
	}
	return styleOff.Render("○ " + name)
}

func (m tuiModel) View() string {
	st := m.st
	var lines []string

	lines = append(lines, styleTitle.Render("hark"))

	var state string
	switch {
	case st.Gates.Local:
		state = styleOn.Render("● DICTATING")
	case st.Gates.Remote:
		state = styleRemote.Render("● REMOTE")
	default:
		state = styleOff.Render("○ STANDBY")
	}
	lines = append(lines, state)
	lines = append(lines, gateLabel("local", st.Gates.Local, styleOn)+"  "+gateLabel("remote", st.Gates.Remote, styleRemote))

	lines = append(lines, "")
	lines = append(lines, styleInfo.Render(fmt.Sprintf("engine: %s   mode: %s", st.Engine, st.KeyMode)))
	device := st.Device
	if device == "" {
		device = "system default"
	}
	lines = append(lines, styleInfo.Render("mic: "+device))
	if st.Remote != "" {
		lines = append(lines, styleInfo.Render(fmt.Sprintf("remote: %s   sessions: %d", st.Remote, st.Sessions)))
	} else {
		lines = append(lines, styleOff.Render("remote: off"))
	}

	lines = append(lines, "")
	if st.Routed == 0 {
		lines = append(lines, styleOff.Render("No transcriptions yet"))
	} else {
		dest := "typed"
		if st.LastDest == pipeline.ToRemote {
			dest = "sent to remote"
		}
		lines = append(lines, styleInfo.Render(fmt.Sprintf("#%d %s at %s", st.Routed, dest, st.LastAt.Format("15:04:05"))))
		width := m.width - 6
		if width < 20 {
			width = 60
		}
		for _, l := range wrapText(st.LastText, width) {
			lines = append(lines, styleText.Render(l))
		}
	}

	lines = append(lines, "")
	lines = append(lines, styleOff.Render("q to quit"))
	return styleBox.Render(strings.Join(lines, "\n"))
}

func wrapText(text string, width int) []string {
	if text == "" {
		return []string{styleOff.Render("(empty)")}
	}
	words := strings.Fields(text)
	var lines []string
	var line strings.Builder
	for _, w := range words {
		if line.Len() > 0 && line.Len()+1+len(w) > width {
			lines = append(lines, line.String())
			line.Reset()
		}
		if line.Len() > 0 {
			line.WriteByte(' ')
		}
		line.WriteString(w)
	}
	if line.Len() > 0 {
		lines = append(lines, line.String())
	}
	return lines
}
