package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/engine-exec/engine"
	"github.com/wippyai/engine-exec/executor"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	sentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	respStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

const transcriptLines = 16

type interactiveModel struct {
	err        error
	exec       *executor.Executor
	responses  chan []byte
	wasmFile   string
	version    string
	transcript []string
	input      textinput.Model
	loaded     bool
}

type readyMsg struct {
	err       error
	exec      *executor.Executor
	responses chan []byte
	version   string
}

type responseMsg []byte

func newInteractiveModel(wasmFile string) *interactiveModel {
	input := textinput.New()
	input.Placeholder = "ping seq=1 | echo k=v | version | quit"
	input.Focus()
	return &interactiveModel{
		wasmFile: wasmFile,
		input:    input,
	}
}

func (m *interactiveModel) Init() tea.Cmd {
	return tea.Batch(m.boot, textinput.Blink)
}

func (m *interactiveModel) boot() tea.Msg {
	ctx := context.Background()

	eng, err := newEngine(m.wasmFile)
	if err != nil {
		return readyMsg{err: err}
	}

	responses := make(chan []byte, 64)
	exec, err := executor.New(ctx, eng, func(payload []byte, userData any) {
		buf := make([]byte, len(payload))
		copy(buf, payload)
		responses <- buf
	}, nil)
	if err != nil {
		return readyMsg{err: err}
	}

	return readyMsg{exec: exec, responses: responses, version: exec.Version()}
}

// listen bridges the async response channel into the tea event loop.
func listen(responses chan []byte) tea.Cmd {
	return func() tea.Msg {
		return responseMsg(<-responses)
	}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.shutdown()
			return m, tea.Quit

		case "enter":
			line := strings.TrimSpace(m.input.Value())
			m.input.SetValue("")
			if line == "" {
				return m, nil
			}
			if line == "quit" || line == "q" {
				m.shutdown()
				return m, tea.Quit
			}
			m.submit(line)
			return m, nil
		}

	case readyMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.exec = msg.exec
		m.responses = msg.responses
		m.version = msg.version
		m.loaded = true
		return m, listen(m.responses)

	case responseMsg:
		code, body, err := decodeResponse(msg)
		if err != nil {
			m.append(errorStyle.Render(fmt.Sprintf("<- undecodable %d bytes: %x", len(msg), []byte(msg))))
		} else {
			m.append(respStyle.Render(fmt.Sprintf("<- 0x%x %v", code, body)))
		}
		return m, listen(m.responses)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *interactiveModel) shutdown() {
	if m.exec != nil {
		_ = m.exec.Close(context.Background())
		m.exec = nil
	}
}

// submit parses one REPL line and sends the corresponding request.
func (m *interactiveModel) submit(line string) {
	if m.exec == nil {
		m.append(errorStyle.Render("engine is not ready yet"))
		return
	}

	fields := strings.Fields(line)
	var code int
	switch fields[0] {
	case "ping":
		code = engine.CodePing
	case "echo":
		code = engine.CodeEcho
	case "version":
		code = engine.CodeVersion
	default:
		m.append(errorStyle.Render(fmt.Sprintf("unknown command %q", fields[0])))
		return
	}

	payload, err := encodeRequest(code, strings.Join(fields[1:], ","))
	if err != nil {
		m.append(errorStyle.Render(err.Error()))
		return
	}
	if err := m.exec.Send(context.Background(), payload); err != nil {
		m.append(errorStyle.Render(fmt.Sprintf("send: %v", err)))
		return
	}
	m.append(sentStyle.Render(fmt.Sprintf("-> 0x%x %s", code, line)))
}

func (m *interactiveModel) append(line string) {
	m.transcript = append(m.transcript, line)
	if len(m.transcript) > transcriptLines {
		m.transcript = m.transcript[len(m.transcript)-transcriptLines:]
	}
}

func (m *interactiveModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("engine-exec"))
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("ctrl+c to quit"))
		return b.String()
	}

	if !m.loaded {
		b.WriteString("Booting engine...\n")
		return b.String()
	}

	b.WriteString(helpStyle.Render("engine " + m.version))
	b.WriteString("\n\n")

	for _, line := range m.transcript {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	if len(m.transcript) > 0 {
		b.WriteByte('\n')
	}

	b.WriteString(m.input.View())
	b.WriteString("\n\n")
	b.WriteString(helpStyle.Render("enter to send · quit or ctrl+c to exit"))
	return b.String()
}

func runInteractive(wasmFile string) error {
	p := tea.NewProgram(newInteractiveModel(wasmFile), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
