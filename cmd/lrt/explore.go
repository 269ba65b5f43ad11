package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/wippyai/js-runtime/engine"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	nameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	kindStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

func newExploreCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "explore",
		Short: "Interactively resolve and load modules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !term.IsTerminal(int(os.Stdout.Fd())) {
				return fmt.Errorf("explore needs a terminal")
			}
			ctx := cmd.Context()
			p := tea.NewProgram(newExploreModel(ctx, a), tea.WithAltScreen(), tea.WithContext(ctx))
			_, err := p.Run()
			return err
		},
	}
}

type modelState int

const (
	stateSelectModule modelState = iota
	stateInputSpecifier
	stateShowResult
)

type exploreModel struct {
	ctx      context.Context
	app      *app
	err      error
	s        *session
	result   *exploreResult
	names    []string
	inputs   []textinput.Model
	selected int
	focusIdx int
	state    modelState
}

type exploreResult struct {
	specifier string
	base      string
	name      string
	kind      string
	url       string
	size      int
}

func newExploreModel(ctx context.Context, a *app) *exploreModel {
	return &exploreModel{ctx: ctx, app: a, state: stateSelectModule}
}

type sessionMsg struct {
	err   error
	s     *session
	names []string
}

type resultMsg struct {
	err    error
	result *exploreResult
}

func (m *exploreModel) Init() tea.Cmd {
	return m.startSession
}

func (m *exploreModel) startSession() tea.Msg {
	s, err := m.app.session(m.ctx)
	if err != nil {
		return sessionMsg{err: err}
	}
	names := append(s.rt.BuiltinNames(), s.rt.Registry().Names()...)
	return sessionMsg{s: s, names: names}
}

func (m *exploreModel) cwd() string {
	if m.s == nil {
		return ""
	}
	return m.s.rt.Kernel().Node().Cwd()
}

func (m *exploreModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		key := msg.String()
		if key == "ctrl+c" || (key == "q" && m.state != stateInputSpecifier) {
			return m, tea.Quit
		}

		switch key {
		case "up", "k":
			if m.state == stateSelectModule && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelectModule && m.selected < len(m.names)-1 {
				m.selected++
			}

		case "/", "i":
			if m.state == stateSelectModule && m.s != nil {
				m.prepareInputs()
				m.state = stateInputSpecifier
				return m, textinput.Blink
			}

		case "enter":
			switch m.state {
			case stateSelectModule:
				if len(m.names) > 0 {
					return m, m.explore(m.names[m.selected], m.cwd())
				}

			case stateInputSpecifier:
				base := m.inputs[1].Value()
				if base == "" {
					base = m.cwd()
				}
				return m, m.explore(m.inputs[0].Value(), base)

			case stateShowResult:
				m.state = stateSelectModule
				m.result = nil
				m.err = nil
			}

		case "tab":
			if m.state == stateInputSpecifier {
				m.inputs[m.focusIdx].Blur()
				m.focusIdx = (m.focusIdx + 1) % len(m.inputs)
				m.inputs[m.focusIdx].Focus()
			}

		case "esc":
			switch m.state {
			case stateInputSpecifier:
				m.state = stateSelectModule
				m.inputs = nil
			case stateShowResult:
				m.state = stateSelectModule
				m.result = nil
				m.err = nil
			}
		}

	case sessionMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.s = msg.s
		m.names = msg.names

	case resultMsg:
		m.result = msg.result
		m.err = msg.err
		m.state = stateShowResult
	}

	if m.state == stateInputSpecifier {
		var cmds []tea.Cmd
		for i := range m.inputs {
			var cmd tea.Cmd
			m.inputs[i], cmd = m.inputs[i].Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)
	}

	return m, nil
}

func (m *exploreModel) prepareInputs() {
	spec := textinput.New()
	spec.Prompt = "specifier: "
	spec.Placeholder = "./main.js"
	spec.Width = 50
	spec.Focus()

	base := textinput.New()
	base.Prompt = "from: "
	base.Placeholder = m.cwd()
	base.Width = 50

	m.inputs = []textinput.Model{spec, base}
	m.focusIdx = 0
}

// explore resolves specifier from base and declares the result.
func (m *exploreModel) explore(specifier, base string) tea.Cmd {
	return func() tea.Msg {
		r := &exploreResult{specifier: specifier, base: base}
		name, err := m.s.rt.Resolve(m.ctx, base, specifier)
		if err != nil {
			return resultMsg{result: r, err: err}
		}
		r.name = name
		mod, err := m.s.rt.Load(m.ctx, name)
		if err != nil {
			return resultMsg{result: r, err: err}
		}
		r.name = mod.Name()
		if rm, ok := mod.(*engine.RecordedModule); ok {
			r.kind = rm.Kind().String()
			r.url = rm.URL()
			r.size = len(rm.Data())
		}
		return resultMsg{result: r}
	}
}

func (m *exploreModel) View() string {
	if m.err != nil && m.state != stateShowResult {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}

	if m.s == nil {
		return "Starting runtime..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("Module Explorer"))
	b.WriteString(" ")
	b.WriteString(m.cwd())
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectModule:
		b.WriteString("Builtin and registry modules:\n\n")
		for i, name := range m.names {
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + name))
			} else {
				b.WriteString("  " + nameStyle.Render(name))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter load • / specifier • q quit"))

	case stateInputSpecifier:
		b.WriteString("Resolve a specifier\n\n")
		for _, input := range m.inputs {
			b.WriteString(input.View())
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("tab next field • enter load • esc back"))

	case stateShowResult:
		r := m.result
		b.WriteString(fmt.Sprintf("%s from %s\n\n", nameStyle.Render(r.specifier), r.base))
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(resultStyle.Render(r.name))
			b.WriteString("\n")
			b.WriteString(fmt.Sprintf("kind: %s  size: %d\n", kindStyle.Render(r.kind), r.size))
			b.WriteString(fmt.Sprintf("url:  %s", r.url))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))
	}

	return b.String()
}
