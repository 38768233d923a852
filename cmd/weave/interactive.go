package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	jvmyield "github.com/wippyai/jvm-yield"
	"github.com/wippyai/jvm-yield/classfile"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	funcStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
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

// headerLines is the number of lines View renders above the viewport.
const headerLines = 4

type interactiveModel struct {
	err      error
	original *classfile.Class
	woven    *classfile.Class
	filename string
	cfg      jvmyield.Config
	methods  []methodInfo
	visible  []int
	filter   textinput.Model
	view     viewport.Model
	selected int
	state    modelState
	width    int
	height   int
	// showWoven selects which listing the viewport shows.
	showWoven bool
	filtering bool
}

type methodInfo struct {
	name   string
	desc   string
	status string
	states int
}

type modelState int

const (
	stateSelectMethod modelState = iota
	stateShowListing
)

func newInteractiveModel(filename string, cfg jvmyield.Config) *interactiveModel {
	ti := textinput.New()
	ti.Placeholder = "filter methods"
	ti.Prompt = "/ "
	ti.Width = 40
	return &interactiveModel{
		filename:  filename,
		cfg:       cfg,
		filter:    ti,
		view:      viewport.New(80, 20),
		state:     stateSelectMethod,
		showWoven: true,
	}
}

type loadedMsg struct {
	err      error
	original *classfile.Class
	woven    *classfile.Class
	methods  []methodInfo
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.loadClass
}

// loadClass parses the file twice so the untouched and the woven class can
// be shown side by side.
func (m *interactiveModel) loadClass() tea.Msg {
	data, err := os.ReadFile(m.filename)
	if err != nil {
		return loadedMsg{err: err}
	}
	original, err := classfile.ParseClass(data)
	if err != nil {
		return loadedMsg{err: err}
	}
	woven, err := classfile.ParseClass(data)
	if err != nil {
		return loadedMsg{err: err}
	}
	cfg := m.cfg
	cfg.OnError = jvmyield.Skip
	report, err := jvmyield.TransformClass(woven, cfg)
	if err != nil {
		return loadedMsg{err: err}
	}
	return loadedMsg{original: original, woven: woven, methods: describeMethods(original, report)}
}

// describeMethods lists the methods with code and what weaving did to each.
func describeMethods(c *classfile.Class, report *jvmyield.Report) []methodInfo {
	states := make(map[string]int)
	for _, r := range report.Woven {
		states[r.Method] = r.States
	}
	failed := make(map[string]string)
	if report.Skipped != nil {
		for _, s := range report.Skipped.Methods {
			if s.Owner == c.Name && s.Cause != nil {
				failed[s.Name] = s.Cause.Error()
			}
		}
	}

	var out []methodInfo
	for _, meth := range c.Methods {
		if meth.Code == nil {
			continue
		}
		info := methodInfo{name: meth.Name, desc: meth.Desc}
		key := meth.Key()
		if n, ok := states[key]; ok {
			info.states = n
			info.status = fmt.Sprintf("%d states", n)
		} else if cause, ok := failed[key]; ok {
			info.status = cause
		}
		out = append(out, info)
	}
	return out
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.view.Width = msg.Width
		m.view.Height = max(msg.Height-headerLines-2, 1)
		return m, nil

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.original = msg.original
		m.woven = msg.woven
		m.methods = msg.methods
		m.applyFilter()
		return m, nil

	case tea.KeyMsg:
		if m.filtering {
			return m.updateFilter(msg)
		}
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit

		case "/":
			if m.state == stateSelectMethod {
				m.filtering = true
				return m, m.filter.Focus()
			}

		case "up", "k":
			if m.state == stateSelectMethod && m.selected > 0 {
				m.selected--
				return m, nil
			}

		case "down", "j":
			if m.state == stateSelectMethod && m.selected < len(m.visible)-1 {
				m.selected++
				return m, nil
			}

		case "enter":
			if m.state == stateSelectMethod && len(m.visible) > 0 {
				m.state = stateShowListing
				m.refreshListing()
				return m, nil
			}

		case "tab":
			if m.state == stateShowListing {
				m.showWoven = !m.showWoven
				m.refreshListing()
				return m, nil
			}

		case "esc":
			if m.state == stateShowListing {
				m.state = stateSelectMethod
				return m, nil
			}
		}
	}

	if m.state == stateShowListing {
		var cmd tea.Cmd
		m.view, cmd = m.view.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *interactiveModel) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "enter", "esc":
		m.filtering = false
		m.filter.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.applyFilter()
	return m, cmd
}

func (m *interactiveModel) applyFilter() {
	q := strings.ToLower(m.filter.Value())
	m.visible = m.visible[:0]
	for i, info := range m.methods {
		if q == "" || strings.Contains(strings.ToLower(info.name+info.desc), q) {
			m.visible = append(m.visible, i)
		}
	}
	if m.selected >= len(m.visible) {
		m.selected = max(len(m.visible)-1, 0)
	}
}

func (m *interactiveModel) current() (methodInfo, bool) {
	if m.selected >= len(m.visible) {
		return methodInfo{}, false
	}
	return m.methods[m.visible[m.selected]], true
}

func (m *interactiveModel) refreshListing() {
	info, ok := m.current()
	if !ok {
		return
	}
	c := m.original
	if m.showWoven {
		c = m.woven
	}
	meth := c.Method(info.name, info.desc)
	if meth == nil || meth.Code == nil {
		m.view.SetContent(errorStyle.Render("method has no code"))
		return
	}
	var b strings.Builder
	renderMethod(&b, c.Name, meth, true)
	m.view.SetContent(b.String())
	m.view.GotoTop()
}

func (m *interactiveModel) View() string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}

	if m.original == nil {
		return "Loading class..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("JVM Yield Weaver"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectMethod:
		if m.filtering || m.filter.Value() != "" {
			b.WriteString(m.filter.View())
			b.WriteString("\n\n")
		} else {
			b.WriteString(fmt.Sprintf("Methods of %s:\n\n", typeStyle.Render(m.original.Name)))
		}
		for i, idx := range m.visible {
			info := m.methods[idx]
			line := m.formatMethod(info)
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + info.name + info.desc))
				b.WriteString(strings.TrimPrefix(line, info.name+info.desc))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
		if len(m.visible) == 0 {
			b.WriteString(helpStyle.Render("  no methods match"))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • / filter • enter show • q quit"))

	case stateShowListing:
		info, _ := m.current()
		which := "original"
		if m.showWoven {
			which = "woven"
		}
		b.WriteString(fmt.Sprintf("%s (%s)\n", funcStyle.Render(info.name+info.desc), which))
		b.WriteString(m.view.View())
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("tab original/woven • ↑/↓ scroll • esc back • q quit"))
	}

	return b.String()
}

func (m *interactiveModel) formatMethod(info methodInfo) string {
	switch {
	case info.states > 0:
		return info.name + info.desc + "  " + resultStyle.Render(info.status)
	case info.status != "":
		return info.name + info.desc + "  " + errorStyle.Render(info.status)
	}
	return info.name + info.desc + "  " + helpStyle.Render("unchanged")
}

func runInteractive(filename string, cfg jvmyield.Config) error {
	p := tea.NewProgram(newInteractiveModel(filename, cfg), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
