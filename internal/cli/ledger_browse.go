package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"yt-ingest/internal/ledger"
)

type browseMode int

const (
	browseModeList browseMode = iota
	browseModeFilter
	browseModeForgetConfirm
)

type browseModel struct {
	ledger    *ledger.Ledger
	ids       []string
	visible   []string
	cursor    int
	width     int
	height    int
	mode      browseMode
	filter    textinput.Model
	forgotten int

	confirmID     string
	statusMessage string
	fatalErr      error
}

type browseForgetMsg struct {
	id  string
	err error
}

func newBrowseModel(led *ledger.Ledger) browseModel {
	input := textinput.New()
	input.Prompt = "/ "
	input.Placeholder = "filter ids"
	input.CharLimit = 256
	input.Width = 40

	m := browseModel{
		ledger: led,
		ids:    led.IDs(),
		filter: input,
		mode:   browseModeList,
	}
	m.applyFilter()
	m.statusMessage = fmt.Sprintf("%d id(s) in %s", len(m.ids), led.Path())
	return m
}

func (m *browseModel) applyFilter() {
	q := strings.ToLower(strings.TrimSpace(m.filter.Value()))
	m.visible = m.visible[:0]
	for _, id := range m.ids {
		if q == "" || strings.Contains(strings.ToLower(id), q) {
			m.visible = append(m.visible, id)
		}
	}
	if m.cursor >= len(m.visible) {
		m.cursor = len(m.visible) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m browseModel) selectedID() string {
	if m.cursor < 0 || m.cursor >= len(m.visible) {
		return ""
	}
	return m.visible[m.cursor]
}

func forgetIDCmd(led *ledger.Ledger, id string) tea.Cmd {
	return func() tea.Msg {
		if !led.Forget(id) {
			return browseForgetMsg{id: id, err: fmt.Errorf("%s is not in the ledger", id)}
		}
		if err := led.Save(); err != nil {
			led.Add(id)
			return browseForgetMsg{id: id, err: err}
		}
		return browseForgetMsg{id: id}
	}
}

func (m browseModel) Init() tea.Cmd {
	return nil
}

func (m browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.filter.Width = clampInt(m.width-8, 20, 120)
		return m, nil
	case browseForgetMsg:
		m.mode = browseModeList
		m.confirmID = ""
		if msg.err != nil {
			m.statusMessage = "error: " + msg.err.Error()
			return m, nil
		}
		m.forgotten++
		m.ids = m.ledger.IDs()
		m.applyFilter()
		m.statusMessage = fmt.Sprintf("forgot %s (will be downloaded again on the next run)", msg.id)
		return m, nil
	}

	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch m.mode {
	case browseModeFilter:
		return m.updateFilter(keyMsg)
	case browseModeForgetConfirm:
		return m.updateConfirm(keyMsg)
	default:
		return m.updateList(keyMsg)
	}
}

func (m browseModel) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		if m.forgotten > 0 {
			m.statusMessage = fmt.Sprintf("forgot %d id(s); %d remain in %s", m.forgotten, len(m.ids), m.ledger.Path())
		}
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.visible)-1 {
			m.cursor++
		}
	case "home", "g":
		m.cursor = 0
	case "end", "G":
		m.cursor = maxInt(len(m.visible)-1, 0)
	case "/":
		m.mode = browseModeFilter
		m.filter.Focus()
	case "d", "delete":
		if id := m.selectedID(); id != "" {
			m.mode = browseModeForgetConfirm
			m.confirmID = id
		}
	}
	return m, nil
}

func (m browseModel) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.mode = browseModeList
		m.filter.Blur()
		return m, nil
	case tea.KeyEsc:
		m.mode = browseModeList
		m.filter.SetValue("")
		m.filter.Blur()
		m.applyFilter()
		return m, nil
	}
	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.applyFilter()
	return m, cmd
}

func (m browseModel) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "enter":
		return m, forgetIDCmd(m.ledger, m.confirmID)
	case "n", "esc", "q":
		m.mode = browseModeList
		m.confirmID = ""
		m.statusMessage = "forget cancelled"
	}
	return m, nil
}

func (m browseModel) View() string {
	if m.fatalErr != nil {
		return errorStyle.Render("fatal: " + m.fatalErr.Error())
	}
	width := m.width
	if width <= 0 {
		width = 100
	}
	height := m.height
	if height <= 0 {
		height = 30
	}

	header := titleStyle.Render("yt-ingest ledger") + "\n" +
		mutedStyle.Render("up/down: move | /: filter | d: forget | q: quit")

	maxRows := clampInt(height-8, 4, 40)
	start, end := listWindow(len(m.visible), m.cursor, maxRows)
	lines := make([]string, 0, maxRows+2)
	if len(m.visible) == 0 {
		lines = append(lines, mutedStyle.Render("No ids match."))
	}
	if start > 0 {
		lines = append(lines, mutedStyle.Render("..."))
	}
	for i := start; i < end; i++ {
		line := truncateRunes(m.visible[i], maxInt(width-6, 10))
		if i == m.cursor {
			line = selStyle.Width(maxInt(width-4, 6)).Render(line)
		}
		lines = append(lines, line)
	}
	if end < len(m.visible) {
		lines = append(lines, mutedStyle.Render("..."))
	}
	list := panelStyle.Width(width).Render(strings.Join(lines, "\n"))

	footer := m.filter.View()
	switch {
	case m.mode == browseModeForgetConfirm:
		footer = errorStyle.Render(fmt.Sprintf("Forget %s? (y/n)", m.confirmID))
	case strings.HasPrefix(m.statusMessage, "error: "):
		footer = lipgloss.JoinVertical(lipgloss.Left, footer, errorStyle.Render(m.statusMessage))
	case m.statusMessage != "":
		footer = lipgloss.JoinVertical(lipgloss.Left, footer, mutedStyle.Render(m.statusMessage))
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, list, footer)
}
