package prompt

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	dialogStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("205")).
			Padding(1, 2)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	checkStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212"))
)

type confirmKeyMap struct {
	Confirm  key.Binding
	Cancel   key.Binding
	Remember key.Binding
}

var confirmKeys = confirmKeyMap{
	Confirm: key.NewBinding(
		key.WithKeys("y", "enter"),
		key.WithHelp("y", "ok"),
	),
	Cancel: key.NewBinding(
		key.WithKeys("n", "esc", "ctrl+c"),
		key.WithHelp("n/esc", "cancel"),
	),
	Remember: key.NewBinding(
		key.WithKeys("d"),
		key.WithHelp("d", "don't show again"),
	),
}

// confirmModel is an OK/cancel dialog with an optional "don't show again" box.
type confirmModel struct {
	question      string
	allowRemember bool
	remember      bool
	done          bool
	ok            bool
}

func newConfirmModel(question string, allowRemember bool) confirmModel {
	return confirmModel{question: question, allowRemember: allowRemember}
}

func (m confirmModel) Init() tea.Cmd { return nil }

func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok || m.done {
		return m, nil
	}

	switch {
	case key.Matches(keyMsg, confirmKeys.Confirm):
		m.done, m.ok = true, true
		return m, tea.Quit
	case key.Matches(keyMsg, confirmKeys.Cancel):
		m.done, m.ok = true, false
		return m, tea.Quit
	case m.allowRemember && key.Matches(keyMsg, confirmKeys.Remember):
		m.remember = !m.remember
	}
	return m, nil
}

func (m confirmModel) View() string {
	if m.done {
		return ""
	}

	body := m.question
	help := []string{"y ok", "n/esc cancel"}
	if m.allowRemember {
		box := "[ ]"
		if m.remember {
			box = checkStyle.Render("[x]")
		}
		body += "\n\n" + box + " don't show again"
		help = append(help, "d toggle")
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		dialogStyle.Render(body),
		helpStyle.Render(strings.Join(help, " • ")),
	) + "\n"
}

type saveKeyMap struct {
	Yes    key.Binding
	No     key.Binding
	Cancel key.Binding
}

var saveKeys = saveKeyMap{
	Yes: key.NewBinding(
		key.WithKeys("y"),
		key.WithHelp("y", "save"),
	),
	No: key.NewBinding(
		key.WithKeys("n"),
		key.WithHelp("n", "discard"),
	),
	Cancel: key.NewBinding(
		key.WithKeys("c", "esc", "ctrl+c"),
		key.WithHelp("c/esc", "cancel"),
	),
}

// saveModel asks yes/no/cancel before an unsaved map is closed.
type saveModel struct {
	title  string
	done   bool
	answer SaveAnswer
}

func newSaveModel(title string) saveModel {
	return saveModel{title: title, answer: SaveCancel}
}

func (m saveModel) Init() tea.Cmd { return nil }

func (m saveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok || m.done {
		return m, nil
	}

	switch {
	case key.Matches(keyMsg, saveKeys.Yes):
		m.answer = SaveYes
	case key.Matches(keyMsg, saveKeys.No):
		m.answer = SaveNo
	case key.Matches(keyMsg, saveKeys.Cancel):
		m.answer = SaveCancel
	default:
		return m, nil
	}
	m.done = true
	return m, tea.Quit
}

func (m saveModel) View() string {
	if m.done {
		return ""
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		dialogStyle.Render(Text(MsgSaveUnsaved, m.title)),
		helpStyle.Render("y save • n discard • c/esc cancel"),
	) + "\n"
}
