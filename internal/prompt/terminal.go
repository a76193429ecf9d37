package prompt

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/npratt/mapedit/internal/config"
)

// Terminal asks questions with bubbletea dialogs when attached to a TTY.
// Without one it answers from configuration: confirmations get AssumeYes
// and the save question gets yes when AssumeYes is set, cancel otherwise.
type Terminal struct {
	in          io.Reader
	out         io.Writer
	interactive bool
	assumeYes   bool
	logger      *slog.Logger
}

// NewTerminal creates a Terminal on stdin/stderr, leaving stdout to command output.
func NewTerminal(cfg config.PromptConfig, logger *slog.Logger) *Terminal {
	if logger == nil {
		logger = slog.Default()
	}
	return &Terminal{
		in:          os.Stdin,
		out:         os.Stderr,
		interactive: cfg.Interactive && isTerminal(),
		assumeYes:   cfg.AssumeYes,
		logger:      logger,
	}
}

// isTerminal returns true if both stderr and stdin are TTYs.
func isTerminal() bool {
	return term.IsTerminal(int(os.Stderr.Fd())) && term.IsTerminal(int(os.Stdin.Fd()))
}

// Interactive reports whether dialogs are shown.
func (t *Terminal) Interactive() bool { return t.interactive }

func (t *Terminal) Inform(msg string) {
	_, _ = fmt.Fprintln(t.out, msg)
}

func (t *Terminal) Confirm(question string, allowRemember bool) (bool, bool) {
	if !t.interactive {
		t.logger.Debug("answering confirmation from config", "question", question, "answer", t.assumeYes)
		return t.assumeYes, false
	}

	final, err := t.run(newConfirmModel(question, allowRemember))
	if err != nil {
		t.logger.Warn("confirmation dialog failed", "error", err)
		return false, false
	}
	m := final.(confirmModel)
	return m.ok, m.ok && m.remember
}

func (t *Terminal) AskSave(title string) SaveAnswer {
	if !t.interactive {
		if t.assumeYes {
			return SaveYes
		}
		return SaveCancel
	}

	final, err := t.run(newSaveModel(title))
	if err != nil {
		t.logger.Warn("save dialog failed", "error", err)
		return SaveCancel
	}
	return final.(saveModel).answer
}

func (t *Terminal) run(model tea.Model) (tea.Model, error) {
	p := tea.NewProgram(model, tea.WithInput(t.in), tea.WithOutput(t.out))
	return p.Run()
}

// Static answers every question with fixed replies and records what was
// shown. It serves scripted runs and tests.
type Static struct {
	ConfirmAnswer  bool
	RememberAnswer bool
	Save           SaveAnswer

	Messages  []string
	Questions []string
}

func (s *Static) Inform(msg string) {
	s.Messages = append(s.Messages, msg)
}

func (s *Static) Confirm(question string, allowRemember bool) (bool, bool) {
	s.Questions = append(s.Questions, question)
	return s.ConfirmAnswer, allowRemember && s.RememberAnswer
}

func (s *Static) AskSave(title string) SaveAnswer {
	s.Questions = append(s.Questions, Text(MsgSaveUnsaved, title))
	return s.Save
}
