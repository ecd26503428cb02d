package tui

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jamesainslie/dupfinder/pkg/dupfinder/engine"
	"github.com/jamesainslie/dupfinder/pkg/dupfinder/limit"
	"github.com/jamesainslie/dupfinder/pkg/dupfinder/types"
)

// SearchFunc runs a duplicate search, reporting progress through
// onProgress. It must return when ctx is canceled.
type SearchFunc func(ctx context.Context, onProgress func(types.Progress)) (*engine.Result, error)

// Options contains configuration for the TUI.
type Options struct {
	Root   string
	Limit  limit.Limit
	Search SearchFunc

	// Linger keeps the final screen up for this long before exiting.
	Linger time.Duration
}

// Outcome is what the search produced.
type Outcome struct {
	Result      *engine.Result
	Interrupted bool
}

// SearchCompleteMsg is sent when the search returns.
type SearchCompleteMsg struct {
	Result *engine.Result
	Err    error
}

// quitMsg ends the program after the final screen was shown.
type quitMsg struct{}

// interruptMsg is sent when the caller's context is canceled.
type interruptMsg struct{}

// tickUIMsg triggers a UI refresh.
type tickUIMsg struct{}

// Model is the Bubble Tea model for the progress screen.
type Model struct {
	progressModel ProgressModel
	options       Options

	ctx          context.Context
	cancel       context.CancelFunc
	progressChan chan types.Progress

	interrupted bool
	finished    bool
	result      *engine.Result
	err         error
}

// NewModel creates a model that runs opts.Search under ctx.
func NewModel(ctx context.Context, opts Options) Model {
	ctx, cancel := context.WithCancel(ctx)
	return Model{
		progressModel: NewProgressModel(opts.Root, opts.Limit),
		options:       opts,
		ctx:           ctx,
		cancel:        cancel,
		progressChan:  make(chan types.Progress, 100),
	}
}

// Init starts the search.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.progressModel.Init(),
		m.startSearch(),
		m.listenForProgress(),
		m.watchContext(),
		m.tickUI(),
	)
}

func (m Model) watchContext() tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		<-ctx.Done()
		return interruptMsg{}
	}
}

func (m Model) tickUI() tea.Cmd {
	return tea.Tick(50*time.Millisecond, func(time.Time) tea.Msg {
		return tickUIMsg{}
	})
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		var cmd tea.Cmd
		m.progressModel, cmd = m.progressModel.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			if m.finished {
				return m, tea.Quit
			}
			m.stop()
		}
		return m, nil

	case interruptMsg:
		if !m.finished {
			m.stop()
		}
		return m, nil

	case ProgressMsg:
		var cmd tea.Cmd
		m.progressModel, cmd = m.progressModel.Update(msg)
		return m, tea.Batch(cmd, m.listenForProgress())

	case SearchCompleteMsg:
		m.finished = true
		m.result = msg.Result
		m.err = msg.Err
		if errors.Is(msg.Err, context.Canceled) {
			m.interrupted = true
			m.err = nil
		}
		state := types.StateDone
		if m.result != nil {
			m.progressModel.SetProgress(progressOf(m.result.Summary))
			state = m.result.Summary.State
		}
		m.progressModel.SetDone(state, m.err)
		if m.options.Linger <= 0 || m.interrupted {
			return m, tea.Quit
		}
		return m, tea.Tick(m.options.Linger, func(time.Time) tea.Msg { return quitMsg{} })

	case quitMsg:
		return m, tea.Quit

	case tickUIMsg:
		if m.finished {
			return m, nil
		}
		return m, m.tickUI()
	}

	var cmd tea.Cmd
	m.progressModel, cmd = m.progressModel.Update(msg)
	return m, cmd
}

// stop cancels the search; the program exits once it returns.
func (m *Model) stop() {
	m.interrupted = true
	m.progressModel.SetStopping()
	m.cancel()
}

// View renders the current screen.
func (m Model) View() string {
	return m.progressModel.View()
}

// Outcome returns the search result once the program has exited.
func (m Model) Outcome() (Outcome, error) {
	return Outcome{Result: m.result, Interrupted: m.interrupted}, m.err
}

func (m Model) startSearch() tea.Cmd {
	progressChan := m.progressChan
	ctx := m.ctx
	search := m.options.Search
	return func() tea.Msg {
		result, err := search(ctx, func(p types.Progress) {
			select {
			case progressChan <- p:
			default:
				// Channel full, skip this update
			}
		})
		close(progressChan)
		return SearchCompleteMsg{Result: result, Err: err}
	}
}

func (m Model) listenForProgress() tea.Cmd {
	progressChan := m.progressChan
	return func() tea.Msg {
		p, ok := <-progressChan
		if !ok {
			return nil
		}
		return ProgressMsg(p)
	}
}

func progressOf(s types.Summary) types.Progress {
	return types.Progress{
		State:         s.State,
		FilesSeen:     s.FilesSeen,
		Candidates:    s.Candidates,
		FilesHashed:   s.FilesHashed,
		BytesSelected: s.BytesSelected,
		CacheHits:     s.CacheHits,
		Groups:        int64(s.Groups),
		Errors:        int64(len(s.Errors)),
	}
}

// Run shows the progress screen while the search runs and returns what
// it produced. Stopping the search from the keyboard or through ctx is
// reported as an interrupted outcome rather than an error.
func Run(ctx context.Context, opts Options) (Outcome, error) {
	model := NewModel(ctx, opts)
	defer model.cancel()

	p := tea.NewProgram(model, tea.WithAltScreen())

	final, err := p.Run()
	if err != nil {
		return Outcome{}, err
	}
	if m, ok := final.(Model); ok && m.finished {
		return m.Outcome()
	}
	return Outcome{Interrupted: true}, nil
}
