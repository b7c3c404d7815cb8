package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/roofdocs/nexus/internal/db/queries"
	"github.com/roofdocs/nexus/internal/server"
	"github.com/roofdocs/nexus/pkg/logger"
)

var seedKnowledgeFile string

type knowledgeImport struct {
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Category string   `json:"category"`
	Source   string   `json:"source"`
	Tags     []string `json:"tags"`
}

type seedDoneMsg struct {
	scenarios int
	entries   int
	err       error
}

type seedModel struct {
	spinner  spinner.Model
	app      *server.App
	done     bool
	quitting bool
	result   seedDoneMsg
}

func newSeedModel(a *server.App) seedModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#f59e0b"))
	return seedModel{spinner: s, app: a}
}

func (m seedModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.runSeed())
}

func (m seedModel) runSeed() tea.Cmd {
	return func() tea.Msg {
		if err := m.app.Training.Seed(); err != nil {
			return seedDoneMsg{err: err}
		}
		scenarios, err := queries.CountScenarios(m.app.DB)
		if err != nil {
			return seedDoneMsg{err: err}
		}

		entries := 0
		if seedKnowledgeFile != "" {
			n, err := importKnowledge(m.app, seedKnowledgeFile)
			if err != nil {
				return seedDoneMsg{scenarios: scenarios, err: err}
			}
			entries = n
		}
		return seedDoneMsg{scenarios: scenarios, entries: entries}
	}
}

func (m seedModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil
	case seedDoneMsg:
		m.done = true
		m.result = msg
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m seedModel) View() string {
	if m.done {
		if m.result.err != nil {
			return fmt.Sprintf("Seeding failed: %v\n", m.result.err)
		}
		out := fmt.Sprintf("Seeded %d training scenarios.\n", m.result.scenarios)
		if m.result.entries > 0 {
			out += fmt.Sprintf("Imported %d knowledge entries.\n", m.result.entries)
		}
		return out
	}
	if m.quitting {
		return "Seeding cancelled.\n"
	}
	return fmt.Sprintf("\n  %s Seeding training content...\n\n", m.spinner.View())
}

func importKnowledge(a *server.App, path string) (int, error) {
	if !a.RAG.Enabled() {
		return 0, fmt.Errorf("knowledge base is disabled, set an embedding provider key first")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read knowledge file: %w", err)
	}

	var entries []knowledgeImport
	if err := json.Unmarshal(data, &entries); err != nil {
		return 0, fmt.Errorf("failed to parse knowledge file: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	for i, entry := range entries {
		if entry.Title == "" || entry.Content == "" {
			return i, fmt.Errorf("entry %d is missing a title or content", i)
		}
		if _, err := a.RAG.AddEntry(ctx, entry.Title, entry.Content, entry.Category, entry.Source, entry.Tags); err != nil {
			return i, fmt.Errorf("failed to import %q: %w", entry.Title, err)
		}
	}
	return len(entries), nil
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed training scenarios, badges and optional knowledge entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		a, err := server.NewApp(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize application: %w", err)
		}
		defer func() {
			if err := a.Shutdown(); err != nil {
				logger.Error("Shutdown error", "error", err)
			}
		}()

		p := tea.NewProgram(newSeedModel(a))
		final, err := p.Run()
		if err != nil {
			return fmt.Errorf("error running seed program: %w", err)
		}

		m, ok := final.(seedModel)
		if !ok {
			return fmt.Errorf("could not type assert tea model to concrete type")
		}
		if m.result.err != nil {
			return m.result.err
		}
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedKnowledgeFile, "knowledge", "", "Path to a JSON file of knowledge entries to import")
	rootCmd.AddCommand(seedCmd)
}
