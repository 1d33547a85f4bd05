package cli

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/inovacc/gitcove/internal/model"
)

var (
	docStyle      = lipgloss.NewStyle().Margin(1, 2)
	archivedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

type repoItem struct {
	repo model.Repository
}

func (i repoItem) Title() string {
	title := fmt.Sprintf("%s (%s%s)", i.repo.Name, i.repo.Mapping, model.RepoSuffix)

	if i.repo.Archived {
		title += " " + archivedStyle.Render("[archived]")
	}

	return title
}

func (i repoItem) Description() string {
	desc := fmt.Sprintf("#%d", i.repo.ID)

	if !i.repo.CreatedAt.IsZero() {
		desc = fmt.Sprintf("%s | Created: %s", desc, i.repo.CreatedAt.Format("2006-01-02 15:04"))
	}

	if i.repo.Description != "" {
		desc = fmt.Sprintf("%s | %s", desc, i.repo.Description)
	}

	return desc
}

func (i repoItem) FilterValue() string {
	return i.repo.Name + " " + i.repo.Mapping
}

// RepoListModel is a filterable repository picker.
type RepoListModel struct {
	list         list.Model
	selectedRepo *model.Repository
	quitting     bool
}

func (m RepoListModel) Init() tea.Cmd {
	return nil
}

func (m RepoListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		h, v := docStyle.GetFrameSize()
		m.list.SetSize(msg.Width-h, msg.Height-v)

		return m, nil

	case tea.KeyMsg:
		// keys typed into the filter belong to the list
		if m.list.FilterState() == list.Filtering {
			break
		}

		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.quitting = true

			return m, tea.Quit

		case "enter":
			if i, ok := m.list.SelectedItem().(repoItem); ok {
				repo := i.repo
				m.selectedRepo = &repo
			}

			return m, tea.Quit
		}
	}

	var cmd tea.Cmd

	m.list, cmd = m.list.Update(msg)

	return m, cmd
}

func (m RepoListModel) View() string {
	if m.quitting || m.selectedRepo != nil {
		return ""
	}

	return docStyle.Render(m.list.View())
}

// GetSelectedRepo returns the chosen repository, or nil when the picker was
// dismissed.
func (m RepoListModel) GetSelectedRepo() *model.Repository {
	return m.selectedRepo
}

// NewRepoList builds a picker over repos.
func NewRepoList(title string, repos []model.Repository) RepoListModel {
	items := make([]list.Item, len(repos))
	for i, repo := range repos {
		items[i] = repoItem{repo: repo}
	}

	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = title
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)

	return RepoListModel{list: l}
}

// PickRepository runs the picker and returns the selection, or nil.
func PickRepository(title string, repos []model.Repository) (*model.Repository, error) {
	if len(repos) == 0 {
		return nil, nil
	}

	final, err := tea.NewProgram(NewRepoList(title, repos)).Run()
	if err != nil {
		return nil, fmt.Errorf("repository picker failed: %w", err)
	}

	m, ok := final.(RepoListModel)
	if !ok {
		return nil, nil
	}

	return m.GetSelectedRepo(), nil
}
