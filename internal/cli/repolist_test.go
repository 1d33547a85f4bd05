package cli

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/inovacc/gitcove/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRepos() []model.Repository {
	return []model.Repository{
		{ID: 1, Name: "Demo", Mapping: "demo", Description: "first"},
		{ID: 2, Name: "Tools", Mapping: "tools", Archived: true},
	}
}

func TestRepoItem(t *testing.T) {
	item := repoItem{repo: testRepos()[0]}
	assert.Equal(t, "Demo (demo.git)", item.Title())
	assert.Equal(t, "#1 | first", item.Description())
	assert.Contains(t, item.FilterValue(), "demo")

	archived := repoItem{repo: testRepos()[1]}
	assert.Contains(t, archived.Title(), "[archived]")
}

func TestRepoListModel_Select(t *testing.T) {
	m := NewRepoList("Repositories", testRepos())

	updated, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	updated, cmd := updated.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)

	selected := updated.(RepoListModel).GetSelectedRepo()
	require.NotNil(t, selected)
	assert.Equal(t, int64(1), selected.ID)
	assert.Empty(t, updated.View())
}

func TestRepoListModel_Quit(t *testing.T) {
	m := NewRepoList("Repositories", testRepos())

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.Nil(t, updated.(RepoListModel).GetSelectedRepo())
}

func TestPickRepository_Empty(t *testing.T) {
	repo, err := PickRepository("Repositories", nil)
	assert.NoError(t, err)
	assert.Nil(t, repo)
}
