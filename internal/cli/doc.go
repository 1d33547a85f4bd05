// Package cli holds the terminal user interface pieces of the gitcove
// command line.
//
// Components follow the Bubbletea Model-View-Update architecture and are
// styled with Lipgloss. The [RepoListModel] picker lets an operator choose a
// repository when a command is run without an id.
package cli
