package tui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	onlineStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	offlineStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))

	userLabelStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("105"))
	assistantLabelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("78"))
	errTextStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	sourcesStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Italic(true)
	spinnerStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("99"))

	bannerInfoStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("75"))
	bannerOKStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	bannerErrStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)

	questionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("75"))

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("203")).
			Padding(1, 3)

	inputPromptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("99"))
)
