package ui

import "github.com/charmbracelet/lipgloss"

var (
	colorBlue   = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	colorGreen  = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	colorYellow = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	colorRed    = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	colorGray   = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	colorWhite  = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	colorSubtle = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#CBD5E0"}
	colorBorder = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

var headerStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(colorWhite).
	Background(colorBlue).
	Padding(0, 1)

var statusBarStyle = lipgloss.NewStyle().
	Foreground(colorWhite).
	Background(colorSubtle).
	Padding(0, 1)

var listItemStyle = lipgloss.NewStyle().
	PaddingLeft(2)

var selectedItemStyle = lipgloss.NewStyle().
	PaddingLeft(1).
	Bold(true).
	Foreground(colorBlue).
	Border(lipgloss.NormalBorder(), false, false, false, true).
	BorderForeground(colorBlue)

var unreadStyle = lipgloss.NewStyle().Bold(true)

var dimmedStyle = lipgloss.NewStyle().Foreground(colorGray)

var bannerStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(colorYellow).
	PaddingLeft(2)

var errorStyle = lipgloss.NewStyle().Foreground(colorRed)

var successStyle = lipgloss.NewStyle().Foreground(colorGreen)

var chipStyle = lipgloss.NewStyle().
	Foreground(colorBlue).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(colorBorder).
	Padding(0, 1)

var detailPanelStyle = lipgloss.NewStyle().
	Padding(0, 1).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(colorBorder)

var labelStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(colorGray).
	Width(9)
