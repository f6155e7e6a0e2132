package ui

import "github.com/charmbracelet/lipgloss"

type Layout struct {
	Width           int
	Height          int
	HeaderHeight    int
	StatusBarHeight int
}

func NewLayout(width, height int) Layout {
	return Layout{
		Width:           width,
		Height:          height,
		HeaderHeight:    1,
		StatusBarHeight: 1,
	}
}

// ContentHeight is what remains between the header and the status bar.
func (l Layout) ContentHeight() int {
	return max(l.Height-l.HeaderHeight-l.StatusBarHeight, 1)
}

func (l Layout) RenderHeader(title string, status string) string {
	titleRendered := headerStyle.Render(title)
	statusRendered := headerStyle.Align(lipgloss.Right).Render(status)

	gap := max(l.Width-lipgloss.Width(titleRendered)-lipgloss.Width(statusRendered), 0)
	filler := lipgloss.NewStyle().
		Width(gap).
		Background(headerStyle.GetBackground()).
		Render("")

	return lipgloss.JoinHorizontal(lipgloss.Top, titleRendered, filler, statusRendered)
}

func (l Layout) RenderStatusBar(text string) string {
	rendered := statusBarStyle.Render(text)
	gap := max(l.Width-lipgloss.Width(rendered), 0)
	filler := lipgloss.NewStyle().
		Width(gap).
		Background(statusBarStyle.GetBackground()).
		Render("")
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered, filler)
}

func (l Layout) RenderWithFrame(header, content, statusBar string) string {
	content = lipgloss.NewStyle().Height(l.ContentHeight()).MaxHeight(l.ContentHeight()).Render(content)
	return lipgloss.JoinVertical(lipgloss.Left, header, content, statusBar)
}
