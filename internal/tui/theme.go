package tui

import "github.com/charmbracelet/lipgloss"

// Theme 定义终端输出色彩和样式
// Theme defines terminal colors and styles
type Theme struct {
	// 基础色 / Base colors
	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Accent    lipgloss.Color
	Danger    lipgloss.Color
	Success   lipgloss.Color
	Muted     lipgloss.Color
	Text      lipgloss.Color

	// 预构建样式 / Pre-built styles
	TitleStyle     lipgloss.Style
	ErrorStyle     lipgloss.Style
	SuccessStyle   lipgloss.Style
	MutedStyle     lipgloss.Style
	ToolStyle      lipgloss.Style
	TodoPending    lipgloss.Style
	TodoInProgress lipgloss.Style
	TodoCompleted  lipgloss.Style
	DiffAddStyle   lipgloss.Style
	DiffDelStyle   lipgloss.Style
	DiffHunkStyle  lipgloss.Style
}

// DarkTheme 暗色主题（默认）
// DarkTheme is the default dark theme
func DarkTheme() Theme {
	t := Theme{
		Primary:   lipgloss.Color("#7C3AED"),
		Secondary: lipgloss.Color("#06B6D4"),
		Accent:    lipgloss.Color("#F59E0B"),
		Danger:    lipgloss.Color("#EF4444"),
		Success:   lipgloss.Color("#10B981"),
		Muted:     lipgloss.Color("#6B7280"),
		Text:      lipgloss.Color("#E5E7EB"),
	}

	t.TitleStyle = lipgloss.NewStyle().
		Foreground(t.Primary).
		Bold(true)

	t.ErrorStyle = lipgloss.NewStyle().
		Foreground(t.Danger).
		Bold(true)

	t.SuccessStyle = lipgloss.NewStyle().
		Foreground(t.Success)

	t.MutedStyle = lipgloss.NewStyle().
		Foreground(t.Muted)

	t.ToolStyle = lipgloss.NewStyle().
		Foreground(t.Secondary)

	t.TodoPending = lipgloss.NewStyle().
		Foreground(t.Text)

	t.TodoInProgress = lipgloss.NewStyle().
		Foreground(t.Accent).
		Bold(true)

	t.TodoCompleted = lipgloss.NewStyle().
		Foreground(t.Muted).
		Strikethrough(true)

	t.DiffAddStyle = lipgloss.NewStyle().
		Foreground(t.Success)

	t.DiffDelStyle = lipgloss.NewStyle().
		Foreground(t.Danger)

	t.DiffHunkStyle = lipgloss.NewStyle().
		Foreground(t.Secondary)

	return t
}
