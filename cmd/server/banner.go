package main

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	accent = lipgloss.Color("99")
	dim    = lipgloss.Color("243")

	titleStyle = lipgloss.NewStyle().Foreground(accent).Bold(true)
	labelStyle = lipgloss.NewStyle().Foreground(dim).Width(12)
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(0, 2)
)

type bannerInfo struct {
	Version    string
	BuildTime  string
	Embedded   bool
	ConfigPath string
	Listen     string
	DataDir    string
	Formats    []string
}

// banner renders the startup summary box.
func banner(info bannerInfo) string {
	mode := "API only"
	if info.Embedded {
		mode = "Embedded frontend"
	}

	rows := [][2]string{
		{"Version", info.Version},
		{"Build Time", info.BuildTime},
		{"Mode", mode},
		{"Config", info.ConfigPath},
		{"Listen", "http://" + info.Listen},
		{"Data Dir", info.DataDir},
		{"Formats", strings.Join(info.Formats, ", ")},
	}

	lines := []string{titleStyle.Render("Plan Placer Server"), ""}
	for _, r := range rows {
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(r[0]), r[1]))
	}
	return boxStyle.Render(strings.Join(lines, "\n"))
}
