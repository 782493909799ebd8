package main

import "github.com/charmbracelet/lipgloss"

// --- STYLING (using Lipgloss) ---

var (
	styleCorrect   = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true) // Green
	styleIncorrect = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)  // Red
	styleStreak    = lipgloss.NewStyle().Foreground(lipgloss.Color("208")).Bold(true)
	styleScore     = lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Bold(true)
	styleSubtle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	styleHeader    = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	styleError     = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Padding(1)
	styleNotice    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	styleCard      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(1, 3)
	styleButton    = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(0, 2)
	styleDisabled  = styleButton.Foreground(lipgloss.Color("8")).BorderForeground(lipgloss.Color("8"))
	stylePlaying   = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true)
)
