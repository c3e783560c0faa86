package ui

import "github.com/charmbracelet/lipgloss"

// Colors used in the browser.
var (
	colorPrimary   = lipgloss.Color("62")  // Purple
	colorSecondary = lipgloss.Color("241") // Gray
	colorMuted     = lipgloss.Color("240") // Darker gray
	colorHighlight = lipgloss.Color("212") // Pink
	colorSuccess   = lipgloss.Color("78")  // Green
)

// SelectedCard style for the card under the cursor.
var SelectedCard = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("255")).
	Background(colorPrimary).
	Padding(0, 1)

// NormalCard style for the other cards.
var NormalCard = lipgloss.NewStyle().
	Foreground(lipgloss.Color("255")).
	Padding(0, 1)

// CardMeta style for dates and tags next to a title.
var CardMeta = lipgloss.NewStyle().
	Foreground(colorSecondary)

// FeaturedBadge marks featured cards.
var FeaturedBadge = lipgloss.NewStyle().
	Foreground(colorHighlight).
	Bold(true)

// BookmarkBadge marks bookmarked cards.
var BookmarkBadge = lipgloss.NewStyle().
	Foreground(colorSuccess).
	Bold(true)

// Match style for search hits inside titles.
var Match = lipgloss.NewStyle().
	Foreground(lipgloss.Color("0")).
	Background(colorHighlight)

// Header style for the collection title bar.
var Header = lipgloss.NewStyle().
	Bold(true).
	Foreground(colorHighlight).
	Padding(0, 1)

// FilterChip style for an inactive filter.
var FilterChip = lipgloss.NewStyle().
	Foreground(colorSecondary).
	Padding(0, 1)

// ActiveFilterChip style for a selected filter.
var ActiveFilterChip = lipgloss.NewStyle().
	Foreground(lipgloss.Color("255")).
	Background(lipgloss.Color("236")).
	Padding(0, 1)

// StatusBar style for the bottom status bar.
var StatusBar = lipgloss.NewStyle().
	Foreground(lipgloss.Color("255")).
	Background(lipgloss.Color("236")).
	Padding(0, 1)

// StatusBarKey style for key hints in status bar.
var StatusBarKey = lipgloss.NewStyle().
	Foreground(colorHighlight).
	Bold(true)

// StatusBarText style for descriptive text in status bar.
var StatusBarText = lipgloss.NewStyle().
	Foreground(colorSecondary)

// ErrorStyle for displaying errors.
var ErrorStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("196")).
	Bold(true).
	Padding(0, 1)

// HelpStyle for help text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(colorMuted).
	Padding(1, 2)
