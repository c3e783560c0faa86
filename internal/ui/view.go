package ui

import (
	"fmt"
	"slices"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/abelbrown/consonant/internal/card"
	"github.com/abelbrown/consonant/internal/search"
)

// View renders the browser.
func (a App) View() string {
	if !a.ready {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(a.renderHeader())
	b.WriteString("\n")
	if a.searching || a.state.Query != "" {
		b.WriteString(a.input.View())
		b.WriteString("\n")
	}
	if chips := a.renderFilters(); chips != "" {
		b.WriteString(chips)
		b.WriteString("\n")
	}

	// header, status bar and the optional rows above
	used := strings.Count(b.String(), "\n") + 1
	if a.err != nil {
		used++
	}
	b.WriteString(RenderCards(a.result.Cards, a.cursor, a.width, a.height-used))

	if a.err != nil {
		b.WriteString(ErrorStyle.Width(a.width).Render("Error: " + a.err.Error()))
		b.WriteString("\n")
	}
	b.WriteString(a.renderStatusBar())
	return b.String()
}

func (a App) renderHeader() string {
	title := a.coll.Key()
	if a.loading {
		title = a.spinner.View() + " " + title
	}
	label := a.state.Sort.Label
	if label == "" {
		label = string(a.state.Sort.Sort)
	}
	return Header.Render(title) + CardMeta.Render("sorted by "+label)
}

func (a App) renderFilters() string {
	if len(a.filters) == 0 {
		return ""
	}
	chips := make([]string, 0, len(a.filters))
	for i, f := range a.filters {
		if i >= 9 {
			break
		}
		label := f.Label
		if label == "" {
			label = f.ID
		}
		text := fmt.Sprintf("%d %s", i+1, label)
		if slices.Contains(a.state.ActiveFilterIDs, f.ID) {
			chips = append(chips, ActiveFilterChip.Render(text))
		} else {
			chips = append(chips, FilterChip.Render(text))
		}
	}
	return strings.Join(chips, " ")
}

func (a App) renderStatusBar() string {
	page := fmt.Sprintf("page %d/%d", a.result.Page, max(a.result.TotalPages, 1))
	count := fmt.Sprintf("%d results", a.result.Total)
	if a.state.ShowBookmarks {
		count += " (bookmarks)"
	}
	keys := []string{
		StatusBarKey.Render("/") + StatusBarText.Render(" search"),
		StatusBarKey.Render("s") + StatusBarText.Render(" sort"),
		StatusBarKey.Render("n/p") + StatusBarText.Render(" page"),
		StatusBarKey.Render("b") + StatusBarText.Render(" bookmark"),
		StatusBarKey.Render("q") + StatusBarText.Render(" quit"),
	}
	return StatusBar.Width(a.width).Render(count + "  " + page + "  " + strings.Join(keys, "  "))
}

// RenderCards renders one line per card, scrolled so the cursor stays
// visible within height lines.
func RenderCards(cards []card.Card, cursor, width, height int) string {
	if len(cards) == 0 {
		return HelpStyle.Render("No cards to display.") + "\n"
	}
	if height < 1 {
		height = 1
	}

	offset := 0
	if cursor >= height {
		offset = cursor - height + 1
	}

	var b strings.Builder
	for i := offset; i < len(cards) && i < offset+height; i++ {
		b.WriteString(renderCardLine(cards[i], i == cursor, width))
		b.WriteString("\n")
	}
	return b.String()
}

func renderCardLine(c card.Card, selected bool, width int) string {
	var badges string
	if c.IsFeatured {
		badges += FeaturedBadge.Render("★ ")
	}
	if c.IsBookmarked {
		badges += BookmarkBadge.Render("● ")
	}

	date := c.CardDate
	if t, ok := card.ParseTime(date); ok {
		date = t.Format("Jan 02 2006")
	}

	title := c.ContentArea.Title
	if title == "" {
		title = c.ID
	}
	// padding, badges and date column
	titleWidth := width - 4 - runewidth.StringWidth(date) - 4
	if titleWidth < 10 {
		titleWidth = 10
	}

	line := badges + renderTitle(title, titleWidth, selected) + "  " + CardMeta.Render(date)
	if selected {
		return SelectedCard.Render(line)
	}
	return NormalCard.Render(line)
}

// renderTitle truncates title to width display cells and turns search
// highlight spans into styled text. Entities are unescaped for the terminal.
func renderTitle(title string, width int, selected bool) string {
	segments := splitHighlights(title)

	var b strings.Builder
	remaining := width
	for _, seg := range segments {
		if remaining <= 0 {
			break
		}
		text := card.Sanitize(seg.text)
		if w := runewidth.StringWidth(text); w > remaining {
			text = runewidth.Truncate(text, remaining, "…")
		}
		remaining -= runewidth.StringWidth(text)
		if seg.match && !selected {
			b.WriteString(Match.Render(text))
		} else {
			b.WriteString(text)
		}
	}
	return b.String()
}

type segment struct {
	text  string
	match bool
}

// splitHighlights cuts s at the search highlight spans.
func splitHighlights(s string) []segment {
	var out []segment
	for {
		open := strings.Index(s, search.HighlightOpen)
		if open < 0 {
			break
		}
		rest := s[open+len(search.HighlightOpen):]
		end := strings.Index(rest, search.HighlightClose)
		if end < 0 {
			break
		}
		if open > 0 {
			out = append(out, segment{text: s[:open]})
		}
		out = append(out, segment{text: rest[:end], match: true})
		s = rest[end+len(search.HighlightClose):]
	}
	if s != "" {
		out = append(out, segment{text: s})
	}
	return out
}
