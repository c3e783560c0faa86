package ui

import (
	"slices"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/abelbrown/consonant/internal/card"
	"github.com/abelbrown/consonant/internal/config"
	"github.com/abelbrown/consonant/internal/filter"
	"github.com/abelbrown/consonant/internal/pipeline"
	"github.com/abelbrown/consonant/internal/sorting"
)

// DefaultSearchDelay is the search debounce when none is configured.
const DefaultSearchDelay = 300 * time.Millisecond

// Deps are the side effects the browser may trigger. The App never holds
// the store or the fetcher; results come back as messages.
type Deps struct {
	// Load starts a collection fetch. Partial results may be delivered
	// through Program.Send before the returned command completes.
	Load func() tea.Cmd
	// ToggleBookmark persists a bookmark change.
	ToggleBookmark func(cardID string) tea.Cmd
	// Now is the pipeline clock. Defaults to time.Now.
	Now func() time.Time
	// SearchDelay debounces the search input.
	SearchDelay time.Duration
}

// App is the root Bubble Tea model of the collection browser.
type App struct {
	deps Deps
	coll *config.Collection
	cfg  pipeline.Config

	state       pipeline.State
	sortOptions []sorting.Option
	filters     []filter.Item

	raw      []card.Card
	haveFull bool
	result   pipeline.Result
	err      error

	input     textinput.Model
	searching bool
	spinner   spinner.Model
	loading   bool

	cursor int
	width  int
	height int
	ready  bool

	searchGen     int
	transitionGen int
}

// NewApp creates a browser for coll.
func NewApp(coll *config.Collection, deps Deps) App {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.SearchDelay <= 0 {
		deps.SearchDelay = DefaultSearchDelay
	}

	ti := textinput.New()
	ti.Placeholder = "Search cards..."
	ti.Prompt = "/ "
	ti.PromptStyle = lipgloss.NewStyle().Foreground(colorHighlight).Bold(true)
	ti.CharLimit = 120

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(colorHighlight)

	return App{
		deps:        deps,
		coll:        coll,
		cfg:         coll.PipelineConfig(),
		state:       coll.DefaultState(),
		sortOptions: coll.SortOptions(),
		filters:     filterChoices(coll.FilterPanel),
		input:       ti,
		spinner:     s,
		loading:     deps.Load != nil,
	}
}

// WithBookmarks seeds the bookmarked card ids persisted by an earlier run.
func (a App) WithBookmarks(ids []string) App {
	a.state.BookmarkedIDs = slices.Clone(ids)
	return a
}

// filterChoices flattens the authored filters into toggleable ids.
func filterChoices(p config.FilterPanel) []filter.Item {
	if !p.Enabled {
		return nil
	}
	var out []filter.Item
	for _, f := range p.Filters {
		if len(f.Items) == 0 {
			out = append(out, filter.Item{ID: f.ID, Label: f.Group})
			continue
		}
		out = append(out, f.Items...)
	}
	return out
}

// Init starts the first load.
func (a App) Init() tea.Cmd {
	if a.deps.Load == nil {
		return nil
	}
	return tea.Batch(a.deps.Load(), a.spinner.Tick)
}

// Update handles messages and returns the updated model and any commands.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.input.Width = msg.Width - 6
		a.ready = true
		return a, nil

	case tea.KeyMsg:
		if a.searching {
			return a.updateSearch(msg)
		}
		return a.handleKeyMsg(msg)

	case spinner.TickMsg:
		if !a.loading {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case CardsLoaded:
		if msg.Partial && a.haveFull {
			return a, nil
		}
		if !msg.Partial {
			a.haveFull = true
			a.loading = false
		}
		a.raw = msg.Feed.Cards
		a.err = nil
		cmd := a.recompute()
		return a, cmd

	case LoadFailed:
		a.loading = false
		a.haveFull = true
		a.err = msg.Err
		if a.raw == nil {
			a.raw = []card.Card{}
		}
		cmd := a.recompute()
		return a, cmd

	case BookmarkToggled:
		if msg.Err != nil {
			a.err = msg.Err
			return a, nil
		}
		ids := slices.DeleteFunc(slices.Clone(a.state.BookmarkedIDs), func(id string) bool { return id == msg.CardID })
		if msg.Bookmarked {
			ids = append(ids, msg.CardID)
		}
		a.state.BookmarkedIDs = ids
		cmd := a.recompute()
		return a, cmd

	case searchFire:
		if msg.gen != a.searchGen {
			return a, nil
		}
		a.state.Query = a.input.Value()
		a.state.Page = 1
		a.cursor = 0
		cmd := a.recompute()
		return a, cmd

	case transitionFire:
		if msg.gen != a.transitionGen {
			return a, nil
		}
		cmd := a.recompute()
		return a, cmd
	}

	return a, nil
}

func (a App) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		a.searching = false
		a.input.Blur()
		a.input.SetValue("")
		a.searchGen++ // void the pending search
		a.state.Query = ""
		a.state.Page = 1
		cmd := a.recompute()
		return a, cmd

	case "enter":
		a.searching = false
		a.input.Blur()
		a.searchGen++
		a.state.Query = a.input.Value()
		a.state.Page = 1
		a.cursor = 0
		cmd := a.recompute()
		return a, cmd

	case "ctrl+c":
		return a, tea.Quit
	}

	before := a.input.Value()
	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	if a.input.Value() == before {
		return a, cmd
	}

	a.searchGen++
	gen := a.searchGen
	return a, tea.Batch(cmd, tea.Tick(a.deps.SearchDelay, func(time.Time) tea.Msg {
		return searchFire{gen: gen}
	}))
}

// handleKeyMsg processes keyboard input outside the search bar.
func (a App) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if a.err != nil {
		a.err = nil
	}

	switch key := msg.String(); key {
	case "q", "ctrl+c":
		return a, tea.Quit

	case "/":
		a.searching = true
		a.input.Focus()
		return a, textinput.Blink

	case "j", "down":
		if a.cursor < len(a.result.Cards)-1 {
			a.cursor++
		}
		return a, nil

	case "k", "up":
		if a.cursor > 0 {
			a.cursor--
		}
		return a, nil

	case "n", "right":
		if a.result.Page < a.result.TotalPages {
			a.state.Page = a.result.Page + 1
			a.cursor = 0
			cmd := a.recompute()
			return a, cmd
		}
		return a, nil

	case "p", "left":
		if a.result.Page > 1 {
			a.state.Page = a.result.Page - 1
			a.cursor = 0
			cmd := a.recompute()
			return a, cmd
		}
		return a, nil

	case "s":
		if len(a.sortOptions) > 0 {
			a.state.Sort = a.sortOptions[(a.sortIndex()+1)%len(a.sortOptions)]
			a.state.Page = 1
			a.cursor = 0
			cmd := a.recompute()
			return a, cmd
		}
		return a, nil

	case "b":
		if c, ok := a.Selected(); ok && a.deps.ToggleBookmark != nil {
			return a, a.deps.ToggleBookmark(c.ID)
		}
		return a, nil

	case "B":
		a.state.ShowBookmarks = !a.state.ShowBookmarks
		a.state.Page = 1
		a.cursor = 0
		cmd := a.recompute()
		return a, cmd

	case "r":
		if a.deps.Load != nil {
			a.loading = true
			a.haveFull = false
			return a, tea.Batch(a.deps.Load(), a.spinner.Tick)
		}
		return a, nil

	case "1", "2", "3", "4", "5", "6", "7", "8", "9":
		i := int(key[0] - '1')
		if i < len(a.filters) {
			a.toggleFilter(a.filters[i].ID)
			a.state.Page = 1
			a.cursor = 0
			cmd := a.recompute()
			return a, cmd
		}
		return a, nil
	}

	return a, nil
}

func (a *App) toggleFilter(id string) {
	ids := slices.Clone(a.state.ActiveFilterIDs)
	if i := slices.Index(ids, id); i >= 0 {
		a.state.ActiveFilterIDs = slices.Delete(ids, i, i+1)
		return
	}
	a.state.ActiveFilterIDs = append(ids, id)
}

func (a App) sortIndex() int {
	for i, o := range a.sortOptions {
		if o.Sort == a.state.Sort.Sort {
			return i
		}
	}
	return -1
}

// recompute runs the pipeline over the current snapshot and re-arms the
// transition timer. Any previously armed timer is superseded.
func (a *App) recompute() tea.Cmd {
	if a.raw == nil {
		return nil
	}
	st := a.state
	st.Now = a.deps.Now()

	res, err := pipeline.Run(card.UpdateBookmarkData(a.raw, st.BookmarkedIDs), a.cfg, st)
	a.transitionGen++
	if err != nil {
		a.err = err
		a.result = pipeline.Result{Cards: []card.Card{}}
		return nil
	}
	a.result = res
	if a.cursor >= len(res.Cards) {
		a.cursor = max(len(res.Cards)-1, 0)
	}

	if res.NextTransition <= 0 {
		return nil
	}
	gen := a.transitionGen
	return tea.Tick(res.NextTransition, func(time.Time) tea.Msg {
		return transitionFire{gen: gen}
	})
}

// Selected returns the card under the cursor.
func (a App) Selected() (card.Card, bool) {
	if a.cursor < 0 || a.cursor >= len(a.result.Cards) {
		return card.Card{}, false
	}
	return a.result.Cards[a.cursor], true
}

// Result returns the last pipeline result (for testing).
func (a App) Result() pipeline.Result {
	return a.result
}

// State returns the current view state (for testing).
func (a App) State() pipeline.State {
	return a.state
}

// Cursor returns the current cursor position (for testing).
func (a App) Cursor() int {
	return a.cursor
}

// Err returns the error shown in the error bar.
func (a App) Err() error {
	return a.err
}
