// Package mount finds card collections authored into a host page and
// mounts them through a component registry.
package mount

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"github.com/abelbrown/consonant/internal/config"
	"github.com/abelbrown/consonant/internal/logging"
)

const (
	// CollectionTag is the element a page author places for a collection.
	CollectionTag = "consonant-card-collection"
	// ConfigAttr carries the collection config blob.
	ConfigAttr = "data-config"
	// CollectionName is the registry name of the card collection component.
	CollectionName = "consonantPage"

	fragmentClass   = "experiencefragment"
	collectionClass = ".consonantcardcollection"
)

var ErrDuplicateComponent = errors.New("component already registered")

// Target is one matched element in the page.
type Target struct {
	ID     string
	Config string
	Sel    *goquery.Selection
}

// Component mounts every element matching Selector.
type Component struct {
	Name     string
	Selector string
	Mount    func(Target) error
}

// Registry holds the page components in registration order.
type Registry struct {
	mu         sync.RWMutex
	components map[string]Component
	order      []string
}

func NewRegistry() *Registry {
	return &Registry{components: make(map[string]Component)}
}

// Register adds components. Names must be unique.
func (r *Registry) Register(cs ...Component) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range cs {
		if _, ok := r.components[c.Name]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateComponent, c.Name)
		}
		r.components[c.Name] = c
		r.order = append(r.order, c.Name)
	}
	return nil
}

// Init mounts every registered component found under root. Mount failures
// do not stop the scan; they are joined into the returned error.
func (r *Registry) Init(root *goquery.Selection) (int, error) {
	r.mu.RLock()
	names := append([]string(nil), r.order...)
	r.mu.RUnlock()

	var (
		mounted int
		errs    []error
	)
	for _, name := range names {
		n, err := r.Render(root, name)
		mounted += n
		if err != nil {
			errs = append(errs, err)
		}
	}
	return mounted, errors.Join(errs...)
}

// Render mounts the named component at each match under root.
func (r *Registry) Render(root *goquery.Selection, name string) (int, error) {
	r.mu.RLock()
	c, ok := r.components[name]
	r.mu.RUnlock()
	if !ok {
		return 0, fmt.Errorf("unknown component %q", name)
	}

	var (
		mounted int
		errs    []error
	)
	root.Find(c.Selector).Each(func(_ int, s *goquery.Selection) {
		t := Target{ID: s.AttrOr("id", ""), Config: s.AttrOr(ConfigAttr, ""), Sel: s}
		if err := c.Mount(t); err != nil {
			errs = append(errs, fmt.Errorf("%s #%s: %w", c.Name, t.ID, err))
			return
		}
		mounted++
	})
	return mounted, errors.Join(errs...)
}

// CollectionComponent parses each element's config and hands it to mount.
func CollectionComponent(mount func(Target, *config.Collection) error) Component {
	return Component{
		Name:     CollectionName,
		Selector: CollectionTag,
		Mount: func(t Target) error {
			if t.Config == "" {
				return fmt.Errorf("missing %s", ConfigAttr)
			}
			coll, err := config.ParseCollection([]byte(t.Config))
			if err != nil {
				return err
			}
			if coll.ID == "" {
				coll.ID = t.ID
			}
			return mount(t, coll)
		},
	}
}

// Page is a parsed host page.
type Page struct {
	Doc *goquery.Document
}

// ParsePage reads an HTML document.
func ParsePage(r io.Reader) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	return &Page{Doc: doc}, nil
}

// Collections returns the parsed config of every collection element on the
// page. Elements with a broken config are skipped and reported in the error.
func (p *Page) Collections() ([]*config.Collection, error) {
	var out []*config.Collection
	_, err := p.collect(func(_ Target, c *config.Collection) error {
		out = append(out, c)
		return nil
	})
	return out, err
}

func (p *Page) collect(fn func(Target, *config.Collection) error) (int, error) {
	r := NewRegistry()
	if err := r.Register(CollectionComponent(fn)); err != nil {
		return 0, err
	}
	return r.Init(p.Doc.Selection)
}

// LoadedThroughFragment reports whether el is an experience fragment whose
// first child holds a card collection.
func LoadedThroughFragment(el *goquery.Selection) bool {
	if el == nil || el.Length() == 0 {
		return false
	}
	if !strings.Contains(el.AttrOr("class", ""), fragmentClass) {
		return false
	}
	container := el.Children().First()
	if container.Length() == 0 {
		return false
	}
	return container.Find(collectionClass).Length() > 0
}

// Controller owns the registry and the last mounted target, so repeated
// author-watch notifications for the same element render once.
type Controller struct {
	registry *Registry

	mu   sync.Mutex
	last *goquery.Selection
}

func NewController(r *Registry) *Controller {
	return &Controller{registry: r}
}

// Init mounts all registered components under root.
func (c *Controller) Init(root *goquery.Selection) (int, error) {
	return c.registry.Init(root)
}

// AuthorWatch re-renders the collection component when el is a new
// experience fragment carrying a collection. It reports whether a render
// happened.
func (c *Controller) AuthorWatch(el, root *goquery.Selection) (bool, error) {
	c.mu.Lock()
	if c.isLast(el) || !LoadedThroughFragment(el) {
		c.mu.Unlock()
		return false, nil
	}
	c.last = el
	c.mu.Unlock()

	n, err := c.registry.Render(root, CollectionName)
	logging.Debug("mount: author watch render", "mounted", n)
	return true, err
}

// LastMounted returns the element of the last author-watch render.
func (c *Controller) LastMounted() *goquery.Selection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

func (c *Controller) isLast(el *goquery.Selection) bool {
	if c.last == nil || el == nil || el.Length() == 0 {
		return false
	}
	return c.last.Get(0) == el.Get(0)
}
