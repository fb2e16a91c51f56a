package locale

import (
	"embed"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"gopkg.in/fsnotify.v1"
)

//go:embed data/*.yaml
var dataFS embed.FS

// CatalogOption configures a Catalog.
type CatalogOption func(*Catalog)

// WithLogger sets the logger used for reload and watcher errors.
func WithLogger(logger zerolog.Logger) CatalogOption {
	return func(c *Catalog) {
		c.logger = logger
	}
}

// Catalog manages a collection of locales keyed by ID.
type Catalog struct {
	mu       sync.RWMutex
	locales  map[string]*Locale
	files    map[string]string // absolute file path -> locale ID
	builtin  bool
	dir      string
	watcher  *fsnotify.Watcher
	stopChan chan struct{}
	onChange func(event string, loc *Locale)
	logger   zerolog.Logger
}

// NewCatalog creates an empty catalog.
func NewCatalog(opts ...CatalogOption) *Catalog {
	c := &Catalog{
		locales: make(map[string]*Locale),
		files:   make(map[string]string),
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Builtin creates a catalog holding the embedded locales (en_us, es_sp).
func Builtin(opts ...CatalogOption) (*Catalog, error) {
	c := NewCatalog(opts...)
	c.builtin = true
	if err := c.loadEmbedded(); err != nil {
		return nil, err
	}
	return c, nil
}

// MustBuiltin is like Builtin but panics on error. The embedded data is
// validated by the package tests.
func MustBuiltin(opts ...CatalogOption) *Catalog {
	c, err := Builtin(opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// NewCatalogWithDirectory creates a catalog with the embedded locales and
// loads further locales from dir. Files in dir replace embedded locales with
// the same ID.
func NewCatalogWithDirectory(dir string, opts ...CatalogOption) (*Catalog, error) {
	c, err := Builtin(opts...)
	if err != nil {
		return nil, err
	}
	if err := c.LoadDirectory(dir); err != nil {
		return nil, err
	}
	return c, nil
}

// snapshot is a set of locales built outside the catalog lock and then
// merged or swapped in as a whole.
type snapshot struct {
	locales map[string]*Locale
	files   map[string]string
}

func newSnapshot() *snapshot {
	return &snapshot{
		locales: make(map[string]*Locale),
		files:   make(map[string]string),
	}
}

// add compiles a YAML definition into the snapshot, replacing any locale with
// the same ID.
func (s *snapshot) add(data []byte, file string) (*Locale, error) {
	def, err := ParseDefinition(data)
	if err != nil {
		return nil, err
	}
	loc, err := Compile(def)
	if err != nil {
		return nil, err
	}
	s.locales[loc.ID] = loc
	if file != "" {
		s.files[absPath(file)] = loc.ID
	}
	return loc, nil
}

func (s *snapshot) addEmbedded() error {
	entries, err := dataFS.ReadDir("data")
	if err != nil {
		return fmt.Errorf("reading embedded locales: %w", err)
	}
	for _, entry := range entries {
		data, err := dataFS.ReadFile(path.Join("data", entry.Name()))
		if err != nil {
			return fmt.Errorf("reading embedded locale %s: %w", entry.Name(), err)
		}
		if _, err := s.add(data, ""); err != nil {
			return fmt.Errorf("embedded locale %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// addDirectory loads every YAML file in dir. Files that fail are reported
// together; the others are still added. A missing directory adds nothing.
func (s *snapshot) addDirectory(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("checking directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading directory %s: %w", dir, err)
	}

	var loadErrors []string
	for _, entry := range entries {
		if entry.IsDir() || !isYAML(entry.Name()) {
			continue
		}
		file := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(file)
		if err == nil {
			_, err = s.add(data, file)
		}
		if err != nil {
			loadErrors = append(loadErrors, fmt.Sprintf("%s: %v", entry.Name(), err))
		}
	}

	if len(loadErrors) > 0 {
		return fmt.Errorf("errors loading locales: %s", strings.Join(loadErrors, "; "))
	}
	return nil
}

// merge adds every locale of s to the catalog under one lock.
func (c *Catalog) merge(s *snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, loc := range s.locales {
		c.locales[id] = loc
	}
	for file, id := range s.files {
		c.files[file] = id
	}
}

func (c *Catalog) loadEmbedded() error {
	s := newSnapshot()
	if err := s.addEmbedded(); err != nil {
		return err
	}
	c.merge(s)
	return nil
}

// Register adds a locale to the catalog. Registering an ID that is already
// present with the same version fails; a different version replaces it.
func (c *Catalog) Register(loc *Locale) error {
	if loc == nil {
		return fmt.Errorf("locale cannot be nil")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.locales[loc.ID]; ok && existing.Version == loc.Version {
		return fmt.Errorf("locale %q version %s already registered", loc.ID, loc.Version)
	}

	c.locales[loc.ID] = loc
	return nil
}

// Unregister removes a locale from the catalog.
func (c *Catalog) Unregister(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.locales[id]; !ok {
		return fmt.Errorf("%w: %q", ErrLocaleNotFound, id)
	}

	delete(c.locales, id)
	for file, owner := range c.files {
		if owner == id {
			delete(c.files, file)
		}
	}
	return nil
}

// Get returns a locale by ID.
func (c *Catalog) Get(id string) (*Locale, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	loc, ok := c.locales[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrLocaleNotFound, id)
	}
	return loc, nil
}

// MustGet is like Get but panics when the locale is missing.
func (c *Catalog) MustGet(id string) *Locale {
	loc, err := c.Get(id)
	if err != nil {
		panic(err)
	}
	return loc
}

// List returns all registered locales sorted by ID.
func (c *Catalog) List() []*Locale {
	c.mu.RLock()
	defer c.mu.RUnlock()

	locales := make([]*Locale, 0, len(c.locales))
	for _, loc := range c.locales {
		locales = append(locales, loc)
	}
	sort.Slice(locales, func(i, j int) bool {
		return locales[i].ID < locales[j].ID
	})
	return locales
}

// Count returns the number of registered locales.
func (c *Catalog) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.locales)
}

// LoadDirectory loads all YAML locale files from a directory. A missing
// directory is not an error.
func (c *Catalog) LoadDirectory(dir string) error {
	c.mu.Lock()
	c.dir = dir
	c.mu.Unlock()

	s := newSnapshot()
	err := s.addDirectory(dir)
	c.merge(s)
	return err
}

// LoadFile loads a single locale file, replacing any locale with the same ID.
func (c *Catalog) LoadFile(file string) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}

	s := newSnapshot()
	if _, err := s.add(data, file); err != nil {
		return err
	}
	c.merge(s)
	return nil
}

// LoadBytes compiles and registers a YAML locale definition.
func (c *Catalog) LoadBytes(data []byte) (*Locale, error) {
	def, err := ParseDefinition(data)
	if err != nil {
		return nil, err
	}

	loc, err := Compile(def)
	if err != nil {
		return nil, err
	}

	if err := c.Register(loc); err != nil {
		return nil, fmt.Errorf("registering locale: %w", err)
	}
	return loc, nil
}

// Reload rebuilds the catalog from the embedded locales (for catalogs
// created by Builtin) and the configured directory. The new set replaces the
// old one in a single step, so concurrent lookups never see a partial
// catalog. When the embedded data fails to load the catalog is left as it
// was; directory errors are returned after the files that did load are
// swapped in.
func (c *Catalog) Reload() error {
	c.mu.RLock()
	dir := c.dir
	builtin := c.builtin
	c.mu.RUnlock()
	if dir == "" && !builtin {
		return fmt.Errorf("no directory configured for reload")
	}

	s := newSnapshot()
	if builtin {
		if err := s.addEmbedded(); err != nil {
			return err
		}
	}
	var dirErr error
	if dir != "" {
		dirErr = s.addDirectory(dir)
	}

	c.mu.Lock()
	c.locales = s.locales
	c.files = s.files
	c.mu.Unlock()

	return dirErr
}

// SetOnChange sets a callback invoked after the watcher applies a change.
// event is "create", "modify" or "remove"; loc is nil for removals.
func (c *Catalog) SetOnChange(fn func(event string, loc *Locale)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = fn
}

// Watch starts watching the locale directory for changes. Only one watcher
// runs at a time; call StopWatch before watching again.
func (c *Catalog) Watch() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.watcher != nil {
		return ErrAlreadyWatching
	}
	if c.dir == "" {
		return fmt.Errorf("no directory configured for watching")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}

	if err := watcher.Add(c.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watching directory %s: %w", c.dir, err)
	}

	c.watcher = watcher
	c.stopChan = make(chan struct{})
	go c.watchLoop(watcher, c.stopChan)

	c.logger.Debug().Str("dir", c.dir).Msg("watching locale directory")
	return nil
}

// Watching reports whether a watcher is running.
func (c *Catalog) Watching() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.watcher != nil
}

// watchLoop handles file system events.
func (c *Catalog) watchLoop(watcher *fsnotify.Watcher, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}

			if !isYAML(event.Name) {
				continue
			}

			switch {
			case event.Op&fsnotify.Create == fsnotify.Create:
				c.handleFileChange(event.Name, "create")

			case event.Op&fsnotify.Write == fsnotify.Write:
				c.handleFileChange(event.Name, "modify")

			case event.Op&fsnotify.Remove == fsnotify.Remove,
				event.Op&fsnotify.Rename == fsnotify.Rename:
				c.handleFileRemove(event.Name)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			c.logger.Warn().Err(err).Msg("locale watcher error")
		}
	}
}

// handleFileChange handles file creation or modification.
func (c *Catalog) handleFileChange(file string, eventType string) {
	if err := c.LoadFile(file); err != nil {
		c.logger.Error().Err(err).Str("file", file).Msg("reloading locale")
		return
	}

	c.mu.RLock()
	id := c.files[absPath(file)]
	loc := c.locales[id]
	onChange := c.onChange
	c.mu.RUnlock()

	c.logger.Info().Str("file", file).Str("locale", id).Str("event", eventType).Msg("locale reloaded")
	if onChange != nil && loc != nil {
		onChange(eventType, loc)
	}
}

// handleFileRemove drops the locale loaded from file. An embedded locale with
// the same ID comes back through a reload.
func (c *Catalog) handleFileRemove(file string) {
	c.mu.RLock()
	id, tracked := c.files[absPath(file)]
	c.mu.RUnlock()
	if !tracked {
		return
	}

	if err := c.Reload(); err != nil {
		c.logger.Error().Err(err).Str("file", file).Msg("reloading locales after removal")
	}

	c.mu.RLock()
	onChange := c.onChange
	c.mu.RUnlock()

	c.logger.Info().Str("file", file).Str("locale", id).Msg("locale removed")
	if onChange != nil {
		onChange("remove", nil)
	}
}

// StopWatch stops watching the locale directory. It is safe to call when no
// watcher is running.
func (c *Catalog) StopWatch() {
	c.mu.Lock()
	watcher, stop := c.watcher, c.stopChan
	c.watcher, c.stopChan = nil, nil
	c.mu.Unlock()

	// The loop may be waiting on c.mu inside a handler, so close outside it.
	if stop != nil {
		close(stop)
	}
	if watcher != nil {
		watcher.Close()
	}
}

func isYAML(name string) bool {
	return strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")
}

func absPath(file string) string {
	if abs, err := filepath.Abs(file); err == nil {
		return abs
	}
	return filepath.Clean(file)
}
