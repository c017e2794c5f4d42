// Package registry provides named lookup of transfer plugins.
package registry

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"plugin"
	"sort"
	"sync"

	"github.com/dukex/flowtransfer/pkg/protocol"
)

// PluginSymbol is the exported symbol looked up in shared-object plugins.
const PluginSymbol = "Plugin"

var (
	// ErrInvalidPlugin is returned when a plugin cannot be registered.
	ErrInvalidPlugin = errors.New("invalid plugin")
)

type Registry struct {
	logger  *slog.Logger
	mu      sync.RWMutex
	plugins map[string]protocol.Plugin
}

func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}

	return &Registry{
		logger:  log.With("module", "plugin_registry"),
		plugins: make(map[string]protocol.Plugin),
	}
}

// Register stores the plugin under its name, replacing any previous one.
func (r *Registry) Register(p protocol.Plugin) error {
	if p == nil {
		return fmt.Errorf("%w: nil plugin", ErrInvalidPlugin)
	}

	info := p.Info()
	if info.Name == "" {
		return fmt.Errorf("%w: plugin name is required", ErrInvalidPlugin)
	}

	if !info.Type.IsValid() {
		return fmt.Errorf("%w: plugin %q has unknown type %q", ErrInvalidPlugin, info.Name, info.Type)
	}

	if !implements(p, info.Type) {
		return fmt.Errorf("%w: plugin %q does not implement %s", ErrInvalidPlugin, info.Name, info.Type)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.plugins[info.Name]; exists {
		r.logger.Warn("Replacing registered plugin", "plugin", info.Name)
	}

	r.plugins[info.Name] = p

	return nil
}

// Get returns the enabled plugin registered under name when it is of type t, nil otherwise.
func (r *Registry) Get(name string, t protocol.PluginType) protocol.Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.plugins[name]
	if !ok {
		return nil
	}

	info := p.Info()
	if info.Type != t || !info.Enabled {
		return nil
	}

	return p
}

// GetAll lists every registered plugin ordered by name.
func (r *Registry) GetAll() []protocol.Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]protocol.Plugin, 0, len(r.plugins))
	for _, p := range r.plugins {
		list = append(list, p)
	}

	sort.Slice(list, func(i, j int) bool {
		return list[i].Info().Name < list[j].Info().Name
	})

	return list
}

func (r *Registry) Deduplicator(name string) (protocol.Deduplicator, bool) {
	d, ok := r.Get(name, protocol.PluginTypeDeduplicator).(protocol.Deduplicator)

	return d, ok
}

func (r *Registry) Validator(name string) (protocol.Validator, bool) {
	v, ok := r.Get(name, protocol.PluginTypeValidator).(protocol.Validator)

	return v, ok
}

func (r *Registry) Reporter(name string) (protocol.Reporter, bool) {
	rep, ok := r.Get(name, protocol.PluginTypeReporter).(protocol.Reporter)

	return rep, ok
}

func implements(p protocol.Plugin, t protocol.PluginType) bool {
	switch t {
	case protocol.PluginTypeDeduplicator:
		_, ok := p.(protocol.Deduplicator)

		return ok
	case protocol.PluginTypeValidator:
		_, ok := p.(protocol.Validator)

		return ok
	case protocol.PluginTypeReporter:
		_, ok := p.(protocol.Reporter)

		return ok
	default:
		return false
	}
}

// LoadPlugins opens every shared object under pluginsPath/<type>s/ and registers the
// value exported as PluginSymbol. A missing directory loads nothing.
func (r *Registry) LoadPlugins(pluginsPath string) (int, error) {
	loaded := 0

	for _, t := range []protocol.PluginType{
		protocol.PluginTypeDeduplicator,
		protocol.PluginTypeValidator,
		protocol.PluginTypeReporter,
	} {
		plugins, err := loadPlugin[protocol.Plugin](r.logger, pluginsPath, string(t))
		if err != nil {
			return loaded, err
		}

		for _, p := range plugins {
			err = r.Register(p)
			if err != nil {
				return loaded, err
			}

			loaded++
		}
	}

	return loaded, nil
}

func loadPlugin[T any](logger *slog.Logger, pluginsPath string, kind string) ([]T, error) {
	rootPath := filepath.Join(pluginsPath, kind+"s")
	root := os.DirFS(rootPath)

	pluginPathList, err := fs.Glob(root, "*.so")
	if err != nil {
		return nil, err
	}

	if len(pluginPathList) == 0 {
		return nil, nil
	}

	l := logger.With(slog.String("path", rootPath), slog.String("type", kind))
	l.Info("Loading plugins")

	pluginList := make([]T, 0, len(pluginPathList))
	for _, p := range pluginPathList {
		plg, err := plugin.Open(filepath.Join(rootPath, p))
		if err != nil {
			return nil, fmt.Errorf("failed to open plugin %s: %w", p, err)
		}

		v, err := plg.Lookup(PluginSymbol)
		if err != nil {
			return nil, fmt.Errorf("plugin %s: %w", p, err)
		}

		castV, ok := v.(T)
		if !ok {
			// exported variables come back as pointers
			ptr, isPtr := v.(*T)
			if !isPtr {
				return nil, fmt.Errorf("%w: %s does not export a %s", ErrInvalidPlugin, p, kind)
			}

			castV = *ptr
		}

		pluginList = append(pluginList, castV)

		l.Info("Loaded plugin", slog.String("plugin", p))
	}

	return pluginList, nil
}
