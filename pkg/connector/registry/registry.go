// Package registry maps connector type names to factories. Connector packages
// register themselves from init(); importing pkg/connector/sources and
// pkg/connector/destinations pulls in every built-in connector.
package registry

import (
	"context"
	"sort"
	"sync"

	"github.com/ajitpratap0/stagesync/pkg/config"
	"github.com/ajitpratap0/stagesync/pkg/connector/core"
	"github.com/ajitpratap0/stagesync/pkg/errors"
	"github.com/ajitpratap0/stagesync/pkg/logger"
	"go.uber.org/zap"
)

// SourceFactory opens a cursor over the configured source. The cursor is
// returned ready to page; the caller closes it.
type SourceFactory func(ctx context.Context, cfg config.SourceConfig) (core.Cursor, error)

// DestinationFactory creates a reopenable destination. It must not connect;
// connections are opened on demand through core.Destination.Open.
type DestinationFactory func(cfg config.DestinationConfig) (core.Destination, error)

// Registry manages connector registration and instantiation
type Registry struct {
	sources      map[string]SourceFactory
	destinations map[string]DestinationFactory
	catalog      map[string]*ConnectorInfo
	mu           sync.RWMutex
	logger       *zap.Logger
}

// ConnectorInfo describes a registered connector for the list command.
type ConnectorInfo struct {
	Name         string             `json:"name" yaml:"name"`
	Type         core.ConnectorType `json:"type" yaml:"type"`
	Description  string             `json:"description" yaml:"description"`
	Capabilities []string           `json:"capabilities" yaml:"capabilities"`
}

var globalRegistry = NewRegistry()

// NewRegistry creates a new connector registry
func NewRegistry() *Registry {
	return &Registry{
		sources:      make(map[string]SourceFactory),
		destinations: make(map[string]DestinationFactory),
		catalog:      make(map[string]*ConnectorInfo),
		logger:       logger.Get().With(zap.String("component", "connector_registry")),
	}
}

func catalogKey(t core.ConnectorType, name string) string {
	return string(t) + "/" + name
}

// RegisterSource registers a source connector factory
func (r *Registry) RegisterSource(name string, factory SourceFactory, info *ConnectorInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sources[name]; exists {
		return errors.Newf(errors.ErrorTypeConfig, "source connector %s already registered", name)
	}

	r.sources[name] = factory
	r.addInfo(core.ConnectorTypeSource, name, info)
	r.logger.Debug("source connector registered", zap.String("name", name))
	return nil
}

// RegisterDestination registers a destination connector factory
func (r *Registry) RegisterDestination(name string, factory DestinationFactory, info *ConnectorInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.destinations[name]; exists {
		return errors.Newf(errors.ErrorTypeConfig, "destination connector %s already registered", name)
	}

	r.destinations[name] = factory
	r.addInfo(core.ConnectorTypeDestination, name, info)
	r.logger.Debug("destination connector registered", zap.String("name", name))
	return nil
}

func (r *Registry) addInfo(t core.ConnectorType, name string, info *ConnectorInfo) {
	if info == nil {
		info = &ConnectorInfo{}
	}
	info.Name = name
	info.Type = t
	r.catalog[catalogKey(t, name)] = info
}

// CreateSource opens a cursor using the factory registered for cfg.Type.
func (r *Registry) CreateSource(ctx context.Context, cfg config.SourceConfig) (core.Cursor, error) {
	r.mu.RLock()
	factory, exists := r.sources[cfg.Type]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.Newf(errors.ErrorTypeNotFound, "source connector %s not found", cfg.Type)
	}

	cursor, err := factory(ctx, cfg)
	if err != nil {
		if errors.IsType(err, errors.ErrorTypeSourceUnavailable) || errors.IsType(err, errors.ErrorTypeConfig) {
			return nil, err
		}
		return nil, errors.Wrap(err, errors.ErrorTypeSourceUnavailable, "failed to open source "+cfg.Type)
	}
	return cursor, nil
}

// CreateDestination creates a destination using the factory registered for cfg.Type.
func (r *Registry) CreateDestination(cfg config.DestinationConfig) (core.Destination, error) {
	r.mu.RLock()
	factory, exists := r.destinations[cfg.Type]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.Newf(errors.ErrorTypeNotFound, "destination connector %s not found", cfg.Type)
	}

	destination, err := factory(cfg)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to create destination connector "+cfg.Type)
	}
	return destination, nil
}

// ListSources returns the registered source names, sorted
func (r *Registry) ListSources() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sources := make([]string, 0, len(r.sources))
	for name := range r.sources {
		sources = append(sources, name)
	}
	sort.Strings(sources)
	return sources
}

// ListDestinations returns the registered destination names, sorted
func (r *Registry) ListDestinations() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	destinations := make([]string, 0, len(r.destinations))
	for name := range r.destinations {
		destinations = append(destinations, name)
	}
	sort.Strings(destinations)
	return destinations
}

// Info returns the catalog entry of a connector.
func (r *Registry) Info(t core.ConnectorType, name string) (*ConnectorInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.catalog[catalogKey(t, name)]
	return info, ok
}

// Clear removes all registered connectors (mainly for testing)
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sources = make(map[string]SourceFactory)
	r.destinations = make(map[string]DestinationFactory)
	r.catalog = make(map[string]*ConnectorInfo)
}

// RegisterSource registers a source connector in the global registry
func RegisterSource(name string, factory SourceFactory, info *ConnectorInfo) error {
	return globalRegistry.RegisterSource(name, factory, info)
}

// RegisterDestination registers a destination connector in the global registry
func RegisterDestination(name string, factory DestinationFactory, info *ConnectorInfo) error {
	return globalRegistry.RegisterDestination(name, factory, info)
}

// CreateSource opens a source cursor from the global registry
func CreateSource(ctx context.Context, cfg config.SourceConfig) (core.Cursor, error) {
	return globalRegistry.CreateSource(ctx, cfg)
}

// CreateDestination creates a destination from the global registry
func CreateDestination(cfg config.DestinationConfig) (core.Destination, error) {
	return globalRegistry.CreateDestination(cfg)
}

// ListSources returns registered sources from the global registry
func ListSources() []string {
	return globalRegistry.ListSources()
}

// ListDestinations returns registered destinations from the global registry
func ListDestinations() []string {
	return globalRegistry.ListDestinations()
}

// Info returns a catalog entry from the global registry
func Info(t core.ConnectorType, name string) (*ConnectorInfo, bool) {
	return globalRegistry.Info(t, name)
}

