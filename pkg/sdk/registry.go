package sdk

import (
	"sync"

	"github.com/hmgle/harcapture/pkg/logger"
)

// Registry hands out one SDK per API and version. Configuring the same API
// version twice logs a warning and returns the first handle.
type Registry struct {
	mu        sync.Mutex
	logger    logger.Logger
	instances map[string]*SDK
}

// NewRegistry creates an empty registry
func NewRegistry(log logger.Logger) *Registry {
	if log == nil {
		log = logger.Nop()
	}
	return &Registry{logger: log, instances: map[string]*SDK{}}
}

// Configure returns the handle for cfg's API version, creating it on first use
func (r *Registry) Configure(cfg Config) (*SDK, error) {
	key := cfg.APIID + "/" + cfg.VersionID

	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.instances[key]; ok {
		r.logger.Warn("SDK for %s has already been configured, skipping configuration", key)
		return s, nil
	}

	s, err := New(cfg)
	if err != nil {
		return nil, err
	}
	r.instances[key] = s
	return s, nil
}

// Get returns the handle configured for an API version, if any
func (r *Registry) Get(apiID, versionID string) (*SDK, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.instances[apiID+"/"+versionID]
	return s, ok
}

// Reset forgets every handle
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.instances = map[string]*SDK{}
}
