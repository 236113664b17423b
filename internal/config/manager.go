package config

import (
	"context"
	"log"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

type Manager struct {
	mu       sync.RWMutex
	config   *Config
	path     string
	watcher  *fsnotify.Watcher
	wg       sync.WaitGroup
	onReload []func(prev, next *Config)
}

func NewManager() (*Manager, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}
	if _, err := Load(); err != nil {
		log.Printf("Config manager: failed to load initial configuration: %v", err)
		return nil, err
	}
	return NewManagerForFile(configPath)
}

// NewManagerForFile manages an explicit config file.
func NewManagerForFile(path string) (*Manager, error) {
	log.Printf("Config manager: initializing configuration system...")

	config, err := LoadFile(path)
	if err != nil {
		log.Printf("Config manager: failed to load initial configuration: %v", err)
		return nil, err
	}

	if err := config.Validate(); err != nil {
		log.Printf("Config manager: validation warning: %v", err)
	}

	return &Manager{config: config, path: path}, nil
}

func (m *Manager) GetConfig() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	configCopy := *m.config
	return &configCopy
}

// Path is the file being managed.
func (m *Manager) Path() string { return m.path }

// OnReload registers fn to run after every successful reload. Register
// before StartWatching.
func (m *Manager) OnReload(fn func(prev, next *Config)) {
	m.mu.Lock()
	m.onReload = append(m.onReload, fn)
	m.mu.Unlock()
}

func (m *Manager) StartWatching(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	m.watcher = watcher

	// watch the directory so editors that replace the file are seen
	if err := watcher.Add(filepath.Dir(m.path)); err != nil {
		watcher.Close()
		return err
	}

	m.wg.Add(1)
	go m.watchLoop(ctx)

	log.Printf("Config manager: watching %s for changes", m.path)
	return nil
}

func (m *Manager) Stop() {
	if m.watcher != nil {
		m.watcher.Close()
	}
	m.wg.Wait()
}

func (m *Manager) watchLoop(ctx context.Context) {
	defer m.wg.Done()
	configFileName := filepath.Base(m.path)

	for {
		select {
		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != configFileName {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				log.Printf("Config manager: file change detected: %s. Reloading config...", event.Name)
				m.reload()
			}

		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("Config watcher error: %v", err)

		case <-ctx.Done():
			return
		}
	}
}

func (m *Manager) reload() {
	newConfig, err := LoadFile(m.path)
	if err != nil {
		log.Printf("Config manager: failed to reload config: %v", err)
		return
	}
	if err := newConfig.Validate(); err != nil {
		log.Printf("Config manager: invalid config after reload: %v", err)
		return
	}

	m.mu.Lock()
	old := m.config
	m.config = newConfig
	hooks := append([]func(prev, next *Config){}, m.onReload...)
	m.mu.Unlock()

	log.Printf("Config manager: configuration successfully reloaded")
	for _, fn := range hooks {
		fn(old, newConfig)
	}
}
