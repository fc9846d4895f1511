// Package netmon tracks connectivity and notifies listeners of transitions.
//
// The host platform injects connectivity events through SetOnline; an
// optional reachability probe revalidates the nominal state periodically,
// since "online" from the platform can be a captive-portal false positive.
package netmon

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/studyflow/backend/internal/logging"
)

// Listener is invoked with the new state on every online/offline transition.
type Listener = func(online bool)

// Monitor tracks the current connectivity state.
type Monitor struct {
	mu        sync.RWMutex
	online    bool
	listeners map[int]Listener
	nextID    int

	probeURL      string
	probeInterval time.Duration
	client        *http.Client

	stopCh  chan struct{}
	stopped sync.Once
	wg      sync.WaitGroup
}

// Config holds monitor configuration.
type Config struct {
	// ProbeURL is HEAD-requested to revalidate connectivity. Empty disables
	// the probe; the monitor then trusts SetOnline alone.
	ProbeURL string

	// ProbeInterval is how often the probe runs. Zero defaults to 30s.
	ProbeInterval time.Duration

	// ProbeTimeout bounds a single probe request. Zero defaults to 5s.
	ProbeTimeout time.Duration
}

// New creates a Monitor. The initial state is online; a failing first probe
// corrects it within one interval.
func New(cfg Config) *Monitor {
	interval := cfg.ProbeInterval
	if interval == 0 {
		interval = 30 * time.Second
	}
	timeout := cfg.ProbeTimeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &Monitor{
		online:        true,
		listeners:     make(map[int]Listener),
		probeURL:      cfg.ProbeURL,
		probeInterval: interval,
		client:        &http.Client{Timeout: timeout},
		stopCh:        make(chan struct{}),
	}
}

// IsOnline returns the current connectivity state.
func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// AddListener registers fn and returns an unsubscribe function. Listeners
// fire on transitions only, in no guaranteed order.
func (m *Monitor) AddListener(fn Listener) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// SetOnline records a connectivity event from the host platform.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	fns := make([]Listener, 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	logging.Info("connectivity changed", logging.Fields{"online": online})
	for _, fn := range fns {
		fn(online)
	}
}

// ReportFailure is the soft signal that a sync attempt failed while the
// monitor claimed to be online. It schedules an immediate re-probe; without
// a probe URL it flips the state to offline directly.
func (m *Monitor) ReportFailure() {
	if m.probeURL == "" {
		m.SetOnline(false)
		return
	}
	go m.probe()
}

// Start launches the periodic reachability probe. No-op without a probe URL.
func (m *Monitor) Start() {
	if m.probeURL == "" {
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.probeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-m.stopCh:
				return
			case <-ticker.C:
				m.probe()
			}
		}
	}()
}

// Stop halts the periodic probe.
func (m *Monitor) Stop() {
	m.stopped.Do(func() { close(m.stopCh) })
	m.wg.Wait()
}

func (m *Monitor) probe() {
	ctx, cancel := context.WithTimeout(context.Background(), m.client.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, m.probeURL, nil)
	if err != nil {
		return
	}
	resp, err := m.client.Do(req)
	if err != nil {
		m.SetOnline(false)
		return
	}
	resp.Body.Close()
	m.SetOnline(resp.StatusCode < 500)
}
