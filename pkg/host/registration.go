// Package host runs site worker agents through their lifecycle.
//
// A Registration holds at most one active and one waiting agent. Register
// installs a new agent, parks it as waiting and promotes it as soon as it
// asked to skip waiting, there is no active agent, or no open client is
// still controlled by the active one. Promotion runs the agent's
// activation, which may claim every open client.
package host

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Sternrassler/siteworker/pkg/agent"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// State is the lifecycle state of a registered agent.
type State string

const (
	StateInstalling State = "installing"
	StateInstalled  State = "installed"
	StateActivating State = "activating"
	StateActivated  State = "activated"
	StateRedundant  State = "redundant"
)

var (
	// ErrNotActive is returned when a non-active agent tries to claim.
	ErrNotActive = errors.New("agent is not active")

	// ErrNotRegistered is returned for agents unknown to the registration.
	ErrNotRegistered = errors.New("agent is not registered")
)

type worker struct {
	agent       *agent.Agent
	state       State
	skipWaiting bool
}

// Registration sequences agent lifecycles and implements agent.Host.
type Registration struct {
	mu         sync.Mutex
	installing *worker
	waiting    *worker
	active     *worker
	promoting  bool
	clients    *Clients
	logger     zerolog.Logger
}

var _ agent.Host = (*Registration)(nil)

// NewRegistration creates a registration tracking the given clients.
func NewRegistration(clients *Clients, logger *zerolog.Logger) *Registration {
	if clients == nil {
		panic("clients cannot be nil")
	}
	var l zerolog.Logger
	if logger == nil {
		l = log.Logger
	} else {
		l = *logger
	}
	return &Registration{
		clients: clients,
		logger:  l.With().Str("component", "host").Logger(),
	}
}

// Clients returns the client registry.
func (r *Registration) Clients() *Clients { return r.clients }

// Active returns the active agent, or nil.
func (r *Registration) Active() *agent.Agent {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil {
		return nil
	}
	return r.active.agent
}

// Waiting returns the installed agent waiting for promotion, or nil.
func (r *Registration) Waiting() *agent.Agent {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.waiting == nil {
		return nil
	}
	return r.waiting.agent
}

// State returns the lifecycle state of a. Agents that were replaced or never
// registered report StateRedundant.
func (r *Registration) State(a *agent.Agent) State {
	r.mu.Lock()
	defer r.mu.Unlock()
	if w := r.find(a); w != nil {
		return w.state
	}
	return StateRedundant
}

func (r *Registration) find(a *agent.Agent) *worker {
	for _, w := range []*worker{r.installing, r.waiting, r.active} {
		if w != nil && w.agent == a {
			return w
		}
	}
	return nil
}

// Register installs a, parks it as waiting and promotes it when possible.
// An install failure is logged by the agent and does not stop the
// lifecycle. The returned error reports a failed activation.
func (r *Registration) Register(ctx context.Context, a *agent.Agent) error {
	if a == nil {
		return fmt.Errorf("agent cannot be nil")
	}

	r.mu.Lock()
	if r.find(a) != nil {
		r.mu.Unlock()
		return fmt.Errorf("agent %s is already registered", a.Version())
	}
	w := &worker{agent: a, state: StateInstalling}
	if r.installing != nil {
		r.installing.state = StateRedundant
	}
	r.installing = w
	r.mu.Unlock()

	r.logger.Info().Str("version", a.Version()).Msg("Registering agent")
	if err := a.Install(ctx); err != nil {
		r.logger.Warn().Err(err).Str("version", a.Version()).Msg("Install reported failure, continuing")
	}

	r.mu.Lock()
	if r.installing != w {
		// A newer registration superseded this one
		r.mu.Unlock()
		return nil
	}
	r.installing = nil
	w.state = StateInstalled
	if r.waiting != nil {
		r.waiting.state = StateRedundant
		r.logger.Info().Str("version", r.waiting.agent.Version()).Msg("Waiting agent replaced")
	}
	r.waiting = w
	r.mu.Unlock()

	return r.promote(ctx)
}

// SkipWaiting flags a so it is promoted without waiting for clients of the
// active agent to close. A waiting agent is promoted immediately.
func (r *Registration) SkipWaiting(ctx context.Context, a *agent.Agent) error {
	r.mu.Lock()
	w := r.find(a)
	if w == nil {
		r.mu.Unlock()
		return ErrNotRegistered
	}
	w.skipWaiting = true
	isWaiting := r.waiting == w
	r.mu.Unlock()

	if isWaiting {
		return r.promote(ctx)
	}
	return nil
}

// Claim makes a the controller of every open client. Only the active agent
// may claim.
func (r *Registration) Claim(_ context.Context, a *agent.Agent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil || r.active.agent != a {
		return ErrNotActive
	}
	n := r.clients.Claim(a.Version())
	r.logger.Info().Str("version", a.Version()).Int("clients", n).Msg("Clients claimed")
	return nil
}

// Attach records a navigation by the client id; the client becomes
// controlled by the active agent.
func (r *Registration) Attach(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	version := ""
	if r.active != nil {
		version = r.active.agent.Version()
	}
	r.clients.Attach(id, version)
}

// Sweep expires idle clients and promotes the waiting agent if the active
// agent no longer controls any client.
func (r *Registration) Sweep(ctx context.Context) error {
	if n := r.clients.Expire(); n > 0 {
		r.logger.Debug().Int("clients", n).Msg("Expired idle clients")
	}
	return r.promote(ctx)
}

// promote activates the waiting agent if it is allowed to take over.
func (r *Registration) promote(ctx context.Context) error {
	r.mu.Lock()
	w := r.waiting
	if w == nil || r.promoting {
		r.mu.Unlock()
		return nil
	}
	if !w.skipWaiting && r.active != nil && r.clients.ControlledBy(r.active.agent.Version()) > 0 {
		r.mu.Unlock()
		return nil
	}

	old := r.active
	if old != nil {
		old.state = StateRedundant
		activeVersion.DeleteLabelValues(old.agent.Version())
	}
	r.waiting = nil
	r.active = w
	w.state = StateActivating
	r.promoting = true
	r.mu.Unlock()

	promotionsTotal.Inc()
	activeVersion.WithLabelValues(w.agent.Version()).Set(1)
	r.logger.Info().Str("version", w.agent.Version()).Msg("Promoting agent")

	// Activation claims clients through the registration, so the lock
	// must not be held here.
	err := w.agent.Activate(ctx)

	r.mu.Lock()
	r.promoting = false
	if r.active == w {
		w.state = StateActivated
	}
	r.mu.Unlock()

	if err != nil {
		return fmt.Errorf("activate %s: %w", w.agent.Version(), err)
	}

	// A newer agent may have been parked while this one was activating
	return r.promote(ctx)
}
