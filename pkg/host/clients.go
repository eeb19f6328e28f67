package host

import (
	"sort"
	"sync"
	"time"
)

// DefaultIdleTimeout is how long a client may stay silent before it is
// considered closed.
const DefaultIdleTimeout = 30 * time.Minute

// Client is a snapshot of one open page.
type Client struct {
	ID string
	// Controller is the version of the agent controlling the client,
	// empty when uncontrolled.
	Controller string
	LastSeen   time.Time
}

// Clients tracks open pages by client ID.
type Clients struct {
	mu      sync.Mutex
	clients map[string]*Client
	idle    time.Duration
	now     func() time.Time
}

// NewClients creates a registry that expires clients idle for longer than
// idle. A non-positive idle uses DefaultIdleTimeout.
func NewClients(idle time.Duration) *Clients {
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	return &Clients{
		clients: make(map[string]*Client),
		idle:    idle,
		now:     time.Now,
	}
}

// Attach records a navigation by id; the client becomes controlled by
// version (empty for uncontrolled).
func (c *Clients) Attach(id, version string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clients[id] = &Client{ID: id, Controller: version, LastSeen: c.now()}
	clientsGauge.Set(float64(len(c.clients)))
}

// Touch refreshes the last-seen time of id. It reports whether id is known.
func (c *Clients) Touch(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	cl, ok := c.clients[id]
	if ok {
		cl.LastSeen = c.now()
	}
	return ok
}

// Get returns a snapshot of the client with the given id.
func (c *Clients) Get(id string) (Client, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cl, ok := c.clients[id]
	if !ok {
		return Client{}, false
	}
	return *cl, true
}


// Claim makes version the controller of every client and returns how many
// changed controller.
func (c *Clients) Claim(version string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, cl := range c.clients {
		if cl.Controller != version {
			cl.Controller = version
			n++
		}
	}
	return n
}

// Count returns the number of known clients.
func (c *Clients) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.clients)
}

// ControlledBy returns the number of clients controlled by version.
func (c *Clients) ControlledBy(version string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, cl := range c.clients {
		if cl.Controller == version {
			n++
		}
	}
	return n
}

// List returns snapshots of all clients ordered by ID.
func (c *Clients) List() []Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Client, 0, len(c.clients))
	for _, cl := range c.clients {
		out = append(out, *cl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Expire removes clients idle for longer than the idle timeout and returns
// how many were removed.
func (c *Clients) Expire() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	cutoff := c.now().Add(-c.idle)
	n := 0
	for id, cl := range c.clients {
		if cl.LastSeen.Before(cutoff) {
			delete(c.clients, id)
			n++
		}
	}
	clientsGauge.Set(float64(len(c.clients)))
	return n
}
