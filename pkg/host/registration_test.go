package host

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Sternrassler/siteworker/pkg/agent"
	"github.com/Sternrassler/siteworker/pkg/cache"
)

var publicOrigin = &url.URL{Scheme: "https", Host: "portfolio.example"}

// siteFetcher serves every path with 200, or fails while offline is set.
type siteFetcher struct {
	offline atomic.Bool
}

func (f *siteFetcher) Do(req *http.Request) (*http.Response, error) {
	if f.offline.Load() {
		return nil, errors.New("connection refused")
	}
	rec := httptest.NewRecorder()
	rec.WriteString("content of " + req.URL.Path)
	resp := rec.Result()
	resp.Request = req
	return resp, nil
}

func newAgent(t *testing.T, reg *Registration, storage *cache.Storage, fetcher agent.Fetcher, version string) *agent.Agent {
	t.Helper()
	a, err := agent.New(agent.Config{
		Origin:   publicOrigin,
		Version:  version,
		Manifest: []string{"/", "/index.html"},
		Storage:  storage,
		Fetcher:  fetcher,
		Host:     reg,
	})
	if err != nil {
		t.Fatalf("agent.New failed: %v", err)
	}
	return a
}

func cacheNames(t *testing.T, s *cache.Storage) []string {
	t.Helper()
	names, err := s.Keys(context.Background())
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	return names
}

func TestNewRegistration_NilClientsPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("NewRegistration(nil) should panic")
		}
	}()
	NewRegistration(nil, nil)
}

func TestRegister_FirstAgentBecomesActive(t *testing.T) {
	reg := NewRegistration(NewClients(time.Minute), nil)
	storage := cache.NewStorage(cache.NewMemoryDriver())
	a := newAgent(t, reg, storage, &siteFetcher{}, "v1")

	if err := reg.Register(context.Background(), a); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if reg.Active() != a {
		t.Error("first agent is not active")
	}
	if reg.Waiting() != nil {
		t.Error("unexpected waiting agent")
	}
	if reg.State(a) != StateActivated {
		t.Errorf("State = %s, want activated", reg.State(a))
	}
	if names := cacheNames(t, storage); len(names) != 1 || names[0] != a.CacheName() {
		t.Errorf("caches = %v", names)
	}

	if err := reg.Register(context.Background(), a); err == nil {
		t.Error("registering the same agent twice should fail")
	}
}

func TestRegister_SuccessfulInstallTakesOverAndClaims(t *testing.T) {
	reg := NewRegistration(NewClients(time.Minute), nil)
	storage := cache.NewStorage(cache.NewMemoryDriver())
	fetcher := &siteFetcher{}
	ctx := context.Background()

	v1 := newAgent(t, reg, storage, fetcher, "v1")
	if err := reg.Register(ctx, v1); err != nil {
		t.Fatalf("Register v1 failed: %v", err)
	}
	reg.Attach("page-1")

	v2 := newAgent(t, reg, storage, fetcher, "v2")
	if err := reg.Register(ctx, v2); err != nil {
		t.Fatalf("Register v2 failed: %v", err)
	}

	if reg.Active() != v2 {
		t.Fatal("v2 did not skip waiting")
	}
	if reg.State(v1) != StateRedundant {
		t.Errorf("v1 state = %s, want redundant", reg.State(v1))
	}
	if cl, _ := reg.Clients().Get("page-1"); cl.Controller != "v2" {
		t.Errorf("page-1 controller = %q, want v2", cl.Controller)
	}
	if names := cacheNames(t, storage); len(names) != 1 || names[0] != v2.CacheName() {
		t.Errorf("caches = %v, want only v2", names)
	}
}

func TestRegister_FailedInstallWaitsForClients(t *testing.T) {
	clients, clock := newTestClients(time.Minute)
	reg := NewRegistration(clients, nil)
	storage := cache.NewStorage(cache.NewMemoryDriver())
	ctx := context.Background()

	v1 := newAgent(t, reg, storage, &siteFetcher{}, "v1")
	if err := reg.Register(ctx, v1); err != nil {
		t.Fatalf("Register v1 failed: %v", err)
	}
	reg.Attach("page-1")

	offline := &siteFetcher{}
	offline.offline.Store(true)
	v2 := newAgent(t, reg, storage, offline, "v2")
	if err := reg.Register(ctx, v2); err != nil {
		t.Fatalf("Register v2 failed: %v", err)
	}

	if reg.Active() != v1 || reg.Waiting() != v2 {
		t.Fatalf("active=%v waiting=%v, want v1 active and v2 waiting", reg.Active(), reg.Waiting())
	}
	if reg.State(v2) != StateInstalled {
		t.Errorf("v2 state = %s, want installed", reg.State(v2))
	}

	// Client still open: nothing changes
	if err := reg.Sweep(ctx); err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if reg.Active() != v1 {
		t.Fatal("v2 promoted while v1 still controls a client")
	}

	// Last client goes away: v2 takes over
	clock.advance(2 * time.Minute)
	if err := reg.Sweep(ctx); err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if reg.Active() != v2 || reg.Waiting() != nil {
		t.Fatal("v2 not promoted after the last client expired")
	}
	if names := cacheNames(t, storage); len(names) != 1 || names[0] != v2.CacheName() {
		t.Errorf("caches = %v, want only v2", names)
	}
}

func TestSkipWaitingMessagePromotesWaitingAgent(t *testing.T) {
	reg := NewRegistration(NewClients(time.Minute), nil)
	storage := cache.NewStorage(cache.NewMemoryDriver())
	ctx := context.Background()

	v1 := newAgent(t, reg, storage, &siteFetcher{}, "v1")
	if err := reg.Register(ctx, v1); err != nil {
		t.Fatalf("Register v1 failed: %v", err)
	}
	reg.Attach("page-1")

	offline := &siteFetcher{}
	offline.offline.Store(true)
	v2 := newAgent(t, reg, storage, offline, "v2")
	reg.Register(ctx, v2)
	if reg.Waiting() != v2 {
		t.Fatal("v2 not waiting")
	}

	if err := v2.HandleMessage(ctx, &agent.Message{Type: agent.MessageSkipWaiting}); err != nil {
		t.Fatalf("HandleMessage failed: %v", err)
	}
	if reg.Active() != v2 {
		t.Fatal("SKIP_WAITING did not promote v2")
	}
	if cl, _ := reg.Clients().Get("page-1"); cl.Controller != "v2" {
		t.Errorf("page-1 controller = %q, want v2", cl.Controller)
	}
}

func TestClaimAndSkipWaiting_Errors(t *testing.T) {
	reg := NewRegistration(NewClients(time.Minute), nil)
	storage := cache.NewStorage(cache.NewMemoryDriver())
	stranger := newAgent(t, reg, storage, &siteFetcher{}, "v9")

	if err := reg.Claim(context.Background(), stranger); !errors.Is(err, ErrNotActive) {
		t.Errorf("Claim error = %v, want ErrNotActive", err)
	}
	if err := reg.SkipWaiting(context.Background(), stranger); !errors.Is(err, ErrNotRegistered) {
		t.Errorf("SkipWaiting error = %v, want ErrNotRegistered", err)
	}
	if reg.State(stranger) != StateRedundant {
		t.Errorf("State = %s, want redundant", reg.State(stranger))
	}
}

func TestAttach_WithoutActiveAgentIsUncontrolled(t *testing.T) {
	reg := NewRegistration(NewClients(time.Minute), nil)
	reg.Attach("page-1")

	cl, ok := reg.Clients().Get("page-1")
	if !ok || cl.Controller != "" {
		t.Errorf("Get = %+v, %v; want uncontrolled client", cl, ok)
	}
}
