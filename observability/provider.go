package observability

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/fieldcore/cyclerd/router"
)

// subscription is one (client, subscription_id) registration.
type subscription struct {
	Path   string
	Format Format
	Once   bool
}

// Provider holds the subscription state for one subject (outputs,
// parameters, or databases) across every client connected to the
// observability server, and fans out change notifications to live
// subscribers.
//
// Grounded on coordinator.PhaseManager's sync.RWMutex-guarded map plus its
// OnPhaseChanged callback fan-out, generalized from one workflow phase
// value per key to an arbitrary set of (client, subscription) entries per
// provider.
type Provider struct {
	subject Subject
	router  *router.Router

	mu   sync.RWMutex
	subs map[string]map[uint64]*subscription // client -> subscription_id -> subscription

	refIDs atomic.Uint64

	subscribedPathsMu sync.RWMutex
	subscribedPaths   map[string]map[string]int // instance -> path -> ref count, published for AdditionalOutput liveness checks
}

// NewProvider returns an empty Provider backed by r for answering
// GetFields/Get requests.
func NewProvider(subject Subject, r *router.Router) *Provider {
	return &Provider{
		subject:         subject,
		router:          r,
		subs:            make(map[string]map[uint64]*subscription),
		subscribedPaths: make(map[string]map[string]int),
	}
}

// Subscribe registers a long-lived (or one-shot, if once) subscription
// for client at (instance, path). Fails if (client, id) is already used;
// the existing subscription is left untouched.
func (p *Provider) Subscribe(client string, id uint64, instance, path string, format Format, once bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	clientSubs, ok := p.subs[client]
	if !ok {
		clientSubs = make(map[uint64]*subscription)
		p.subs[client] = clientSubs
	}
	if _, exists := clientSubs[id]; exists {
		return fmt.Errorf("observability: already subscribed with id %d", id)
	}

	clientSubs[id] = &subscription{Path: instancePath(instance, path), Format: format, Once: once}
	if p.subject == SubjectOutputs {
		p.trackPath(instance, path, 1)
	}
	return nil
}

// Unsubscribe tears down one (client, subscription_id). Unsubscribing an
// unknown pair fails; a second call for the same pair also fails, exactly
// as the first unknown call would.
func (p *Provider) Unsubscribe(client string, id uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	clientSubs, ok := p.subs[client]
	if !ok {
		return fmt.Errorf("observability: unknown subscription %d for client %q", id, client)
	}
	sub, ok := clientSubs[id]
	if !ok {
		return fmt.Errorf("observability: unknown subscription %d for client %q", id, client)
	}
	delete(clientSubs, id)
	if p.subject == SubjectOutputs {
		inst, path := splitInstancePath(sub.Path)
		p.trackPath(inst, path, -1)
	}
	return nil
}

// UnsubscribeEverything silently removes every subscription belonging to
// client.
func (p *Provider) UnsubscribeEverything(client string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	clientSubs := p.subs[client]
	if p.subject == SubjectOutputs {
		for _, sub := range clientSubs {
			inst, path := splitInstancePath(sub.Path)
			p.trackPath(inst, path, -1)
		}
	}
	delete(p.subs, client)
}

// NextReferenceID returns the next binary reference id, a wrapping
// counter matching WSMessage.ID's monotonic-counter generation style.
func (p *Provider) NextReferenceID() uint64 {
	return p.refIDs.Add(1)
}

// Notify collects the current value of every still-live subscription the
// client holds on this provider and returns them: one Response carrying a
// batched {subscription_id -> value-or-reference} map, plus one
// BinaryFrame per binary value. Sending them is left to the caller.
// Subscriptions marked Once are removed after delivery.
// Serialization errors are logged (via the logErr callback) and the
// subscription is retained.
func (p *Provider) Notify(client string, logErr func(subID uint64, err error)) (Response, []BinaryFrame) {
	p.mu.Lock()
	defer p.mu.Unlock()

	clientSubs := p.subs[client]
	values := make(map[uint64]any, len(clientSubs))
	var binaryFrames []BinaryFrame
	var toRemove []uint64

	for id, sub := range clientSubs {
		inst, path := splitInstancePath(sub.Path)
		v, err := p.router.Get(inst, path)
		if err != nil {
			if logErr != nil {
				logErr(id, err)
			}
			continue
		}

		switch sub.Format {
		case FormatBinary:
			encoded, err := encodeBinary(v)
			if err != nil {
				if logErr != nil {
					logErr(id, err)
				}
				continue
			}
			refID := p.NextReferenceID()
			values[id] = BinaryReference{ID: refID}
			binaryFrames = append(binaryFrames, BinaryFrame{ReferenceID: refID, Bytes: encoded})
		default:
			values[id] = v
		}

		if sub.Once {
			toRemove = append(toRemove, id)
		}
	}

	for _, id := range toRemove {
		sub := clientSubs[id]
		if p.subject == SubjectOutputs {
			inst, path := splitInstancePath(sub.Path)
			p.trackPath(inst, path, -1)
		}
		delete(clientSubs, id)
	}

	return Response{Type: ResponseValues, Values: values}, binaryFrames
}

// IsPathLive reports whether any client currently subscribes to
// (instance, path) on the outputs provider, for the AdditionalOutput
// liveness check nodes consult before computing an expensive output.
func (p *Provider) IsPathLive(instance, path string) bool {
	p.subscribedPathsMu.RLock()
	defer p.subscribedPathsMu.RUnlock()
	byPath, ok := p.subscribedPaths[instance]
	if !ok {
		return false
	}
	return byPath[path] > 0
}

func (p *Provider) trackPath(instance, path string, delta int) {
	p.subscribedPathsMu.Lock()
	defer p.subscribedPathsMu.Unlock()

	byPath, ok := p.subscribedPaths[instance]
	if !ok {
		byPath = make(map[string]int)
		p.subscribedPaths[instance] = byPath
	}
	byPath[path] += delta
	if byPath[path] <= 0 {
		delete(byPath, path)
	}
}

func instancePath(instance, path string) string { return instance + "\x00" + path }

func splitInstancePath(combined string) (instance, path string) {
	for i := 0; i < len(combined); i++ {
		if combined[i] == 0 {
			return combined[:i], combined[i+1:]
		}
	}
	return combined, ""
}
