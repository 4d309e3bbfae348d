// Package broadcast keeps named topics of connection ids and fans serialised
// events out to them through an attached Sender.
package broadcast

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Sender delivers a serialised payload to one connection.
type Sender interface {
	Send(connID string, payload []byte) error
}

// Envelope is the wire shape of every published event.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Target addresses a publish: the union of every channel's members and the
// explicit subscribers, each connection receiving the message once.
type Target struct {
	Channels    []string
	Subscribers []string
}

func (t Target) Empty() bool { return len(t.Channels) == 0 && len(t.Subscribers) == 0 }

// Delivery reports how a publish went.
type Delivery struct {
	Recipients int
	Failed     int
}

type Registry struct {
	mu       sync.RWMutex
	channels map[string]map[string]struct{}
	sender   Sender
	logger   *zap.Logger
}

func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		channels: make(map[string]map[string]struct{}),
		logger:   logger.Named("broadcast"),
	}
}

// AttachSender wires the transport after construction.
func (r *Registry) AttachSender(s Sender) {
	r.mu.Lock()
	r.sender = s
	r.mu.Unlock()
}

// Channel is a handle on a topic. Membership lives in the registry, so a
// handle stays usable after its topic was pruned and recreated.
type Channel struct {
	key string
	reg *Registry
}

func (c *Channel) Key() string { return c.key }

func (c *Channel) Join(connIDs ...string) { c.reg.Join(c.key, connIDs...) }

func (c *Channel) Leave(connIDs ...string) { c.reg.Leave(c.key, connIDs...) }

// Members returns a sorted snapshot of the current membership.
func (c *Channel) Members() []string {
	c.reg.mu.RLock()
	defer c.reg.mu.RUnlock()
	return sortedKeys(c.reg.channels[c.key])
}

func (c *Channel) Len() int {
	c.reg.mu.RLock()
	defer c.reg.mu.RUnlock()
	return len(c.reg.channels[c.key])
}

func (r *Registry) GetOrCreate(key string) *Channel {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.channels[key]; !ok {
		r.channels[key] = make(map[string]struct{})
	}
	return &Channel{key: key, reg: r}
}

func (r *Registry) Lookup(key string) (*Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.channels[key]; !ok {
		return nil, false
	}
	return &Channel{key: key, reg: r}, true
}

func (r *Registry) Join(key string, connIDs ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	members, ok := r.channels[key]
	if !ok {
		members = make(map[string]struct{})
		r.channels[key] = members
	}
	for _, id := range connIDs {
		if id == "" {
			continue
		}
		members[id] = struct{}{}
	}
}

// Leave removes connections from key; an emptied channel is pruned.
func (r *Registry) Leave(key string, connIDs ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	members, ok := r.channels[key]
	if !ok {
		return
	}
	for _, id := range connIDs {
		delete(members, id)
	}
	if len(members) == 0 {
		delete(r.channels, key)
	}
}

// LeaveAll removes connID from every channel and returns the keys it left.
func (r *Registry) LeaveAll(connID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var left []string
	for key, members := range r.channels {
		if _, ok := members[connID]; !ok {
			continue
		}
		delete(members, connID)
		left = append(left, key)
		if len(members) == 0 {
			delete(r.channels, key)
		}
	}
	sort.Strings(left)
	return left
}

func (r *Registry) recipientsLocked(t Target) []string {
	set := make(map[string]struct{})
	for _, key := range t.Channels {
		for id := range r.channels[key] {
			set[id] = struct{}{}
		}
	}
	for _, id := range t.Subscribers {
		if id != "" {
			set[id] = struct{}{}
		}
	}
	return sortedKeys(set)
}

// Publish serialises {event, data} once and sends it to the recipient set
// captured before the first send. Joins during the fan-out are not included;
// leaves during the fan-out still receive the message. A failed send is
// logged and does not stop delivery to the rest.
func (r *Registry) Publish(event string, data any, t Target) (Delivery, error) {
	payload, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		return Delivery{}, fmt.Errorf("marshal %s: %w", event, err)
	}
	r.mu.RLock()
	recipients := r.recipientsLocked(t)
	sender := r.sender
	r.mu.RUnlock()

	d := Delivery{Recipients: len(recipients)}
	if len(recipients) == 0 {
		return d, nil
	}
	if sender == nil {
		r.logger.Debug("publish_no_sender", zap.String("event", event), zap.Int("recipients", len(recipients)))
		return d, nil
	}
	for _, id := range recipients {
		if err := sender.Send(id, payload); err != nil {
			d.Failed++
			r.logger.Warn("publish_send_failed", zap.String("event", event), zap.String("conn_id", id), zap.Error(err))
		}
	}
	return d, nil
}

// Len counts live channels.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}

func (r *Registry) Reset() {
	r.mu.Lock()
	r.channels = make(map[string]map[string]struct{})
	r.mu.Unlock()
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
