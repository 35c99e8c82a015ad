// Package kb is the in-memory, thread-safe registry of loaded channels. It
// serialises parameter changes against evaluations and tells subscribers
// when a change commits.
package kb

import (
	"fmt"
	"strings"
	"sync"

	"github.com/signalsfoundry/bolocalc/core"
	"github.com/signalsfoundry/bolocalc/model"
)

// EventType indicates what kind of change happened in the KB.
type EventType int

const (
	EventChannelAdded EventType = iota
	EventParameterChanged
)

func (t EventType) String() string {
	switch t {
	case EventChannelAdded:
		return "channel_added"
	case EventParameterChanged:
		return "parameter_changed"
	default:
		return fmt.Sprintf("EventType(%d)", int(t))
	}
}

// Event is emitted to subscribers when something interesting happens.
type Event struct {
	Type    EventType
	Channel string
	// Param and Value are set for EventParameterChanged. Value is the
	// parameter rendered back in literal form after the change.
	Param model.ParamID
	Value string
}

// KnowledgeBase holds channels keyed by upper-cased name. Parameters a
// channel inherits are shared with its siblings, so a change through one
// channel is visible through all of them.
type KnowledgeBase struct {
	mu sync.RWMutex

	channels map[string]*core.Channel
	order    []string

	subs []func(Event)
}

// NewKnowledgeBase constructs an empty KB.
func NewKnowledgeBase() *KnowledgeBase {
	return &KnowledgeBase{channels: make(map[string]*core.Channel)}
}

// FromInstrument registers every channel of inst.
func FromInstrument(inst *core.Instrument) (*KnowledgeBase, error) {
	kb := NewKnowledgeBase()
	for _, ch := range inst.Channels {
		if err := kb.AddChannel(ch); err != nil {
			return nil, err
		}
	}
	return kb, nil
}

func key(name string) string { return strings.ToUpper(strings.TrimSpace(name)) }

// AddChannel adds a new channel. It returns an error if the name already exists.
func (kb *KnowledgeBase) AddChannel(ch *core.Channel) error {
	if ch == nil {
		return fmt.Errorf("nil channel")
	}
	kb.mu.Lock()
	k := key(ch.Name)
	if _, exists := kb.channels[k]; exists {
		kb.mu.Unlock()
		return fmt.Errorf("channel %q already exists", ch.Name)
	}
	kb.channels[k] = ch
	kb.order = append(kb.order, k)
	subs := append([]func(Event){}, kb.subs...)
	kb.mu.Unlock()

	notify(subs, Event{Type: EventChannelAdded, Channel: ch.Name})
	return nil
}

// GetChannel returns the named channel (case-insensitive), or nil if not found.
func (kb *KnowledgeBase) GetChannel(name string) *core.Channel {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return kb.channels[key(name)]
}

// ListChannels returns the channels in the order they were added.
func (kb *KnowledgeBase) ListChannels() []*core.Channel {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	res := make([]*core.Channel, 0, len(kb.order))
	for _, k := range kb.order {
		res = append(res, kb.channels[k])
	}
	return res
}

// View runs fn with the named channel while holding the read lock, so no
// parameter change lands mid-evaluation.
func (kb *KnowledgeBase) View(name string, fn func(*core.Channel) error) error {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	ch, ok := kb.channels[key(name)]
	if !ok {
		return fmt.Errorf("channel %q not found", name)
	}
	return fn(ch)
}

// ChangeParam applies v to parameter param of the named channel. Subscribers
// are notified only when the change commits.
func (kb *KnowledgeBase) ChangeParam(channel, param string, v any) (bool, error) {
	kb.mu.Lock()
	ch, ok := kb.channels[key(channel)]
	if !ok {
		kb.mu.Unlock()
		return false, fmt.Errorf("channel %q not found", channel)
	}
	changed, err := ch.Params.ChangeBand(param, v, ch.Band)
	if err != nil || !changed {
		kb.mu.Unlock()
		return false, err
	}
	id, _ := model.LookupParam(param)
	ev := Event{Type: EventParameterChanged, Channel: ch.Name, Param: id}
	if p, ok := ch.Params.Get(id); ok {
		ev.Value = p.String()
	}
	subs := append([]func(Event){}, kb.subs...)
	kb.mu.Unlock()

	// Notify subscribers outside the lock to avoid deadlocks.
	notify(subs, ev)
	return true, nil
}

func notify(subs []func(Event), ev Event) {
	for _, sub := range subs {
		if sub != nil {
			sub(ev)
		}
	}
}

// Subscribe registers a callback for KB events. It returns an unsubscribe function.
func (kb *KnowledgeBase) Subscribe(fn func(Event)) (unsubscribe func()) {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	kb.subs = append(kb.subs, fn)
	idx := len(kb.subs) - 1

	return func() {
		kb.mu.Lock()
		defer kb.mu.Unlock()
		if idx < 0 || idx >= len(kb.subs) {
			return
		}
		// Leave a nil hole so other subscribers' indices stay valid.
		kb.subs[idx] = nil
		idx = -1
	}
}
