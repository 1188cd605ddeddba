package annotation

import (
	"sync"
)

// EventName is one of the closed set of notifications the orchestrator emits
type EventName string

const (
	EventVideoLoaded       EventName = "videoLoaded"
	EventAnnotationAdded   EventName = "annotationAdded"
	EventAnnotationRemoved EventName = "annotationRemoved"
	EventObjectAdded       EventName = "objectAdded"
	EventObjectSelected    EventName = "objectSelected"
	EventStatusChanged     EventName = "statusChanged"
)

var EventNames = []EventName{
	EventVideoLoaded,
	EventAnnotationAdded,
	EventAnnotationRemoved,
	EventObjectAdded,
	EventObjectSelected,
	EventStatusChanged,
}

func (n EventName) Valid() bool {
	for _, name := range EventNames {
		if name == n {
			return true
		}
	}
	return false
}

// Event carries the new value of whatever changed
type Event struct {
	Name  EventName `json:"event"`
	Value any       `json:"value"`
}

type EventHandler func(Event)

// EventBus dispatches events synchronously, in subscription order
type EventBus struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[EventName]map[int]EventHandler
	all      map[int]EventHandler
	order    []int
}

func NewEventBus() *EventBus {
	return &EventBus{
		handlers: map[EventName]map[int]EventHandler{},
		all:      map[int]EventHandler{},
	}
}

// Subscribe registers h for one event name and returns a function that removes it
func (b *EventBus) Subscribe(name EventName, h EventHandler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.register()
	if b.handlers[name] == nil {
		b.handlers[name] = map[int]EventHandler{}
	}
	b.handlers[name][id] = h
	return func() { b.remove(id) }
}

// SubscribeAll registers h for every event
func (b *EventBus) SubscribeAll(h EventHandler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.register()
	b.all[id] = h
	return func() { b.remove(id) }
}

// Subscribers counts the registered handlers
func (b *EventBus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.order)
}

func (b *EventBus) register() int {
	b.nextID++
	b.order = append(b.order, b.nextID)
	return b.nextID
}

func (b *EventBus) remove(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.all, id)
	for _, hs := range b.handlers {
		delete(hs, id)
	}
	for i, v := range b.order {
		if v == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

// Emit must not be called while holding orchestrator locks; handlers may call back into it
func (b *EventBus) Emit(name EventName, value any) {
	if b == nil {
		return
	}
	ev := Event{Name: name, Value: value}
	b.mu.RLock()
	var targets []EventHandler
	for _, id := range b.order {
		if h, ok := b.handlers[name][id]; ok {
			targets = append(targets, h)
		}
		if h, ok := b.all[id]; ok {
			targets = append(targets, h)
		}
	}
	b.mu.RUnlock()
	for _, h := range targets {
		h(ev)
	}
}
