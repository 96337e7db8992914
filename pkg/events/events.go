package events

import (
	"sync"
	"time"
)

// EventType names one of the event-bus outputs.
type EventType string

const (
	SchedulerRegistered   EventType = "scheduler.registered"
	SchedulerReregistered EventType = "scheduler.reregistered"
	SchedulerDisconnected EventType = "scheduler.disconnected"
	DeploymentStarted     EventType = "deployment.started"
	DeploymentSuccess     EventType = "deployment.success"
	DeploymentFailed      EventType = "deployment.failed"
	AppTerminated         EventType = "app.terminated"
	InstanceChanged       EventType = "instance.changed"
	AddHealthCheckEvent   EventType = "add_health_check_event"
	RemoveHealthCheckEvent EventType = "remove_health_check_event"
)

// Event carries its entity id(s) and the relevant plan or version.
type Event struct {
	Type      EventType
	Timestamp time.Time
	RunSpecID string
	PlanID    string
	Version   string
	Metadata  map[string]string
}

// Subscriber is a channel that receives events.
type Subscriber chan *Event

// Broker manages event subscriptions and non-blocking distribution.
type Broker struct {
	subscribers map[Subscriber]bool
	mu          sync.RWMutex
	eventCh     chan *Event
	stopCh      chan struct{}
}

// NewBroker creates a new event broker.
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[Subscriber]bool),
		eventCh:     make(chan *Event, 100),
		stopCh:      make(chan struct{}),
	}
}

// Start begins the broker's event distribution loop.
func (b *Broker) Start() {
	go b.run()
}

// Stop stops the broker.
func (b *Broker) Stop() {
	close(b.stopCh)
}

// Subscribe creates a new subscription and returns its channel.
func (b *Broker) Subscribe() Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(Subscriber, 50)
	b.subscribers[sub] = true
	return sub
}

// Unsubscribe removes a subscription.
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscribers[sub]; ok {
		delete(b.subscribers, sub)
		close(sub)
	}
}

// Publish publishes an event to all subscribers.
func (b *Broker) Publish(event *Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case b.eventCh <- event:
	case <-b.stopCh:
	}
}

func (b *Broker) run() {
	for {
		select {
		case event := <-b.eventCh:
			b.broadcast(event)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Broker) broadcast(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers {
		select {
		case sub <- event:
		default:
			// subscriber buffer full, drop rather than block the broker
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
