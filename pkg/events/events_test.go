package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBrokerPublishDeliversToSubscriber(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	assert.Equal(t, 1, b.SubscriberCount())

	b.Publish(&Event{Type: DeploymentStarted, PlanID: "plan-1"})

	select {
	case evt := <-sub:
		assert.Equal(t, DeploymentStarted, evt.Type)
		assert.Equal(t, "plan-1", evt.PlanID)
		assert.False(t, evt.Timestamp.IsZero())
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBrokerUnsubscribeStopsDelivery(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	b.Unsubscribe(sub)
	assert.Equal(t, 0, b.SubscriberCount())

	b.Publish(&Event{Type: AppTerminated, RunSpecID: "/a"})

	select {
	case _, ok := <-sub:
		assert.False(t, ok, "channel should be closed after unsubscribe")
	case <-time.After(100 * time.Millisecond):
		t.Fatal("channel was neither closed nor readable")
	}
}
