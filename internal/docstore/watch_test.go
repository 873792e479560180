// internal/docstore/watch_test.go
package docstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func setupRedisBus(t *testing.T) (*RedisBus, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisBus(client, newTestLogger(t)), mr
}

func waitForEvent(t *testing.T, events <-chan ChangeEvent) ChangeEvent {
	t.Helper()
	select {
	case event := <-events:
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change event")
		return ChangeEvent{}
	}
}

// ==========================
// Channel Mapping Tests
// ==========================

func TestChannelFor(t *testing.T) {
	tests := []struct {
		name       string
		collection string
		expected   string
	}{
		{"top level collection", "permits", "docstore:permits"},
		{"subcollection shares parent channel", "sfocApplications/app-1/documents", "docstore:sfocApplications"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, channelFor(tt.collection))
		})
	}
}

// ==========================
// Publish/Watch Tests
// ==========================

func TestRedisBus_PublishAndWatch(t *testing.T) {
	bus, _ := setupRedisBus(t)
	ctx := context.Background()

	events, cancel, err := bus.Watch(ctx, "permits", "org-1")
	assert.NoError(t, err)
	defer cancel()

	err = bus.Publish(ctx, ChangeEvent{
		Type:       EventUpdated,
		Collection: "permits",
		ID:         "permit-1",
		OrgID:      "org-1",
		At:         time.Now().UTC(),
	})
	assert.NoError(t, err)

	event := waitForEvent(t, events)
	assert.Equal(t, EventUpdated, event.Type)
	assert.Equal(t, "permit-1", event.ID)
}

func TestRedisBus_Watch_FiltersOtherOrganizations(t *testing.T) {
	bus, _ := setupRedisBus(t)
	ctx := context.Background()

	events, cancel, err := bus.Watch(ctx, "permits", "org-1")
	assert.NoError(t, err)
	defer cancel()

	assert.NoError(t, bus.Publish(ctx, ChangeEvent{
		Type: EventCreated, Collection: "permits", ID: "other", OrgID: "org-2",
	}))
	assert.NoError(t, bus.Publish(ctx, ChangeEvent{
		Type: EventCreated, Collection: "permits", ID: "mine", OrgID: "org-1",
	}))

	event := waitForEvent(t, events)
	assert.Equal(t, "mine", event.ID)
}

func TestRedisBus_Watch_FiltersSiblingSubcollections(t *testing.T) {
	bus, _ := setupRedisBus(t)
	ctx := context.Background()

	docsPath := Subcollection(CollectionSFOCApplications, "app-1", SubcollectionDocuments)
	commsPath := Subcollection(CollectionSFOCApplications, "app-1", SubcollectionCommunications)

	events, cancel, err := bus.Watch(ctx, docsPath, "org-1")
	assert.NoError(t, err)
	defer cancel()

	// Same channel, different collection path: must be dropped
	assert.NoError(t, bus.Publish(ctx, ChangeEvent{
		Type: EventCreated, Collection: commsPath, ID: "comm-1", OrgID: "org-1",
	}))
	assert.NoError(t, bus.Publish(ctx, ChangeEvent{
		Type: EventCreated, Collection: docsPath, ID: "doc-1", OrgID: "org-1",
	}))

	event := waitForEvent(t, events)
	assert.Equal(t, "doc-1", event.ID)
}

func TestRedisBus_Watch_UnsubscribeClosesChannel(t *testing.T) {
	bus, _ := setupRedisBus(t)

	events, cancel, err := bus.Watch(context.Background(), "permits", "org-1")
	assert.NoError(t, err)

	cancel()

	select {
	case _, open := <-events:
		assert.False(t, open)
	case <-time.After(2 * time.Second):
		t.Fatal("event channel not closed after unsubscribe")
	}
}
