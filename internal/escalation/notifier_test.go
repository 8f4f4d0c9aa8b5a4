package escalation

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	subs    []Subscription
	listErr error
	removed []int64
}

func (s *fakeStore) SaveSubscription(_ context.Context, sub *Subscription) error {
	s.subs = append(s.subs, *sub)
	return nil
}

func (s *fakeStore) ListSubscriptions(_ context.Context) ([]Subscription, error) {
	return s.subs, s.listErr
}

func (s *fakeStore) RemoveSubscription(_ context.Context, id int64) error {
	s.removed = append(s.removed, id)
	return nil
}

type fakeSender struct {
	statusByID map[int64]int
	errByID    map[int64]error
	sent       []Notification
	sentTo     []int64
}

func (f *fakeSender) Send(_ context.Context, sub Subscription, n Notification) (int, error) {
	f.sentTo = append(f.sentTo, sub.ID)
	f.sent = append(f.sent, n)
	if err := f.errByID[sub.ID]; err != nil {
		return 0, err
	}
	if status, ok := f.statusByID[sub.ID]; ok {
		return status, nil
	}
	return http.StatusCreated, nil
}

func TestNotifyWaitingSendsToAllSubscribers(t *testing.T) {
	store := &fakeStore{subs: []Subscription{{ID: 1}, {ID: 2}, {ID: 3}}}
	sender := &fakeSender{}
	n := NewNotifier(store, sender, "https://app.example.com/dashboard")

	require.NoError(t, n.NotifyWaiting(context.Background(), "t1", "s1"))
	require.Equal(t, []int64{1, 2, 3}, sender.sentTo)

	require.Equal(t, "A user is waiting for a reply.", sender.sent[0].Body)
	require.Equal(t, "s1", sender.sent[0].Tag)
	require.Equal(t, "https://app.example.com/dashboard/live-chats?session=s1", sender.sent[0].URL)
}

func TestNotifyWaitingRemovesGoneSubscriptions(t *testing.T) {
	store := &fakeStore{subs: []Subscription{{ID: 1}, {ID: 2}, {ID: 3}}}
	sender := &fakeSender{statusByID: map[int64]int{
		1: http.StatusGone,
		2: http.StatusNotFound,
	}}
	n := NewNotifier(store, sender, "https://x")

	require.NoError(t, n.NotifyWaiting(context.Background(), "t1", "s1"))

	require.ElementsMatch(t, []int64{1, 2}, store.removed)
	// the healthy subscriber still got its delivery
	require.Contains(t, sender.sentTo, int64(3))
}

func TestNotifyWaitingIsolatesFailures(t *testing.T) {
	store := &fakeStore{subs: []Subscription{{ID: 1}, {ID: 2}}}
	sender := &fakeSender{errByID: map[int64]error{1: errors.New("network")}}
	n := NewNotifier(store, sender, "https://x")

	require.NoError(t, n.NotifyWaiting(context.Background(), "t1", "s1"))

	require.Equal(t, []int64{1, 2}, sender.sentTo)
	require.Empty(t, store.removed, "transient failures must not remove subscriptions")
}

func TestNotifyWaitingStoreFailure(t *testing.T) {
	store := &fakeStore{listErr: errors.New("db down")}
	n := NewNotifier(store, &fakeSender{}, "https://x")

	require.Error(t, n.NotifyWaiting(context.Background(), "t1", "s1"))
}
