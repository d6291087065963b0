package broadcast

import (
	"context"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ledgerchat/internal/service/server"
)

func newHubHost(t *testing.T) string {
	t.Helper()

	ts := httptest.NewServer(server.NewHttpServer(server.NewMemoryStore()).Router())
	t.Cleanup(ts.Close)

	u, err := url.Parse(ts.URL)
	require.NoError(t, err)
	return u.Host
}

func TestWSPortRelaysBetweenInstances(t *testing.T) {
	host := newHubHost(t)

	sender, err := DialWS(host, "general")
	require.NoError(t, err)
	defer sender.Close()

	receiver, err := DialWS(host, "general")
	require.NoError(t, err)
	defer receiver.Close()

	got := make(chan Event, 1)
	receiver.Subscribe(func(ev Event) { got <- ev })

	ev := Event{Kind: KindNewMessage, Scope: "general", Sender: "client-1"}
	require.NoError(t, sender.Publish(context.Background(), ev))

	select {
	case received := <-got:
		require.Equal(t, ev, received)
	case <-time.After(2 * time.Second):
		t.Fatal("event never reached the sibling instance")
	}
}

func TestWSPortScopesAreIsolated(t *testing.T) {
	host := newHubHost(t)

	sender, err := DialWS(host, "room-a")
	require.NoError(t, err)
	defer sender.Close()

	other, err := DialWS(host, "room-b")
	require.NoError(t, err)
	defer other.Close()

	got := make(chan Event, 1)
	other.Subscribe(func(ev Event) { got <- ev })

	require.NoError(t, sender.Publish(context.Background(),
		Event{Kind: KindProfileUpdated, Scope: "room-a", Sender: "client-1"}))

	select {
	case <-got:
		t.Fatal("event leaked across scopes")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestSenderDoesNotReceiveOwnEvent(t *testing.T) {
	host := newHubHost(t)

	port, err := DialWS(host, "general")
	require.NoError(t, err)
	defer port.Close()

	got := make(chan Event, 1)
	port.Subscribe(func(ev Event) { got <- ev })

	require.NoError(t, port.Publish(context.Background(),
		Event{Kind: KindNewMessage, Scope: "general", Sender: "client-1"}))

	select {
	case <-got:
		t.Fatal("hub echoed the event back to its publisher")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestNoopPort(t *testing.T) {
	var port Port = Noop{}
	require.NoError(t, port.Publish(context.Background(), Event{Kind: KindNewMessage}))
	port.Subscribe(func(Event) { t.Fatal("noop must never deliver") })
	require.NoError(t, port.Close())
}
