package authkit

import (
	"context"
	"errors"
	"testing"

	"github.com/coder/websocket"
)

func TestDialSocketEchoRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	env.signIn(t)
	ctx := context.Background()

	socket, err := env.manager.DialSocket(ctx, "/chat", false)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer socket.Close()

	if err := socket.Write(ctx, websocket.MessageText, []byte("ping")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	_, data, err := socket.Read(ctx)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(data) != "ping" {
		t.Fatalf("unexpected echo %q", data)
	}
}

func TestDialSocketReusesLiveConnection(t *testing.T) {
	env := newTestEnv(t)
	env.signIn(t)
	ctx := context.Background()

	first, err := env.manager.DialSocket(ctx, "/chat", false)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	second, err := env.manager.DialSocket(ctx, "/chat", false)
	if err != nil {
		t.Fatalf("second dial failed: %v", err)
	}
	if first != second {
		t.Fatal("same-path dial must reuse the live socket")
	}
	if got := env.manager.metrics.Value(MetricSocketReused); got != 1 {
		t.Fatalf("expected 1 reuse, got %d", got)
	}

	forced, err := env.manager.DialSocket(ctx, "/chat", true)
	if err != nil {
		t.Fatalf("forced dial failed: %v", err)
	}
	if forced == first {
		t.Fatal("forceNew must dial a fresh socket")
	}
	if first.IsOpen() {
		t.Fatal("replaced socket must be closed")
	}
	if !env.manager.IsSocketOpen("/chat") {
		t.Fatal("forced socket must be tracked as open")
	}
}

func TestDialSocketRequiresSession(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.manager.DialSocket(context.Background(), "/chat", false); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
}

func TestSignOutClosesSockets(t *testing.T) {
	env := newTestEnv(t)
	env.signIn(t)
	ctx := context.Background()

	socket, err := env.manager.DialSocket(ctx, "/chat", false)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}

	if err := env.manager.SignOut(ctx); err != nil {
		t.Fatalf("sign-out failed: %v", err)
	}
	if socket.IsOpen() {
		t.Fatal("sign-out must close open sockets")
	}
	if env.manager.IsSocketOpen("/chat") {
		t.Fatal("socket cache must be emptied by sign-out")
	}
}

func TestDialSocketAfterCloseFails(t *testing.T) {
	env := newTestEnv(t)
	env.signIn(t)

	if err := env.manager.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if _, err := env.manager.DialSocket(context.Background(), "/chat", false); !errors.Is(err, ErrManagerNotReady) {
		t.Fatalf("expected ErrManagerNotReady, got %v", err)
	}
}

func TestCloseSocketForgetsPath(t *testing.T) {
	env := newTestEnv(t)
	env.signIn(t)
	ctx := context.Background()

	if _, err := env.manager.DialSocket(ctx, "/chat", false); err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	if err := env.manager.CloseSocket("/chat"); err != nil {
		t.Fatalf("close socket failed: %v", err)
	}
	if env.manager.IsSocketOpen("/chat") {
		t.Fatal("closed socket must not be reported open")
	}
}
