package queue

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/EdmilsonFernandes/EdEspetoHub-sub001/internal/dto"
)

func TestBroadcasterFansOut(t *testing.T) {
	b := NewBroadcaster(zap.NewNop(), nil)

	id1, ch1 := b.subscribe()
	_, ch2 := b.subscribe()
	if got := b.Subscribers(); got != 2 {
		t.Fatalf("Subscribers() = %d, want 2", got)
	}

	b.NewOrder(true)

	for _, ch := range []<-chan Event{ch1, ch2} {
		select {
		case evt := <-ch:
			if evt.Type != "new_order" {
				t.Fatalf("event type = %s, want new_order", evt.Type)
			}
		case <-time.After(time.Second):
			t.Fatal("subscriber never received the event")
		}
	}

	b.unsubscribe(id1)
	if got := b.Subscribers(); got != 1 {
		t.Fatalf("Subscribers() after unsubscribe = %d, want 1", got)
	}
	if _, ok := <-ch1; ok {
		t.Fatal("unsubscribed channel not closed")
	}
}

func TestBroadcasterDropsWhenSubscriberIsFull(t *testing.T) {
	b := NewBroadcaster(zap.NewNop(), nil)
	_, ch := b.subscribe()

	// Overfill well past the channel buffer; producers must never block.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			b.SyncError("storefront unreachable", false)
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast blocked on a slow subscriber")
	}

	// The buffered portion is still deliverable.
	select {
	case evt := <-ch:
		if evt.Type != "sync_error" {
			t.Fatalf("event type = %s, want sync_error", evt.Type)
		}
	default:
		t.Fatal("no buffered events delivered")
	}
}

func TestStreamWritesEvents(t *testing.T) {
	b := NewBroadcaster(zap.NewNop(), nil)

	e := echo.New()
	e.GET("/queue/stream", b.stream)
	server := httptest.NewServer(e)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/queue/stream", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("connect stream: %v", err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get(echo.HeaderContentType); got != "text/event-stream" {
		t.Fatalf("content type = %q, want text/event-stream", got)
	}

	deadline := time.Now().Add(2 * time.Second)
	for b.Subscribers() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if b.Subscribers() == 0 {
		t.Fatal("stream never subscribed")
	}

	b.OrdersUpdated([]dto.QueueOrder{{ID: "o1", Status: "pending"}})

	var lines []string
	sawConnect, sawRetry, sawOrders, sawPayload := false, false, false, false
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		lines = append(lines, line)
		switch {
		case line == ": connected":
			sawConnect = true
		case line == "retry: 2000":
			sawRetry = true
		case line == "event: orders":
			sawOrders = true
		case sawOrders && strings.HasPrefix(line, "data: "):
			if !strings.Contains(line, `"id":"o1"`) {
				t.Fatalf("orders payload = %q, want order o1", line)
			}
			sawPayload = true
		}
		if sawPayload {
			cancel()
			break
		}
	}

	if !sawConnect || !sawRetry || !sawOrders || !sawPayload {
		t.Fatalf("stream output missing frames (connect=%v retry=%v orders=%v payload=%v): %v",
			sawConnect, sawRetry, sawOrders, sawPayload, lines)
	}

	deadline = time.Now().Add(2 * time.Second)
	for b.Subscribers() != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if got := b.Subscribers(); got != 0 {
		t.Errorf("Subscribers() after disconnect = %d, want 0", got)
	}
}
