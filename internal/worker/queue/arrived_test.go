package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/EdmilsonFernandes/EdEspetoHub-sub001/internal/config"
	"github.com/EdmilsonFernandes/EdEspetoHub-sub001/internal/messaging"
	queuesvc "github.com/EdmilsonFernandes/EdEspetoHub-sub001/internal/service/queue"
)

func TestOrderArrivedHandler(t *testing.T) {
	cfg := config.Config{}
	cfg.Messaging.Kafka.Topic = "queue.order.arrived"

	reg := NewOrderArrivedHandler(zap.NewNop(), cfg)
	if reg.Topic != "queue.order.arrived" {
		t.Fatalf("registration topic = %q, want queue.order.arrived", reg.Topic)
	}

	payload, _ := json.Marshal(queuesvc.OrderArrivedEvent{
		Store:      "store-1",
		OccurredAt: time.Now().UTC(),
	})
	msg := messaging.Message{Topic: reg.Topic, Value: payload}
	if err := reg.Handler(context.Background(), msg); err != nil {
		t.Fatalf("handler error = %v", err)
	}
}

func TestOrderArrivedHandlerRejectsBadPayload(t *testing.T) {
	cfg := config.Config{}
	cfg.Messaging.Kafka.Topic = "queue.order.arrived"

	reg := NewOrderArrivedHandler(zap.NewNop(), cfg)
	msg := messaging.Message{Topic: reg.Topic, Value: []byte("{broken")}
	if err := reg.Handler(context.Background(), msg); err == nil {
		t.Fatal("handler accepted malformed payload")
	}
}
