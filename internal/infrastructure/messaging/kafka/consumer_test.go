package kafka

import (
	"context"
	stderrors "errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/topk-planner/internal/testutil"
)

func newTestConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		Brokers: []string{"localhost:9092"},
		GroupID: "planner-test",
		Topics:  []string{TopicRecommendationRequests},
		RetryConfig: RetryConfig{
			MaxRetries:      2,
			RetryBackoff:    time.Millisecond,
			DeadLetterTopic: TopicRecommendationDLQ,
		},
	}
}

func TestValidateConsumerConfig(t *testing.T) {
	assert.NoError(t, ValidateConsumerConfig(newTestConsumerConfig()))

	mutations := map[string]func(*ConsumerConfig){
		"no brokers":  func(c *ConsumerConfig) { c.Brokers = nil },
		"no group":    func(c *ConsumerConfig) { c.GroupID = "" },
		"no topics":   func(c *ConsumerConfig) { c.Topics = nil },
		"bad offset":  func(c *ConsumerConfig) { c.AutoOffsetReset = "middle" },
		"neg retries": func(c *ConsumerConfig) { c.RetryConfig.MaxRetries = -1 },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			cfg := newTestConsumerConfig()
			mutate(&cfg)
			assert.Error(t, ValidateConsumerConfig(cfg))
		})
	}
}

func TestConsumer_DispatchesAndCommits(t *testing.T) {
	reader := &fakeReader{queue: []kafka.Message{
		{Topic: TopicRecommendationRequests, Offset: 7, Value: []byte("v"),
			Headers: []kafka.Header{{Key: "h", Value: []byte("1")}}},
	}}
	c := newConsumer(reader, newTestConsumerConfig(), nil, nil)

	got := make(chan *Message, 1)
	c.Subscribe(TopicRecommendationRequests, func(_ context.Context, msg *Message) error {
		got <- msg
		return nil
	})
	require.NoError(t, c.Start(context.Background()))
	assert.ErrorIs(t, c.Start(context.Background()), ErrAlreadyRunning)

	select {
	case msg := <-got:
		assert.Equal(t, "v", string(msg.Value))
		assert.Equal(t, "1", msg.Headers["h"])
	case <-time.After(time.Second):
		t.Fatal("handler not called")
	}

	assert.Eventually(t, func() bool { return len(reader.commits()) == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.Close())
	assert.True(t, reader.closed)
	assert.Equal(t, int64(1), c.Processed())
}

func TestConsumer_CommitsUnhandledTopics(t *testing.T) {
	reader := &fakeReader{queue: []kafka.Message{{Topic: "other", Value: []byte("v")}}}
	log := testutil.NewMockLogger()
	c := newConsumer(reader, newTestConsumerConfig(), nil, log)
	require.NoError(t, c.Start(context.Background()))
	defer c.Close()

	assert.Eventually(t, func() bool { return len(reader.commits()) == 1 }, time.Second, 5*time.Millisecond)
	assert.True(t, log.HasMessage("warn", "no handler for topic"))
}

func TestProcessMessage_RetrySucceeds(t *testing.T) {
	c := newConsumer(&fakeReader{}, newTestConsumerConfig(), nil, nil)

	var attempts int32
	err := c.processMessage(context.Background(), &Message{}, func(context.Context, *Message) error {
		if atomic.AddInt32(&attempts, 1) < 2 {
			return stderrors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int32(2), attempts)
	assert.Equal(t, int64(1), c.metrics.MessagesRetried.Load())
	assert.Equal(t, int64(0), c.DeadLettered())
}

func TestProcessMessage_DeadLettersAfterRetries(t *testing.T) {
	dlq := &capturePublisher{}
	c := newConsumer(&fakeReader{}, newTestConsumerConfig(), dlq, nil)

	msg := &Message{
		Topic:   TopicRecommendationRequests,
		Key:     []byte("req-9"),
		Value:   []byte("payload"),
		Headers: map[string]string{"trace": "abc"},
	}
	var attempts int
	err := c.processMessage(context.Background(), msg, func(context.Context, *Message) error {
		attempts++
		return stderrors.New("permanent")
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)

	out := dlq.published()
	require.Len(t, out, 1)
	assert.Equal(t, TopicRecommendationDLQ, out[0].Topic)
	assert.Equal(t, "req-9", string(out[0].Key))
	assert.Equal(t, TopicRecommendationRequests, out[0].Headers[HeaderOriginalTopic])
	assert.Equal(t, "permanent", out[0].Headers[HeaderErrorMessage])
	assert.Equal(t, "3", out[0].Headers[HeaderAttempts])
	assert.Equal(t, "abc", out[0].Headers["trace"])
	assert.NotContains(t, msg.Headers, HeaderOriginalTopic, "source headers must not be mutated")
	assert.Equal(t, int64(1), c.DeadLettered())
}

func TestProcessMessage_CancelledDuringBackoff(t *testing.T) {
	cfg := newTestConsumerConfig()
	cfg.RetryConfig.RetryBackoff = time.Hour
	c := newConsumer(&fakeReader{}, cfg, &capturePublisher{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.processMessage(ctx, &Message{}, func(context.Context, *Message) error {
		return stderrors.New("fail")
	})
	assert.ErrorIs(t, err, context.Canceled)
}
