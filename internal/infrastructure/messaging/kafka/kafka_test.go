package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/turtacn/substance-resolver/internal/application/acquisition"
	"github.com/turtacn/substance-resolver/internal/config"
	"github.com/turtacn/substance-resolver/internal/testutil"
	pkgerrors "github.com/turtacn/substance-resolver/pkg/errors"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type mockKafkaWriter struct {
	mu        sync.Mutex
	written   []kafka.Message
	writeFunc func(ctx context.Context, msgs ...kafka.Message) error
	closed    int
}

func (m *mockKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if m.writeFunc != nil {
		if err := m.writeFunc(ctx, msgs...); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.written = append(m.written, msgs...)
	return nil
}

func (m *mockKafkaWriter) Close() error {
	m.closed++
	return nil
}

type mockKafkaReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []int64
	closed    bool
}

func (m *mockKafkaReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	m.mu.Lock()
	if len(m.queue) > 0 {
		msg := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()
		return msg, nil
	}
	m.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (m *mockKafkaReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range msgs {
		m.committed = append(m.committed, msg.Offset)
	}
	return nil
}

func (m *mockKafkaReader) Close() error {
	m.closed = true
	return nil
}

func (m *mockKafkaReader) commits() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.committed...)
}

// ─────────────────────────────────────────────────────────────────────────────
// Producer
// ─────────────────────────────────────────────────────────────────────────────

func TestNewProducer_Validation(t *testing.T) {
	_, err := NewProducer(config.KafkaConfig{}, nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeValidation))

	_, err = NewProducer(config.KafkaConfig{Brokers: []string{"localhost:9092"}, MaxRetries: -1}, nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeValidation))

	p, err := NewProducer(config.KafkaConfig{Brokers: []string{"localhost:9092"}}, nil)
	require.NoError(t, err)
	assert.NoError(t, p.Close())
}

func TestProducer_Publish(t *testing.T) {
	w := &mockKafkaWriter{}
	p := newProducer(w, nil)

	err := p.Publish(context.Background(), &ProducerMessage{
		Topic:   "t",
		Key:     []byte("k"),
		Value:   []byte("v"),
		Headers: map[string]string{"event_type": "x"},
	})
	require.NoError(t, err)
	require.Len(t, w.written, 1)
	assert.Equal(t, "t", w.written[0].Topic)
	assert.Equal(t, []kafka.Header{{Key: "event_type", Value: []byte("x")}}, w.written[0].Headers)
	assert.False(t, w.written[0].Time.IsZero())
	assert.Equal(t, int64(1), p.Metrics().MessagesSent.Load())
	assert.Equal(t, int64(1), p.Metrics().BytesSent.Load())
}

func TestProducer_PublishRejectsBadMessages(t *testing.T) {
	p := newProducer(&mockKafkaWriter{}, nil)
	ctx := context.Background()

	assert.True(t, pkgerrors.IsCode(p.Publish(ctx, &ProducerMessage{Value: []byte("v")}), pkgerrors.ErrCodeValidation))
	assert.True(t, pkgerrors.IsCode(p.Publish(ctx, &ProducerMessage{Topic: "t"}), pkgerrors.ErrCodeValidation))
	big := make([]byte, DefaultMaxMessageBytes+1)
	assert.True(t, pkgerrors.IsCode(p.Publish(ctx, &ProducerMessage{Topic: "t", Value: big}), pkgerrors.ErrCodeValidation))
}

func TestProducer_PublishFailure(t *testing.T) {
	w := &mockKafkaWriter{writeFunc: func(context.Context, ...kafka.Message) error {
		return errors.New("leader not available")
	}}
	p := newProducer(w, nil)

	err := p.Publish(context.Background(), &ProducerMessage{Topic: "t", Value: []byte("v")})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeMessagingError))
	assert.Equal(t, int64(1), p.Metrics().MessagesFailed.Load())
}

func TestProducer_Close(t *testing.T) {
	w := &mockKafkaWriter{}
	p := newProducer(w, nil)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.Equal(t, 1, w.closed)
	assert.Equal(t, ErrProducerClosed, p.Publish(context.Background(), &ProducerMessage{Topic: "t", Value: []byte("v")}))
}

// ─────────────────────────────────────────────────────────────────────────────
// Consumer
// ─────────────────────────────────────────────────────────────────────────────

func TestNewConsumer_Validation(t *testing.T) {
	_, err := NewConsumer(config.KafkaConfig{}, []string{"t"}, nil)
	assert.Error(t, err)
	_, err = NewConsumer(config.KafkaConfig{Brokers: []string{"b:9092"}}, []string{"t"}, nil)
	assert.Error(t, err)
	_, err = NewConsumer(config.KafkaConfig{Brokers: []string{"b:9092"}, GroupID: "g"}, nil, nil)
	assert.Error(t, err)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond)
}

func TestConsumer_DispatchesAndCommits(t *testing.T) {
	r := &mockKafkaReader{queue: []kafka.Message{
		{Topic: "requests", Offset: 1, Value: []byte("a"), Headers: []kafka.Header{{Key: "h", Value: []byte("v")}}},
		{Topic: "unknown", Offset: 2, Value: []byte("b")},
	}}
	c := newConsumer(r, "g", RetryConfig{}, nil)

	var got atomic.Value
	var outcomes atomic.Int32
	c.OnOutcome(func(topic string, err error) {
		assert.Equal(t, "requests", topic)
		assert.NoError(t, err)
		outcomes.Add(1)
	})
	c.Subscribe("requests", func(_ context.Context, msg *Message) error {
		got.Store(msg)
		return nil
	})

	require.NoError(t, c.Start(context.Background()))
	assert.Equal(t, ErrAlreadyRunning, c.Start(context.Background()))

	waitFor(t, func() bool { return len(r.commits()) == 2 })
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	msg := got.Load().(*Message)
	assert.Equal(t, "a", string(msg.Value))
	assert.Equal(t, "v", msg.Headers["h"])
	assert.Equal(t, []int64{1, 2}, r.commits())
	assert.Equal(t, int32(1), outcomes.Load())
	assert.Equal(t, int64(2), c.Metrics().MessagesConsumed.Load())
	assert.Equal(t, int64(1), c.Metrics().MessagesProcessed.Load())
	assert.True(t, r.closed)
}

func TestConsumer_RetriesThenLeavesUncommitted(t *testing.T) {
	r := &mockKafkaReader{queue: []kafka.Message{{Topic: "requests", Offset: 7, Value: []byte("a")}}}
	c := newConsumer(r, "g", RetryConfig{MaxRetries: 2, RetryBackoff: time.Millisecond}, nil)

	var calls atomic.Int32
	c.Subscribe("requests", func(context.Context, *Message) error {
		calls.Add(1)
		return errors.New("downstream unavailable")
	})
	require.NoError(t, c.Start(context.Background()))
	waitFor(t, func() bool { return c.Metrics().MessagesFailed.Load() == 1 })
	require.NoError(t, c.Close())

	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, int64(2), c.Metrics().MessagesRetried.Load())
	assert.Empty(t, r.commits())
}

func TestConsumer_CommitOnError(t *testing.T) {
	r := &mockKafkaReader{queue: []kafka.Message{{Topic: "requests", Offset: 9, Value: []byte("a")}}}
	c := newConsumer(r, "g", RetryConfig{CommitOnError: true}, nil)
	c.Subscribe("requests", func(context.Context, *Message) error { return errors.New("boom") })

	require.NoError(t, c.Start(context.Background()))
	waitFor(t, func() bool { return len(r.commits()) == 1 })
	require.NoError(t, c.Close())
	assert.Equal(t, []int64{9}, r.commits())
}

func TestConsumer_ProcessMessageRetrySucceeds(t *testing.T) {
	c := newConsumer(&mockKafkaReader{}, "g", RetryConfig{MaxRetries: 3, RetryBackoff: time.Millisecond}, nil)
	attempts := 0
	err := c.processMessage(context.Background(), &Message{}, func(context.Context, *Message) error {
		attempts++
		if attempts < 2 {
			return errors.New("fail")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, int64(1), c.Metrics().MessagesRetried.Load())
}

func TestConsumer_CloseWithoutStart(t *testing.T) {
	r := &mockKafkaReader{}
	c := newConsumer(r, "g", RetryConfig{}, nil)
	require.NoError(t, c.Close())
	assert.True(t, r.closed)
}

// ─────────────────────────────────────────────────────────────────────────────
// Envelopes and topics
// ─────────────────────────────────────────────────────────────────────────────

func TestEventEnvelope_RoundTrip(t *testing.T) {
	env, err := NewEventEnvelope(EventAcquisitionRequested, ServiceName, AcquisitionRequest{Names: []string{"ethanol"}})
	require.NoError(t, err)
	assert.Len(t, env.EventID, 36)
	assert.Equal(t, SchemaVersion, env.SchemaVersion)

	pm, err := env.ToMessage("requests", []byte("key"))
	require.NoError(t, err)
	assert.Equal(t, EventAcquisitionRequested, pm.Headers["event_type"])
	assert.Equal(t, ServiceName, pm.Headers["source_service"])

	decoded, err := MessageToEventEnvelope(&Message{Value: pm.Value})
	require.NoError(t, err)
	var req AcquisitionRequest
	require.NoError(t, decoded.DecodePayload(&req))
	assert.Equal(t, []string{"ethanol"}, req.Names)
}

func TestEventEnvelope_DecodeErrors(t *testing.T) {
	_, err := MessageToEventEnvelope(&Message{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeValidation))

	_, err = MessageToEventEnvelope(&Message{Value: []byte("{not json")})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeSerialization))

	env := &EventEnvelope{EventID: "e1"}
	assert.True(t, pkgerrors.IsCode(env.DecodePayload(&AcquisitionRequest{}), pkgerrors.ErrCodeValidation))
}

type mockKafkaConn struct {
	existing map[string]bool
	created  []kafka.TopicConfig
	err      error
}

func (m *mockKafkaConn) CreateTopics(topics ...kafka.TopicConfig) error {
	if m.err != nil {
		return m.err
	}
	m.created = append(m.created, topics...)
	return nil
}

func (m *mockKafkaConn) ReadPartitions(topics ...string) ([]kafka.Partition, error) {
	if m.existing[topics[0]] {
		return []kafka.Partition{{Topic: topics[0]}}, nil
	}
	return nil, kafka.UnknownTopicOrPartition
}

func (m *mockKafkaConn) Close() error { return nil }

func TestTopicManager_EnsureTopics(t *testing.T) {
	conn := &mockKafkaConn{existing: map[string]bool{"req": true}}
	m := &TopicManager{conn: conn, logger: testutil.NewMockLogger()}

	require.NoError(t, m.EnsureTopics(DefaultTopics("req", "res")))
	require.Len(t, conn.created, 1)
	assert.Equal(t, "res", conn.created[0].Topic)
	assert.Equal(t, "retention.ms", conn.created[0].ConfigEntries[0].ConfigName)

	assert.Error(t, m.EnsureTopics([]TopicConfig{{Name: "x"}}))

	conn.err = kafka.TopicAlreadyExists
	assert.NoError(t, m.EnsureTopics([]TopicConfig{{Name: "new", NumPartitions: 1, ReplicationFactor: 1}}))
	conn.err = errors.New("not controller")
	assert.True(t, pkgerrors.IsCode(m.EnsureTopics([]TopicConfig{{Name: "new", NumPartitions: 1, ReplicationFactor: 1}}),
		pkgerrors.ErrCodeMessagingError))
	assert.NoError(t, m.Close())
}

// ─────────────────────────────────────────────────────────────────────────────
// Acquisition adapters
// ─────────────────────────────────────────────────────────────────────────────

type recordingPublisher struct {
	msgs []*ProducerMessage
	err  error
}

func (r *recordingPublisher) Publish(_ context.Context, msg *ProducerMessage) error {
	r.msgs = append(r.msgs, msg)
	return r.err
}

func TestIdentifierPublisher(t *testing.T) {
	rp := &recordingPublisher{}
	ip := NewIdentifierPublisher(rp, "results")

	ids := []acquisition.Identifier{{Substance: "Ethanol", Found: true, CASNumber: "64-17-5", CID: 702}}
	require.NoError(t, ip.PublishIdentifiers(context.Background(), "batch-1", ids))
	require.Len(t, rp.msgs, 1)
	assert.Equal(t, "results", rp.msgs[0].Topic)
	assert.Equal(t, "batch-1", string(rp.msgs[0].Key))

	var env EventEnvelope
	require.NoError(t, json.Unmarshal(rp.msgs[0].Value, &env))
	assert.Equal(t, EventIdentifiersAcquired, env.EventType)
	var payload IdentifiersPayload
	require.NoError(t, env.DecodePayload(&payload))
	assert.Equal(t, "batch-1", payload.BatchID)
	assert.Equal(t, ids, payload.Identifiers)
}

func TestPublishRequest(t *testing.T) {
	rp := &recordingPublisher{}
	id, err := PublishRequest(context.Background(), rp, "requests", []string{"ethanol", "water"})
	require.NoError(t, err)
	require.Len(t, rp.msgs, 1)
	assert.Equal(t, id, string(rp.msgs[0].Key))

	_, err = PublishRequest(context.Background(), rp, "requests", nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeValidation))
	_, err = PublishRequest(context.Background(), rp, "requests", []string{""})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeValidation))
}

type stubService struct {
	names []string
	err   error
}

func (s *stubService) Acquire(_ context.Context, names []string) (*acquisition.Batch, error) {
	s.names = names
	if s.err != nil {
		return nil, s.err
	}
	return &acquisition.Batch{ID: "b1", Identifiers: []acquisition.Identifier{{Substance: names[0], Found: true}}}, nil
}

func requestMessage(t *testing.T, eventType string, payload interface{}) *Message {
	t.Helper()
	env, err := NewEventEnvelope(eventType, "test", payload)
	require.NoError(t, err)
	pm, err := env.ToMessage("requests", nil)
	require.NoError(t, err)
	return &Message{Topic: pm.Topic, Value: pm.Value}
}

func TestAcquisitionHandler(t *testing.T) {
	svc := &stubService{}
	log := testutil.NewMockLogger()
	h := NewAcquisitionHandler(svc, log)

	require.NoError(t, h(context.Background(), requestMessage(t, EventAcquisitionRequested, AcquisitionRequest{Names: []string{"ethanol"}})))
	assert.Equal(t, []string{"ethanol"}, svc.names)
	assert.True(t, log.HasMessage("info", "acquisition request handled"))
}

func TestAcquisitionHandler_DropsBadInput(t *testing.T) {
	svc := &stubService{}
	log := testutil.NewMockLogger()
	h := NewAcquisitionHandler(svc, log)
	ctx := context.Background()

	assert.NoError(t, h(ctx, &Message{Value: []byte("garbage")}))
	assert.True(t, log.HasMessage("warn", "dropping undecodable message"))

	assert.NoError(t, h(ctx, requestMessage(t, EventIdentifiersAcquired, AcquisitionRequest{Names: []string{"x"}})))
	assert.True(t, log.HasMessage("warn", "dropping unexpected event type"))

	assert.NoError(t, h(ctx, requestMessage(t, EventAcquisitionRequested, map[string]int{"names": 3})))
	assert.True(t, log.HasMessage("warn", "dropping malformed request"))

	assert.NoError(t, h(ctx, requestMessage(t, EventAcquisitionRequested, AcquisitionRequest{})))
	assert.True(t, log.HasMessage("warn", "dropping invalid request"))

	assert.Nil(t, svc.names)
}

func TestAcquisitionHandler_ServiceFailureIsRetried(t *testing.T) {
	svc := &stubService{err: pkgerrors.New(pkgerrors.ErrCodeStorageError, "archive down")}
	h := NewAcquisitionHandler(svc, nil)

	err := h(context.Background(), requestMessage(t, EventAcquisitionRequested, AcquisitionRequest{Names: []string{"x"}}))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeStorageError))

	svc.err = pkgerrors.New(pkgerrors.ErrCodeValidation, "no names")
	assert.NoError(t, h(context.Background(), requestMessage(t, EventAcquisitionRequested, AcquisitionRequest{Names: []string{" "}})))
}
