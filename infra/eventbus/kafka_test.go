package eventbus

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/amirasaad/giftfund/pkg/config"
	"github.com/amirasaad/giftfund/pkg/domain/custodial"
	"github.com/amirasaad/giftfund/pkg/eventbus"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBrokers(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, parseBrokers(" a:9092, ,b:9092 "))
	assert.Empty(t, parseBrokers(""))
}

func TestTopicNames(t *testing.T) {
	assert.Equal(t, "giftfund.custodial.custodial.card_issued",
		topicNameFor("", custodial.EventCardIssued))
	assert.Equal(t, "gf.custodial.account_created",
		topicNameFor(" gf ", custodial.EventAccountCreated))
	assert.Equal(t, "gf.dlq.custodial.card_issued",
		dlqTopicNameFor("gf", custodial.EventCardIssued))
}

func TestNewWithKafka_RequiresBrokers(t *testing.T) {
	_, err := NewWithKafka(&config.Kafka{Brokers: " , "}, "g", CustodialEventTypes(), nil)
	require.Error(t, err)
	_, err = NewWithKafka(nil, "g", CustodialEventTypes(), nil)
	require.Error(t, err)
}

func TestKafkaDialer(t *testing.T) {
	dialer, transport, err := newKafkaDialer(&config.Kafka{})
	require.NoError(t, err)
	assert.Nil(t, transport)
	assert.Nil(t, dialer.TLS)
	assert.Nil(t, dialer.SASLMechanism)

	dialer, transport, err = newKafkaDialer(&config.Kafka{
		SASLUsername: "svc",
		SASLPassword: "pw",
		TLSEnabled:   true,
	})
	require.NoError(t, err)
	require.NotNil(t, transport)
	assert.NotNil(t, dialer.TLS)
	assert.Equal(t, "PLAIN", dialer.SASLMechanism.Name())

	_, _, err = newKafkaDialer(&config.Kafka{SASLUsername: "svc"})
	assert.Error(t, err)

	_, _, err = newKafkaDialer(&config.Kafka{TLSEnabled: true, TLSCAFile: "/does/not/exist.pem"})
	assert.Error(t, err)
}

func TestKafkaProcess(t *testing.T) {
	bus := &KafkaEventBus{
		typeFactories: CustodialEventTypes(),
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	payload, err := json.Marshal(custodial.CardIssued{UserID: "u1", CardID: "ic_1"})
	require.NoError(t, err)
	value, err := json.Marshal(envelope{Type: custodial.EventCardIssued, Payload: payload})
	require.NoError(t, err)

	var got eventbus.Event
	handler := func(_ context.Context, e eventbus.Event) error {
		got = e
		return nil
	}

	t.Run("dispatches decoded event", func(t *testing.T) {
		commit, err := bus.process(context.Background(), custodial.EventCardIssued,
			kafka.Message{Value: value}, handler)
		require.NoError(t, err)
		assert.True(t, commit)
		require.NotNil(t, got)
		assert.Equal(t, "ic_1", got.(*custodial.CardIssued).CardID)
	})

	t.Run("drops garbage", func(t *testing.T) {
		got = nil
		commit, err := bus.process(context.Background(), custodial.EventCardIssued,
			kafka.Message{Value: []byte("{not json")}, handler)
		require.NoError(t, err)
		assert.True(t, commit)
		assert.Nil(t, got)
	})

	t.Run("drops mismatched type", func(t *testing.T) {
		got = nil
		commit, err := bus.process(context.Background(), custodial.EventAccountCreated,
			kafka.Message{Value: value}, handler)
		require.NoError(t, err)
		assert.True(t, commit)
		assert.Nil(t, got)
	})

	t.Run("keeps failed message when dlq is unreachable", func(t *testing.T) {
		commit, err := bus.process(context.Background(), custodial.EventCardIssued,
			kafka.Message{Value: value}, func(context.Context, eventbus.Event) error {
				panic("handler bug")
			})
		assert.Error(t, err)
		assert.False(t, commit)
	})
}
