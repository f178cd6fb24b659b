package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"refwallet/events"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockMessagePublisher struct {
	mock.Mock
}

func (m *mockMessagePublisher) Publish(ctx context.Context, subject string, data []byte) error {
	args := m.Called(ctx, subject, data)
	return args.Error(0)
}

func TestSubjectFor(t *testing.T) {
	assert.Equal(t, "refwallet.events.referral_applied", SubjectFor(events.EventTypeReferralApplied))
	assert.Len(t, AllSubjects(), len(events.AllEventTypes()))
	assert.Contains(t, AllSubjects(), "refwallet.events.credit_redeemed")
}

func TestNATSEventPublisher_Forward(t *testing.T) {
	client := new(mockMessagePublisher)
	publisher := NewNATSEventPublisher(client)
	publisher.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }

	event := events.CreditRedeemedEvent{
		Email:      "alice@example.com",
		Amount:     decimal.RequireFromString("12.5"),
		Sport:      "football",
		NewBalance: decimal.RequireFromString("7.5"),
	}

	var sent []byte
	client.On("Publish", mock.Anything, "refwallet.events.credit_redeemed", mock.Anything).
		Run(func(args mock.Arguments) { sent = args.Get(2).([]byte) }).
		Return(nil)

	require.NoError(t, publisher.Forward(context.Background(), event))
	client.AssertExpectations(t)

	var envelope EventEnvelope
	require.NoError(t, json.Unmarshal(sent, &envelope))
	assert.Equal(t, "credit_redeemed", envelope.EventType)
	assert.Equal(t, "refwallet", envelope.SourceService)
	_, err := uuid.Parse(envelope.EventID)
	assert.NoError(t, err)

	var payload events.CreditRedeemedEvent
	require.NoError(t, json.Unmarshal(envelope.Payload, &payload))
	assert.Equal(t, "alice@example.com", payload.Email)
	assert.True(t, payload.Amount.Equal(event.Amount))
}

func TestNATSEventPublisher_ForwardError(t *testing.T) {
	client := new(mockMessagePublisher)
	client.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("nats: timeout"))

	publisher := NewNATSEventPublisher(client)
	err := publisher.Forward(context.Background(), events.CodeAssignedEvent{Email: "a@example.com", Code: "A-AAAAA"})
	assert.ErrorContains(t, err, "nats: timeout")
}

func TestNATSEventPublisher_AttachForwardsBusEvents(t *testing.T) {
	client := new(mockMessagePublisher)
	done := make(chan struct{})
	client.On("Publish", mock.Anything, "refwallet.events.code_assigned", mock.Anything).
		Run(func(mock.Arguments) { close(done) }).
		Return(nil).Once()

	bus := events.NewBus()
	NewNATSEventPublisher(client).Attach(bus)

	bus.Emit(context.Background(), events.CodeAssignedEvent{Email: "a@example.com", Code: "A-AAAAA"})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("event was not forwarded")
	}
	client.AssertExpectations(t)
}

func TestNATSEventPublisher_EnvelopeIDsAreUnique(t *testing.T) {
	publisher := NewNATSEventPublisher(new(mockMessagePublisher))

	a, err := publisher.NewEnvelope(events.CodeAssignedEvent{Code: "A-AAAAA"})
	require.NoError(t, err)
	b, err := publisher.NewEnvelope(events.CodeAssignedEvent{Code: "A-AAAAA"})
	require.NoError(t, err)

	assert.NotEqual(t, a.EventID, b.EventID)
}
