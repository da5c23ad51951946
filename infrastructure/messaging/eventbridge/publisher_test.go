package eventbridge_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"artion-backend/domain/events"
	"artion-backend/infrastructure/messaging/eventbridge"
)

type fakeBus struct {
	calls  []*awseventbridge.PutEventsInput
	failed int32
	err    error
}

func (f *fakeBus) PutEvents(ctx context.Context, in *awseventbridge.PutEventsInput, _ ...func(*awseventbridge.Options)) (*awseventbridge.PutEventsOutput, error) {
	f.calls = append(f.calls, in)
	if f.err != nil {
		return nil, f.err
	}
	out := &awseventbridge.PutEventsOutput{FailedEntryCount: f.failed}
	for range in.Entries {
		out.Entries = append(out.Entries, types.PutEventsResultEntry{})
	}
	if f.failed > 0 {
		out.Entries[0].ErrorCode = aws.String("InternalFailure")
	}
	return out, nil
}

var ts = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestPublisher_Publish(t *testing.T) {
	// Arrange
	bus := &fakeBus{}
	publisher := eventbridge.NewPublisher(bus, "artion-bus", zap.NewNop())
	event := events.NewBundleCommitted("saga-1", "session-1", "bundle-1", ts)

	// Act
	err := publisher.Publish(context.Background(), event)

	// Assert
	require.NoError(t, err)
	require.Len(t, bus.calls, 1)
	entry := bus.calls[0].Entries[0]
	assert.Equal(t, "artion-bus", aws.ToString(entry.EventBusName))
	assert.Equal(t, events.Source, aws.ToString(entry.Source))
	assert.Equal(t, events.TypeBundleCommitted, aws.ToString(entry.DetailType))

	var detail map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(entry.Detail)), &detail))
	assert.Equal(t, "bundle-1", detail["bundle_id"])
	assert.Equal(t, "saga-1", detail["aggregate_id"])
}

func TestPublisher_BatchesOfTen(t *testing.T) {
	bus := &fakeBus{}
	publisher := eventbridge.NewPublisher(bus, "artion-bus", zap.NewNop())

	batch := make([]events.DomainEvent, 0, 23)
	for i := 0; i < 23; i++ {
		batch = append(batch, events.NewBundleAborted(fmt.Sprintf("saga-%d", i), "s", "commit", "reverted", ts))
	}

	err := publisher.PublishBatch(context.Background(), batch)

	require.NoError(t, err)
	require.Len(t, bus.calls, 3)
	assert.Len(t, bus.calls[0].Entries, 10)
	assert.Len(t, bus.calls[1].Entries, 10)
	assert.Len(t, bus.calls[2].Entries, 3)
}

func TestPublisher_FailedEntries(t *testing.T) {
	bus := &fakeBus{failed: 1}
	publisher := eventbridge.NewPublisher(bus, "artion-bus", zap.NewNop())

	err := publisher.Publish(context.Background(), events.NewBundleCommitted("saga-1", "s", "b", ts))

	assert.ErrorContains(t, err, "1 events failed")
}

func TestPublisher_ClientError(t *testing.T) {
	bus := &fakeBus{err: errors.New("network down")}
	publisher := eventbridge.NewPublisher(bus, "artion-bus", zap.NewNop())

	err := publisher.Publish(context.Background(), events.NewBundleCommitted("saga-1", "s", "b", ts))

	assert.ErrorContains(t, err, "network down")
}

func TestPublisher_EmptyBatch(t *testing.T) {
	bus := &fakeBus{}
	publisher := eventbridge.NewPublisher(bus, "artion-bus", zap.NewNop())

	require.NoError(t, publisher.PublishBatch(context.Background(), nil))
	assert.Empty(t, bus.calls)
}
