package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/RIKUY-ORG/Rikuy/api/src/database"
	"github.com/RIKUY-ORG/Rikuy/api/src/model"
	"github.com/RIKUY-ORG/Rikuy/pkg/utilities"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	mu       sync.Mutex
	fail     error
	messages []model.EventMessage
}

func (f *fakePublisher) Publish(body utilities.Serializable) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	raw, err := body.Serialize()
	if err != nil {
		return err
	}
	var msg model.EventMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return err
	}
	f.messages = append(f.messages, msg)
	return nil
}

func TestOutboxPublishesOnce(t *testing.T) {
	ctx := context.Background()
	repo := NewRepo(database.NewTestDatabase(t))
	pub := &fakePublisher{}
	worker := NewOutboxWorker(repo, pub, "", nil)

	require.NoError(t, repo.Enqueue(ctx, model.EventReportCreated, "r-1", model.ReportCreated{ReportId: "r-1", Status: model.ReportConfirmed}))
	require.NoError(t, repo.Enqueue(ctx, model.EventReportCreated, "r-2", model.ReportCreated{ReportId: "r-2", Status: model.ReportPending}))

	assert.Equal(t, 2, worker.ProcessOutboxEvents())
	assert.Equal(t, 0, worker.ProcessOutboxEvents())

	require.Len(t, pub.messages, 2)
	assert.Equal(t, "r-1", pub.messages[0].AggregateId)
	assert.Equal(t, model.EventReportCreated, pub.messages[0].EventType)
	var payload model.ReportCreated
	require.NoError(t, json.Unmarshal(pub.messages[1].Payload, &payload))
	assert.Equal(t, model.ReportPending, payload.Status)

	pending, err := repo.GetUnprocessedEvents(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestOutboxRetriesThenParks(t *testing.T) {
	ctx := context.Background()
	repo := NewRepo(database.NewTestDatabase(t))
	pub := &fakePublisher{fail: errors.New("broker down")}
	worker := NewOutboxWorker(repo, pub, "", nil)

	require.NoError(t, repo.Enqueue(ctx, model.EventReportCreated, "r-1", model.ReportCreated{ReportId: "r-1"}))

	for i := 1; i < maxRetries; i++ {
		assert.Equal(t, 0, worker.ProcessOutboxEvents())
		pending, err := repo.GetUnprocessedEvents(ctx, 0)
		require.NoError(t, err)
		require.Len(t, pending, 1, "attempt %d", i)
		assert.Equal(t, i, pending[0].Retry)
	}

	worker.ProcessOutboxEvents()
	pending, err := repo.GetUnprocessedEvents(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, pending, "parked after %d failures", maxRetries)
}

func TestOutboxRecoversAfterBrokerReturns(t *testing.T) {
	ctx := context.Background()
	repo := NewRepo(database.NewTestDatabase(t))
	pub := &fakePublisher{fail: errors.New("broker down")}
	worker := NewOutboxWorker(repo, pub, "", nil)

	require.NoError(t, repo.Enqueue(ctx, model.EventReportCreated, "r-1", model.ReportCreated{ReportId: "r-1"}))
	worker.ProcessOutboxEvents()

	pub.fail = nil
	assert.Equal(t, 1, worker.ProcessOutboxEvents())
	assert.Len(t, pub.messages, 1)
}
