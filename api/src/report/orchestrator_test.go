package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/RIKUY-ORG/Rikuy/api/src/admission"
	"github.com/RIKUY-ORG/Rikuy/api/src/chain"
	"github.com/RIKUY-ORG/Rikuy/api/src/database"
	"github.com/RIKUY-ORG/Rikuy/api/src/external"
	"github.com/RIKUY-ORG/Rikuy/api/src/ledger"
	"github.com/RIKUY-ORG/Rikuy/api/src/model"
	"github.com/RIKUY-ORG/Rikuy/api/src/relay"
	"github.com/RIKUY-ORG/Rikuy/pkg/apperror"
	"github.com/RIKUY-ORG/Rikuy/pkg/zkp"
	"github.com/RIKUY-ORG/Rikuy/pkg/zkp/zkptest"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	laPazLat  = -16.5
	laPazLong = -68.15
	knownRoot = 100
	testScope = 42
)

type knownRoots map[string]bool

func (k knownRoots) IsKnownRoot(_ context.Context, root *big.Int) (bool, error) {
	return k[root.String()], nil
}

type fakeBlobs struct {
	calls atomic.Int32
	err   error
}

func (f *fakeBlobs) Upload(_ context.Context, data []byte, _ string) (*external.BlobRef, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	hash := external.ContentHash(data)
	return &external.BlobRef{Id: "bafy" + hash[:12], Url: "https://ipfs.test/ipfs/bafy" + hash[:12], ContentHash: hash}, nil
}

type fakeAI struct {
	flagged     bool
	moderateErr error
	describeErr error
	severity    int
}

func (f *fakeAI) Describe(context.Context, string, model.Category) (*external.Analysis, error) {
	if f.describeErr != nil {
		return nil, f.describeErr
	}
	return &external.Analysis{Description: "Bache profundo en la avenida", Tags: []string{"bache", "calle"}, Severity: f.severity}, nil
}

func (f *fakeAI) Moderate(context.Context, string) (bool, error) {
	if f.moderateErr != nil {
		return false, f.moderateErr
	}
	return !f.flagged, nil
}

type fakeRelay struct {
	mu        sync.Mutex
	calls     int
	fail      error
	pending   bool
	confirmed bool
}

func (f *fakeRelay) Submit(context.Context, chain.Intent) (*relay.SubmitResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail != nil {
		return nil, f.fail
	}
	if f.pending {
		return &relay.SubmitResult{TxHash: "0xpending", Pending: true}, nil
	}
	return &relay.SubmitResult{TxHash: "0xabc", BlockNumber: 10, GasUsed: 21000, GasCost: big.NewInt(42000)}, nil
}

func (f *fakeRelay) IsConfirmed(context.Context, string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.confirmed
}

func (f *fakeRelay) setFail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = err
}

type fakeEvents struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeEvents) Enqueue(_ context.Context, eventType, aggregateId string, _ any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, eventType+":"+aggregateId)
	return nil
}

type fixture struct {
	keys       *zkptest.Keys
	nullifiers *ledger.NullifierLedger
	blobs      *fakeBlobs
	ai         *fakeAI
	relay      *fakeRelay
	events     *fakeEvents
	records    *external.RecordStore
	orch       *Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureMode(t, false)
}

func newFixtureMode(t *testing.T, devMode bool) *fixture {
	t.Helper()
	db := database.NewTestDatabase(t)
	keys := zkptest.NewKeys()
	verifier, err := zkp.NewVerifier(devMode, keys.VK, knownRoots{"100": true}, nil)
	require.NoError(t, err)

	records, err := external.OpenRecordStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = records.Close() })

	f := &fixture{
		keys:       keys,
		nullifiers: ledger.NewNullifierLedger(db, 0),
		blobs:      &fakeBlobs{},
		ai:         &fakeAI{severity: 7},
		relay:      &fakeRelay{},
		events:     &fakeEvents{},
		records:    records,
	}
	f.orch = NewOrchestrator(Collaborators{
		Gate:    admission.NewGate(verifier, f.nullifiers, nil),
		Blobs:   f.blobs,
		AI:      f.ai,
		Records: records,
		Content: ledger.NewContentIndex(db, 0),
		Relay:   f.relay,
		Events:  f.events,
		Chain: chain.Descriptor{
			ChainId:   big.NewInt(534351),
			RpcUrl:    "http://localhost:8545",
			RikuyCore: common.HexToAddress("0x1000000000000000000000000000000000000001"),
			Semaphore: common.HexToAddress("0x2000000000000000000000000000000000000002"),
			GroupId:   big.NewInt(1),
		},
	}, nil)
	return f
}

func (f *fixture) proof(nullifier int64) json.RawMessage {
	return zkptest.SubmissionJSON(f.keys.Submission(nullifier, knownRoot, 7, testScope))
}

func photo(seed byte) []byte {
	return append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{seed}, 64)...)
}

func request(proof json.RawMessage, img []byte) SubmitRequest {
	return SubmitRequest{
		Photo:       img,
		ContentType: "image/png",
		Category:    model.CategoryInfraestructura,
		Lat:         laPazLat,
		Long:        laPazLong,
		Proof:       proof,
	}
}

func (f *fixture) consumed(t *testing.T, nullifier string) bool {
	t.Helper()
	used, err := f.nullifiers.IsConsumed(context.Background(), "42", nullifier)
	require.NoError(t, err)
	return used
}

func TestSubmitHappyPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.orch.Submit(ctx, request(f.proof(1), photo(1)))
	require.NoError(t, err)
	assert.NotEmpty(t, res.ReportId)
	assert.Equal(t, model.ReportConfirmed, res.Status)
	assert.Equal(t, 170, res.Points)
	assert.Equal(t, "0xabc", res.Receipt.TxHash)
	assert.Equal(t, "42000", res.Receipt.GasCost)
	assert.True(t, f.consumed(t, "1"))
	assert.Equal(t, []string{model.EventReportCreated + ":" + res.ReportId}, f.events.events)

	view, err := f.orch.Get(ctx, res.ReportId)
	require.NoError(t, err)
	assert.Equal(t, model.ReportConfirmed, view.Status)
	assert.Equal(t, -16.5, view.Record.Location.Lat)
	assert.Equal(t, LocationPrecision, view.Record.Location.Precision)
	assert.Equal(t, "Bache profundo en la avenida", view.Record.Evidence.Description)
	assert.True(t, view.Record.Evidence.AIGenerated)
	assert.Equal(t, "1", view.Record.Verification.Nullifier)
	assert.True(t, view.Record.Verification.Verified)
	assert.Equal(t, res.Receipt.RecordId, view.Receipt.RecordId)
}

func TestBypassedProofIsNotMarkedVerified(t *testing.T) {
	f := newFixtureMode(t, true)
	ctx := context.Background()

	res, err := f.orch.Submit(ctx, request(f.proof(1), photo(1)))
	require.NoError(t, err)

	view, err := f.orch.Get(ctx, res.ReportId)
	require.NoError(t, err)
	assert.False(t, view.Record.Verification.Verified)
}

func TestUserDescriptionWinsOverAI(t *testing.T) {
	f := newFixture(t)
	req := request(f.proof(1), photo(1))
	req.Description = "  Poste caído  "

	res, err := f.orch.Submit(context.Background(), req)
	require.NoError(t, err)
	view, err := f.orch.Get(context.Background(), res.ReportId)
	require.NoError(t, err)
	assert.Equal(t, "Poste caído", view.Record.Evidence.Description)
	assert.False(t, view.Record.Evidence.AIGenerated)
}

func TestReplayIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.orch.Submit(ctx, request(f.proof(1), photo(1)))
	require.NoError(t, err)

	req := request(f.proof(1), photo(2))
	req.Category = model.CategoryBasura
	_, err = f.orch.Submit(ctx, req)
	assert.True(t, apperror.Is(err, apperror.KindNullifierReused), "got %v", err)
	assert.EqualValues(t, 1, f.blobs.calls.Load())
}

func TestConcurrentReplayHasOneWinner(t *testing.T) {
	f := newFixture(t)
	proof := f.proof(9)

	const racers = 6
	var wg sync.WaitGroup
	var wins, replays atomic.Int32
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.orch.Submit(context.Background(), request(proof, photo(byte(10+i))))
			switch {
			case err == nil:
				wins.Add(1)
			case apperror.Is(err, apperror.KindNullifierReused):
				replays.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, wins.Load())
	assert.EqualValues(t, racers-1, replays.Load())
}

func TestGeofenceRejectsBeforeUpload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := request(f.proof(1), photo(1))
	req.Lat, req.Long = 0, 0
	_, err := f.orch.Submit(ctx, req)
	assert.True(t, apperror.Is(err, apperror.KindGeofence), "got %v", err)
	assert.Zero(t, f.blobs.calls.Load())
	assert.False(t, f.consumed(t, "1"))

	_, err = f.orch.Submit(ctx, request(f.proof(1), photo(1)))
	require.NoError(t, err, "the same proof stays usable after a geofence rejection")
}

func TestDuplicateImage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.orch.Submit(ctx, request(f.proof(1), photo(1)))
	require.NoError(t, err)

	_, err = f.orch.Submit(ctx, request(f.proof(2), photo(1)))
	assert.True(t, apperror.Is(err, apperror.KindDuplicateContent), "got %v", err)
	assert.EqualValues(t, 1, f.blobs.calls.Load())
	assert.False(t, f.consumed(t, "2"))
}

func TestRelayFailureDoesNotBurnNullifier(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.relay.setFail(apperror.TransactionFailed(errors.New("reverted")))
	_, err := f.orch.Submit(ctx, request(f.proof(1), photo(1)))
	assert.True(t, apperror.Is(err, apperror.KindTransactionFailed), "got %v", err)
	assert.False(t, f.consumed(t, "1"))

	f.relay.setFail(nil)
	res, err := f.orch.Submit(ctx, request(f.proof(1), photo(1)))
	require.NoError(t, err, "retry with the same proof and photo succeeds")
	assert.NotEmpty(t, res.ReportId)
	assert.True(t, f.consumed(t, "1"))
}

func TestInsufficientFundsSurfaces(t *testing.T) {
	f := newFixture(t)
	f.relay.setFail(apperror.InsufficientFunds(nil))

	_, err := f.orch.Submit(context.Background(), request(f.proof(1), photo(1)))
	assert.True(t, apperror.Is(err, apperror.KindInsufficientFunds))
	assert.False(t, f.consumed(t, "1"))
}

func TestModeration(t *testing.T) {
	t.Run("flagged content is rejected", func(t *testing.T) {
		f := newFixture(t)
		f.ai.flagged = true
		_, err := f.orch.Submit(context.Background(), request(f.proof(1), photo(1)))
		assert.True(t, apperror.Is(err, apperror.KindContentModeration))
		assert.Zero(t, f.relay.calls)
	})

	t.Run("moderation outage fails closed", func(t *testing.T) {
		f := newFixture(t)
		f.ai.moderateErr = errors.New("timeout")
		_, err := f.orch.Submit(context.Background(), request(f.proof(1), photo(1)))
		assert.True(t, apperror.Is(err, apperror.KindExternalService))
		assert.False(t, f.consumed(t, "1"))
	})
}

func TestDescribeFailureFallsBack(t *testing.T) {
	f := newFixture(t)
	f.ai.describeErr = apperror.ExternalService("ai", errors.New("quota"))

	res, err := f.orch.Submit(context.Background(), request(f.proof(1), photo(1)))
	require.NoError(t, err)
	assert.Equal(t, EstimateReward(model.CategoryInfraestructura, fallbackSeverity), res.Points)

	view, err := f.orch.Get(context.Background(), res.ReportId)
	require.NoError(t, err)
	assert.Equal(t, fallbackDescription, view.Record.Evidence.Description)
	assert.Equal(t, []string{"pendiente"}, view.Record.Evidence.Tags)
}

func TestUploadFailureIsExternalAndRetryable(t *testing.T) {
	f := newFixture(t)
	f.blobs.err = errors.New("connection refused")

	_, err := f.orch.Submit(context.Background(), request(f.proof(1), photo(1)))
	assert.True(t, apperror.Is(err, apperror.KindExternalService))

	f.blobs.err = nil
	_, err = f.orch.Submit(context.Background(), request(f.proof(1), photo(1)))
	require.NoError(t, err)
}

func TestPendingConfirmation(t *testing.T) {
	f := newFixture(t)
	f.relay.pending = true

	res, err := f.orch.Submit(context.Background(), request(f.proof(1), photo(1)))
	require.NoError(t, err)
	assert.Equal(t, model.ReportPending, res.Status)
	assert.Equal(t, pendingMessage, res.Message)
	assert.True(t, f.consumed(t, "1"))

	view, err := f.orch.Get(context.Background(), res.ReportId)
	require.NoError(t, err)
	assert.Equal(t, model.ReportPending, view.Status)

	f.relay.confirmed = true
	view, err = f.orch.Get(context.Background(), res.ReportId)
	require.NoError(t, err)
	assert.Equal(t, model.ReportConfirmed, view.Status)
}

func TestSubmitValidatesInput(t *testing.T) {
	f := newFixture(t)

	req := request(f.proof(1), photo(1))
	req.Category = 9
	_, err := f.orch.Submit(context.Background(), req)
	assert.True(t, apperror.Is(err, apperror.KindValidation))

	_, err = f.orch.Submit(context.Background(), request(json.RawMessage(`{"proof":[1,2]}`), photo(1)))
	assert.True(t, apperror.Is(err, apperror.KindMalformedProof))

	_, err = f.orch.Submit(context.Background(), request(zkptest.ZeroSubmissionJSON(), photo(1)))
	assert.True(t, apperror.Is(err, apperror.KindInvalidProof))
	assert.Zero(t, f.blobs.calls.Load())
}

func TestGetUnknownReport(t *testing.T) {
	f := newFixture(t)
	_, err := f.orch.Get(context.Background(), "missing")
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
}

func TestUnanchoredRecordsAreHidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.records.Write(ctx, model.ReportRecord{
		ReportId:  "orphan",
		Category:  model.ReportCategory{Id: model.CategoryOtro, Name: model.CategoryOtro.Name()},
		Location:  model.ReportLocation{Lat: laPazLat, Long: laPazLong},
		Timestamp: time.Now().UTC(),
	})
	require.NoError(t, err)

	_, err = f.orch.Get(ctx, "orphan")
	assert.True(t, apperror.Is(err, apperror.KindNotFound))

	near, err := f.orch.Nearby(ctx, NearbyQuery{Lat: laPazLat, Long: laPazLong})
	require.NoError(t, err)
	assert.Empty(t, near)
}

func TestNearbyAndRecent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	submit := func(nullifier int64, seed byte, cat model.Category, lat, long float64) string {
		req := request(f.proof(nullifier), photo(seed))
		req.Category, req.Lat, req.Long = cat, lat, long
		res, err := f.orch.Submit(ctx, req)
		require.NoError(t, err)
		return res.ReportId
	}
	close1 := submit(1, 1, model.CategoryBasura, -16.50, -68.15)
	close2 := submit(2, 2, model.CategoryInfraestructura, -16.52, -68.13)
	far := submit(3, 3, model.CategoryBasura, -17.78, -63.18) // Santa Cruz

	near, err := f.orch.Nearby(ctx, NearbyQuery{Lat: -16.5, Long: -68.15, RadiusKm: 10})
	require.NoError(t, err)
	require.Len(t, near, 2)
	assert.Equal(t, close1, near[0].ReportId)
	assert.Equal(t, close2, near[1].ReportId)
	assert.InDelta(t, 0, *near[0].DistanceKm, 0.01)

	basura := model.CategoryBasura
	near, err = f.orch.Nearby(ctx, NearbyQuery{Lat: -16.5, Long: -68.15, RadiusKm: 10, Category: &basura})
	require.NoError(t, err)
	require.Len(t, near, 1)
	assert.Equal(t, close1, near[0].ReportId)

	near, err = f.orch.Nearby(ctx, NearbyQuery{Lat: -16.5, Long: -68.15, RadiusKm: 10, Limit: 1})
	require.NoError(t, err)
	assert.Len(t, near, 1)

	_, err = f.orch.Nearby(ctx, NearbyQuery{Lat: 40, Long: -3})
	assert.True(t, apperror.Is(err, apperror.KindGeofence))

	recent, err := f.orch.Recent(ctx, 10, &basura)
	require.NoError(t, err)
	ids := []string{}
	for _, s := range recent {
		ids = append(ids, s.ReportId)
	}
	assert.ElementsMatch(t, []string{close1, far}, ids)
}
