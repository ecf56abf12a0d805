// Package report runs the report submission pipeline and serves the stored reports.
package report

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/RIKUY-ORG/Rikuy/api/src/admission"
	"github.com/RIKUY-ORG/Rikuy/api/src/chain"
	"github.com/RIKUY-ORG/Rikuy/api/src/external"
	"github.com/RIKUY-ORG/Rikuy/api/src/ledger"
	"github.com/RIKUY-ORG/Rikuy/api/src/model"
	"github.com/RIKUY-ORG/Rikuy/api/src/relay"
	"github.com/RIKUY-ORG/Rikuy/pkg/apperror"
	"github.com/RIKUY-ORG/Rikuy/pkg/logger"

	"github.com/google/uuid"
)

const (
	DefaultCallTimeout = 30 * time.Second

	fallbackDescription = "Reporte ciudadano pendiente de revisión."
	fallbackSeverity    = 5
	submittedMessage    = "¡Reporte creado exitosamente! Está siendo procesado por la comunidad."
	pendingMessage      = "Tu reporte fue enviado y se confirmará en los próximos minutos."
)

type Gate interface {
	Admit(ctx context.Context, raw json.RawMessage) (*admission.Admission, error)
}

type BlobStore interface {
	Upload(ctx context.Context, data []byte, contentType string) (*external.BlobRef, error)
}

type Analyzer interface {
	Describe(ctx context.Context, imageUrl string, category model.Category) (*external.Analysis, error)
	Moderate(ctx context.Context, imageUrl string) (bool, error)
}

type RecordStore interface {
	Write(ctx context.Context, rec model.ReportRecord) (string, error)
	WriteReceipt(ctx context.Context, receipt model.ReportReceipt) error
	ReadById(ctx context.Context, reportId string) (*model.ReportRecord, error)
	ReadReceipt(ctx context.Context, reportId string) (*model.ReportReceipt, error)
	QueryNear(ctx context.Context, lat, long, radiusKm float64) ([]model.ReportRecord, error)
	Recent(ctx context.Context, limit int, keep func(model.ReportRecord) bool) ([]model.ReportRecord, error)
}

type ContentIndex interface {
	Claim(ctx context.Context, contentHash string) (*ledger.Reservation, error)
	Confirm(ctx context.Context, r *ledger.Reservation, reference string) error
	Release(ctx context.Context, r *ledger.Reservation) error
}

type Relayer interface {
	Submit(ctx context.Context, intent chain.Intent) (*relay.SubmitResult, error)
	IsConfirmed(ctx context.Context, txHash string) bool
}

type EventSink interface {
	Enqueue(ctx context.Context, eventType, aggregateId string, payload any) error
}

// Collaborators are the external services the pipeline sequences.
type Collaborators struct {
	Gate    Gate
	Blobs   BlobStore
	AI      Analyzer
	Records RecordStore
	Content ContentIndex
	Relay   Relayer
	Events  EventSink
	Chain   chain.Descriptor
	Region  Region
	Timeout time.Duration
	Clock   func() time.Time
	NewId   func() string
}

type Orchestrator struct {
	c   Collaborators
	log *logger.Logger
}

func NewOrchestrator(c Collaborators, log *logger.Logger) *Orchestrator {
	if c.Timeout <= 0 {
		c.Timeout = DefaultCallTimeout
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	if c.NewId == nil {
		c.NewId = uuid.NewString
	}
	if c.Region == (Region{}) {
		c.Region = DefaultRegion
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Orchestrator{c: c, log: log.Named("report")}
}

type SubmitRequest struct {
	Photo       []byte
	ContentType string
	Category    model.Category
	Description string
	Lat         float64
	Long        float64
	Accuracy    float64
	Proof       json.RawMessage
}

type Submitted struct {
	ReportId string
	Status   model.ReportStatus
	Points   int
	Message  string
	Receipt  model.ReportReceipt
}

func (s *Submitted) RewardMessage() string { return rewardMessage(s.Points) }

// Submit runs the whole pipeline. The nullifier is consumed only once the record is
// anchored on chain; any earlier failure hands it back so the same proof can be retried.
func (o *Orchestrator) Submit(ctx context.Context, req SubmitRequest) (*Submitted, error) {
	// a client disconnect must not leave a half-relayed report behind
	ctx = context.WithoutCancel(ctx)

	if !req.Category.Valid() {
		return nil, apperror.Validation("Categoría inválida", map[string]any{"fields": map[string]any{"category": "oneof"}})
	}
	if len(req.Photo) == 0 {
		return nil, apperror.Validation("Foto es requerida", map[string]any{"fields": map[string]any{"photo": "required"}})
	}

	adm, err := o.c.Gate.Admit(ctx, req.Proof)
	if err != nil {
		return nil, err
	}

	out, err := o.process(ctx, adm, req)
	if err != nil {
		if rerr := adm.Release(ctx); rerr != nil {
			o.log.Error(rerr, "Could not release nullifier reservation")
		}
		o.log.Fields(map[string]any{
			"category": req.Category,
			"code":     apperror.Normalize(err).Code,
		}).Warn("Report submission failed")
		return nil, err
	}
	return out, nil
}

func (o *Orchestrator) process(ctx context.Context, adm *admission.Admission, req SubmitRequest) (*Submitted, error) {
	if err := o.c.Region.Check(req.Lat, req.Long); err != nil {
		return nil, err
	}

	contentHash := external.ContentHash(req.Photo)
	claim, err := o.c.Content.Claim(ctx, contentHash)
	if err != nil {
		return nil, err
	}
	keepClaim := false
	defer func() {
		if keepClaim {
			return
		}
		if err := o.c.Content.Release(ctx, claim); err != nil {
			o.log.Error(err, "Could not release content claim")
		}
	}()

	var blob *external.BlobRef
	err = o.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		blob, err = o.c.Blobs.Upload(ctx, req.Photo, req.ContentType)
		return err
	})
	if err != nil {
		return nil, asExternal("ipfs", err)
	}

	var appropriate bool
	err = o.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		appropriate, err = o.c.AI.Moderate(ctx, blob.Url)
		return err
	})
	if err != nil {
		return nil, asExternal("ai", err)
	}
	if !appropriate {
		o.log.Fields(map[string]any{"cid": blob.Id}).Warn("Image flagged by moderation")
		return nil, apperror.ContentModeration()
	}

	analysis := o.describe(ctx, blob.Url, req.Category)
	description := strings.TrimSpace(req.Description)
	aiGenerated := description == ""
	if aiGenerated {
		description = analysis.Description
	}

	now := o.c.Clock().UTC()
	rec := model.ReportRecord{
		Protocol: model.ReportProtocol,
		ReportId: o.c.NewId(),
		Category: model.ReportCategory{Id: req.Category, Name: req.Category.Name()},
		Evidence: model.ReportEvidence{
			Cid:         blob.Id,
			ContentHash: blob.ContentHash,
			Description: description,
			AIGenerated: aiGenerated,
			Tags:        analysis.Tags,
			Severity:    analysis.Severity,
		},
		Location: model.ReportLocation{
			Lat:       RoundCoordinate(req.Lat),
			Long:      RoundCoordinate(req.Long),
			Precision: LocationPrecision,
		},
		Verification: model.ReportVerification{
			Nullifier:  adm.Nullifier(),
			MerkleRoot: adm.Result.MerkleRoot.String(),
			Scope:      adm.Scope(),
			Verified:   adm.Enforced && adm.Result.IsValid,
		},
		Timestamp: now,
	}

	var recordRef string
	err = o.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		recordRef, err = o.c.Records.Write(ctx, rec)
		return err
	})
	if err != nil {
		if errors.Is(err, external.ErrRecordExists) {
			return nil, apperror.Internal(err)
		}
		return nil, asExternal("storage", err)
	}

	intent, err := chain.NewCreateReportIntent(o.c.Chain, chain.RecordRef(recordRef), uint8(req.Category),
		adm.Submission.ContractProof(), adm.Submission.ContractSignals())
	if err != nil {
		return nil, apperror.Internal(err)
	}
	result, err := o.c.Relay.Submit(ctx, intent)
	if err != nil {
		return nil, apperror.Normalize(err)
	}

	// anchored: from here on nothing is undone
	keepClaim = true
	if err := adm.Consume(ctx, recordRef); err != nil {
		o.log.Error(err, "Could not consume nullifier after anchoring report")
	}
	if err := o.c.Content.Confirm(ctx, claim, recordRef); err != nil {
		o.log.Error(err, "Could not confirm content claim")
	}

	receipt := o.receipt(rec.ReportId, recordRef, result, now)
	if err := o.c.Records.WriteReceipt(ctx, receipt); err != nil {
		o.log.Errorf(err, "Could not store receipt for report %s", rec.ReportId)
	}

	points := EstimateReward(req.Category, analysis.Severity)
	o.publish(ctx, rec, receipt)

	o.log.Fields(map[string]any{
		"reportId": rec.ReportId,
		"txHash":   receipt.TxHash,
		"status":   receipt.Status,
		"category": req.Category,
	}).Info("Report created via relayer")

	return &Submitted{
		ReportId: rec.ReportId,
		Status:   receipt.Status,
		Points:   points,
		Message:  statusMessage(receipt.Status),
		Receipt:  receipt,
	}, nil
}

// describe never fails: an unusable analysis degrades to the generic description.
func (o *Orchestrator) describe(ctx context.Context, imageUrl string, category model.Category) external.Analysis {
	var analysis *external.Analysis
	err := o.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		analysis, err = o.c.AI.Describe(ctx, imageUrl, category)
		return err
	})
	if err != nil || analysis == nil {
		o.log.Warnf("Image analysis unavailable, using fallback description: %v", err)
		return external.Analysis{
			Description: fallbackDescription,
			Tags:        []string{"pendiente"},
			Severity:    fallbackSeverity,
		}
	}
	return *analysis
}

func (o *Orchestrator) receipt(reportId, recordRef string, result *relay.SubmitResult, now time.Time) model.ReportReceipt {
	r := model.ReportReceipt{
		ReportId:    reportId,
		RecordId:    recordRef,
		Status:      model.ReportConfirmed,
		TxHash:      result.TxHash,
		BlockNumber: result.BlockNumber,
		GasUsed:     result.GasUsed,
		RecordedAt:  now,
	}
	if result.Pending {
		r.Status = model.ReportPending
	}
	if result.GasCost != nil {
		r.GasCost = result.GasCost.String()
	}
	if id, ok := chain.ReportIdFromReceipt(o.c.Chain, result.Receipt); ok {
		r.ChainReportId = id.String()
	}
	return r
}

func (o *Orchestrator) publish(ctx context.Context, rec model.ReportRecord, receipt model.ReportReceipt) {
	if o.c.Events == nil {
		return
	}
	err := o.c.Events.Enqueue(ctx, model.EventReportCreated, rec.ReportId, model.ReportCreated{
		ReportId:      rec.ReportId,
		RecordId:      receipt.RecordId,
		Category:      rec.Category.Id,
		Status:        receipt.Status,
		TxHash:        receipt.TxHash,
		ChainReportId: receipt.ChainReportId,
		CreatedAt:     rec.Timestamp,
	})
	if err != nil {
		o.log.Errorf(err, "Could not enqueue %s event for report %s", model.EventReportCreated, rec.ReportId)
	}
}

func (o *Orchestrator) withTimeout(ctx context.Context, call func(ctx context.Context) error) error {
	cctx, cancel := context.WithTimeout(ctx, o.c.Timeout)
	defer cancel()
	return call(cctx)
}

// asExternal keeps taxonomy errors and wraps anything else as a collaborator failure.
func asExternal(service string, err error) error {
	if _, ok := apperror.As(err); ok {
		return err
	}
	return apperror.ExternalService(service, err)
}

func statusMessage(status model.ReportStatus) string {
	if status == model.ReportPending {
		return pendingMessage
	}
	return submittedMessage
}
