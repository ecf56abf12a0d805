package report

import (
	"context"
	"sort"
	"time"

	"github.com/RIKUY-ORG/Rikuy/api/src/model"
	"github.com/RIKUY-ORG/Rikuy/pkg/apperror"
	"github.com/RIKUY-ORG/Rikuy/pkg/utilities"
)

const (
	DefaultRadiusKm = 5.0
	MaxRadiusKm     = 50.0
	DefaultLimit    = 50
	MaxLimit        = 100
)

// View is a stored report with its anchoring receipt.
type View struct {
	Record  model.ReportRecord
	Status  model.ReportStatus
	Receipt model.ReportReceipt
}

type Summary struct {
	ReportId    string               `json:"reportId"`
	Category    string               `json:"category"`
	CategoryId  model.Category       `json:"categoryId"`
	Description string               `json:"description"`
	Tags        []string             `json:"tags"`
	Severity    int                  `json:"severity"`
	Location    model.ReportLocation `json:"location"`
	Timestamp   time.Time            `json:"timestamp"`
	DistanceKm  *float64             `json:"distanceKm,omitempty"`
}

type NearbyQuery struct {
	Lat      float64
	Long     float64
	RadiusKm float64
	Category *model.Category
	Limit    int
}

func summarize(rec model.ReportRecord) Summary {
	return Summary{
		ReportId:    rec.ReportId,
		Category:    rec.Category.Name,
		CategoryId:  rec.Category.Id,
		Description: rec.Evidence.Description,
		Tags:        rec.Evidence.Tags,
		Severity:    rec.Evidence.Severity,
		Location:    rec.Location,
		Timestamp:   rec.Timestamp,
	}
}

// Get returns an anchored report. Records whose chain submission never completed are
// treated as missing.
func (o *Orchestrator) Get(ctx context.Context, reportId string) (*View, error) {
	rec, err := o.c.Records.ReadById(ctx, reportId)
	if err != nil {
		return nil, apperror.ExternalService("storage", err)
	}
	if rec == nil {
		return nil, apperror.NotFound("report")
	}
	receipt, err := o.c.Records.ReadReceipt(ctx, reportId)
	if err != nil {
		return nil, apperror.ExternalService("storage", err)
	}
	if receipt == nil {
		return nil, apperror.NotFound("report")
	}

	status := receipt.Status
	if status == model.ReportPending && o.c.Relay.IsConfirmed(ctx, receipt.TxHash) {
		status = model.ReportConfirmed
	}
	return &View{Record: *rec, Status: status, Receipt: *receipt}, nil
}

func (o *Orchestrator) anchored(ctx context.Context, reportId string) bool {
	receipt, err := o.c.Records.ReadReceipt(ctx, reportId)
	if err != nil {
		o.log.Warnf("Could not read receipt of report %s: %v", reportId, err)
		return false
	}
	return receipt != nil
}

// Nearby lists anchored reports within the radius, closest first.
func (o *Orchestrator) Nearby(ctx context.Context, q NearbyQuery) ([]Summary, error) {
	if err := o.c.Region.Check(q.Lat, q.Long); err != nil {
		return nil, err
	}
	radius := q.RadiusKm
	if radius <= 0 {
		radius = DefaultRadiusKm
	}
	radius = min(radius, MaxRadiusKm)
	limit := clampLimit(q.Limit)

	records, err := o.c.Records.QueryNear(ctx, q.Lat, q.Long, radius)
	if err != nil {
		return nil, apperror.ExternalService("storage", err)
	}

	if q.Category != nil {
		records = utilities.Filter(records, func(rec model.ReportRecord) bool { return rec.Category.Id == *q.Category })
	}

	out := make([]Summary, 0, len(records))
	for _, rec := range records {
		d := DistanceKm(q.Lat, q.Long, rec.Location.Lat, rec.Location.Long)
		if d > radius || !o.anchored(ctx, rec.ReportId) {
			continue
		}
		s := summarize(rec)
		s.DistanceKm = &d
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool { return *out[i].DistanceKm < *out[j].DistanceKm })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Recent lists anchored reports, newest first.
func (o *Orchestrator) Recent(ctx context.Context, limit int, category *model.Category) ([]Summary, error) {
	records, err := o.c.Records.Recent(ctx, clampLimit(limit), func(rec model.ReportRecord) bool {
		if category != nil && rec.Category.Id != *category {
			return false
		}
		return o.anchored(ctx, rec.ReportId)
	})
	if err != nil {
		return nil, apperror.ExternalService("storage", err)
	}

	return utilities.Map(records, summarize), nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return min(limit, MaxLimit)
}
