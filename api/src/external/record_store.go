package external

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/RIKUY-ORG/Rikuy/api/src/model"

	"github.com/ipfs/go-datastore"
	"github.com/ipfs/go-datastore/query"
	levelds "github.com/ipfs/go-ds-leveldb"
)

var ErrRecordExists = errors.New("record already written")

const (
	recordsPrefix  = "/reports"
	receiptsPrefix = "/receipts"
	geoPrefix      = "/geo"
	timePrefix     = "/time"

	// half-degree grid cells, so a 50 km radius touches at most 3x3 cells
	cellsPerDegree = 2
)

// RecordStore is a write-once report store on a LevelDB datastore. Records are never
// overwritten; receipts are a separate write-once entry per report.
type RecordStore struct {
	ds datastore.Batching
}

// OpenRecordStore opens LevelDB at path. An empty path keeps everything in memory.
func OpenRecordStore(path string) (*RecordStore, error) {
	ds, err := levelds.NewDatastore(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open record store: %w", err)
	}
	return &RecordStore{ds: ds}, nil
}

func NewRecordStore(ds datastore.Batching) *RecordStore {
	return &RecordStore{ds: ds}
}

func (s *RecordStore) Close() error {
	return s.ds.Close()
}

func recordKey(reportId string) datastore.Key {
	return datastore.NewKey(recordsPrefix).ChildString(reportId)
}

func receiptKey(reportId string) datastore.Key {
	return datastore.NewKey(receiptsPrefix).ChildString(reportId)
}

func cell(v float64) int {
	return int(math.Floor(v * cellsPerDegree))
}

func geoCellPrefix(latCell, longCell int) string {
	return fmt.Sprintf("%s/%d/%d", geoPrefix, latCell, longCell)
}

// Write stores rec and returns its reference: the 0x-prefixed sha256 of the stored bytes.
func (s *RecordStore) Write(ctx context.Context, rec model.ReportRecord) (string, error) {
	if rec.ReportId == "" {
		return "", errors.New("record without report id")
	}
	key := recordKey(rec.ReportId)
	exists, err := s.ds.Has(ctx, key)
	if err != nil {
		return "", err
	}
	if exists {
		return "", ErrRecordExists
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	ref := "0x" + hex.EncodeToString(sum[:])

	b, err := s.ds.Batch(ctx)
	if err != nil {
		return "", err
	}
	if err := b.Put(ctx, key, data); err != nil {
		return "", err
	}
	geo := datastore.NewKey(geoCellPrefix(cell(rec.Location.Lat), cell(rec.Location.Long))).ChildString(rec.ReportId)
	if err := b.Put(ctx, geo, nil); err != nil {
		return "", err
	}
	// zero padded so lexical order is time order
	tk := datastore.NewKey(timePrefix).ChildString(fmt.Sprintf("%020d-%s", rec.Timestamp.UnixNano(), rec.ReportId))
	if err := b.Put(ctx, tk, nil); err != nil {
		return "", err
	}
	if err := b.Commit(ctx); err != nil {
		return "", err
	}
	return ref, nil
}

func (s *RecordStore) WriteReceipt(ctx context.Context, receipt model.ReportReceipt) error {
	key := receiptKey(receipt.ReportId)
	exists, err := s.ds.Has(ctx, key)
	if err != nil {
		return err
	}
	if exists {
		return ErrRecordExists
	}
	data, err := json.Marshal(receipt)
	if err != nil {
		return err
	}
	return s.ds.Put(ctx, key, data)
}

// ReadById returns nil without error for an unknown id.
func (s *RecordStore) ReadById(ctx context.Context, reportId string) (*model.ReportRecord, error) {
	data, err := s.ds.Get(ctx, recordKey(reportId))
	if errors.Is(err, datastore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec model.ReportRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *RecordStore) ReadReceipt(ctx context.Context, reportId string) (*model.ReportReceipt, error) {
	data, err := s.ds.Get(ctx, receiptKey(reportId))
	if errors.Is(err, datastore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var r model.ReportReceipt
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// QueryNear returns records whose cell overlaps the bounding box of the circle. Callers
// apply the exact distance filter.
func (s *RecordStore) QueryNear(ctx context.Context, lat, long, radiusKm float64) ([]model.ReportRecord, error) {
	dLat := radiusKm / 111.0
	cosLat := math.Cos(lat * math.Pi / 180)
	dLong := 180.0
	if cosLat > 1e-6 {
		dLong = math.Min(radiusKm/(111.0*cosLat), 180)
	}

	var out []model.ReportRecord
	seen := map[string]bool{}
	for i := cell(lat - dLat); i <= cell(lat+dLat); i++ {
		for j := cell(long - dLong); j <= cell(long+dLong); j++ {
			ids, err := s.keysUnder(ctx, geoCellPrefix(i, j), query.Query{KeysOnly: true})
			if err != nil {
				return nil, err
			}
			for _, id := range ids {
				if seen[id] {
					continue
				}
				seen[id] = true
				rec, err := s.ReadById(ctx, id)
				if err != nil {
					return nil, err
				}
				if rec != nil {
					out = append(out, *rec)
				}
			}
		}
	}
	return out, nil
}

// Recent returns up to limit records, newest first.
func (s *RecordStore) Recent(ctx context.Context, limit int, keep func(model.ReportRecord) bool) ([]model.ReportRecord, error) {
	entries, err := s.keysUnder(ctx, timePrefix, query.Query{
		KeysOnly: true,
		Orders:   []query.Order{query.OrderByKeyDescending{}},
	})
	if err != nil {
		return nil, err
	}

	var out []model.ReportRecord
	for _, e := range entries {
		if limit > 0 && len(out) >= limit {
			break
		}
		_, id, ok := strings.Cut(e, "-")
		if !ok {
			continue
		}
		rec, err := s.ReadById(ctx, id)
		if err != nil {
			return nil, err
		}
		if rec == nil || (keep != nil && !keep(*rec)) {
			continue
		}
		out = append(out, *rec)
	}
	return out, nil
}

// keysUnder lists the last key segment of every entry under prefix.
func (s *RecordStore) keysUnder(ctx context.Context, prefix string, q query.Query) ([]string, error) {
	q.Prefix = prefix
	res, err := s.ds.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer res.Close()

	entries, err := res.Rest()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, datastore.RawKey(e.Key).Name())
	}
	if len(q.Orders) == 0 {
		sort.Strings(out)
	}
	return out, nil
}
