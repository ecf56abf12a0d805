package model

import "time"

const ReportProtocol = "rikuy-v1"

type Category uint8

const (
	CategoryInfraestructura Category = iota
	CategoryInseguridad
	CategoryBasura
	CategoryCorrupcion
	CategoryOtro
)

var categoryNames = [...]string{"Infraestructura", "Inseguridad", "Basura", "Corrupción", "Otro"}

func (c Category) Valid() bool { return int(c) < len(categoryNames) }

func (c Category) Name() string {
	if !c.Valid() {
		return "Desconocida"
	}
	return categoryNames[c]
}

type ReportStatus string

const (
	ReportConfirmed ReportStatus = "confirmado"
	ReportPending   ReportStatus = "pendiente"
)

// ReportRecord is the write-once document kept in the immutable store.
type ReportRecord struct {
	Protocol     string             `json:"protocol"`
	ReportId     string             `json:"reportId"`
	Category     ReportCategory     `json:"category"`
	Evidence     ReportEvidence     `json:"evidence"`
	Location     ReportLocation     `json:"location"`
	Verification ReportVerification `json:"verification"`
	Timestamp    time.Time          `json:"timestamp"`
}

type ReportCategory struct {
	Id   Category `json:"id"`
	Name string   `json:"name"`
}

type ReportEvidence struct {
	Cid         string   `json:"cid"`
	ContentHash string   `json:"contentHash"`
	Description string   `json:"description"`
	AIGenerated bool     `json:"aiGenerated"`
	Tags        []string `json:"tags"`
	Severity    int      `json:"severity"`
}

type ReportLocation struct {
	Lat       float64 `json:"lat"`
	Long      float64 `json:"long"`
	Precision string  `json:"precision"`
}

type ReportVerification struct {
	Nullifier  string `json:"nullifier"`
	MerkleRoot string `json:"merkleRoot"`
	Scope      string `json:"scope"`
	Verified   bool   `json:"verified"`
}

// ReportCreated is the payload of the report.created outbox event.
type ReportCreated struct {
	ReportId      string       `json:"reportId"`
	RecordId      string       `json:"recordId"`
	Category      Category     `json:"category"`
	Status        ReportStatus `json:"status"`
	TxHash        string       `json:"txHash"`
	ChainReportId string       `json:"chainReportId,omitempty"`
	CreatedAt     time.Time    `json:"createdAt"`
}

// ReportReceipt links a record to the transaction that anchored it on chain. It is written
// once, after the relay returns.
type ReportReceipt struct {
	ReportId      string       `json:"reportId"`
	RecordId      string       `json:"recordId"`
	Status        ReportStatus `json:"status"`
	TxHash        string       `json:"txHash"`
	BlockNumber   uint64       `json:"blockNumber"`
	GasUsed       uint64       `json:"gasUsed"`
	GasCost       string       `json:"gasCost"`
	ChainReportId string       `json:"chainReportId,omitempty"`
	RecordedAt    time.Time    `json:"recordedAt"`
}
