package entities

// Record sources. Every stored record is tagged with the path it was
// ingested through.
const (
	SourceBackfill = "backfill"
	SourceWebhook  = "webhook"
)

const (
	ReportTypeName = "NewReportEntity"
	TipTypeName    = "TipAddedEntity"
)

// Event kinds, used as store names, cursor keys and metric labels.
const (
	KindReport = "report"
	KindTip    = "tip"
)

// ReportEvent is the canonical form of an oracle NewReport event. The json
// field names match the wire format of the original listener so existing
// consumers of the event files keep working.
type ReportEvent struct {
	ID          string `json:"id,omitempty"`
	QueryID     string `json:"_queryId"`
	Time        uint64 `json:"_time"`
	Value       string `json:"_value"`
	Nonce       uint64 `json:"_nonce"`
	QueryData   string `json:"_queryData"`
	Reporter    string `json:"_reporter"`
	BlockNumber uint64 `json:"_blockNumber"`
	TxnHash     string `json:"txnHash"`
	CapturedAt  string `json:"timestamp"`
	Source      string `json:"source"`
	TypeName    string `json:"__typename"`
}

// TipEvent is the canonical form of an autopay TipAdded event.
//
// StartTime keeps the semantics of the original listener: the block timestamp
// for webhook records and the ingestion wall clock (unix seconds) for
// backfilled records. The Source tag makes the difference visible to readers.
type TipEvent struct {
	ID        string `json:"id,omitempty"`
	QueryID   string `json:"_queryId"`
	Amount    string `json:"_amount"`
	QueryData string `json:"_queryData"`
	Tipper    string `json:"_tipper"`
	StartTime uint64 `json:"_startTime"`
	TxnHash   string `json:"txnHash"`
	Source    string `json:"source"`
	TypeName  string `json:"__typename"`
}
