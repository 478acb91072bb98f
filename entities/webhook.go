package entities

import "encoding/json"

// PushNotification is the body of an inbound webhook call. Only the first log
// entry is relevant, matching the watcher service that emits these payloads.
type PushNotification struct {
	Logs  []PushLog `json:"logs"`
	Block PushBlock `json:"block"`
}

type PushLog struct {
	Data            string `json:"data"`
	Topic1          string `json:"topic1"`
	Topic2          string `json:"topic2"`
	Topic3          string `json:"topic3"`
	TransactionHash string `json:"transactionHash"`
}

// PushBlock carries block metadata. Numbers arrive as json numbers or decimal
// strings depending on the watcher version, so both are accepted.
type PushBlock struct {
	Number    json.Number `json:"number"`
	Timestamp json.Number `json:"timestamp"`
}

// TipParameters are the non-indexed TipAdded event arguments decoded from the
// log data blob. Byte fields are hex encoded, ready for the canonical record.
type TipParameters struct {
	QueryData string
	Tipper    string
}

// ReportParameters are the non-indexed NewReport event arguments decoded from
// the log data blob.
type ReportParameters struct {
	Value     string
	Nonce     uint64
	QueryData string
}
