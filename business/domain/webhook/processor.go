// Package webhook turns inbound push notifications into canonical records.
package webhook

import (
	"math/big"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/signumflex/go-event-listener/entities"
	"github.com/signumflex/go-event-listener/metrics"
	"go.uber.org/zap"
)

type Decoder interface {
	DecodeTipParameters(data string) (entities.TipParameters, error)
	DecodeReportParameters(data string) (entities.ReportParameters, error)
	TopicToBigInt(topic string) *big.Int
	TopicToAddress(topic string) string
}

type ReportStore interface {
	Append(record entities.ReportEvent) error
}

type TipStore interface {
	Append(record entities.TipEvent) error
}

type Processor struct {
	decoder          Decoder
	reportStore      ReportStore
	tipStore         TipStore
	processorMetrics *metrics.Metrics
	logger           *zap.SugaredLogger
}

func NewProcessor(decoder Decoder, reportStore ReportStore, tipStore TipStore, m *metrics.Metrics, logger *zap.SugaredLogger) *Processor {
	return &Processor{
		decoder:          decoder,
		reportStore:      reportStore,
		tipStore:         tipStore,
		processorMetrics: m,
		logger:           logger,
	}
}

// ProcessTipAdded decodes one TipAdded push notification, appends the
// canonical record and returns it. The decoded record is returned even when
// persistence fails; persistence and response are not atomic.
func (p *Processor) ProcessTipAdded(notification entities.PushNotification) (entities.TipEvent, error) {
	if len(notification.Logs) == 0 {
		return entities.TipEvent{}, entities.ErrNoLogs
	}
	lg := notification.Logs[0]

	params, err := p.decoder.DecodeTipParameters(lg.Data)
	if err != nil {
		if p.processorMetrics != nil {
			p.processorMetrics.IncDecodeFailures(entities.KindTip)
		}
		return entities.TipEvent{}, errors.Wrap(err, "decoding tip parameters")
	}

	event := entities.TipEvent{
		ID:        lg.TransactionHash,
		QueryID:   lg.Topic1,
		Amount:    p.decoder.TopicToBigInt(lg.Topic2).String(),
		QueryData: params.QueryData,
		Tipper:    params.Tipper,
		StartTime: numberToUint64(notification.Block.Timestamp.String()),
		TxnHash:   lg.TransactionHash,
		Source:    entities.SourceWebhook,
		TypeName:  entities.TipTypeName,
	}

	if err := p.tipStore.Append(event); err != nil {
		p.logger.Errorf("Appending tip event for tx [%s]: %v", event.TxnHash, err)
		return event, nil
	}
	if p.processorMetrics != nil {
		p.processorMetrics.IncIngestedEvents(entities.KindTip, entities.SourceWebhook)
	}

	return event, nil
}

// ProcessNewReport decodes one NewReport push notification, appends the
// canonical record and returns it.
func (p *Processor) ProcessNewReport(notification entities.PushNotification) (entities.ReportEvent, error) {
	if len(notification.Logs) == 0 {
		return entities.ReportEvent{}, entities.ErrNoLogs
	}
	lg := notification.Logs[0]

	params, err := p.decoder.DecodeReportParameters(lg.Data)
	if err != nil {
		if p.processorMetrics != nil {
			p.processorMetrics.IncDecodeFailures(entities.KindReport)
		}
		return entities.ReportEvent{}, errors.Wrap(err, "decoding report parameters")
	}

	event := entities.ReportEvent{
		ID:          lg.TransactionHash,
		QueryID:     lg.Topic1,
		Time:        p.decoder.TopicToBigInt(lg.Topic2).Uint64(),
		Value:       params.Value,
		Nonce:       params.Nonce,
		QueryData:   params.QueryData,
		Reporter:    p.decoder.TopicToAddress(lg.Topic3),
		BlockNumber: numberToUint64(notification.Block.Number.String()),
		TxnHash:     lg.TransactionHash,
		CapturedAt:  time.Now().UTC().Format(time.RFC3339),
		Source:      entities.SourceWebhook,
		TypeName:    entities.ReportTypeName,
	}

	if err := p.reportStore.Append(event); err != nil {
		p.logger.Errorf("Appending report event for tx [%s]: %v", event.TxnHash, err)
		return event, nil
	}
	if p.processorMetrics != nil {
		p.processorMetrics.IncIngestedEvents(entities.KindReport, entities.SourceWebhook)
	}

	return event, nil
}

// numberToUint64 parses block metadata that arrives as a decimal or hex
// quantity. Missing or malformed values degrade to zero instead of failing
// the request.
func numberToUint64(value string) uint64 {
	if v, err := strconv.ParseUint(value, 10, 64); err == nil {
		return v
	}
	if v, ok := new(big.Int).SetString(value, 0); ok {
		return v.Uint64()
	}
	return 0
}
