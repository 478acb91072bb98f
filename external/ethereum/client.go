package ethereum

import (
	"context"
	"math/big"

	goethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	"github.com/signumflex/go-event-listener/entities"
)

// Client queries a ledger node for historical contract events over json-rpc.
type Client struct {
	eth            *ethclient.Client
	decoder        *Decoder
	flexAddress    common.Address
	autopayAddress common.Address
}

func NewClient(rpcURL, flexAddress, autopayAddress string) (*Client, error) {
	eth, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, errors.Wrap(err, "dialing rpc node")
	}

	decoder, err := NewDecoder()
	if err != nil {
		return nil, errors.Wrap(err, "creating decoder")
	}

	return &Client{
		eth:            eth,
		decoder:        decoder,
		flexAddress:    common.HexToAddress(flexAddress),
		autopayAddress: common.HexToAddress(autopayAddress),
	}, nil
}

func (c *Client) LatestBlock(ctx context.Context) (uint64, error) {
	number, err := c.eth.BlockNumber(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "getting latest block number")
	}
	return number, nil
}

// FilterNewReports returns all NewReport events emitted by the oracle
// contract within the inclusive block range.
func (c *Client) FilterNewReports(ctx context.Context, fromBlock, toBlock uint64) ([]entities.ReportEvent, error) {
	logs, err := c.filter(ctx, c.flexAddress, c.decoder.flexABI.Events["NewReport"].ID, fromBlock, toBlock)
	if err != nil {
		return nil, err
	}

	events := make([]entities.ReportEvent, 0, len(logs))
	for _, lg := range logs {
		event, err := c.logToReportEvent(lg)
		if err != nil {
			return nil, errors.Wrapf(err, "converting log in tx [%s]", lg.TxHash.Hex())
		}
		events = append(events, event)
	}

	return events, nil
}

// FilterTipsAdded returns all TipAdded events emitted by the autopay contract
// within the inclusive block range.
func (c *Client) FilterTipsAdded(ctx context.Context, fromBlock, toBlock uint64) ([]entities.TipEvent, error) {
	logs, err := c.filter(ctx, c.autopayAddress, c.decoder.autopayABI.Events["TipAdded"].ID, fromBlock, toBlock)
	if err != nil {
		return nil, err
	}

	events := make([]entities.TipEvent, 0, len(logs))
	for _, lg := range logs {
		event, err := c.logToTipEvent(lg)
		if err != nil {
			return nil, errors.Wrapf(err, "converting log in tx [%s]", lg.TxHash.Hex())
		}
		events = append(events, event)
	}

	return events, nil
}

func (c *Client) filter(ctx context.Context, address common.Address, eventID common.Hash, fromBlock, toBlock uint64) ([]types.Log, error) {
	query := goethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{address},
		Topics:    [][]common.Hash{{eventID}},
	}

	logs, err := c.eth.FilterLogs(ctx, query)
	if err != nil {
		return nil, errors.Wrapf(err, "filtering logs from [%d] to [%d]", fromBlock, toBlock)
	}

	return logs, nil
}

func (c *Client) logToReportEvent(lg types.Log) (entities.ReportEvent, error) {
	if len(lg.Topics) < 4 {
		return entities.ReportEvent{}, errors.Errorf("unexpected topic count [%d]", len(lg.Topics))
	}

	params, err := c.decoder.DecodeReportParameters(hexutil.Encode(lg.Data))
	if err != nil {
		return entities.ReportEvent{}, errors.Wrap(err, "decoding report parameters")
	}

	return entities.ReportEvent{
		QueryID:     lg.Topics[1].Hex(),
		Time:        new(big.Int).SetBytes(lg.Topics[2].Bytes()).Uint64(),
		Value:       params.Value,
		Nonce:       params.Nonce,
		QueryData:   params.QueryData,
		Reporter:    common.BytesToAddress(lg.Topics[3].Bytes()).Hex(),
		BlockNumber: lg.BlockNumber,
		TxnHash:     lg.TxHash.Hex(),
	}, nil
}

func (c *Client) logToTipEvent(lg types.Log) (entities.TipEvent, error) {
	if len(lg.Topics) < 3 {
		return entities.TipEvent{}, errors.Errorf("unexpected topic count [%d]", len(lg.Topics))
	}

	params, err := c.decoder.DecodeTipParameters(hexutil.Encode(lg.Data))
	if err != nil {
		return entities.TipEvent{}, errors.Wrap(err, "decoding tip parameters")
	}

	return entities.TipEvent{
		QueryID:   lg.Topics[1].Hex(),
		Amount:    new(big.Int).SetBytes(lg.Topics[2].Bytes()).String(),
		QueryData: params.QueryData,
		Tipper:    params.Tipper,
		TxnHash:   lg.TxHash.Hex(),
	}, nil
}
