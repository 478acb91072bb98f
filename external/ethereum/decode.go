package ethereum

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	"github.com/signumflex/go-event-listener/entities"
)

// Event-only fragments of the oracle and autopay contract ABIs. The listener
// never calls contract methods, so the rest of the ABIs is not needed.
const flexABIJSON = `[{"anonymous":false,"inputs":[{"indexed":true,"name":"_queryId","type":"bytes32"},{"indexed":true,"name":"_time","type":"uint256"},{"indexed":false,"name":"_value","type":"bytes"},{"indexed":false,"name":"_nonce","type":"uint256"},{"indexed":false,"name":"_queryData","type":"bytes"},{"indexed":true,"name":"_reporter","type":"address"}],"name":"NewReport","type":"event"}]`

const autopayABIJSON = `[{"anonymous":false,"inputs":[{"indexed":true,"name":"_queryId","type":"bytes32"},{"indexed":true,"name":"_amount","type":"uint256"},{"indexed":false,"name":"_queryData","type":"bytes"},{"indexed":false,"name":"_tipper","type":"address"}],"name":"TipAdded","type":"event"}]`

// Decoder unpacks the binary-encoded event parameters carried in log data
// blobs and converts raw log topics into typed values.
type Decoder struct {
	flexABI    abi.ABI
	autopayABI abi.ABI
}

func NewDecoder() (*Decoder, error) {
	flex, err := abi.JSON(strings.NewReader(flexABIJSON))
	if err != nil {
		return nil, errors.Wrap(err, "parsing oracle abi")
	}
	autopay, err := abi.JSON(strings.NewReader(autopayABIJSON))
	if err != nil {
		return nil, errors.Wrap(err, "parsing autopay abi")
	}

	return &Decoder{flexABI: flex, autopayABI: autopay}, nil
}

// DecodeTipParameters decodes a TipAdded data blob (hex encoded) into its
// fixed two-field schema: bytes _queryData, address _tipper.
func (d *Decoder) DecodeTipParameters(data string) (entities.TipParameters, error) {
	blob, err := hexutil.Decode(data)
	if err != nil {
		return entities.TipParameters{}, errors.Wrap(err, "decoding data hex")
	}

	args := d.autopayABI.Events["TipAdded"].Inputs.NonIndexed()
	values, err := args.UnpackValues(blob)
	if err != nil {
		return entities.TipParameters{}, errors.Wrap(err, "unpacking tip parameters")
	}

	queryData, ok := values[0].([]byte)
	if !ok {
		return entities.TipParameters{}, errors.New("unexpected type for query data")
	}
	tipper, ok := values[1].(common.Address)
	if !ok {
		return entities.TipParameters{}, errors.New("unexpected type for tipper")
	}

	return entities.TipParameters{
		QueryData: hexutil.Encode(queryData),
		Tipper:    tipper.Hex(),
	}, nil
}

// DecodeReportParameters decodes a NewReport data blob (hex encoded) into its
// fixed three-field schema: bytes _value, uint256 _nonce, bytes _queryData.
func (d *Decoder) DecodeReportParameters(data string) (entities.ReportParameters, error) {
	blob, err := hexutil.Decode(data)
	if err != nil {
		return entities.ReportParameters{}, errors.Wrap(err, "decoding data hex")
	}

	args := d.flexABI.Events["NewReport"].Inputs.NonIndexed()
	values, err := args.UnpackValues(blob)
	if err != nil {
		return entities.ReportParameters{}, errors.Wrap(err, "unpacking report parameters")
	}

	value, ok := values[0].([]byte)
	if !ok {
		return entities.ReportParameters{}, errors.New("unexpected type for value")
	}
	nonce, ok := values[1].(*big.Int)
	if !ok {
		return entities.ReportParameters{}, errors.New("unexpected type for nonce")
	}
	queryData, ok := values[2].([]byte)
	if !ok {
		return entities.ReportParameters{}, errors.New("unexpected type for query data")
	}

	return entities.ReportParameters{
		Value:     hexutil.Encode(value),
		Nonce:     nonce.Uint64(),
		QueryData: hexutil.Encode(queryData),
	}, nil
}

// TopicToBigInt interprets an indexed log topic as an unsigned integer.
func (d *Decoder) TopicToBigInt(topic string) *big.Int {
	return new(big.Int).SetBytes(common.HexToHash(topic).Bytes())
}

// TopicToAddress extracts the right-aligned address from an indexed log topic.
func (d *Decoder) TopicToAddress(topic string) string {
	return common.BytesToAddress(common.HexToHash(topic).Bytes()).Hex()
}
