package codec

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/segmentio/encoding/json"

	"github.com/samiecode/babylon/pkg/xerr"
)

// Quantity is an integer that providers send as a JSON number, a decimal
// string or a 0x-hex string.
type Quantity int64

func (q *Quantity) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*q = 0
		return nil
	}
	s := string(b)
	if b[0] == '"' {
		unq, err := strconv.Unquote(s)
		if err != nil {
			return err
		}
		s = strings.TrimSpace(unq)
	}
	v, err := parseQuantity(s)
	if err != nil {
		return err
	}
	*q = Quantity(v)
	return nil
}

func parseQuantity(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	if s[0] == '-' || s[0] == '+' {
		return 0, fmt.Errorf("signed quantity %q", s)
	}
	if h := strip0x(s); len(h) != len(s) {
		if h == "" {
			return 0, nil
		}
		if h[0] == '-' || h[0] == '+' {
			return 0, fmt.Errorf("signed quantity %q", s)
		}
		return strconv.ParseInt(h, 16, 64)
	}
	return strconv.ParseInt(s, 10, 64)
}

// Log is one validated chain log entry.
type Log struct {
	Address          string
	Data             string
	Topics           []string
	TransactionHash  string
	LogIndex         *int64
	TransactionIndex *int64
}

// Receipt groups the logs of one webhook data entry.
type Receipt struct {
	BlockNumber int64
	Logs        []Log
}

type rawPayload struct {
	Data []json.RawMessage `json:"data"`
}

type rawReceipt struct {
	BlockNumber Quantity          `json:"blockNumber"`
	Logs        []json.RawMessage `json:"logs"`
}

type rawLog struct {
	Address          *string   `json:"address"`
	Data             string    `json:"data"`
	Topics           []*string `json:"topics"`
	TransactionHash  *string   `json:"transactionHash"`
	LogIndex         *Quantity `json:"logIndex"`
	TransactionIndex *Quantity `json:"transactionIndex"`
}

// Decoded is the typed form of a webhook body. Skipped holds one ParseError
// per entry that was dropped.
type Decoded struct {
	Receipts []Receipt
	Skipped  []error
}

// LogCount returns the number of accepted logs.
func (d *Decoded) LogCount() int {
	n := 0
	for _, r := range d.Receipts {
		n += len(r.Logs)
	}
	return n
}

// DecodeWebhook parses a chain-log webhook body. A body that is not a JSON
// object with a data array fails as a whole; malformed receipts and logs are
// skipped individually.
func DecodeWebhook(body []byte) (*Decoded, error) {
	var p rawPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, xerr.Parse("body", err)
	}

	out := &Decoded{Receipts: make([]Receipt, 0, len(p.Data))}
	for i, entry := range p.Data {
		var rr rawReceipt
		if err := json.Unmarshal(entry, &rr); err != nil {
			out.Skipped = append(out.Skipped, xerr.Parse(fmt.Sprintf("data[%d]", i), err))
			continue
		}
		rec := Receipt{BlockNumber: int64(rr.BlockNumber)}
		for j, rawEntry := range rr.Logs {
			l, err := decodeLog(rawEntry)
			if err != nil {
				out.Skipped = append(out.Skipped, xerr.Parse(fmt.Sprintf("data[%d].logs[%d]", i, j), err))
				continue
			}
			rec.Logs = append(rec.Logs, l)
		}
		out.Receipts = append(out.Receipts, rec)
	}
	return out, nil
}

var (
	errMissingAddress = errors.New("missing address")
	errMissingHash    = errors.New("missing transactionHash")
	errMissingTopics  = errors.New("missing topics")
	errNullTopic      = errors.New("null topic")
)

func decodeLog(raw json.RawMessage) (Log, error) {
	var rl rawLog
	if err := json.Unmarshal(raw, &rl); err != nil {
		return Log{}, err
	}
	switch {
	case rl.Address == nil || strings.TrimSpace(*rl.Address) == "":
		return Log{}, errMissingAddress
	case rl.TransactionHash == nil || strings.TrimSpace(*rl.TransactionHash) == "":
		return Log{}, errMissingHash
	case rl.Topics == nil:
		return Log{}, errMissingTopics
	}

	l := Log{
		Address:         strings.ToLower(strings.TrimSpace(*rl.Address)),
		Data:            rl.Data,
		TransactionHash: strings.ToLower(strings.TrimSpace(*rl.TransactionHash)),
		Topics:          make([]string, 0, len(rl.Topics)),
	}
	for _, t := range rl.Topics {
		if t == nil {
			return Log{}, errNullTopic
		}
		l.Topics = append(l.Topics, *t)
	}
	if rl.LogIndex != nil {
		v := int64(*rl.LogIndex)
		l.LogIndex = &v
	}
	if rl.TransactionIndex != nil {
		v := int64(*rl.TransactionIndex)
		l.TransactionIndex = &v
	}
	return l, nil
}
