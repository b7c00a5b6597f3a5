package collective

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/xxh3"

	"github.com/arloliu/shocktrack/types"
)

const checksumSize = 8

var errColumnEncoding = errors.New("column payload is not a float64 array")

// wirePart is the JSON form of a series part.
//
// Columns travel as little-endian float64 bytes so NaN and Inf survive the
// JSON round trip.
type wirePart struct {
	Rank     int                `json:"rank"`
	Interval types.WorkInterval `json:"interval"`
	Columns  map[string][]byte  `json:"columns"`
}

// codec encodes gathered parts as checksum || zstd(json).
//
// The checksum is the xxh3 hash of the uncompressed JSON.
type codec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func newCodec() (*codec, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = enc.Close()
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	return &codec{enc: enc, dec: dec}, nil
}

func (c *codec) close() {
	_ = c.enc.Close()
	c.dec.Close()
}

func (c *codec) encode(part types.SeriesPart) ([]byte, error) {
	wire := wirePart{
		Rank:     part.Rank,
		Interval: part.Interval,
		Columns:  make(map[string][]byte, len(part.Columns)),
	}
	for name, values := range part.Columns {
		wire.Columns[name] = floatsToBytes(values)
	}

	raw, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal part: %w", err)
	}

	out := make([]byte, checksumSize, checksumSize+len(raw)/2)
	binary.BigEndian.PutUint64(out, xxh3.Hash(raw))

	return c.enc.EncodeAll(raw, out), nil
}

func (c *codec) decode(payload []byte) (types.SeriesPart, error) {
	if len(payload) < checksumSize {
		return types.SeriesPart{}, fmt.Errorf("%w: payload of %d bytes", types.ErrPayloadChecksum, len(payload))
	}

	raw, err := c.dec.DecodeAll(payload[checksumSize:], nil)
	if err != nil {
		return types.SeriesPart{}, fmt.Errorf("%w: %w", types.ErrPayloadChecksum, err)
	}

	if binary.BigEndian.Uint64(payload) != xxh3.Hash(raw) {
		return types.SeriesPart{}, types.ErrPayloadChecksum
	}

	var wire wirePart
	if err := json.Unmarshal(raw, &wire); err != nil {
		return types.SeriesPart{}, fmt.Errorf("failed to unmarshal part: %w", err)
	}

	part := types.SeriesPart{
		Rank:     wire.Rank,
		Interval: wire.Interval,
		Columns:  make(map[string][]float64, len(wire.Columns)),
	}
	for name, data := range wire.Columns {
		values, err := bytesToFloats(data)
		if err != nil {
			return types.SeriesPart{}, fmt.Errorf("column %s: %w", name, err)
		}
		part.Columns[name] = values
	}

	return part, nil
}

func floatsToBytes(values []float64) []byte {
	out := make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint64(out[8*i:], math.Float64bits(v))
	}

	return out
}

func bytesToFloats(data []byte) ([]float64, error) {
	if len(data)%8 != 0 {
		return nil, fmt.Errorf("%w: %d bytes", errColumnEncoding, len(data))
	}

	out := make([]float64, len(data)/8)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[8*i:]))
	}

	return out, nil
}
