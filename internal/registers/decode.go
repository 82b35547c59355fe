// internal/registers/decode.go
package registers

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/big"
	"strconv"
)

// DecodeError reports a register map that does not fit the returned block.
// One DecodeError fails the whole cycle.
type DecodeError struct {
	ID  string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %q: %v", e.ID, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Decode applies the map to a raw block.
// All-or-nothing: the result is either complete (plus powerTotal) or nil.
func Decode(block []byte, m Map) ([]Measurement, error) {
	out := make([]Measurement, 0, len(m)+1)

	for _, d := range m {
		v, err := readFloat(block, d)
		if err != nil {
			return nil, &DecodeError{ID: d.ID, Err: err}
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, &DecodeError{ID: d.ID, Err: fmt.Errorf("not a finite number: %v", v)}
		}

		out = append(out, Measurement{
			ID:    d.ID,
			Value: toFixed(v, d.ToFixed),
			Unit:  d.Unit,
		})
	}

	total, err := PowerTotal(out)
	if err != nil {
		return nil, err
	}
	return append(out, total), nil
}

// PowerTotal sums the integer part of every PowerUnit measurement.
// The sum is kept in float64 so garbage registers cannot overflow it.
func PowerTotal(ms []Measurement) (Measurement, error) {
	var sum float64
	for _, m := range ms {
		if m.Unit != PowerUnit {
			continue
		}
		f, err := strconv.ParseFloat(m.Value, 64)
		if err != nil {
			return Measurement{}, &DecodeError{ID: m.ID, Err: err}
		}
		sum += math.Trunc(f)
	}

	return Measurement{
		ID:    PowerTotalID,
		Value: toFixed(sum, 0),
		Unit:  PowerUnit,
	}, nil
}

// Encode is the inverse of Decode: it lays out values at their map offsets.
// Descriptors missing from values are left zero.
func Encode(m Map, values map[string]float64, size int) ([]byte, error) {
	if span := m.Span(); size < span {
		return nil, fmt.Errorf("encode: block size %d shorter than map span %d", size, span)
	}

	block := make([]byte, size)
	for _, d := range m {
		v, ok := values[d.ID]
		if !ok {
			continue
		}
		dst := block[d.Register : d.Register+d.Bytes]
		switch d.Bytes {
		case 4:
			binary.BigEndian.PutUint32(dst, math.Float32bits(float32(v)))
		case 8:
			binary.BigEndian.PutUint64(dst, math.Float64bits(v))
		default:
			return nil, &DecodeError{ID: d.ID, Err: fmt.Errorf("unsupported width %d", d.Bytes)}
		}
	}
	return block, nil
}

// ---- helpers ----

// toFixed formats v with exactly n decimals. Ties on the exact binary value
// round away from zero, so 2.5 -> "3" and 0.125 -> "0.13". v must be finite.
func toFixed(v float64, n int) string {
	if v == 0 {
		// no "-0"
		v = 0
	}
	return new(big.Rat).SetFloat64(v).FloatString(n)
}

// readFloat interprets Bytes bytes at Register as a big-endian IEEE-754 float.
func readFloat(block []byte, d Descriptor) (float64, error) {
	if d.Register < 0 || d.Bytes <= 0 || d.Register+d.Bytes > len(block) {
		return 0, fmt.Errorf("range %d+%d exceeds block of %d bytes", d.Register, d.Bytes, len(block))
	}

	b := block[d.Register : d.Register+d.Bytes]
	switch d.Bytes {
	case 4:
		return float64(math.Float32frombits(binary.BigEndian.Uint32(b))), nil
	case 8:
		return math.Float64frombits(binary.BigEndian.Uint64(b)), nil
	default:
		return 0, fmt.Errorf("unsupported width %d", d.Bytes)
	}
}
