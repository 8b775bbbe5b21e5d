// Package wire implements the row encoding used at the request boundary:
// each result row is a varint length prefix followed by the row payload; the
// row stream ends with a zero-length row. Inside a payload the 64-bit row id
// comes first (for full-row responses), then an optional NULL bitmask with
// one bit per nullable column, then the column values in column order:
// fixed-width values as raw bytes, strings and binary as varint length plus
// bytes.
package wire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// RowBuilder assembles one row payload.
type RowBuilder struct {
	buf []byte
}

// WriteTRID appends the 64-bit row id. It must be the first column of a
// full-row payload.
func (b *RowBuilder) WriteTRID(trid uint64) {
	b.buf = protowire.AppendVarint(b.buf, trid)
}

// WriteNullBitmask appends one bit per nullable column, bit i%8 of byte i/8
// set when the i-th nullable column is NULL. Rows without nullable columns
// carry no bitmask.
func (b *RowBuilder) WriteNullBitmask(nulls []bool) {
	if len(nulls) == 0 {
		return
	}
	mask := make([]byte, (len(nulls)+7)/8)
	for i, isNull := range nulls {
		if isNull {
			mask[i/8] |= 1 << (i % 8)
		}
	}
	b.buf = append(b.buf, mask...)
}

// WriteFixed appends a fixed-width column value as raw bytes.
func (b *RowBuilder) WriteFixed(value []byte) {
	b.buf = append(b.buf, value...)
}

// WriteBytes appends a variable-length column value as a varint length
// prefix plus bytes.
func (b *RowBuilder) WriteBytes(value []byte) {
	b.buf = protowire.AppendVarint(b.buf, uint64(len(value)))
	b.buf = append(b.buf, value...)
}

// Payload returns the assembled row payload.
func (b *RowBuilder) Payload() []byte { return b.buf }

// Reset clears the builder for the next row.
func (b *RowBuilder) Reset() { b.buf = b.buf[:0] }

// AppendRow appends one length-delimited row to dst.
func AppendRow(dst, payload []byte) []byte {
	dst = protowire.AppendVarint(dst, uint64(len(payload)))
	return append(dst, payload...)
}

// AppendEndOfRows appends the zero-length row terminating a row stream.
func AppendEndOfRows(dst []byte) []byte {
	return protowire.AppendVarint(dst, 0)
}

// ConsumeRow reads one length-delimited row from src. A zero-length row
// yields done=true.
func ConsumeRow(src []byte) (payload, rest []byte, done bool, err error) {
	length, n := protowire.ConsumeVarint(src)
	if n < 0 {
		return nil, nil, false, fmt.Errorf("invalid row length prefix: %w", protowire.ParseError(n))
	}
	src = src[n:]
	if length == 0 {
		return nil, src, true, nil
	}
	if uint64(len(src)) < length {
		return nil, nil, false, fmt.Errorf("truncated row: have %d bytes, want %d", len(src), length)
	}
	return src[:length], src[length:], false, nil
}

// RowReader decodes the columns of one row payload.
type RowReader struct {
	buf []byte
}

// NewRowReader returns a reader over one row payload.
func NewRowReader(payload []byte) *RowReader {
	return &RowReader{buf: payload}
}

// ReadTRID reads the leading 64-bit row id.
func (r *RowReader) ReadTRID() (uint64, error) {
	trid, n := protowire.ConsumeVarint(r.buf)
	if n < 0 {
		return 0, fmt.Errorf("invalid trid: %w", protowire.ParseError(n))
	}
	r.buf = r.buf[n:]
	return trid, nil
}

// ReadNullBitmask reads the NULL bitmask for the given number of nullable
// columns.
func (r *RowReader) ReadNullBitmask(nullableColumns int) ([]bool, error) {
	if nullableColumns == 0 {
		return nil, nil
	}
	size := (nullableColumns + 7) / 8
	if len(r.buf) < size {
		return nil, fmt.Errorf("truncated null bitmask: have %d bytes, want %d", len(r.buf), size)
	}
	nulls := make([]bool, nullableColumns)
	for i := range nulls {
		nulls[i] = r.buf[i/8]&(1<<(i%8)) != 0
	}
	r.buf = r.buf[size:]
	return nulls, nil
}

// ReadFixed reads a fixed-width column value.
func (r *RowReader) ReadFixed(size int) ([]byte, error) {
	if len(r.buf) < size {
		return nil, fmt.Errorf("truncated column: have %d bytes, want %d", len(r.buf), size)
	}
	value := r.buf[:size]
	r.buf = r.buf[size:]
	return value, nil
}

// ReadBytes reads a variable-length column value.
func (r *RowReader) ReadBytes() ([]byte, error) {
	length, n := protowire.ConsumeVarint(r.buf)
	if n < 0 {
		return nil, fmt.Errorf("invalid column length prefix: %w", protowire.ParseError(n))
	}
	r.buf = r.buf[n:]
	if uint64(len(r.buf)) < length {
		return nil, fmt.Errorf("truncated column: have %d bytes, want %d", len(r.buf), length)
	}
	value := r.buf[:length]
	r.buf = r.buf[length:]
	return value, nil
}

// Remaining returns the number of unread payload bytes.
func (r *RowReader) Remaining() int { return len(r.buf) }
