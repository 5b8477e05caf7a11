package wire

import (
	"encoding/binary"
	"fmt"
	"math"
)

const (
	// BoundaryWireWidth is the encoded width of one boundary table entry.
	BoundaryWireWidth = 4
	// ElementWireWidth is the encoded width of one payload element.
	ElementWireWidth = 8
)

// Package is one logical message: header, boundary table, flat payload.
// A Package owns its header, boundaries and payload exclusively; Build and
// ParseContent copy element data so no buffer is shared across packages.
type Package struct {
	Header     Header
	Boundaries []int32
	Payload    []float64
}

// Build flattens an ordered list of buffers into a Package. An empty or nil
// buffer list is legal and produces a header-only package. The receiver rank
// stays unset until send time.
func Build(buffers [][]float64, sender Rank, code MessageCode) (*Package, error) {
	pkg := &Package{
		Header: Header{Sender: sender, Receiver: AnyRank, Code: code},
	}
	if len(buffers) == 0 {
		return pkg, nil
	}
	total := 0
	for i, buf := range buffers {
		if err := checkBufferLen(i, len(buf)); err != nil {
			return nil, err
		}
		total += len(buf)
	}
	pkg.Boundaries = make([]int32, 0, len(buffers))
	pkg.Payload = make([]float64, 0, total)
	for _, buf := range buffers {
		pkg.Boundaries = append(pkg.Boundaries, int32(len(buf)))
		pkg.Payload = append(pkg.Payload, buf...)
	}
	pkg.Header.BoundaryCount = int32(len(pkg.Boundaries))
	return pkg, nil
}

// checkBufferLen rejects sub-buffer lengths the int32 boundary table cannot
// record. Lengths past math.MaxInt32 would otherwise wrap to a wrong or
// negative boundary entry.
func checkBufferLen(i, n int) error {
	if n == 0 {
		return fmt.Errorf("%w: buffer %d has no elements", ErrInvalidInput, i)
	}
	if n > math.MaxInt32 {
		return fmt.Errorf("%w: buffer %d has %d elements, boundary limit is %d", ErrInvalidInput, i, n, math.MaxInt32)
	}
	return nil
}

// ParseContent splits a flat payload back into consecutive sub-buffers of the
// lengths recorded in boundaries, with no gaps or overlaps.
func ParseContent(boundaries []int32, payload []float64) ([][]float64, error) {
	total := 0
	for i, n := range boundaries {
		if n <= 0 {
			return nil, fmt.Errorf("%w: boundary %d is %d", ErrInvalidInput, i, n)
		}
		total += int(n)
	}
	if total != len(payload) {
		return nil, fmt.Errorf("%w: boundaries sum to %d, payload has %d elements", ErrLengthMismatch, total, len(payload))
	}
	buffers := make([][]float64, 0, len(boundaries))
	offset := 0
	for _, n := range boundaries {
		buf := make([]float64, n)
		copy(buf, payload[offset:offset+int(n)])
		buffers = append(buffers, buf)
		offset += int(n)
	}
	return buffers, nil
}

func EncodeBoundaries(boundaries []int32) []byte {
	buf := make([]byte, len(boundaries)*BoundaryWireWidth)
	for i, n := range boundaries {
		binary.BigEndian.PutUint32(buf[i*BoundaryWireWidth:], uint32(n))
	}
	return buf
}

func ParseBoundaries(buf []byte) ([]int32, error) {
	if len(buf)%BoundaryWireWidth != 0 {
		return nil, fmt.Errorf("%w: boundary table of %d bytes", ErrLengthMismatch, len(buf))
	}
	boundaries := make([]int32, len(buf)/BoundaryWireWidth)
	for i := range boundaries {
		boundaries[i] = int32(binary.BigEndian.Uint32(buf[i*BoundaryWireWidth:]))
	}
	return boundaries, nil
}

func EncodePayload(payload []float64) []byte {
	buf := make([]byte, len(payload)*ElementWireWidth)
	for i, v := range payload {
		binary.BigEndian.PutUint64(buf[i*ElementWireWidth:], math.Float64bits(v))
	}
	return buf
}

func ParsePayload(buf []byte) ([]float64, error) {
	if len(buf)%ElementWireWidth != 0 {
		return nil, fmt.Errorf("%w: payload of %d bytes", ErrLengthMismatch, len(buf))
	}
	payload := make([]float64, len(buf)/ElementWireWidth)
	for i := range payload {
		payload[i] = math.Float64frombits(binary.BigEndian.Uint64(buf[i*ElementWireWidth:]))
	}
	return payload, nil
}

// ElementSum returns the payload element count the boundary table implies.
func ElementSum(boundaries []int32) int {
	total := 0
	for _, n := range boundaries {
		total += int(n)
	}
	return total
}
