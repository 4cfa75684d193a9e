package sei

import (
	"errors"
	"fmt"

	"github.com/zsiec/hdredit/internal/bitio"
	"github.com/zsiec/hdredit/internal/hevc"
)

// MaxPayloadSize is the largest payload the single-byte size field can carry.
// Larger sizes need the 0xFF continuation coding, which is not written.
const MaxPayloadSize = 255

// MaxPayloadType is the largest payload type the single-byte type field can carry.
const MaxPayloadType = 255

var (
	// ErrPayloadTooLarge is returned when a payload exceeds MaxPayloadSize.
	ErrPayloadTooLarge = errors.New("sei: payload too large")
	// ErrPayloadTypeTooLarge is returned when a payload type exceeds MaxPayloadType.
	ErrPayloadTypeTooLarge = errors.New("sei: payload type too large")
)

// EncodePrefixNAL builds a complete SEI-prefix NAL unit carrying one message:
// the 2-byte NAL header, 8-bit payload type, 8-bit payload size, the payload,
// the 0x80 trailing byte, with emulation prevention applied over the whole
// unit. The start code is not included.
func EncodePrefixNAL(payloadType int, payload []byte) ([]byte, error) {
	if payloadType < 0 || payloadType > MaxPayloadType {
		return nil, fmt.Errorf("%w: %d", ErrPayloadTypeTooLarge, payloadType)
	}
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload))
	}

	w := bitio.NewWriter(hevc.NALHeaderSize + 2)
	w.WriteFlag(false) // forbidden_zero_bit
	fields := []struct {
		value uint64
		width int
	}{
		{hevc.NALSEIPrefix, 6}, // nal_unit_type
		{0, 6},                 // nuh_layer_id
		{1, 3},                 // nuh_temporal_id_plus1
		{uint64(payloadType), 8},
		{uint64(len(payload)), 8},
	}
	for _, f := range fields {
		if err := w.Write(f.value, f.width); err != nil {
			return nil, err
		}
	}

	data := w.Bytes()
	data = append(data, payload...)
	data = append(data, rbspStopByte)

	return hevc.InsertEmulationPrevention(data), nil
}
