package mkv

import (
	"errors"
	"fmt"
)

// ErrBadCodecPrivate is returned when the HEVC track's CodecPrivate is not a
// usable HEVCDecoderConfigurationRecord.
var ErrBadCodecPrivate = errors.New("mkv: invalid hvcC codec private data")

// hvcCHeaderSize covers everything up to and including numOfArrays.
const hvcCHeaderSize = 23

// decoderConfig is the part of an hvcC record needed to turn samples into
// Annex B.
type decoderConfig struct {
	// lengthSize is the width of the NAL length prefix in samples.
	lengthSize int
	// nalus holds the parameter set arrays in record order (VPS, SPS, PPS and
	// any SEI), without start codes.
	nalus [][]byte
}

func parseHVCC(b []byte) (decoderConfig, error) {
	if len(b) < hvcCHeaderSize {
		return decoderConfig{}, fmt.Errorf("%w: %d bytes", ErrBadCodecPrivate, len(b))
	}

	cfg := decoderConfig{lengthSize: int(b[21]&0x03) + 1}
	if cfg.lengthSize == 3 {
		return decoderConfig{}, fmt.Errorf("%w: length size 3", ErrBadCodecPrivate)
	}

	numArrays := int(b[22])
	pos := hvcCHeaderSize
	for i := 0; i < numArrays; i++ {
		if pos+3 > len(b) {
			return decoderConfig{}, fmt.Errorf("%w: truncated array header", ErrBadCodecPrivate)
		}
		numNalus := int(b[pos+1])<<8 | int(b[pos+2])
		pos += 3

		for j := 0; j < numNalus; j++ {
			if pos+2 > len(b) {
				return decoderConfig{}, fmt.Errorf("%w: truncated NAL length", ErrBadCodecPrivate)
			}
			n := int(b[pos])<<8 | int(b[pos+1])
			pos += 2
			if pos+n > len(b) {
				return decoderConfig{}, fmt.Errorf("%w: truncated NAL", ErrBadCodecPrivate)
			}
			cfg.nalus = append(cfg.nalus, append([]byte(nil), b[pos:pos+n]...))
			pos += n
		}
	}
	return cfg, nil
}
