// Package hevc provides the H.265 bitstream plumbing the editor sits on:
// NAL header fields, emulation-prevention handling, a chunked Annex B
// scanner, and a summary parse of the sequence parameter set.
package hevc

// H.265/HEVC NAL unit type constants as defined in ITU-T H.265 Table 7-1.
const (
	NALBlaWLP     = 16
	NALIDRWRadl   = 19
	NALIDRNlp     = 20
	NALCraNut     = 21
	NALVPS        = 32
	NALSPS        = 33
	NALPPS        = 34
	NALAUD        = 35
	NALFillerData = 38
	NALSEIPrefix  = 39
	NALSEISuffix  = 40
)

// NALHeaderSize is the length of the HEVC NAL unit header in bytes.
const NALHeaderSize = 2

// StartCode is the 4-byte Annex B start code written before every output NAL.
var StartCode = []byte{0x00, 0x00, 0x00, 0x01}

// NALType extracts the NAL unit type from the first byte of an HEVC
// 2-byte NAL header: forbidden(1) | type(6) | layerID_high(1).
func NALType(firstByte byte) byte {
	return (firstByte >> 1) & 0x3F
}

// IsKeyframe returns true if the NAL type represents an HEVC random access
// point (BLA, IDR, or CRA).
func IsKeyframe(nalType byte) bool {
	return nalType >= NALBlaWLP && nalType <= NALCraNut
}

// Unit locates one NAL unit inside a scanner chunk. Start and End are byte
// offsets into the chunk and exclude the start code.
type Unit struct {
	Start int
	End   int
	Type  byte
}

// Len returns the NAL size in bytes.
func (u Unit) Len() int { return u.End - u.Start }
