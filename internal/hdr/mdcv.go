package hdr

import (
	"fmt"
	"math"

	"github.com/zsiec/hdredit/internal/bitio"
)

// MDCVSize is the encoded size of a mastering display colour volume payload.
const MDCVSize = 24

// luminanceScale converts nits to the stored 0.0001 cd/m2 units.
const luminanceScale = 10_000.0

// chromaticityScale converts stored primaries to CIE 1931 coordinates.
const chromaticityScale = 50_000.0

// Primaries holds the display primaries and white point in units of 0.00002.
// Index order is red, green, blue.
type Primaries struct {
	X          [3]uint16 `json:"display_primaries_x" yaml:"display_primaries_x"`
	Y          [3]uint16 `json:"display_primaries_y" yaml:"display_primaries_y"`
	WhitePoint [2]uint16 `json:"white_point" yaml:"white_point"`
}

// MDCV is a decoded mastering_display_colour_volume SEI payload.
type MDCV struct {
	Primaries Primaries `json:"primaries"`

	// Luminance fields are in units of 0.0001 nits: 1000 nits = 10000000.
	MaxLuminance uint32 `json:"max_luminance"`
	MinLuminance uint32 `json:"min_luminance"`
}

// DecodeMDCV parses the 24-byte MDCV layout: three (x, y) primaries, the white
// point, then max and min display mastering luminance.
func DecodeMDCV(data []byte) (MDCV, error) {
	r := bitio.NewReader(data)
	var m MDCV

	for c := 0; c < 3; c++ {
		x, err := r.ReadUint16()
		if err != nil {
			return MDCV{}, fmt.Errorf("mdcv primary %d x: %w", c, err)
		}
		y, err := r.ReadUint16()
		if err != nil {
			return MDCV{}, fmt.Errorf("mdcv primary %d y: %w", c, err)
		}
		m.Primaries.X[c] = x
		m.Primaries.Y[c] = y
	}

	for i := range m.Primaries.WhitePoint {
		v, err := r.ReadUint16()
		if err != nil {
			return MDCV{}, fmt.Errorf("mdcv white point: %w", err)
		}
		m.Primaries.WhitePoint[i] = v
	}

	var err error
	if m.MaxLuminance, err = r.ReadUint32(); err != nil {
		return MDCV{}, fmt.Errorf("mdcv max luminance: %w", err)
	}
	if m.MinLuminance, err = r.ReadUint32(); err != nil {
		return MDCV{}, fmt.Errorf("mdcv min luminance: %w", err)
	}

	return m, nil
}

// Encode writes m in the same order and widths DecodeMDCV reads.
func (m MDCV) Encode() ([]byte, error) {
	w := bitio.NewWriter(MDCVSize)

	for c := 0; c < 3; c++ {
		if err := w.Write(uint64(m.Primaries.X[c]), 16); err != nil {
			return nil, err
		}
		if err := w.Write(uint64(m.Primaries.Y[c]), 16); err != nil {
			return nil, err
		}
	}
	for _, v := range m.Primaries.WhitePoint {
		if err := w.Write(uint64(v), 16); err != nil {
			return nil, err
		}
	}
	if err := w.Write(uint64(m.MaxLuminance), 32); err != nil {
		return nil, err
	}
	if err := w.Write(uint64(m.MinLuminance), 32); err != nil {
		return nil, err
	}

	return w.Bytes(), nil
}

// Apply returns a copy of m with the edit merged in. Explicit primaries win
// over a preset; luminance overrides are given in nits.
func (m MDCV) Apply(e *EditMDCV) MDCV {
	if e == nil {
		return m
	}

	switch {
	case e.Primaries != nil:
		m.Primaries = *e.Primaries
	case e.Preset != nil:
		m.Primaries = e.Preset.Primaries()
	}

	if e.MaxLuminance != nil {
		m.MaxLuminance = NitsToLuminance(*e.MaxLuminance)
	}
	if e.MinLuminance != nil {
		m.MinLuminance = NitsToLuminance(*e.MinLuminance)
	}

	return m
}

// NitsToLuminance converts nits to the stored 0.0001-nit unit, rounding to
// the nearest integer and saturating at the bounds of uint32.
func NitsToLuminance(nits float64) uint32 {
	v := math.Round(nits * luminanceScale)
	switch {
	case math.IsNaN(v) || v <= 0:
		return 0
	case v >= math.MaxUint32:
		return math.MaxUint32
	}
	return uint32(v)
}

// MaxNits returns the max display mastering luminance in nits.
func (m MDCV) MaxNits() float64 { return float64(m.MaxLuminance) / luminanceScale }

// MinNits returns the min display mastering luminance in nits.
func (m MDCV) MinNits() float64 { return float64(m.MinLuminance) / luminanceScale }

// String formats the primaries as CIE xy coordinates, naming the preset when
// the primaries match one exactly.
func (p Primaries) String() string {
	if preset, ok := MatchPreset(p); ok {
		return preset.String()
	}
	return fmt.Sprintf("R(%.5f,%.5f) G(%.5f,%.5f) B(%.5f,%.5f) WP(%.5f,%.5f)",
		float64(p.X[0])/chromaticityScale, float64(p.Y[0])/chromaticityScale,
		float64(p.X[1])/chromaticityScale, float64(p.Y[1])/chromaticityScale,
		float64(p.X[2])/chromaticityScale, float64(p.Y[2])/chromaticityScale,
		float64(p.WhitePoint[0])/chromaticityScale, float64(p.WhitePoint[1])/chromaticityScale)
}
