package hdr

import (
	"fmt"
	"strings"
)

// d65WhitePoint is the CIE D65 white point shared by all presets.
var d65WhitePoint = [2]uint16{15635, 16450}

// Preset names a standard set of display primaries.
type Preset int

// Supported primaries presets.
const (
	PresetBT709 Preset = iota + 1
	PresetDisplayP3
	PresetBT2020
)

var presetPrimaries = map[Preset]Primaries{
	PresetBT709: {
		X:          [3]uint16{32000, 15000, 7500},
		Y:          [3]uint16{16500, 30000, 3000},
		WhitePoint: d65WhitePoint,
	},
	PresetDisplayP3: {
		X:          [3]uint16{34000, 13250, 7500},
		Y:          [3]uint16{16000, 34500, 3000},
		WhitePoint: d65WhitePoint,
	},
	PresetBT2020: {
		X:          [3]uint16{35400, 8500, 6550},
		Y:          [3]uint16{14600, 39850, 2300},
		WhitePoint: d65WhitePoint,
	},
}

var presetAliases = map[string]Preset{
	"bt709":      PresetBT709,
	"bt.709":     PresetBT709,
	"709":        PresetBT709,
	"displayp3":  PresetDisplayP3,
	"display-p3": PresetDisplayP3,
	"p3-d65":     PresetDisplayP3,
	"bt2020":     PresetBT2020,
	"bt.2020":    PresetBT2020,
	"2020":       PresetBT2020,
}

// ParsePreset resolves a preset identifier or one of its aliases,
// ignoring case.
func ParsePreset(s string) (Preset, error) {
	p, ok := presetAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("unknown primaries preset %q", s)
	}
	return p, nil
}

// Primaries returns the constant primaries table of the preset.
func (p Preset) Primaries() Primaries {
	return presetPrimaries[p]
}

func (p Preset) String() string {
	switch p {
	case PresetBT709:
		return "BT.709"
	case PresetDisplayP3:
		return "Display-P3"
	case PresetBT2020:
		return "BT.2020"
	default:
		return fmt.Sprintf("Preset(%d)", int(p))
	}
}

// UnmarshalText implements encoding.TextUnmarshaler for JSON and YAML configs.
func (p *Preset) UnmarshalText(text []byte) error {
	v, err := ParsePreset(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (p Preset) MarshalText() ([]byte, error) {
	if _, ok := presetPrimaries[p]; !ok {
		return nil, fmt.Errorf("invalid preset %d", int(p))
	}
	return []byte(p.String()), nil
}

// MatchPreset reports which preset, if any, has exactly the given primaries.
func MatchPreset(prim Primaries) (Preset, bool) {
	for _, p := range []Preset{PresetBT709, PresetDisplayP3, PresetBT2020} {
		if presetPrimaries[p] == prim {
			return p, true
		}
	}
	return 0, false
}
