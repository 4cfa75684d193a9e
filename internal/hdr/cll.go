package hdr

import (
	"fmt"

	"github.com/zsiec/hdredit/internal/bitio"
)

// CLLSize is the encoded size of a content light level payload.
const CLLSize = 4

// CLL is a decoded content_light_level_info SEI payload. Values are nits.
type CLL struct {
	MaxContentLightLevel uint16 `json:"max_content_light_level"`
	MaxAverageLightLevel uint16 `json:"max_average_light_level"`
}

// DecodeCLL parses MaxCLL followed by MaxFALL, 16 bits each.
func DecodeCLL(data []byte) (CLL, error) {
	r := bitio.NewReader(data)

	maxCLL, err := r.ReadUint16()
	if err != nil {
		return CLL{}, fmt.Errorf("cll max content light level: %w", err)
	}
	maxFALL, err := r.ReadUint16()
	if err != nil {
		return CLL{}, fmt.Errorf("cll max average light level: %w", err)
	}

	return CLL{MaxContentLightLevel: maxCLL, MaxAverageLightLevel: maxFALL}, nil
}

// Encode writes c in the layout DecodeCLL reads.
func (c CLL) Encode() ([]byte, error) {
	w := bitio.NewWriter(CLLSize)
	if err := w.Write(uint64(c.MaxContentLightLevel), 16); err != nil {
		return nil, err
	}
	if err := w.Write(uint64(c.MaxAverageLightLevel), 16); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// Apply returns a copy of c with each present override replacing its field.
func (c CLL) Apply(e *EditCLL) CLL {
	if e == nil {
		return c
	}
	if e.MaxContentLightLevel != nil {
		c.MaxContentLightLevel = *e.MaxContentLightLevel
	}
	if e.MaxAverageLightLevel != nil {
		c.MaxAverageLightLevel = *e.MaxAverageLightLevel
	}
	return c
}
