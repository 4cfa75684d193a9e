// Package mpegts pulls the HEVC elementary stream out of an MPEG transport
// stream so it can be fed to the editor as Annex B bytes.
package mpegts

import "fmt"

const (
	packetSize = 188
	syncByte   = 0x47
	pidPAT     = 0x0000
)

// Packet is a parsed 188-byte transport stream packet.
type Packet struct {
	PID                       uint16
	ContinuityCounter         uint8
	HasPayload                bool
	PayloadUnitStartIndicator bool
	TransportErrorIndicator   bool
	DiscontinuityIndicator    bool
	Payload                   []byte
}

// parsePacket parses buf in place; Payload aliases buf.
func parsePacket(buf []byte) (Packet, error) {
	if len(buf) != packetSize {
		return Packet{}, fmt.Errorf("mpegts: packet size %d, expected %d", len(buf), packetSize)
	}
	if buf[0] != syncByte {
		return Packet{}, fmt.Errorf("mpegts: invalid sync byte 0x%02X", buf[0])
	}

	p := Packet{
		TransportErrorIndicator:   buf[1]&0x80 != 0,
		PayloadUnitStartIndicator: buf[1]&0x40 != 0,
		PID:                       uint16(buf[1]&0x1F)<<8 | uint16(buf[2]),
		HasPayload:                buf[3]&0x10 != 0,
		ContinuityCounter:         buf[3] & 0x0F,
	}

	offset := 4
	if buf[3]&0x20 != 0 {
		afLen := int(buf[offset])
		if afLen > 0 && offset+1 < packetSize {
			p.DiscontinuityIndicator = buf[offset+1]&0x80 != 0
		}
		offset += 1 + afLen
	}

	if p.HasPayload && offset < packetSize {
		p.Payload = buf[offset:]
	}
	return p, nil
}

// LooksLikeTS reports whether prefix starts like a transport stream: a sync
// byte at offset 0 and, when available, again one packet later.
func LooksLikeTS(prefix []byte) bool {
	if len(prefix) == 0 || prefix[0] != syncByte {
		return false
	}
	return len(prefix) <= packetSize || prefix[packetSize] == syncByte
}
