package mpegts

import "fmt"

// pesPayload strips the PES header and returns the elementary stream bytes.
// Video PES packets usually carry packet_length 0, meaning unbounded.
func pesPayload(pes []byte) ([]byte, error) {
	if len(pes) < 9 {
		return nil, fmt.Errorf("mpegts: PES packet too short (%d bytes)", len(pes))
	}
	if pes[0] != 0x00 || pes[1] != 0x00 || pes[2] != 0x01 {
		return nil, fmt.Errorf("mpegts: invalid PES start code")
	}

	end := len(pes)
	if packetLength := int(pes[4])<<8 | int(pes[5]); packetLength > 0 && 6+packetLength < end {
		end = 6 + packetLength
	}

	start := 9 + int(pes[8])
	if start > end {
		return nil, fmt.Errorf("mpegts: PES header length %d exceeds packet", pes[8])
	}
	return pes[start:end], nil
}
