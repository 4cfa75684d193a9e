package mpegts

import "fmt"

const (
	tableIDPAT = 0x00
	tableIDPMT = 0x02

	// StreamTypeHEVC is the PMT stream_type for H.265 video.
	StreamTypeHEVC = 0x24
)

type program struct {
	number uint16
	pmtPID uint16
}

type elementaryStream struct {
	pid        uint16
	streamType uint8
}

// psiTables holds the tables decoded from one PSI payload.
type psiTables struct {
	programs []program
	streams  []elementaryStream
}

// sectionsComplete reports whether payload, which starts with a pointer
// field, holds every section it announces.
func sectionsComplete(payload []byte) bool {
	if len(payload) < 1 {
		return false
	}
	offset := 1 + int(payload[0])
	if offset >= len(payload) {
		return false
	}
	for offset < len(payload) {
		if payload[offset] == 0xFF {
			return true
		}
		if offset+3 > len(payload) {
			return false
		}
		if payload[offset+1]&0x80 == 0 {
			return true
		}
		needed := 3 + (int(payload[offset+1]&0x0F)<<8 | int(payload[offset+2]))
		if offset+needed > len(payload) {
			return false
		}
		offset += needed
	}
	return true
}

func parsePSI(payload []byte) (psiTables, error) {
	var tables psiTables
	if len(payload) < 1 {
		return tables, fmt.Errorf("mpegts: PSI payload too short")
	}

	offset := 1 + int(payload[0])
	if offset >= len(payload) {
		return tables, fmt.Errorf("mpegts: PSI pointer field out of range")
	}

	for offset+3 <= len(payload) {
		tableID := payload[offset]
		if tableID == 0xFF || payload[offset+1]&0x80 == 0 {
			break
		}
		sectionEnd := offset + 3 + (int(payload[offset+1]&0x0F)<<8 | int(payload[offset+2]))
		if sectionEnd > len(payload) {
			break
		}
		section := payload[offset:sectionEnd]

		switch tableID {
		case tableIDPAT:
			progs, err := parsePATSection(section)
			if err != nil {
				return tables, err
			}
			tables.programs = append(tables.programs, progs...)
		case tableIDPMT:
			streams, err := parsePMTSection(section)
			if err != nil {
				return tables, err
			}
			tables.streams = append(tables.streams, streams...)
		}
		offset = sectionEnd
	}
	return tables, nil
}

func parsePATSection(data []byte) ([]program, error) {
	if len(data) < 12 {
		return nil, fmt.Errorf("mpegts: PAT too short")
	}
	if err := checkSectionCRC(data); err != nil {
		return nil, fmt.Errorf("PAT: %w", err)
	}

	// 8 header bytes, 4-byte entries, trailing CRC32.
	var progs []program
	for i := 8; i+4 <= len(data)-4; i += 4 {
		num := uint16(data[i])<<8 | uint16(data[i+1])
		if num == 0 {
			continue // NIT
		}
		progs = append(progs, program{
			number: num,
			pmtPID: uint16(data[i+2]&0x1F)<<8 | uint16(data[i+3]),
		})
	}
	return progs, nil
}

func parsePMTSection(data []byte) ([]elementaryStream, error) {
	if len(data) < 16 {
		return nil, fmt.Errorf("mpegts: PMT too short")
	}
	if err := checkSectionCRC(data); err != nil {
		return nil, fmt.Errorf("PMT: %w", err)
	}

	programInfoLength := int(data[10]&0x0F)<<8 | int(data[11])
	end := len(data) - 4

	var streams []elementaryStream
	for offset := 12 + programInfoLength; offset+5 <= end; {
		streams = append(streams, elementaryStream{
			streamType: data[offset],
			pid:        uint16(data[offset+1]&0x1F)<<8 | uint16(data[offset+2]),
		})
		offset += 5 + (int(data[offset+3]&0x0F)<<8 | int(data[offset+4]))
	}
	return streams, nil
}
