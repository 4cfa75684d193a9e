package mpegts

import (
	"errors"
	"fmt"
)

// ErrSectionCRC is returned for a PAT or PMT section whose CRC_32 does not
// check out. Such a section is dropped and the next repetition is used.
var ErrSectionCRC = errors.New("mpegts: section CRC mismatch")

// crcTable drives the MSB-first CRC-32/MPEG-2 (polynomial 0x04C11DB7, initial
// value all ones, no final XOR) that closes every PSI section.
var crcTable = makeCRCTable(0x04C11DB7)

func makeCRCTable(poly uint32) (table [256]uint32) {
	for i := range table {
		crc := uint32(i) << 24
		for range 8 {
			if crc&(1<<31) != 0 {
				crc = crc<<1 ^ poly
			} else {
				crc <<= 1
			}
		}
		table[i] = crc
	}
	return table
}

// sectionCRC returns the CRC-32/MPEG-2 of data.
func sectionCRC(data []byte) uint32 {
	crc := ^uint32(0)
	for _, b := range data {
		crc = crc<<8 ^ crcTable[byte(crc>>24)^b]
	}
	return crc
}

// checkSectionCRC validates a section that ends in its CRC_32 field. Running
// the CRC over the section including that field leaves zero.
func checkSectionCRC(section []byte) error {
	if len(section) < 4 {
		return fmt.Errorf("%w: %d bytes", ErrSectionCRC, len(section))
	}
	if got := sectionCRC(section); got != 0 {
		return fmt.Errorf("%w: residue %#x", ErrSectionCRC, got)
	}
	return nil
}
