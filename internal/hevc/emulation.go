package hevc

// RemoveEmulationPrevention returns a copy of data with every
// emulation_prevention_three_byte (the 0x03 in 00 00 03) removed.
func RemoveEmulationPrevention(data []byte) []byte {
	out := make([]byte, 0, len(data))
	zeros := 0
	for _, b := range data {
		if zeros >= 2 && b == 0x03 {
			zeros = 0
			continue
		}
		out = append(out, b)
		if b == 0x00 {
			zeros++
		} else {
			zeros = 0
		}
	}
	return out
}

// InsertEmulationPrevention returns a copy of data with a 0x03 byte inserted
// after any two consecutive zero bytes that are followed by a byte <= 0x03.
func InsertEmulationPrevention(data []byte) []byte {
	out := make([]byte, 0, len(data)+len(data)/64+1)
	zeros := 0
	for _, b := range data {
		if zeros == 2 && b <= 0x03 {
			out = append(out, 0x03)
			zeros = 0
		}
		out = append(out, b)
		if b == 0x00 {
			zeros++
		} else {
			zeros = 0
		}
	}
	return out
}
