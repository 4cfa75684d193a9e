package hevc

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collect drains the scanner and returns every NAL payload in order.
func collect(t *testing.T, s *Scanner) [][]byte {
	t.Helper()
	var nals [][]byte
	for {
		chunk, units, err := s.Next()
		if errors.Is(err, io.EOF) {
			return nals
		}
		require.NoError(t, err)
		for _, u := range units {
			assert.Equal(t, NALType(chunk[u.Start]), u.Type)
			nals = append(nals, append([]byte(nil), chunk[u.Start:u.End]...))
		}
	}
}

func sampleStream() ([]byte, [][]byte) {
	nals := [][]byte{
		{0x40, 0x01, 0x0C, 0x01, 0xFF},                         // VPS
		{0x42, 0x01, 0x01, 0x01, 0x60},                         // SPS
		{0x44, 0x01, 0xC1, 0x72},                               // PPS
		{0x4E, 0x01, 0x89, 0x18, 0x00, 0x00, 0x03, 0x00, 0x80}, // SEI prefix
		{0x26, 0x01, 0xAF, 0x00, 0x00, 0x03, 0x01, 0x22},       // IDR
		{0x02, 0x01, 0xD0, 0x9A},                               // TRAIL_R
	}
	var stream []byte
	for i, n := range nals {
		if i == 2 {
			stream = append(stream, 0x00, 0x00, 0x01)
		} else {
			stream = append(stream, StartCode...)
		}
		stream = append(stream, n...)
	}
	return stream, nals
}

func TestScannerSingleChunk(t *testing.T) {
	t.Parallel()
	stream, want := sampleStream()
	got := collect(t, NewScanner(bytes.NewReader(stream), 0))
	assert.Equal(t, want, got)
}

func TestScannerAnyChunkSize(t *testing.T) {
	t.Parallel()
	stream, want := sampleStream()
	for size := 1; size <= len(stream)+1; size++ {
		got := collect(t, NewScanner(bytes.NewReader(stream), size))
		require.Equal(t, want, got, "chunk size %d", size)
	}
}

func TestScannerTypes(t *testing.T) {
	t.Parallel()
	stream, _ := sampleStream()
	s := NewScanner(bytes.NewReader(stream), 0)
	_, units, err := s.Next()
	require.NoError(t, err)

	var types []byte
	for _, u := range units {
		types = append(types, u.Type)
	}
	assert.Equal(t, []byte{NALVPS, NALSPS, NALPPS, NALSEIPrefix, NALIDRWRadl, 1}, types)
	assert.True(t, IsKeyframe(units[4].Type))
	assert.False(t, IsKeyframe(units[0].Type))
}

func TestScannerSkipsLeadingGarbageAndTrailingZeros(t *testing.T) {
	t.Parallel()
	stream := []byte{0xDE, 0xAD, 0x00, 0x00, 0x00, 0x01, 0x40, 0x01, 0x0C, 0x00, 0x00, 0x00, 0x00, 0x01, 0x42, 0x01, 0x01, 0x00, 0x00}
	got := collect(t, NewScanner(bytes.NewReader(stream), 4))
	assert.Equal(t, [][]byte{{0x40, 0x01, 0x0C}, {0x42, 0x01, 0x01}}, got)
}

func TestScannerEmptyInput(t *testing.T) {
	t.Parallel()
	s := NewScanner(bytes.NewReader(nil), 16)
	_, _, err := s.Next()
	require.ErrorIs(t, err, io.EOF)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk on fire") }

func TestScannerReadError(t *testing.T) {
	t.Parallel()
	_, _, err := NewScanner(failingReader{}, 16).Next()
	require.Error(t, err)
	assert.NotErrorIs(t, err, io.EOF)
	assert.Contains(t, err.Error(), "disk on fire")
}

func TestScannerLongNALAcrossReads(t *testing.T) {
	t.Parallel()
	body := make([]byte, 1<<16)
	for i := range body {
		body[i] = byte(i%251) | 0x04
	}
	// Near misses that must not be taken for start codes.
	for i := 100; i+3 < len(body); i += 997 {
		copy(body[i:], []byte{0x00, 0x00, 0x03})
	}
	long := append([]byte{0x26, 0x01}, body...)
	want := [][]byte{{0x40, 0x01, 0x0C}, long, {0x02, 0x01, 0xD0}}

	var stream []byte
	for _, n := range want {
		stream = append(stream, StartCode...)
		stream = append(stream, n...)
	}
	for _, size := range []int{1, 2, 3, 5, 188, 4096} {
		got := collect(t, NewScanner(bytes.NewReader(stream), size))
		require.Len(t, got, len(want), "chunk size %d", size)
		for i := range want {
			require.True(t, bytes.Equal(want[i], got[i]), "chunk size %d nal %d", size, i)
		}
	}
}

func TestFindStartCodesFrom(t *testing.T) {
	t.Parallel()
	data := []byte{0x00, 0x00, 0x01, 0x40, 0x01, 0x00, 0x00, 0x01, 0x42, 0x00, 0x00, 0x00, 0x01, 0x44}
	assert.Equal(t, []int{3, 8, 13}, findStartCodes(data, 0, nil))
	assert.Equal(t, []int{3, 8, 13}, findStartCodes(data, 3, []int{3}))
	// A start code beginning exactly at from is still found.
	assert.Equal(t, []int{8, 13}, findStartCodes(data, 5, nil))
	assert.Equal(t, []int{13}, findStartCodes(data, 6, nil))
	assert.Empty(t, findStartCodes(data, len(data), nil))
}
