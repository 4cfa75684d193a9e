package mkv

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	idEBML          = 0x1A45DFA3
	idSegment       = 0x18538067
	idInfo          = 0x1549A966
	idTimecodeScale = 0x2AD7B1
	idTracks        = 0x1654AE6B
	idTrackEntry    = 0xAE
	idTrackNumber   = 0xD7
	idTrackType     = 0x83
	idCodecID       = 0x86
	idCodecPrivate  = 0x63A2
	idCluster       = 0x1F43B675
	idTimecode      = 0xE7
	idSimpleBlock   = 0xA3
	idBlockGroup    = 0xA0
	idBlock         = 0xA1
)

var (
	vps   = []byte{0x40, 0x01, 0x0C, 0x01, 0xFF}
	sps   = []byte{0x42, 0x01, 0x01, 0x01, 0x60}
	pps   = []byte{0x44, 0x01, 0xC1, 0x72}
	idr   = []byte{0x26, 0x01, 0xAF, 0x00, 0x00, 0x03, 0x01, 0x22}
	trail = []byte{0x02, 0x01, 0xD0, 0x9A}
)

func elementSize(n int) []byte {
	switch {
	case n < 0x7F:
		return []byte{0x80 | byte(n)}
	case n < 0x3FFF:
		return []byte{0x40 | byte(n>>8), byte(n)}
	default:
		b := make([]byte, 8)
		binary.BigEndian.PutUint64(b, uint64(n))
		b[0] = 0x01
		return b
	}
}

// element encodes an EBML element; id already carries its length marker.
func element(id uint32, body ...[]byte) []byte {
	var out []byte
	switch {
	case id > 0xFFFFFF:
		out = []byte{byte(id >> 24), byte(id >> 16), byte(id >> 8), byte(id)}
	case id > 0xFFFF:
		out = []byte{byte(id >> 16), byte(id >> 8), byte(id)}
	case id > 0xFF:
		out = []byte{byte(id >> 8), byte(id)}
	default:
		out = []byte{byte(id)}
	}
	payload := bytes.Join(body, nil)
	out = append(out, elementSize(len(payload))...)
	return append(out, payload...)
}

func uintElement(id uint32, v uint64) []byte {
	b := []byte{byte(v)}
	for v >>= 8; v > 0; v >>= 8 {
		b = append([]byte{byte(v)}, b...)
	}
	return element(id, b)
}

// hvcC builds a decoder configuration record with one array per NAL.
func hvcC(lengthSize int, nals ...[]byte) []byte {
	b := make([]byte, hvcCHeaderSize)
	b[0] = 1
	b[21] = 0xFC | byte(lengthSize-1)
	b[22] = byte(len(nals))
	for _, n := range nals {
		b = append(b, 0x80|(n[0]>>1)&0x3F, 0x00, 0x01, byte(len(n)>>8), byte(len(n)))
		b = append(b, n...)
	}
	return b
}

// sample length-prefixes nals the way a Matroska HEVC frame stores them.
func sample(lengthSize int, nals ...[]byte) []byte {
	var out []byte
	for _, n := range nals {
		prefix := make([]byte, 4)
		binary.BigEndian.PutUint32(prefix, uint32(len(n)))
		out = append(out, prefix[4-lengthSize:]...)
		out = append(out, n...)
	}
	return out
}

func blockPayload(track, flags byte, data []byte) []byte {
	return append([]byte{0x80 | track, 0x00, 0x00, flags}, data...)
}

func trackEntryElement(number uint64, codec string, private []byte) []byte {
	children := [][]byte{
		uintElement(idTrackNumber, number),
		uintElement(idTrackType, 1),
		element(idCodecID, []byte(codec)),
	}
	if private != nil {
		children = append(children, element(idCodecPrivate, private))
	}
	return element(idTrackEntry, children...)
}

func matroska(tracks []byte, clusters ...[]byte) []byte {
	header := element(idEBML,
		uintElement(0x4286, 1),
		uintElement(0x42F7, 1),
		uintElement(0x42F2, 4),
		uintElement(0x42F3, 8),
		element(0x4282, []byte("matroska")),
		uintElement(0x4287, 4),
		uintElement(0x4285, 2),
	)
	body := [][]byte{
		element(idInfo, uintElement(idTimecodeScale, 1_000_000)),
		element(idTracks, tracks),
	}
	body = append(body, clusters...)
	return append(header, element(idSegment, body...)...)
}

func annexB(nals ...[]byte) []byte {
	var out []byte
	for _, n := range nals {
		out = append(out, 0x00, 0x00, 0x00, 0x01)
		out = append(out, n...)
	}
	return out
}

func extract(t *testing.T, ctx context.Context, file []byte) ([]byte, error) {
	t.Helper()
	var out bytes.Buffer
	n, err := NewExtractor(bytes.NewReader(file), slog.New(slog.DiscardHandler)).WriteTo(ctx, &out)
	assert.Equal(t, int64(out.Len()), n)
	return out.Bytes(), err
}

func TestExtractHEVCTrack(t *testing.T) {
	t.Parallel()
	tracks := bytes.Join([][]byte{
		trackEntryElement(1, "A_AAC", []byte{0x11, 0x90}),
		trackEntryElement(2, CodecHEVC, hvcC(4, vps, sps, pps)),
	}, nil)
	cluster := element(idCluster,
		uintElement(idTimecode, 0),
		element(idSimpleBlock, blockPayload(2, 0x80, sample(4, idr, trail))),
		element(idSimpleBlock, blockPayload(1, 0x80, []byte{0x21, 0x10, 0x04})),
		element(idBlockGroup, element(idBlock, blockPayload(2, 0x00, sample(4, trail)))),
	)

	got, err := extract(t, context.Background(), matroska(tracks, cluster))
	require.NoError(t, err)
	assert.Equal(t, annexB(vps, sps, pps, idr, trail, trail), got)
}

func TestExtractTwoByteLengths(t *testing.T) {
	t.Parallel()
	tracks := trackEntryElement(1, CodecHEVC, hvcC(2, vps, sps, pps))
	cluster := element(idCluster,
		uintElement(idTimecode, 0),
		element(idSimpleBlock, blockPayload(1, 0x80, sample(2, idr))),
	)

	got, err := extract(t, context.Background(), matroska(tracks, cluster))
	require.NoError(t, err)
	assert.Equal(t, annexB(vps, sps, pps, idr), got)
}

func TestExtractFirstHEVCTrackOnly(t *testing.T) {
	t.Parallel()
	tracks := bytes.Join([][]byte{
		trackEntryElement(1, CodecHEVC, hvcC(4, vps, sps, pps)),
		trackEntryElement(2, CodecHEVC, hvcC(4, sps)),
	}, nil)
	cluster := element(idCluster,
		element(idSimpleBlock, blockPayload(2, 0x80, sample(4, trail))),
		element(idSimpleBlock, blockPayload(1, 0x80, sample(4, idr))),
	)

	got, err := extract(t, context.Background(), matroska(tracks, cluster))
	require.NoError(t, err)
	assert.Equal(t, annexB(vps, sps, pps, idr), got)
}

func TestExtractNoHEVCTrack(t *testing.T) {
	t.Parallel()
	tracks := trackEntryElement(1, "V_MPEG4/ISO/AVC", []byte{0x01, 0x64, 0x00, 0x28})
	cluster := element(idCluster, element(idSimpleBlock, blockPayload(1, 0x80, sample(4, idr))))

	got, err := extract(t, context.Background(), matroska(tracks, cluster))
	require.ErrorIs(t, err, ErrNoHEVCTrack)
	assert.Empty(t, got)
}

func TestExtractBadCodecPrivate(t *testing.T) {
	t.Parallel()
	tracks := trackEntryElement(1, CodecHEVC, []byte{0x01, 0x02, 0x03})

	_, err := extract(t, context.Background(), matroska(tracks))
	require.ErrorIs(t, err, ErrBadCodecPrivate)
}

func TestExtractDropsBadFrame(t *testing.T) {
	t.Parallel()
	bad := append(sample(4, trail), 0x00, 0x00, 0x01, 0x00, 0x26)
	tracks := trackEntryElement(1, CodecHEVC, hvcC(4, vps))
	cluster := element(idCluster,
		element(idSimpleBlock, blockPayload(1, 0x80, bad)),
		element(idSimpleBlock, []byte{0x00}),
		element(idSimpleBlock, blockPayload(1, 0x00, sample(4, idr))),
	)

	got, err := extract(t, context.Background(), matroska(tracks, cluster))
	require.NoError(t, err)
	assert.Equal(t, annexB(vps, trail, idr), got)
}

func TestExtractCancelled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tracks := trackEntryElement(1, CodecHEVC, hvcC(4, vps))
	cluster := element(idCluster, element(idSimpleBlock, blockPayload(1, 0x80, sample(4, idr))))

	_, err := extract(t, ctx, matroska(tracks, cluster))
	require.ErrorIs(t, err, context.Canceled)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("pipe closed") }

func TestExtractWriteError(t *testing.T) {
	t.Parallel()
	file := matroska(trackEntryElement(1, CodecHEVC, hvcC(4, vps)))
	_, err := NewExtractor(bytes.NewReader(file), nil).WriteTo(context.Background(), failingWriter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipe closed")
	assert.NotErrorIs(t, err, io.EOF)
}

func TestParseBlockLacing(t *testing.T) {
	t.Parallel()
	a := bytes.Repeat([]byte{0xAA}, 300)
	b := []byte{0xBB, 0xBB}
	c := []byte{0xCC, 0xCC, 0xCC}
	frames := bytes.Join([][]byte{a, b, c}, nil)

	tests := []struct {
		name   string
		header []byte
		data   []byte
		want   [][]byte
	}{
		{name: "none", header: []byte{0x81, 0x00, 0x00, 0x80}, data: c, want: [][]byte{c}},
		{name: "xiph", header: []byte{0x81, 0x00, 0x00, 0x02, 0x02, 0xFF, 0x2D, 0x02}, data: frames, want: [][]byte{a, b, c}},
		// 300 as a 2-byte vint, then 2-300 biased by 8191.
		{name: "ebml", header: []byte{0x81, 0x00, 0x00, 0x06, 0x02, 0x41, 0x2C, 0x5E, 0xD5}, data: frames, want: [][]byte{a, b, c}},
		{name: "fixed", header: []byte{0x81, 0x00, 0x00, 0x04, 0x02}, data: bytes.Repeat(c, 3), want: [][]byte{c, c, c}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			track, got, err := parseBlock(append(append([]byte(nil), tt.header...), tt.data...))
			require.NoError(t, err)
			assert.Equal(t, uint64(1), track)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseBlockMalformed(t *testing.T) {
	t.Parallel()
	for _, data := range [][]byte{
		nil,
		{0x00, 0x00, 0x00, 0x00},
		{0x81, 0x00},
		{0x81, 0x00, 0x00, 0x02},
		{0x81, 0x00, 0x00, 0x02, 0x01, 0x10, 0xAA},
		{0x81, 0x00, 0x00, 0x04, 0x02, 0xAA, 0xBB},
		{0x81, 0x00, 0x00, 0x06, 0x02, 0x40, 0x10, 0x40, 0x00, 0xAA},
	} {
		_, _, err := parseBlock(data)
		assert.ErrorIs(t, err, ErrMalformedBlock, "% x", data)
	}
}

func TestParseHVCC(t *testing.T) {
	t.Parallel()
	cfg, err := parseHVCC(hvcC(4, vps, sps, pps))
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.lengthSize)
	assert.Equal(t, [][]byte{vps, sps, pps}, cfg.nalus)

	record := hvcC(4, vps, sps)
	for _, cut := range []int{10, hvcCHeaderSize + 2, hvcCHeaderSize + 4, len(record) - 1} {
		_, err := parseHVCC(record[:cut])
		assert.ErrorIs(t, err, ErrBadCodecPrivate, "cut at %d", cut)
	}

	_, err = parseHVCC(hvcC(3, vps))
	assert.ErrorIs(t, err, ErrBadCodecPrivate)
}

func TestSplitLengthPrefixed(t *testing.T) {
	t.Parallel()
	nals, err := splitLengthPrefixed(sample(1, vps, trail), 1)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{vps, trail}, nals)

	nals, err = splitLengthPrefixed(append(sample(2, vps), 0x00), 2)
	require.ErrorIs(t, err, ErrMalformedBlock)
	assert.Equal(t, [][]byte{vps}, nals)
}
