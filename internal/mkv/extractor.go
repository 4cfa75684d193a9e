// Package mkv extracts the HEVC video track of a Matroska file as an Annex B
// elementary stream.
package mkv

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/remko/go-mkvparse"

	"github.com/zsiec/hdredit/internal/hevc"
)

// CodecHEVC is the Matroska codec ID of HEVC video.
const CodecHEVC = "V_MPEGH/ISO/HEVC"

// ErrNoHEVCTrack is returned when the track list holds no HEVC video track.
var ErrNoHEVCTrack = errors.New("mkv: no HEVC video track found")

type trackEntry struct {
	number  uint64
	codec   string
	private []byte
}

// Extractor converts the first HEVC track of a Matroska stream to Annex B.
// The hvcC parameter sets are written first, then every frame of the track
// with its length prefixes replaced by start codes. Other tracks are ignored.
type Extractor struct {
	r   io.Reader
	log *slog.Logger

	ctx     context.Context
	w       io.Writer
	written int64

	entry  trackEntry
	track  uint64
	config decoderConfig
	found  bool

	blocks  int64
	dropped int64
}

// NewExtractor returns an Extractor reading a Matroska stream from r. The
// input is parsed sequentially and never seeked.
func NewExtractor(r io.Reader, log *slog.Logger) *Extractor {
	if log == nil {
		log = slog.Default()
	}
	return &Extractor{
		r:   r,
		log: log.With("component", "mkv"),
	}
}

// WriteTo writes the HEVC elementary stream to w until the input ends. A
// stream cut off mid-element after the HEVC track was found ends cleanly.
func (x *Extractor) WriteTo(ctx context.Context, w io.Writer) (int64, error) {
	x.ctx = ctx
	x.w = w

	err := mkvparse.Parse(x.r, x)
	switch {
	case err == nil:
	case x.found && errors.Is(err, io.ErrUnexpectedEOF):
		x.log.Warn("matroska stream truncated", "error", err)
	case errors.Is(err, ErrNoHEVCTrack) || errors.Is(err, ErrBadCodecPrivate):
		return x.written, err
	default:
		if ctxErr := ctx.Err(); ctxErr != nil {
			return x.written, ctxErr
		}
		return x.written, fmt.Errorf("mkv: %w", err)
	}

	if !x.found {
		return x.written, ErrNoHEVCTrack
	}
	x.log.Debug("matroska stream finished", "blocks", x.blocks, "dropped", x.dropped, "bytes", x.written)
	return x.written, nil
}

// HandleMasterBegin descends into every master element.
func (x *Extractor) HandleMasterBegin(id mkvparse.ElementID, _ mkvparse.ElementInfo) (bool, error) {
	if id == mkvparse.TrackEntryElement {
		x.entry = trackEntry{}
	}
	return true, nil
}

// HandleMasterEnd selects the first HEVC track once its entry is complete.
func (x *Extractor) HandleMasterEnd(id mkvparse.ElementID, _ mkvparse.ElementInfo) error {
	switch id {
	case mkvparse.TrackEntryElement:
		if x.found || x.entry.codec != CodecHEVC {
			return nil
		}
		cfg, err := parseHVCC(x.entry.private)
		if err != nil {
			return err
		}
		x.track = x.entry.number
		x.config = cfg
		x.found = true
		x.log.Info("found HEVC track", "track", x.track, "length_size", cfg.lengthSize, "parameter_sets", len(cfg.nalus))
		for _, nal := range cfg.nalus {
			if err := x.writeNAL(nal); err != nil {
				return err
			}
		}
	case mkvparse.TracksElement:
		if !x.found {
			return ErrNoHEVCTrack
		}
	}
	return nil
}

// HandleString records the codec ID of the current track entry.
func (x *Extractor) HandleString(id mkvparse.ElementID, value string, _ mkvparse.ElementInfo) error {
	if id == mkvparse.CodecIDElement {
		x.entry.codec = value
	}
	return nil
}

// HandleInteger records the number of the current track entry.
func (x *Extractor) HandleInteger(id mkvparse.ElementID, value int64, _ mkvparse.ElementInfo) error {
	if id == mkvparse.TrackNumberElement {
		x.entry.number = uint64(value)
	}
	return nil
}

// HandleBinary collects CodecPrivate and converts the frames of blocks that
// belong to the HEVC track.
func (x *Extractor) HandleBinary(id mkvparse.ElementID, value []byte, _ mkvparse.ElementInfo) error {
	switch id {
	case mkvparse.CodecPrivateElement:
		x.entry.private = append([]byte(nil), value...)
	case mkvparse.SimpleBlockElement, mkvparse.BlockElement:
		if err := x.ctx.Err(); err != nil {
			return err
		}
		if !x.found {
			return nil
		}
		return x.block(value)
	}
	return nil
}

// HandleFloat ignores float elements.
func (x *Extractor) HandleFloat(mkvparse.ElementID, float64, mkvparse.ElementInfo) error {
	return nil
}

// HandleDate ignores date elements.
func (x *Extractor) HandleDate(mkvparse.ElementID, time.Time, mkvparse.ElementInfo) error {
	return nil
}

func (x *Extractor) block(data []byte) error {
	track, frames, err := parseBlock(data)
	if err != nil {
		x.dropped++
		x.log.Warn("dropping block", "error", err)
		return nil
	}
	if track != x.track {
		return nil
	}
	x.blocks++

	for _, frame := range frames {
		nals, err := splitLengthPrefixed(frame, x.config.lengthSize)
		if err != nil {
			x.dropped++
			x.log.Warn("dropping frame", "error", err)
		}
		// NALs ahead of a bad length prefix are still intact.
		for _, nal := range nals {
			if err := x.writeNAL(nal); err != nil {
				return err
			}
		}
	}
	return nil
}

func (x *Extractor) writeNAL(nal []byte) error {
	if len(nal) == 0 {
		return nil
	}
	n, err := x.w.Write(hevc.StartCode)
	x.written += int64(n)
	if err != nil {
		return err
	}
	n, err = x.w.Write(nal)
	x.written += int64(n)
	return err
}

// splitLengthPrefixed splits a sample made of big-endian length-prefixed
// NAL units. On error it returns the units parsed so far.
func splitLengthPrefixed(frame []byte, lengthSize int) ([][]byte, error) {
	var nals [][]byte
	for len(frame) > 0 {
		if len(frame) < lengthSize {
			return nals, fmt.Errorf("%w: %d trailing bytes", ErrMalformedBlock, len(frame))
		}
		n := 0
		for _, b := range frame[:lengthSize] {
			n = n<<8 | int(b)
		}
		frame = frame[lengthSize:]
		if n > len(frame) {
			return nals, fmt.Errorf("%w: NAL length %d exceeds %d remaining", ErrMalformedBlock, n, len(frame))
		}
		nals = append(nals, frame[:n])
		frame = frame[n:]
	}
	return nals, nil
}
