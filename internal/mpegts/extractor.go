package mpegts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// ErrNoHEVCStream is returned when the transport stream ends without a PMT
// announcing an HEVC elementary stream.
var ErrNoHEVCStream = errors.New("mpegts: no HEVC elementary stream found")

// Extractor demultiplexes the first HEVC elementary stream of a transport
// stream. Other PIDs are ignored.
type Extractor struct {
	r   io.Reader
	log *slog.Logger
	buf [packetSize]byte

	pmtPIDs  map[uint16]bool
	psi      map[uint16][]byte
	videoPID uint16
	found    bool

	pes    []byte
	lastCC int

	packets int64
	dropped int64
}

// NewExtractor returns an Extractor reading 188-byte packets from r.
func NewExtractor(r io.Reader, log *slog.Logger) *Extractor {
	if log == nil {
		log = slog.Default()
	}
	return &Extractor{
		r:       r,
		log:     log.With("component", "mpegts"),
		pmtPIDs: make(map[uint16]bool),
		psi:     make(map[uint16][]byte),
		lastCC:  -1,
	}
}

// WriteTo writes the HEVC elementary stream to w until the input ends.
// A trailing partial packet is ignored.
func (x *Extractor) WriteTo(ctx context.Context, w io.Writer) (int64, error) {
	var written int64
	emit := func(pes []byte) error {
		data, err := pesPayload(pes)
		if err != nil {
			x.dropped++
			x.log.Warn("dropping PES", "error", err)
			return nil
		}
		n, err := w.Write(data)
		written += int64(n)
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		if _, err := io.ReadFull(x.r, x.buf[:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return written, fmt.Errorf("mpegts: read: %w", err)
		}
		x.packets++

		pkt, err := parsePacket(x.buf[:])
		if err != nil {
			x.dropped++
			continue
		}

		switch {
		case pkt.PID == pidPAT || x.pmtPIDs[pkt.PID]:
			x.handlePSI(pkt)
		case x.found && pkt.PID == x.videoPID:
			if done := x.accumulate(pkt); done != nil {
				if err := emit(done); err != nil {
					return written, err
				}
			}
		}
	}

	if !x.found {
		return written, ErrNoHEVCStream
	}
	if len(x.pes) > 0 {
		if err := emit(x.pes); err != nil {
			return written, err
		}
		x.pes = nil
	}

	x.log.Debug("transport stream finished", "packets", x.packets, "dropped", x.dropped, "bytes", written)
	return written, nil
}

// accumulate adds a video packet to the pending PES and returns the previous
// PES once a new one starts.
func (x *Extractor) accumulate(pkt Packet) []byte {
	if pkt.TransportErrorIndicator {
		x.dropped++
		x.pes = nil
		return nil
	}
	if !pkt.HasPayload {
		return nil
	}

	if x.lastCC >= 0 && !pkt.DiscontinuityIndicator {
		expected := uint8(x.lastCC+1) & 0x0F
		if pkt.ContinuityCounter != expected {
			if int(pkt.ContinuityCounter) == x.lastCC {
				return nil // duplicate
			}
			x.log.Warn("continuity error", "pid", x.videoPID, "expected", expected, "got", pkt.ContinuityCounter)
			x.dropped++
			x.pes = nil
		}
	}
	x.lastCC = int(pkt.ContinuityCounter)

	var done []byte
	if pkt.PayloadUnitStartIndicator {
		done = x.pes
		x.pes = nil
	} else if x.pes == nil {
		// Mid-PES after a loss; wait for the next unit start.
		return nil
	}
	x.pes = append(x.pes, pkt.Payload...)
	return done
}

func (x *Extractor) handlePSI(pkt Packet) {
	if pkt.TransportErrorIndicator || !pkt.HasPayload {
		return
	}

	if pkt.PayloadUnitStartIndicator {
		x.psi[pkt.PID] = append([]byte(nil), pkt.Payload...)
	} else if pending, ok := x.psi[pkt.PID]; ok {
		x.psi[pkt.PID] = append(pending, pkt.Payload...)
	} else {
		return
	}

	payload := x.psi[pkt.PID]
	if !sectionsComplete(payload) {
		return
	}
	delete(x.psi, pkt.PID)

	tables, err := parsePSI(payload)
	if err != nil {
		x.dropped++
		x.log.Warn("dropping PSI section", "pid", pkt.PID, "error", err)
		return
	}
	for _, p := range tables.programs {
		x.pmtPIDs[p.pmtPID] = true
	}
	if x.found {
		return
	}
	for _, es := range tables.streams {
		if es.streamType == StreamTypeHEVC {
			x.videoPID = es.pid
			x.found = true
			x.log.Info("found HEVC stream", "pid", es.pid)
			return
		}
	}
}
