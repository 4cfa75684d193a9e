// Package editor streams an HEVC elementary stream through the SEI
// reconstructor, rewriting HDR metadata and copying every other NAL unit
// to the output unchanged and in order.
package editor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/zsiec/ccx"

	"github.com/zsiec/hdredit/internal/config"
	"github.com/zsiec/hdredit/internal/hevc"
	"github.com/zsiec/hdredit/internal/sei"
)

// DefaultWriteBuffer is the size of the buffered output writer.
const DefaultWriteBuffer = 100_000

// Options tunes an Editor. Zero values select the defaults.
type Options struct {
	ChunkSize   int
	WriteBuffer int
	Log         *slog.Logger
}

// Stats is a snapshot of the editor's counters.
type Stats struct {
	BytesRead    int64 `json:"bytesRead"`
	BytesWritten int64 `json:"bytesWritten"`
	NALs         int64 `json:"nals"`
	SEINALs      int64 `json:"seiNals"`
	Rewritten    int64 `json:"rewritten"`
	Split        int64 `json:"split"`
	Passthrough  int64 `json:"passthrough"`
	EmittedSEI   int64 `json:"emittedSei"`
	EditedMsgs   int64 `json:"editedMessages"`
	CaptionSEI   int64 `json:"captionSei"`
}

// Editor rewrites the HDR metadata of one stream. It is single-use and not
// safe for concurrent Run calls; Stats may be read from any goroutine.
type Editor struct {
	log       *slog.Logger
	cfg       *config.EditConfig
	out       *bufio.Writer
	chunkSize int

	bytesRead    atomic.Int64
	bytesWritten atomic.Int64
	nals         atomic.Int64
	seiNALs      atomic.Int64
	rewritten    atomic.Int64
	split        atomic.Int64
	passthrough  atomic.Int64
	emittedSEI   atomic.Int64
	editedMsgs   atomic.Int64
	captionSEI   atomic.Int64
}

// New creates an Editor writing to out. The config is validated here so a
// bad config fails before any input is read.
func New(cfg *config.EditConfig, out io.Writer, opts Options) (*Editor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	if opts.WriteBuffer <= 0 {
		opts.WriteBuffer = DefaultWriteBuffer
	}
	return &Editor{
		log:       opts.Log.With("component", "editor"),
		cfg:       cfg,
		out:       bufio.NewWriterSize(out, opts.WriteBuffer),
		chunkSize: opts.ChunkSize,
	}, nil
}

// Run reads the Annex B stream from in until EOF, writing every NAL to the
// output with a 4-byte start code. The first error aborts the run; output
// already written is not rolled back.
func (e *Editor) Run(ctx context.Context, in io.Reader) error {
	sc := hevc.NewScanner(in, e.chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		chunk, units, err := sc.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		if err := e.ProcessNALs(chunk, units); err != nil {
			return err
		}
	}

	if err := e.out.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}

	st := e.Stats()
	e.log.Info("stream finished",
		"nals", st.NALs,
		"sei_nals", st.SEINALs,
		"rewritten", st.Rewritten,
		"split", st.Split,
		"edited_messages", st.EditedMsgs,
		"caption_sei", st.CaptionSEI,
		"bytes_written", st.BytesWritten)
	return nil
}

// ProcessNALs handles the NAL units of one scanner chunk in order.
func (e *Editor) ProcessNALs(chunk []byte, units []hevc.Unit) error {
	for _, u := range units {
		nal := chunk[u.Start:u.End]
		e.nals.Add(1)
		e.bytesRead.Add(int64(len(nal)))

		if u.Type != hevc.NALSEIPrefix {
			if err := e.writeNAL(nal); err != nil {
				return err
			}
			continue
		}

		if err := e.processSEI(nal); err != nil {
			return fmt.Errorf("SEI NAL %d: %w", e.nals.Load(), err)
		}
	}
	return nil
}

func (e *Editor) processSEI(nal []byte) error {
	e.seiNALs.Add(1)

	hasCaptions := false
	if cd := ccx.ExtractCaptions(nal); cd != nil && (len(cd.CC608Pairs) > 0 || len(cd.DTVCC) > 0) {
		hasCaptions = true
		e.captionSEI.Add(1)
	}

	rbsp := hevc.RemoveEmulationPrevention(nal)
	msgs, err := sei.ParseMessages(rbsp)
	if err != nil {
		return err
	}

	res, err := sei.Rebuild(rbsp, msgs, e.cfg)
	if err != nil {
		return err
	}

	switch res.Action {
	case sei.Passthrough:
		e.passthrough.Add(1)
		return e.writeNAL(nal)
	case sei.Rewrite:
		e.rewritten.Add(1)
	case sei.Split:
		e.split.Add(1)
		e.log.Debug("split SEI NAL", "messages", len(msgs), "captions", hasCaptions)
	}
	e.editedMsgs.Add(int64(res.Edited))

	for _, out := range res.NALs {
		if err := e.writeNAL(out); err != nil {
			return err
		}
		e.emittedSEI.Add(1)
	}
	return nil
}

func (e *Editor) writeNAL(nal []byte) error {
	if _, err := e.out.Write(hevc.StartCode); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	if _, err := e.out.Write(nal); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	e.bytesWritten.Add(int64(len(hevc.StartCode) + len(nal)))
	return nil
}

// Stats returns a snapshot of the counters.
func (e *Editor) Stats() Stats {
	return Stats{
		BytesRead:    e.bytesRead.Load(),
		BytesWritten: e.bytesWritten.Load(),
		NALs:         e.nals.Load(),
		SEINALs:      e.seiNALs.Load(),
		Rewritten:    e.rewritten.Load(),
		Split:        e.split.Load(),
		Passthrough:  e.passthrough.Load(),
		EmittedSEI:   e.emittedSEI.Load(),
		EditedMsgs:   e.editedMsgs.Load(),
		CaptionSEI:   e.captionSEI.Load(),
	}
}
