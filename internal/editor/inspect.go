package editor

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/zsiec/hdredit/internal/hdr"
	"github.com/zsiec/hdredit/internal/hevc"
	"github.com/zsiec/hdredit/internal/sei"
)

// Report summarises the HDR signalling found in a stream.
type Report struct {
	SPS  *hevc.SPSInfo `json:"sps,omitempty"`
	MDCV *hdr.MDCV     `json:"mdcv,omitempty"`
	CLL  *hdr.CLL      `json:"cll,omitempty"`

	NALs      int64       `json:"nals"`
	Keyframes int64       `json:"keyframes"`
	SEINALs   int64       `json:"seiNals"`
	SEIType   map[int]int `json:"seiTypes"`
}

// Complete reports whether the SPS and both HDR messages have been found.
func (r *Report) Complete() bool {
	return r.SPS != nil && r.MDCV != nil && r.CLL != nil
}

// Inspect scans in and records the first SPS, MDCV and CLL it sees. With
// full set the whole stream is read so the NAL and SEI counters cover it;
// otherwise scanning stops once the report is complete.
func Inspect(ctx context.Context, in io.Reader, chunkSize int, full bool) (*Report, error) {
	rep := &Report{SEIType: make(map[int]int)}
	sc := hevc.NewScanner(in, chunkSize)

	for {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		chunk, units, err := sc.Next()
		if errors.Is(err, io.EOF) {
			return rep, nil
		}
		if err != nil {
			return rep, err
		}

		for _, u := range units {
			rep.NALs++
			if hevc.IsKeyframe(u.Type) {
				rep.Keyframes++
			}
			nal := chunk[u.Start:u.End]
			switch u.Type {
			case hevc.NALSPS:
				if rep.SPS != nil {
					continue
				}
				info, err := hevc.ParseSPS(nal)
				if err != nil {
					return rep, fmt.Errorf("SPS: %w", err)
				}
				rep.SPS = &info
			case hevc.NALSEIPrefix:
				rep.SEINALs++
				if err := rep.addSEI(nal); err != nil {
					return rep, err
				}
			}
		}

		if !full && rep.Complete() {
			return rep, nil
		}
	}
}

func (r *Report) addSEI(nal []byte) error {
	rbsp := hevc.RemoveEmulationPrevention(nal)
	msgs, err := sei.ParseMessages(rbsp)
	if err != nil {
		return err
	}
	for _, m := range msgs {
		r.SEIType[m.PayloadType]++
		switch sei.Identify(m.PayloadType) {
		case sei.MasteringDisplayColourVolume:
			if r.MDCV != nil {
				continue
			}
			v, err := hdr.DecodeMDCV(m.Data(rbsp))
			if err != nil {
				return err
			}
			r.MDCV = &v
		case sei.ContentLightLevel:
			if r.CLL != nil {
				continue
			}
			v, err := hdr.DecodeCLL(m.Data(rbsp))
			if err != nil {
				return err
			}
			r.CLL = &v
		}
	}
	return nil
}
