package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/zsiec/hdredit/internal/editor"
	"github.com/zsiec/hdredit/internal/hevc"
	"github.com/zsiec/hdredit/internal/ingest"
	"github.com/zsiec/hdredit/internal/sei"
)

func profileName(idc byte) string {
	switch idc {
	case 1:
		return "Main"
	case 2:
		return "Main 10"
	case 3:
		return "Main Still Picture"
	case 4:
		return "Range Extensions"
	default:
		return fmt.Sprintf("profile %d", idc)
	}
}

func formatSPS(s *hevc.SPSInfo) string {
	tier := "Main"
	if s.TierFlag == 1 {
		tier = "High"
	}
	return fmt.Sprintf("%dx%d %s %d-bit, %s@L%.1f %s tier",
		s.Width, s.Height, s.ChromaFormat(), s.BitDepthLuma,
		profileName(s.ProfileIDC), float64(s.LevelIDC)/30, tier)
}

func printReport(w io.Writer, target ingest.Target, rep *editor.Report, full bool) {
	fmt.Fprintf(w, "Input:  %s\n", target)

	if rep.SPS != nil {
		fmt.Fprintf(w, "Video:  %s\n", formatSPS(rep.SPS))
	} else {
		fmt.Fprintln(w, "Video:  no SPS found")
	}

	if m := rep.MDCV; m != nil {
		fmt.Fprintf(w, "MDCV:   primaries %s\n", m.Primaries)
		fmt.Fprintf(w, "        luminance min %.4f / max %.4f nits (raw %d / %d)\n",
			m.MinNits(), m.MaxNits(), m.MinLuminance, m.MaxLuminance)
	} else {
		fmt.Fprintln(w, "MDCV:   not present")
	}

	if c := rep.CLL; c != nil {
		fmt.Fprintf(w, "CLL:    MaxCLL %d nits, MaxFALL %d nits\n", c.MaxContentLightLevel, c.MaxAverageLightLevel)
	} else {
		fmt.Fprintln(w, "CLL:    not present")
	}

	if !full {
		return
	}
	fmt.Fprintf(w, "NALs:   %d (%d keyframes, %d SEI prefix)\n", rep.NALs, rep.Keyframes, rep.SEINALs)
	types := make([]int, 0, len(rep.SEIType))
	for t := range rep.SEIType {
		types = append(types, t)
	}
	sort.Ints(types)
	for _, t := range types {
		name := ""
		if kind := sei.Identify(t); kind != sei.Unrecognized {
			name = " (" + kind.String() + ")"
		}
		fmt.Fprintf(w, "        SEI type %d%s: %d\n", t, name, rep.SEIType[t])
	}
}
