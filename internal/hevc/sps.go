package hevc

import (
	"errors"
	"fmt"

	"github.com/zsiec/hdredit/internal/bitio"
)

var errSPSTooShort = errors.New("hevc: SPS data too short")

// SPSInfo holds the stream parameters reported by the info command.
type SPSInfo struct {
	Width      int
	Height     int
	ProfileIDC byte
	TierFlag   byte
	LevelIDC   byte

	ChromaFormatIdc byte
	BitDepthLuma    byte
	BitDepthChroma  byte
}

// ParseSPS parses an HEVC SPS NAL unit up to the bit depth fields. The input
// is the raw NAL data including the 2-byte NAL header, without start code.
func ParseSPS(nalu []byte) (SPSInfo, error) {
	if len(nalu) < 4 {
		return SPSInfo{}, errSPSTooShort
	}

	br := bitio.NewReader(RemoveEmulationPrevention(nalu[NALHeaderSize:]))

	// sps_video_parameter_set_id
	if err := br.Skip(4); err != nil {
		return SPSInfo{}, err
	}
	maxSubLayersMinus1, err := br.Read(3)
	if err != nil {
		return SPSInfo{}, err
	}
	// sps_temporal_id_nesting_flag
	if err := br.Skip(1); err != nil {
		return SPSInfo{}, err
	}

	var info SPSInfo
	if err := parseProfileTierLevel(br, &info, int(maxSubLayersMinus1)); err != nil {
		return SPSInfo{}, fmt.Errorf("profile_tier_level: %w", err)
	}

	// sps_seq_parameter_set_id
	if _, err := br.ReadUE(); err != nil {
		return SPSInfo{}, err
	}
	chromaFormatIdc, err := br.ReadUE()
	if err != nil {
		return SPSInfo{}, err
	}
	info.ChromaFormatIdc = byte(chromaFormatIdc)
	if chromaFormatIdc == 3 {
		// separate_colour_plane_flag
		if err := br.Skip(1); err != nil {
			return SPSInfo{}, err
		}
	}

	width, err := br.ReadUE()
	if err != nil {
		return SPSInfo{}, err
	}
	height, err := br.ReadUE()
	if err != nil {
		return SPSInfo{}, err
	}
	info.Width = int(width)
	info.Height = int(height)

	confWindow, err := br.Read(1)
	if err != nil {
		return info, nil
	}
	if confWindow == 1 {
		var win [4]uint64 // left, right, top, bottom
		for i := range win {
			if win[i], err = br.ReadUE(); err != nil {
				return info, nil
			}
		}

		subWidthC, subHeightC := uint64(1), uint64(1)
		switch chromaFormatIdc {
		case 1:
			subWidthC, subHeightC = 2, 2
		case 2:
			subWidthC = 2
		}
		info.Width -= int((win[0] + win[1]) * subWidthC)
		info.Height -= int((win[2] + win[3]) * subHeightC)
	}

	bdl, err := br.ReadUE()
	if err != nil {
		return info, nil
	}
	info.BitDepthLuma = byte(bdl + 8)

	bdc, err := br.ReadUE()
	if err != nil {
		return info, nil
	}
	info.BitDepthChroma = byte(bdc + 8)

	return info, nil
}

func parseProfileTierLevel(br *bitio.Reader, info *SPSInfo, maxSubLayersMinus1 int) error {
	// general_profile_space
	if err := br.Skip(2); err != nil {
		return err
	}
	tier, err := br.Read(1)
	if err != nil {
		return err
	}
	info.TierFlag = byte(tier)

	profile, err := br.Read(5)
	if err != nil {
		return err
	}
	info.ProfileIDC = byte(profile)

	// general_profile_compatibility_flags (32) + general_constraint_indicator_flags (48)
	if err := br.Skip(80); err != nil {
		return err
	}

	level, err := br.Read(8)
	if err != nil {
		return err
	}
	info.LevelIDC = byte(level)

	if maxSubLayersMinus1 == 0 {
		return nil
	}

	profilePresent := make([]bool, maxSubLayersMinus1)
	levelPresent := make([]bool, maxSubLayersMinus1)
	for i := 0; i < maxSubLayersMinus1; i++ {
		pp, err := br.Read(1)
		if err != nil {
			return err
		}
		lp, err := br.Read(1)
		if err != nil {
			return err
		}
		profilePresent[i] = pp == 1
		levelPresent[i] = lp == 1
	}
	// reserved_zero_2bits for the remaining sub-layer slots
	if err := br.Skip(2 * (8 - maxSubLayersMinus1)); err != nil {
		return err
	}
	for i := 0; i < maxSubLayersMinus1; i++ {
		if profilePresent[i] {
			if err := br.Skip(88); err != nil {
				return err
			}
		}
		if levelPresent[i] {
			if err := br.Skip(8); err != nil {
				return err
			}
		}
	}
	return nil
}

// ChromaFormat names the chroma subsampling of chroma_format_idc.
func (s SPSInfo) ChromaFormat() string {
	switch s.ChromaFormatIdc {
	case 0:
		return "4:0:0"
	case 1:
		return "4:2:0"
	case 2:
		return "4:2:2"
	case 3:
		return "4:4:4"
	default:
		return "unknown"
	}
}
