// Package sei rebuilds HEVC SEI-prefix NAL units around edited HDR metadata.
// It identifies the payload kinds it can edit, walks the messages of an SEI
// RBSP, and re-emits one or more single-message NALs when an edit applies.
package sei

// SEI payload type codes of the messages this package can edit.
const (
	PayloadTypeMDCV = 137
	PayloadTypeCLL  = 144
)

// PayloadKind classifies an SEI payload type code.
type PayloadKind int

// Payload kinds. Everything other than MDCV and CLL is Unrecognized and is
// never decoded.
const (
	Unrecognized PayloadKind = iota
	MasteringDisplayColourVolume
	ContentLightLevel
)

// Identify maps a payload type code to its kind.
func Identify(payloadType int) PayloadKind {
	switch payloadType {
	case PayloadTypeMDCV:
		return MasteringDisplayColourVolume
	case PayloadTypeCLL:
		return ContentLightLevel
	default:
		return Unrecognized
	}
}

func (k PayloadKind) String() string {
	switch k {
	case MasteringDisplayColourVolume:
		return "mdcv"
	case ContentLightLevel:
		return "cll"
	default:
		return "unrecognized"
	}
}
