package sei

import (
	"fmt"

	"github.com/zsiec/hdredit/internal/config"
	"github.com/zsiec/hdredit/internal/hdr"
)

// Action is what Rebuild decided to do with an SEI NAL.
type Action int

// Rebuild actions.
const (
	// Passthrough means the original NAL bytes are written unchanged.
	Passthrough Action = iota
	// Rewrite means the NAL held a single message and was re-encoded.
	Rewrite
	// Split means every message was re-encoded into its own NAL.
	Split
)

func (a Action) String() string {
	switch a {
	case Rewrite:
		return "rewrite"
	case Split:
		return "split"
	default:
		return "passthrough"
	}
}

// Result is the outcome of rebuilding one SEI NAL.
type Result struct {
	Action Action
	// NALs holds the replacement NAL units, without start codes, in message
	// order. It is nil for Passthrough.
	NALs [][]byte
	// Edited counts the messages whose metadata was decoded and merged.
	Edited int
}

// editedSEI is one message after the edit pass. For Unrecognized or
// unconfigured messages only msg is set and the raw bytes are carried.
type editedSEI struct {
	msg  Message
	kind PayloadKind
	mdcv hdr.MDCV
	cll  hdr.CLL
}

func (e editedSEI) edited() bool {
	return e.kind != Unrecognized
}

func (e editedSEI) payload(rbsp []byte) ([]byte, error) {
	switch e.kind {
	case MasteringDisplayColourVolume:
		return e.mdcv.Encode()
	case ContentLightLevel:
		return e.cll.Encode()
	default:
		return e.msg.Data(rbsp), nil
	}
}

// configured reports whether cfg carries an edit section for kind.
func configured(kind PayloadKind, cfg *config.EditConfig) bool {
	if cfg == nil {
		return false
	}
	switch kind {
	case MasteringDisplayColourVolume:
		return cfg.MDCV != nil
	case ContentLightLevel:
		return cfg.CLL != nil
	default:
		return false
	}
}

func editMessage(rbsp []byte, msg Message, cfg *config.EditConfig) (editedSEI, error) {
	kind := Identify(msg.PayloadType)
	if !configured(kind, cfg) {
		return editedSEI{msg: msg}, nil
	}

	data := msg.Data(rbsp)
	switch kind {
	case MasteringDisplayColourVolume:
		m, err := hdr.DecodeMDCV(data)
		if err != nil {
			return editedSEI{}, err
		}
		return editedSEI{msg: msg, kind: kind, mdcv: m.Apply(cfg.MDCV)}, nil
	case ContentLightLevel:
		c, err := hdr.DecodeCLL(data)
		if err != nil {
			return editedSEI{}, err
		}
		return editedSEI{msg: msg, kind: kind, cll: c.Apply(cfg.CLL)}, nil
	default:
		return editedSEI{msg: msg}, nil
	}
}

// Rebuild applies cfg to the messages of one SEI-prefix NAL. rbsp is the NAL
// with emulation prevention removed and msgs the result of ParseMessages on
// it. A NAL without any message of a configured kind is passed through. A NAL
// with one message is rewritten in place; a NAL with several is split so that
// every message, edited or not, lands in its own NAL in original order.
// Nothing is returned on error, so a failing NAL is never partially emitted.
//
// cfg is validated once by the caller before the first NAL; Rebuild runs per
// NAL and does not repeat that check. A nil or empty cfg edits nothing.
func Rebuild(rbsp []byte, msgs []Message, cfg *config.EditConfig) (Result, error) {
	editable := false
	for _, m := range msgs {
		if configured(Identify(m.PayloadType), cfg) {
			editable = true
			break
		}
	}
	if !editable {
		return Result{Action: Passthrough}, nil
	}

	res := Result{Action: Rewrite}
	if len(msgs) > 1 {
		res.Action = Split
	}
	res.NALs = make([][]byte, 0, len(msgs))

	for _, m := range msgs {
		e, err := editMessage(rbsp, m, cfg)
		if err != nil {
			return Result{}, fmt.Errorf("edit %s payload: %w", Identify(m.PayloadType), err)
		}
		if e.edited() {
			res.Edited++
		}

		payload, err := e.payload(rbsp)
		if err != nil {
			return Result{}, fmt.Errorf("encode %s payload: %w", e.kind, err)
		}
		nal, err := EncodePrefixNAL(m.PayloadType, payload)
		if err != nil {
			return Result{}, fmt.Errorf("build SEI NAL for payload type %d: %w", m.PayloadType, err)
		}
		res.NALs = append(res.NALs, nal)
	}

	return res, nil
}
