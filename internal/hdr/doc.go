// Package hdr models the two HDR static-metadata SEI payloads carried in HEVC
// streams: mastering display colour volume (MDCV) and content light level
// (CLL). Each model decodes from and encodes to its fixed binary layout, and
// merges a sparse edit where an absent field leaves the source value as is.
package hdr
