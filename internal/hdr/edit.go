package hdr

// EditMDCV is a sparse MDCV override. Nil fields leave the source untouched.
type EditMDCV struct {
	// Preset replaces the primaries unless Primaries is also set.
	Preset *Preset `json:"preset,omitempty" yaml:"preset,omitempty"`

	Primaries *Primaries `json:"primaries,omitempty" yaml:"primaries,omitempty"`

	// Luminance overrides in nits, e.g. max 1000, min 0.0001.
	MaxLuminance *float64 `json:"max_display_mastering_luminance,omitempty" yaml:"max_display_mastering_luminance,omitempty"`
	MinLuminance *float64 `json:"min_display_mastering_luminance,omitempty" yaml:"min_display_mastering_luminance,omitempty"`
}

// EditCLL is a sparse CLL override in nits.
type EditCLL struct {
	MaxContentLightLevel *uint16 `json:"max_content_light_level,omitempty" yaml:"max_content_light_level,omitempty"`
	MaxAverageLightLevel *uint16 `json:"max_average_light_level,omitempty" yaml:"max_average_light_level,omitempty"`
}
