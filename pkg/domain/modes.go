package domain

import "fmt"

// ObsMode is the coarse observing-mode category used to pick which variant
// of a primitive applies when several exist under the same name.
type ObsMode string

const (
	ModeUnknown      ObsMode = ""
	ModeImaging      ObsMode = "imaging"
	ModeSpectroscopy ObsMode = "spectroscopy"
	ModeIFU          ObsMode = "ifu"
	ModeHeterodyne   ObsMode = "heterodyne"
)

// GenericModes lists the known generic observing-mode buckets, i.e. the
// mode-named source directories that can shadow the generic fallback.
func GenericModes() []ObsMode {
	return []ObsMode{ModeImaging, ModeSpectroscopy, ModeIFU, ModeHeterodyne}
}

// ParseObsMode validates a user-supplied mode string.
func ParseObsMode(s string) (ObsMode, error) {
	if s == "" {
		return ModeUnknown, nil
	}
	for _, m := range GenericModes() {
		if s == string(m) {
			return m, nil
		}
	}
	return ModeUnknown, fmt.Errorf("unknown observing mode %q", s)
}
