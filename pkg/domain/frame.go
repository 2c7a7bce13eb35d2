package domain

// Frame is the handle for the observation currently being reduced. It tracks
// the data files produced so far and the translated header of the raw
// observation. Raw-to-standard conversion happens upstream; by the time a
// Frame reaches a recipe it already points at standard-format files.
type Frame struct {
	Files []string          // data files, most recent product last
	Hdr   map[string]string // translated header keywords
	Mode  ObsMode           // observing mode derived from the header
}

// NewFrame builds a frame over the given files.
func NewFrame(files ...string) *Frame {
	return &Frame{
		Files: files,
		Hdr:   make(map[string]string),
	}
}

// File returns the current data product, i.e. the most recent file, or the
// empty string for a fileless frame.
func (f *Frame) File() string {
	if f == nil || len(f.Files) == 0 {
		return ""
	}
	return f.Files[len(f.Files)-1]
}

// SetFile appends a new current product.
func (f *Frame) SetFile(name string) {
	f.Files = append(f.Files, name)
}

// Group is the aggregate data handle: the set of frames reduced together and
// the coadded group product, if one has been formed yet.
type Group struct {
	Name   string
	File   string // group product file, empty until first coadd
	Frames []*Frame
}

// NewGroup creates an empty group.
func NewGroup(name string) *Group {
	return &Group{Name: name}
}

// Push adds a frame to the group membership.
func (g *Group) Push(f *Frame) {
	g.Frames = append(g.Frames, f)
}
