package texture

import (
	"image"
	"sort"
)

// Atlas is a sprite sheet: one page handle plus named frames on it.
type Atlas struct {
	page    Handle
	frames  map[string]image.Rectangle
	regions map[string]Handle
}

// NewAtlas builds an atlas over page. Frames outside the page are dropped.
func NewAtlas(page Handle, frames map[string]image.Rectangle) *Atlas {
	a := &Atlas{
		page:    page,
		frames:  make(map[string]image.Rectangle, len(frames)),
		regions: make(map[string]Handle, len(frames)),
	}
	var bounds image.Rectangle
	if page != nil {
		w, h := page.Size()
		bounds = image.Rect(0, 0, w, h)
	}
	for name, r := range frames {
		if r.Empty() || !r.In(bounds) {
			continue
		}
		a.frames[name] = r
	}
	return a
}

// Region returns the frame handle for name. Regions are sliced lazily from
// the page and share its memory.
func (a *Atlas) Region(name string) (Handle, bool) {
	if a == nil || a.page == nil {
		return nil, false
	}
	if h, ok := a.regions[name]; ok {
		return h, true
	}
	r, ok := a.frames[name]
	if !ok {
		return nil, false
	}
	slicer, ok := a.page.(Slicer)
	if !ok {
		return nil, false
	}
	h := slicer.Sub(r)
	a.regions[name] = h
	return h, true
}

// Names returns the frame names, sorted.
func (a *Atlas) Names() []string {
	names := make([]string, 0, len(a.frames))
	for name := range a.frames {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Release frees the page. Regions become invalid with it.
func (a *Atlas) Release() {
	if a == nil || a.page == nil {
		return
	}
	a.page.Release()
	a.page = nil
	a.regions = map[string]Handle{}
}
