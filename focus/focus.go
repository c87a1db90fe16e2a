// Package focus tracks the current execution location of a debug session.
// The focus is owned by the session that created it, never global state, and
// is re-picked from device state after every refresh.
package focus

import (
	"gpudbg/common"
	"gpudbg/coords"
	"gpudbg/coordset"
	"gpudbg/state"
)

// Focus is the current execution location. The zero value is invalid focus.
type Focus struct {
	cur   coords.Coords
	valid bool
	log   common.Logger
}

// New returns an invalid focus logging through log. A nil log disables
// logging.
func New(log common.Logger) *Focus {
	if log == nil {
		log = common.NewNoOpLogger()
	}
	return &Focus{log: log}
}

// Valid reports whether the focus points at a device lane.
func (f *Focus) Valid() bool {
	return f.valid
}

// Coords returns the focused coordinate. The second return is false when the
// focus is invalid.
func (f *Focus) Coords() (coords.Coords, bool) {
	return f.cur, f.valid
}

// Set points the focus at c.
func (f *Focus) Set(c coords.Coords) {
	f.cur = c
	f.valid = true
}

// Invalidate clears the focus.
func (f *Focus) Invalidate() {
	f.cur = coords.Coords{}
	f.valid = false
}

// Pick selects a focus from the device state: a lane at an exception if one
// exists, otherwise a freshly trapped lane, otherwise the first valid lane.
// Finding nothing invalidates the focus and is not an error; only provider
// faults are.
func (f *Focus) Pick(p state.Provider) error {
	masks := []struct {
		mask coordset.Mask
		what string
	}{
		{coordset.SelectValid | coordset.SelectExcpt | coordset.SelectSngl, "lane at exception"},
		{coordset.SelectValid | coordset.SelectTrap | coordset.SelectCurrentClock | coordset.SelectSngl, "trapped lane"},
		{coordset.SelectValid | coordset.SelectSngl, "first valid lane"},
	}

	for _, m := range masks {
		set, err := coordset.New(p, coordset.Threads, m.mask, coords.CompareLogical, coords.Wild(), nil)
		if err != nil {
			return err
		}
		if c, ok := set.First(); ok {
			f.Set(c)
			f.log.Logf(common.SeverityInfo, "focus set to %s: %s", m.what, c)
			return nil
		}
	}

	f.log.Warning("no valid lane found on any device")
	f.Invalidate()
	return nil
}
