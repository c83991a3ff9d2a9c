package detection

import (
	"math"
	"sort"
	"strings"

	"github.com/ironsheep/ui-regions-mcp/internal/errors"
)

// Labels assigned by the classifier profiles.
const (
	LabelTaskbar   = "taskbar"
	LabelTitlebar  = "titlebar"
	LabelWindow    = "window"
	LabelIcon      = "icon"
	LabelButton    = "button"
	LabelMenubar   = "menubar"
	LabelSidebar   = "sidebar"
	LabelUIElement = "ui_element"
)

// Profile selects the ordered rule list the classifier applies.
type Profile int

const (
	// ProfileDesktop recognizes desktop chrome: taskbars, title bars,
	// windows, icons and buttons.
	ProfileDesktop Profile = iota

	// ProfilePanels recognizes page layout panels: full windows, menu bars,
	// sidebars, icons and buttons. It leans on aspect ratio alone for
	// elements that are not full-width or full-height.
	ProfilePanels
)

// Shape is the geometry the classifier looks at.
type Shape struct {
	Width, Height           int
	ImageWidth, ImageHeight int

	// Rectangularity is contour area / bounding box area, in [0, 1].
	Rectangularity float64
}

// shapeRatios are the derived quantities every rule is written against.
type shapeRatios struct {
	relW, relH, aspect, rect float64
}

func ratiosOf(s Shape) shapeRatios {
	r := shapeRatios{
		relW: float64(s.Width) / float64(s.ImageWidth),
		relH: float64(s.Height) / float64(s.ImageHeight),
		rect: s.Rectangularity,
	}
	if s.Height > 0 {
		r.aspect = float64(s.Width) / float64(s.Height)
	}
	return r
}

type rule struct {
	label string
	match func(r shapeRatios) bool
}

// Rules are evaluated in order and the first match wins. Every list ends
// in an unconditional ui_element rule.
var profiles = map[Profile]struct {
	name  string
	rules []rule
}{
	ProfileDesktop: {"desktop", []rule{
		{LabelTaskbar, func(r shapeRatios) bool { return r.relW > 0.8 && r.relH < 0.1 }},
		{LabelTitlebar, func(r shapeRatios) bool { return r.relW > 0.7 && r.relH < 0.05 }},
		{LabelWindow, func(r shapeRatios) bool { return r.relW > 0.3 && r.relH > 0.3 && r.rect > 0.8 }},
		{LabelIcon, func(r shapeRatios) bool {
			return math.Max(r.relW, r.relH) < 0.1 && r.aspect > 0.7 && r.aspect < 1.3
		}},
		{LabelButton, func(r shapeRatios) bool {
			return math.Max(r.relW, r.relH) < 0.15 && r.aspect > 1.5 && r.aspect < 5
		}},
		{LabelUIElement, func(shapeRatios) bool { return true }},
	}},
	ProfilePanels: {"panels", []rule{
		{LabelWindow, func(r shapeRatios) bool { return r.relW > 0.8 && r.relH > 0.8 }},
		{LabelMenubar, func(r shapeRatios) bool { return r.relW > 0.8 && r.relH < 0.1 }},
		{LabelSidebar, func(r shapeRatios) bool { return r.relH > 0.8 && r.relW < 0.1 }},
		{LabelMenubar, func(r shapeRatios) bool { return r.aspect > 4 }},
		{LabelSidebar, func(r shapeRatios) bool { return r.aspect < 0.25 }},
		{LabelIcon, func(r shapeRatios) bool {
			return r.relW < 0.1 && r.relH < 0.1 && r.aspect > 0.8 && r.aspect < 1.2
		}},
		{LabelButton, func(r shapeRatios) bool { return r.aspect > 2 && r.aspect < 4 }},
		{LabelIcon, func(r shapeRatios) bool { return r.aspect > 0.8 && r.aspect < 1.2 }},
		{LabelUIElement, func(shapeRatios) bool { return true }},
	}},
}

// ParseProfile looks a profile up by name. The empty name selects
// ProfileDesktop.
func ParseProfile(name string) (Profile, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		return ProfileDesktop, nil
	}
	for p, def := range profiles {
		if def.name == n {
			return p, nil
		}
	}
	return ProfileDesktop, errors.NewInvalidParameterError("profile", name,
		"must be one of "+strings.Join(ProfileNames(), ", "))
}

// ProfileNames lists the registered profile names, sorted.
func ProfileNames() []string {
	names := make([]string, 0, len(profiles))
	for _, def := range profiles {
		names = append(names, def.name)
	}
	sort.Strings(names)
	return names
}

func (p Profile) String() string {
	if def, ok := profiles[p]; ok {
		return def.name
	}
	return "unknown"
}

// Classify labels a shape with the first matching rule of the profile.
// Unknown profiles fall back to ProfileDesktop.
func Classify(s Shape, p Profile) string {
	def, ok := profiles[p]
	if !ok {
		def = profiles[ProfileDesktop]
	}
	r := ratiosOf(s)
	for _, rl := range def.rules {
		if rl.match(r) {
			return rl.label
		}
	}
	return LabelUIElement
}
