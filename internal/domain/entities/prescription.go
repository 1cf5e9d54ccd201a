package entities

import "math"

// Lens type values as they appear on orders and in the analytics store.
const (
	LensTypeSingleVision = "single_vision"
	LensTypeBifocal      = "bifocal"
	LensTypeProgressive  = "progressive"
)

// Refraction holds the measured correction for a single eye.
type Refraction struct {
	Sphere   *float64 `json:"sphere,omitempty"`
	Cylinder *float64 `json:"cylinder,omitempty"`
	Axis     *float64 `json:"axis,omitempty"`
	Add      *float64 `json:"add,omitempty"`
}

// Prescription represents the structured prescription fields supplied with an
// order analysis request. Optional fields are pointers; a nil field means the
// measurement was not supplied and scoring treats it as "no signal".
type Prescription struct {
	OD                Refraction `json:"od"`
	OS                Refraction `json:"os"`
	PupillaryDistance *float64   `json:"pupillary_distance,omitempty"`
	LensType          string     `json:"lens_type"`
	LensMaterial      string     `json:"lens_material"`
	FrameType         string     `json:"frame_type"`
	FrameWrapAngle    *float64   `json:"frame_wrap_angle,omitempty"`
}

// MaxCylinderMagnitude returns the larger absolute cylinder of the two eyes,
// or nil when neither eye has a cylinder value.
func (p *Prescription) MaxCylinderMagnitude() *float64 {
	var out *float64
	for _, c := range []*float64{p.OD.Cylinder, p.OS.Cylinder} {
		if c == nil {
			continue
		}
		mag := math.Abs(*c)
		if out == nil || mag > *out {
			v := mag
			out = &v
		}
	}
	return out
}

// MaxAdd returns the larger add power of the two eyes, or nil when absent.
func (p *Prescription) MaxAdd() *float64 {
	var out *float64
	for _, a := range []*float64{p.OD.Add, p.OS.Add} {
		if a == nil {
			continue
		}
		if out == nil || *a > *out {
			v := *a
			out = &v
		}
	}
	return out
}

// MaxSphereMagnitude returns the strongest absolute sphere of the two eyes,
// or nil when neither eye has a sphere value.
func (p *Prescription) MaxSphereMagnitude() *float64 {
	var out *float64
	for _, s := range []*float64{p.OD.Sphere, p.OS.Sphere} {
		if s == nil {
			continue
		}
		mag := math.Abs(*s)
		if out == nil || mag > *out {
			v := mag
			out = &v
		}
	}
	return out
}

// DominantAxis returns the axis of the eye carrying the larger cylinder
// magnitude. Astigmatism-driven pattern bucketing keys off this axis.
func (p *Prescription) DominantAxis() *float64 {
	odMag, osMag := 0.0, 0.0
	if p.OD.Cylinder != nil {
		odMag = math.Abs(*p.OD.Cylinder)
	}
	if p.OS.Cylinder != nil {
		osMag = math.Abs(*p.OS.Cylinder)
	}
	if osMag > odMag {
		return p.OS.Axis
	}
	return p.OD.Axis
}
