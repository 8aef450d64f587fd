// internal/arena/box.go
package arena

import "math"

// Box is an axis-aligned bounding box described by its center and full extents.
type Box struct {
	Center Vector3 `json:"position" msgpack:"p"`
	Size   Vector3 `json:"size" msgpack:"s"`
}

// NewBox builds a box of width (X), height (Y) and depth (Z) centered on pos.
func NewBox(width, height, depth float64, pos Vector3) Box {
	return Box{Center: pos, Size: Vec(width, height, depth)}
}

// Half returns the half extents.
func (b Box) Half() Vector3 {
	return b.Size.Scale(0.5)
}

func (b Box) Min() Vector3 {
	return b.Center.Sub(b.Half())
}

func (b Box) Max() Vector3 {
	return b.Center.Add(b.Half())
}

// Intersects reports whether two boxes overlap. Touching faces do not count.
func (b Box) Intersects(o Box) bool {
	bmin, bmax := b.Min(), b.Max()
	omin, omax := o.Min(), o.Max()
	return bmin.X < omax.X && bmax.X > omin.X &&
		bmin.Y < omax.Y && bmax.Y > omin.Y &&
		bmin.Z < omax.Z && bmax.Z > omin.Z
}

// Union returns the smallest box enclosing both b and o.
func (b Box) Union(o Box) Box {
	bmin, bmax := b.Min(), b.Max()
	omin, omax := o.Min(), o.Max()
	min := Vec(math.Min(bmin.X, omin.X), math.Min(bmin.Y, omin.Y), math.Min(bmin.Z, omin.Z))
	max := Vec(math.Max(bmax.X, omax.X), math.Max(bmax.Y, omax.Y), math.Max(bmax.Z, omax.Z))
	return Box{Center: min.Add(max).Scale(0.5), Size: max.Sub(min)}
}

// Moved returns a copy of b centered on pos.
func (b Box) Moved(pos Vector3) Box {
	b.Center = pos
	return b
}
