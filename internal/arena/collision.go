// internal/arena/collision.go
package arena

import "math"

// PaddleImpartFactor is the share of a paddle's lateral velocity transferred to the ball on contact.
const PaddleImpartFactor = 0.5

// Contact describes one resolved interaction during a tick.
type Contact struct {
	Kind  ObjectKind
	Index int // index into the slice of that kind passed to Resolve
	Axis  int // axis of penetration, -1 for goals
	Time  float64
}

// CollisionEngine resolves the ball against the field objects for one tick.
//
// Objects are considered in a fixed order (walls, paddles, goals). At most one reflection is
// applied per tick; within a category the earliest contact along the sweep wins and ties keep
// the lower index.
type CollisionEngine struct{}

// sweep computes the entry time of a moving box against a static one, as a fraction of disp.
// ok is false when the boxes do not meet within [0, 1). A negative t means the boxes already
// overlapped at the start of the sweep.
func sweep(moving Box, disp Vector3, target Box) (t float64, axis int, ok bool) {
	entry := math.Inf(-1)
	exit := math.Inf(1)
	axis = -1

	mh := moving.Half()
	tmin, tmax := target.Min(), target.Max()
	for a := AxisX; a <= AxisZ; a++ {
		// Minkowski-expanded target against the moving center point.
		lo := tmin.Axis(a) - mh.Axis(a)
		hi := tmax.Axis(a) + mh.Axis(a)
		c := moving.Center.Axis(a)
		d := disp.Axis(a)

		if d == 0 {
			if c <= lo || c >= hi {
				return 0, -1, false
			}
			continue
		}
		t0 := (lo - c) / d
		t1 := (hi - c) / d
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		if t0 > entry {
			entry = t0
			axis = a
		}
		if t1 < exit {
			exit = t1
		}
	}

	if axis < 0 || entry > exit || entry >= 1 || exit <= 0 {
		return 0, -1, false
	}
	return entry, axis, true
}

// Resolve moves the ball from prev to its integrated position, handling reflections and goal
// entry. The ball's Center must already hold the integrated (unconstrained) position.
func (CollisionEngine) Resolve(ball *Ball, prev Vector3, walls []Wall, paddles []*Paddle, goals []Goal) []Contact {
	var contacts []Contact
	start := ball.Moved(prev)
	disp := ball.Center.Sub(prev)

	reflect := func(target Box, axis int, t float64) int {
		if t < 0 {
			return separate(ball, prev, target)
		}
		half := ball.Half().Axis(axis)
		pos := prev.Add(disp.Scale(t))
		if disp.Axis(axis) > 0 {
			pos = pos.WithAxis(axis, target.Min().Axis(axis)-half)
		} else {
			pos = pos.WithAxis(axis, target.Max().Axis(axis)+half)
		}
		ball.Center = pos
		ball.Velocity = ball.Velocity.WithAxis(axis, -ball.Velocity.Axis(axis))
		return axis
	}

	reflected := false
	if i, axis, t, ok := earliest(start, disp, len(walls), func(i int) Box { return walls[i].Box }); ok {
		axis = reflect(walls[i].Box, axis, t)
		contacts = append(contacts, Contact{Kind: KindWall, Index: i, Axis: axis, Time: math.Max(t, 0)})
		reflected = true
	}

	if !reflected {
		if i, axis, t, ok := earliest(start, disp, len(paddles), func(i int) Box { return paddles[i].Box }); ok {
			p := paddles[i]
			axis = reflect(p.Box, axis, t)
			ball.Velocity.X += p.Velocity.X * PaddleImpartFactor
			ball.Velocity.Y += p.Velocity.Y * PaddleImpartFactor
			p.consumeCharge(ball)
			if ball.MaxSpeed > 0 {
				ball.Velocity = ball.Velocity.ClampLength(ball.MaxSpeed)
			}
			contacts = append(contacts, Contact{Kind: KindPaddle, Index: i, Axis: axis, Time: math.Max(t, 0)})
			reflected = true
		}
	}

	// Without a reflection the whole sweep may enter a goal; otherwise only the settled box counts.
	if !reflected {
		if i, _, t, ok := earliest(start, disp, len(goals), func(i int) Box { return goals[i].Box }); ok {
			contacts = append(contacts, Contact{Kind: KindGoal, Index: i, Axis: -1, Time: math.Max(t, 0)})
		}
	} else {
		for i := range goals {
			if ball.Intersects(goals[i].Box) {
				contacts = append(contacts, Contact{Kind: KindGoal, Index: i, Axis: -1})
				break
			}
		}
	}
	return contacts
}

// separate handles a ball that began the tick inside target, which happens when a paddle slides
// onto it. The ball leaves through the face of least penetration, on its own side of target, and
// its velocity along that axis points away from target.
func separate(ball *Ball, prev Vector3, target Box) int {
	start := ball.Moved(prev)
	axis, depth := AxisX, math.Inf(1)
	for a := AxisX; a <= AxisZ; a++ {
		d := start.Half().Axis(a) + target.Half().Axis(a) - math.Abs(prev.Axis(a)-target.Center.Axis(a))
		if d < depth {
			axis, depth = a, d
		}
	}

	half := start.Half().Axis(axis)
	v := math.Abs(ball.Velocity.Axis(axis))
	pos := prev
	if prev.Axis(axis) < target.Center.Axis(axis) {
		pos = pos.WithAxis(axis, target.Min().Axis(axis)-half)
		v = -v
	} else {
		pos = pos.WithAxis(axis, target.Max().Axis(axis)+half)
	}
	ball.Center = pos
	ball.Velocity = ball.Velocity.WithAxis(axis, v)
	return axis
}

func earliest(start Box, disp Vector3, n int, at func(int) Box) (idx, axis int, t float64, ok bool) {
	idx = -1
	for i := 0; i < n; i++ {
		ti, ai, hit := sweep(start, disp, at(i))
		if !hit {
			continue
		}
		if idx < 0 || ti < t {
			idx, axis, t = i, ai, ti
		}
	}
	return idx, axis, t, idx >= 0
}
