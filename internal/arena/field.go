// internal/arena/field.go
package arena

import (
	"fmt"

	"github.com/jason-s-yu/pongarena/internal/models"
)

// Dimensions are the interior extents of the playing volume.
type Dimensions struct {
	Width         float64 `json:"width"`  // X
	Height        float64 `json:"height"` // Y
	Depth         float64 `json:"depth"`  // Z, goal to goal
	GoalDepth     float64 `json:"goalDepth"`
	WallThickness float64 `json:"wallThickness"`
}

// DefaultDimensions is the standard arena.
var DefaultDimensions = Dimensions{Width: 16, Height: 9, Depth: 35, GoalDepth: 1, WallThickness: 1}

// Layout is the map-specific part of a field: obstacles placed inside the shell.
type Layout struct {
	Name      models.MapName
	Obstacles []Box
}

var layouts = map[models.MapName]Layout{
	models.MapClassic: {Name: models.MapClassic},
	models.MapSpace: {
		Name: models.MapSpace,
		Obstacles: []Box{
			NewBox(1, 9, 1, Vec(-4, 0, 0)),
			NewBox(1, 9, 1, Vec(4, 0, 0)),
		},
	},
}

// LayoutFor returns the layout registered for name.
func LayoutFor(name models.MapName) (Layout, error) {
	l, ok := layouts[name]
	if !ok {
		return Layout{}, fmt.Errorf("unknown map %q", name)
	}
	return l, nil
}

// Field is the immutable geometry of one match.
type Field struct {
	Map   models.MapName `json:"map"`
	Dims  Dimensions     `json:"dimensions"`
	Walls []Wall         `json:"walls"`
	Goals []Goal         `json:"goals"`
}

// NewField assembles the walls and goals for the named map.
func NewField(name models.MapName, dims Dimensions) (*Field, error) {
	layout, err := LayoutFor(name)
	if err != nil {
		return nil, err
	}

	w, h, d, g, t := dims.Width, dims.Height, dims.Depth, dims.GoalDepth, dims.WallThickness
	// The shell runs past both goals so the ball cannot slip around them.
	length := d + 4*g

	f := &Field{Map: name, Dims: dims}
	f.Walls = []Wall{
		{NewBox(t, h+2*t, length, Vec(-(w+t)/2, 0, 0))}, // left
		{NewBox(t, h+2*t, length, Vec((w+t)/2, 0, 0))},  // right
		{NewBox(w, t, length, Vec(0, -(h+t)/2, 0))},     // floor
		{NewBox(w, t, length, Vec(0, (h+t)/2, 0))},      // ceiling
	}
	for _, o := range layout.Obstacles {
		f.Walls = append(f.Walls, Wall{o})
	}

	// The +Z goal sits behind team true, so team false scores into it.
	f.Goals = []Goal{
		{Box: NewBox(w, h, g, Vec(0, 0, d/2+g)), ScoringTeam: false},
		{Box: NewBox(w, h, g, Vec(0, 0, -(d/2+g))), ScoringTeam: true},
	}
	return f, nil
}

// PaddleZ is the depth at which team's paddles travel.
func (f *Field) PaddleZ(team bool) float64 {
	if team {
		return f.Dims.Depth / 2
	}
	return -f.Dims.Depth / 2
}

// PaddleStart spreads count paddles of one team evenly across the width; slot is zero-based.
func (f *Field) PaddleStart(team bool, slot, count int) Vector3 {
	x := 0.0
	if count > 1 {
		x = -f.Dims.Width/2 + f.Dims.Width*(float64(slot)+0.5)/float64(count)
	}
	return Vec(x, 0, f.PaddleZ(team))
}

// NewPaddle creates a paddle confined to this field's interior.
func (f *Field) NewPaddle(v Variant, team bool, slot, count int) *Paddle {
	return NewPaddle(v, team, f.PaddleStart(team, slot, count), f.Dims.Width/2, f.Dims.Height/2)
}
