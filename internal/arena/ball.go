// internal/arena/ball.go
package arena

// Ball is the single moving projectile of a match.
type Ball struct {
	Box
	Velocity Vector3 `json:"speed"`

	// MaxSpeed bounds the magnitude after paddle hits and ability boosts.
	MaxSpeed float64 `json:"-"`

	initialPosition Vector3
	initialVelocity Vector3
}

// NewBall builds a cubic ball of edge size at pos, launched with vel.
func NewBall(size float64, pos, vel Vector3, maxSpeed float64) *Ball {
	return &Ball{
		Box:             NewBox(size, size, size, pos),
		Velocity:        vel,
		MaxSpeed:        maxSpeed,
		initialPosition: pos,
		initialVelocity: vel,
	}
}

// Update integrates position by velocity over dt seconds.
func (b *Ball) Update(dt float64) {
	b.Center = b.Center.Add(b.Velocity.Scale(dt))
}

// Reset puts the ball back at its kickoff position and speed.
func (b *Ball) Reset() {
	b.Center = b.initialPosition
	b.Velocity = b.initialVelocity
}

// Speed is the current velocity magnitude.
func (b *Ball) Speed() float64 {
	return b.Velocity.Length()
}

// InitialSpeed is the kickoff velocity magnitude.
func (b *Ball) InitialSpeed() float64 {
	return b.initialVelocity.Length()
}
