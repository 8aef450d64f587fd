// internal/arena/paddle.go
package arena

import (
	"math"

	"github.com/jason-s-yu/pongarena/internal/models"
)

// Ability tags the special effect a paddle variant can trigger.
type Ability int

const (
	AbilityNone Ability = iota
	AbilityPowerShot
	AbilitySlow
	AbilityWide
	AbilityReverse
	AbilityRecall
)

func (a Ability) String() string {
	switch a {
	case AbilityPowerShot:
		return "power_shot"
	case AbilitySlow:
		return "slow"
	case AbilityWide:
		return "wide"
	case AbilityReverse:
		return "reverse"
	case AbilityRecall:
		return "recall"
	default:
		return "none"
	}
}

// Variant is the capability descriptor of a paddle type: its geometry, movement speed and
// optional special ability.
type Variant struct {
	Type     models.PaddleType
	Width    float64
	Height   float64
	Speed    float64 // units per second along each movement axis
	Ability  Ability
	Cooldown int // ticks between ability uses
}

const (
	paddleDepth       = 0.1
	powerShotFactor   = 1.5
	slowFactor        = 0.5
	wideFactor        = 2.0
	wideDurationTicks = 180
)

var variants = map[models.PaddleType]Variant{
	models.PaddleBasic:  {Type: models.PaddleBasic, Width: 2, Height: 2, Speed: 10},
	models.PaddleRed:    {Type: models.PaddleRed, Width: 2, Height: 2, Speed: 9, Ability: AbilityPowerShot, Cooldown: 300},
	models.PaddleBlue:   {Type: models.PaddleBlue, Width: 2, Height: 2, Speed: 11, Ability: AbilitySlow, Cooldown: 420},
	models.PaddleOrange: {Type: models.PaddleOrange, Width: 2, Height: 2, Speed: 10, Ability: AbilityWide, Cooldown: 480},
	models.PaddlePurple: {Type: models.PaddlePurple, Width: 1.6, Height: 1.6, Speed: 12, Ability: AbilityReverse, Cooldown: 360},
	models.PaddleGreen:  {Type: models.PaddleGreen, Width: 2, Height: 2, Speed: 10, Ability: AbilityRecall, Cooldown: 300},
}

// VariantFor returns the descriptor for t, falling back to the basic paddle.
func VariantFor(t models.PaddleType) Variant {
	if v, ok := variants[t]; ok {
		return v
	}
	return variants[models.PaddleBasic]
}

// Paddle is a player-controlled box that slides in the X/Y plane at a fixed depth.
type Paddle struct {
	Box
	Variant Variant `json:"-"`
	Team    bool    `json:"team"`

	// Velocity is the lateral displacement rate measured over the last step.
	Velocity Vector3 `json:"velocity"`

	limitX, limitY float64 // interior half extents of the field
	intent         Vector3 // held direction, each axis in [-1, 1]
	impulse        Vector3 // one-step nudge, cleared after Step
	cooldown       int
	charged        bool
	wideTicks      int
}

// NewPaddle places a paddle of variant v at pos, confined to a field whose interior spans
// [-limitX, limitX] by [-limitY, limitY].
func NewPaddle(v Variant, team bool, pos Vector3, limitX, limitY float64) *Paddle {
	p := &Paddle{
		Box:     NewBox(v.Width, v.Height, paddleDepth, pos),
		Variant: v,
		Team:    team,
		limitX:  limitX,
		limitY:  limitY,
	}
	p.clamp()
	return p
}

// SetIntent starts (hold) or nudges (one step) movement along axis. dir is clamped to [-1, 1];
// a held zero stops the axis.
func (p *Paddle) SetIntent(axis int, dir float64, hold bool) {
	if axis != AxisX && axis != AxisY {
		return
	}
	dir = math.Max(-1, math.Min(1, dir))
	if hold {
		p.intent = p.intent.WithAxis(axis, dir)
		return
	}
	p.impulse = p.impulse.WithAxis(axis, dir)
}

// Stop drops any held or pending movement.
func (p *Paddle) Stop() {
	p.intent = Vector3{}
	p.impulse = Vector3{}
}

// Step advances the paddle by one tick of dt seconds.
func (p *Paddle) Step(dt float64) {
	before := p.Center
	dx := math.Max(-1, math.Min(1, p.intent.X+p.impulse.X))
	dy := math.Max(-1, math.Min(1, p.intent.Y+p.impulse.Y))
	p.Center.X += dx * p.Variant.Speed * dt
	p.Center.Y += dy * p.Variant.Speed * dt
	p.impulse = Vector3{}

	if p.wideTicks > 0 {
		p.wideTicks--
		if p.wideTicks == 0 {
			p.Size.X = p.Variant.Width
		}
	}
	p.clamp()

	if dt > 0 {
		p.Velocity = p.Center.Sub(before).Scale(1 / dt)
	} else {
		p.Velocity = Vector3{}
	}
	if p.cooldown > 0 {
		p.cooldown--
	}
}

func (p *Paddle) clamp() {
	half := p.Half()
	maxX := math.Max(0, p.limitX-half.X)
	maxY := math.Max(0, p.limitY-half.Y)
	p.Center.X = math.Max(-maxX, math.Min(maxX, p.Center.X))
	p.Center.Y = math.Max(-maxY, math.Min(maxY, p.Center.Y))
}

// Ready reports whether the ability can fire this tick.
func (p *Paddle) Ready() bool {
	return p.Variant.Ability != AbilityNone && p.cooldown == 0
}

// Cooldown is the number of ticks until the ability is available again.
func (p *Paddle) Cooldown() int {
	return p.cooldown
}

// Charged reports whether a power shot is armed for the next hit.
func (p *Paddle) Charged() bool {
	return p.charged
}

// Trigger fires the paddle's special ability against the ball and field state. It returns
// false when the variant has no ability or it is still cooling down.
func (p *Paddle) Trigger(ball *Ball) bool {
	if !p.Ready() {
		return false
	}
	switch p.Variant.Ability {
	case AbilityPowerShot:
		p.charged = true
	case AbilitySlow:
		ball.Velocity = ball.Velocity.Scale(slowFactor)
	case AbilityWide:
		p.Size.X = p.Variant.Width * wideFactor
		p.wideTicks = wideDurationTicks
		p.clamp()
	case AbilityReverse:
		ball.Velocity.X = -ball.Velocity.X
		ball.Velocity.Y = -ball.Velocity.Y
	case AbilityRecall:
		if speed := ball.Speed(); speed > 0 {
			ball.Velocity = ball.Velocity.Scale(ball.InitialSpeed() / speed)
		}
	default:
		return false
	}
	p.cooldown = p.Variant.Cooldown
	return true
}

// consumeCharge applies an armed power shot to the ball leaving this paddle.
func (p *Paddle) consumeCharge(ball *Ball) {
	if !p.charged {
		return
	}
	p.charged = false
	ball.Velocity = ball.Velocity.Scale(powerShotFactor)
}
