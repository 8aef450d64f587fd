// internal/arena/objects.go
package arena

// Wall is a static reflecting box.
type Wall struct {
	Box
}

// Goal is a scoring volume placed behind one team's paddles. A ball entering it scores for
// ScoringTeam.
type Goal struct {
	Box
	ScoringTeam bool `json:"scoringTeam"`
}

// ObjectKind orders the categories considered during collision resolution.
type ObjectKind int

const (
	KindWall ObjectKind = iota
	KindPaddle
	KindGoal
)

func (k ObjectKind) String() string {
	switch k {
	case KindWall:
		return "wall"
	case KindPaddle:
		return "paddle"
	case KindGoal:
		return "goal"
	default:
		return "unknown"
	}
}
