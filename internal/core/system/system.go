package system

import "time"

// Phase defines execution ordering within a single tick.
type Phase int

const (
	PhaseInput   Phase = iota // 0: scripted steering, event dispatch
	PhaseMove                 // 1: integrate motion
	PhaseIndex                // 2: push new bounds into the spatial index
	PhaseDetect               // 3: broad + narrow phase, cross-checks
	PhaseOutput               // 4: viewer frames
	PhasePersist              // 5: run statistics
	PhaseCleanup              // 6: destroy queued entities, prune buckets
)

var phaseNames = [...]string{"input", "move", "index", "detect", "output", "persist", "cleanup"}

func (p Phase) String() string {
	if p >= 0 && int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return "unknown"
}

// System is the interface every ECS system implements.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}
