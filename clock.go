package gpuparticle

import (
	"time"
)

// Clock measures frame deltas.
type Clock struct {
	Time time.Time
	Dt   time.Duration
	now  func() time.Time
}

func NewClock() *Clock {
	return &Clock{Time: time.Now(), now: time.Now}
}

// Tick advances the clock to the current time and returns the delta.
func (c *Clock) Tick() time.Duration {
	if c.now == nil {
		c.now = time.Now
	}
	now := c.now()
	c.Dt = now.Sub(c.Time)
	c.Time = now
	return c.Dt
}

// FixedStepper turns variable frame deltas into a whole number of fixed
// update steps. Leftover time carries into the next frame.
type FixedStepper struct {
	Step     time.Duration
	MaxSteps int // per Advance; 0 means unlimited

	acc time.Duration
}

func NewFixedStepper(hz float64) *FixedStepper {
	if hz <= 0 {
		hz = 50
	}
	return &FixedStepper{Step: time.Duration(float64(time.Second) / hz), MaxSteps: 8}
}

// Advance adds dt and returns how many fixed steps are due. When more than
// MaxSteps are due the surplus time is dropped.
func (s *FixedStepper) Advance(dt time.Duration) int {
	if s.Step <= 0 {
		return 0
	}
	s.acc += dt
	n := int(s.acc / s.Step)
	s.acc -= time.Duration(n) * s.Step
	if s.MaxSteps > 0 && n > s.MaxSteps {
		n = s.MaxSteps
		s.acc = 0
	}
	return n
}

// Seconds is the fixed step as the float delta the emitter takes.
func (s *FixedStepper) Seconds() float32 {
	return float32(s.Step.Seconds())
}
