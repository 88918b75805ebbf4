package contract

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"
)

// ErrIncompatible is wrapped by every mismatch reported in strict mode.
var ErrIncompatible = errors.New("incompatible contracts")

// ErrUnregistered is returned when a named contract is not in the context.
var ErrUnregistered = errors.New("contract not registered")

// Mode selects how a Context reacts to a mismatch.
type Mode uint8

const (
	ModeWarn   Mode = iota // Log and record, let the operation proceed
	ModeStrict             // Record and return an error
)

func (m Mode) String() string {
	switch m {
	case ModeWarn:
		return "warn"
	case ModeStrict:
		return "strict"
	default:
		return fmt.Sprintf("Mode(%d)", uint8(m))
	}
}

// ParseMode maps "warn" or "strict" to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "warn", "":
		return ModeWarn, nil
	case "strict":
		return ModeStrict, nil
	default:
		return 0, fmt.Errorf("unknown verification mode %q", s)
	}
}

// Violation names one way two contracts disagree.
type Violation uint8

const (
	FrameClassMismatch Violation = iota // One frame rotates with the Earth, the other is inertial
	ScaleMismatch                       // Time scales differ
)

func (v Violation) String() string {
	switch v {
	case FrameClassMismatch:
		return "frame_class_mismatch"
	case ScaleMismatch:
		return "scale_mismatch"
	default:
		return fmt.Sprintf("Violation(%d)", uint8(v))
	}
}

// Compatible returns every violation between a and b; none means the two may
// be compared or combined.
func Compatible(a, b Contract) []Violation {
	var out []Violation
	if a.Frame().Rotating() != b.Frame().Rotating() {
		out = append(out, FrameClassMismatch)
	}
	if a.Scale() != b.Scale() {
		out = append(out, ScaleMismatch)
	}
	return out
}

// Finding records one detected mismatch.
type Finding struct {
	Left       string      `json:"left"`
	Right      string      `json:"right"`
	Violations []Violation `json:"-"`
	Kinds      []string    `json:"violations"`
	At         time.Time   `json:"at"`
}

// MismatchError is returned in strict mode.
type MismatchError struct {
	Finding Finding
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("incompatible contracts %s vs %s: %v", e.Finding.Left, e.Finding.Right, e.Finding.Kinds)
}

func (e *MismatchError) Unwrap() error { return ErrIncompatible }

// maxFindings bounds the findings a Context retains; older ones are dropped
// but still counted.
const maxFindings = 500

// Context carries named contracts and accumulated findings for a unit of
// work. Pass one explicitly to each verifying call; it is safe for
// concurrent use.
type Context struct {
	mode   Mode
	logger *slog.Logger

	mu       sync.Mutex
	named    map[string]Contract
	findings []Finding
	total    int
}

// NewContext creates an empty verification context. A nil logger uses slog.Default.
func NewContext(mode Mode, logger *slog.Logger) *Context {
	if logger == nil {
		logger = slog.Default()
	}
	return &Context{mode: mode, logger: logger, named: make(map[string]Contract)}
}

// Mode returns the context's reaction mode.
func (c *Context) Mode() Mode {
	return c.mode
}

// Register stores a contract under name, replacing any previous one.
func (c *Context) Register(name string, ct Contract) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.named[name] = ct
}

// Lookup returns the contract registered under name.
func (c *Context) Lookup(name string) (Contract, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ct, ok := c.named[name]
	return ct, ok
}

// Verify checks a against b. In warn mode a mismatch is logged and recorded
// and nil is returned; in strict mode it is recorded and returned.
func (c *Context) Verify(a, b Contract) error {
	return c.verify(a.String(), b.String(), a, b)
}

// VerifyNamed checks two registered contracts.
func (c *Context) VerifyNamed(left, right string) error {
	a, ok := c.Lookup(left)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnregistered, left)
	}
	b, ok := c.Lookup(right)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnregistered, right)
	}
	return c.verify(left, right, a, b)
}

func (c *Context) verify(left, right string, a, b Contract) error {
	violations := Compatible(a, b)
	if len(violations) == 0 {
		return nil
	}

	kinds := make([]string, len(violations))
	for i, v := range violations {
		kinds[i] = v.String()
	}
	f := Finding{Left: left, Right: right, Violations: violations, Kinds: kinds, At: time.Now()}

	c.mu.Lock()
	c.findings = append(c.findings, f)
	if len(c.findings) > maxFindings {
		c.findings = c.findings[len(c.findings)-maxFindings:]
	}
	c.total++
	c.mu.Unlock()

	if c.mode == ModeStrict {
		return &MismatchError{Finding: f}
	}
	c.logger.Warn("contract mismatch", "left", left, "right", right, "violations", kinds)
	return nil
}

// Findings returns a copy of the most recent mismatches, oldest first.
func (c *Context) Findings() []Finding {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Finding, len(c.findings))
	copy(out, c.findings)
	return out
}

// FindingCount returns how many mismatches were recorded, including ones no
// longer retained.
func (c *Context) FindingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

// WithinTolerance compares x and y under the tighter of the two contracts'
// tolerances for key. With no tolerance on either side the values must be equal.
func WithinTolerance(key string, a, b Contract, x, y float64) bool {
	tol, ok := a.Tolerance(key)
	if tb, okb := b.Tolerance(key); okb && (!ok || tb < tol) {
		tol, ok = tb, true
	}
	if !ok {
		tol = 0
	}
	return math.Abs(x-y) <= tol
}
