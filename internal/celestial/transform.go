package celestial

import (
	"errors"
	"fmt"
	"time"

	"github.com/talgya/metaverse/internal/contract"
	"github.com/talgya/metaverse/internal/timescale"
)

// ErrFrameDiffers is returned when two positions must share a frame.
var ErrFrameDiffers = errors.New("positions are in different frames")

// PolarMotionSource supplies pole coordinates xp, yp in arcseconds.
type PolarMotionSource interface {
	PolarMotion(utc time.Time) (xp, yp float64)
}

type noPolarMotion struct{}

func (noPolarMotion) PolarMotion(time.Time) (float64, float64) { return 0, 0 }

// RotationModel selects how the Earth rotation angle is computed.
type RotationModel uint8

const (
	ModelGMST RotationModel = iota // Greenwich sidereal time (apparent when nutation is on)
	ModelERA                       // Earth Rotation Angle
)

func (m RotationModel) String() string {
	switch m {
	case ModelGMST:
		return "gmst"
	case ModelERA:
		return "era"
	default:
		return fmt.Sprintf("RotationModel(%d)", uint8(m))
	}
}

// ParseRotationModel maps "gmst" or "era" to a RotationModel.
func ParseRotationModel(s string) (RotationModel, error) {
	switch s {
	case "gmst", "":
		return ModelGMST, nil
	case "era":
		return ModelERA, nil
	default:
		return 0, fmt.Errorf("unknown rotation model %q", s)
	}
}

// Options toggle the optional corrections in the transform chain.
type Options struct {
	PrecessionNutation bool
	PolarMotion        bool
	Rotation           RotationModel
}

// DefaultOptions enables every correction.
func DefaultOptions() Options {
	return Options{PrecessionNutation: true, PolarMotion: true, Rotation: ModelGMST}
}

// RotationChain holds the four matrices of the Earth-fixed to celestial
// transform at one instant.
type RotationChain struct {
	Polar      Mat3    // ITRS -> terrestrial intermediate
	Rotation   Mat3    // terrestrial intermediate -> true of date
	Nutation   Mat3    // true of date -> mean of date
	Precession Mat3    // mean of date -> J2000
	Theta      float64 // Rotation angle used, radians
}

// ECEFToECI returns P·N·R·W.
func (c RotationChain) ECEFToECI() Mat3 {
	return Chain(c.Precession, c.Nutation, c.Rotation, c.Polar)
}

// ECIToECEF returns the transpose of ECEFToECI.
func (c RotationChain) ECIToECEF() Mat3 {
	return c.ECEFToECI().T()
}

// Position is a contract-tagged Cartesian vector.
type Position struct {
	R        Vec3              `json:"r"`
	Contract contract.Contract `json:"contract"`
}

// Transformer moves positions between frames. It has no mutable state.
type Transformer struct {
	conv  *timescale.Converter
	polar PolarMotionSource
	opts  Options
	site  Geodetic
}

// NewTransformer builds a transformer. site is the observer used for the
// topocentric frame. A nil polar source disables polar motion.
func NewTransformer(conv *timescale.Converter, polar PolarMotionSource, opts Options, site Geodetic) *Transformer {
	if conv == nil {
		conv = timescale.NewConverter(nil, nil)
	}
	if polar == nil {
		polar = noPolarMotion{}
	}
	return &Transformer{conv: conv, polar: polar, opts: opts, site: site}
}

// Site returns the topocentric observer.
func (tr *Transformer) Site() Geodetic {
	return tr.site
}

// Converter returns the time-scale converter the transformer reads from.
func (tr *Transformer) Converter() *timescale.Converter {
	return tr.conv
}

// ChainAt builds the rotation chain for an instant on any scale.
func (tr *Transformer) ChainAt(at timescale.Instant) RotationChain {
	utc := tr.conv.Convert(at, timescale.UTC).Time
	jdUT1 := timescale.JulianDate(tr.conv.UTCToUT1(utc))
	tTT := timescale.JulianCenturies(timescale.JulianDate(tr.conv.UTCToTT(utc)))

	c := RotationChain{
		Polar:      Identity(),
		Nutation:   Identity(),
		Precession: Identity(),
	}
	if tr.opts.PolarMotion {
		xp, yp := tr.polar.PolarMotion(utc)
		c.Polar = PolarMotionMatrix(xp, yp)
	}

	switch {
	case tr.opts.PrecessionNutation:
		// The equinox-based chain needs apparent sidereal time regardless of model.
		c.Theta = GAST(jdUT1, tTT)
		c.Nutation = NutationMatrix(tTT)
		c.Precession = PrecessionMatrix(tTT)
	case tr.opts.Rotation == ModelERA:
		c.Theta = EarthRotationAngle(jdUT1)
	default:
		c.Theta = GMST(jdUT1)
	}
	c.Rotation = EarthRotationMatrix(c.Theta)
	return c
}

// ECEFToECI rotates an Earth-fixed vector into the celestial frame.
func (tr *Transformer) ECEFToECI(r Vec3, at timescale.Instant) Vec3 {
	return tr.ChainAt(at).ECEFToECI().Apply(r)
}

// ECIToECEF rotates a celestial vector into the Earth-fixed frame.
func (tr *Transformer) ECIToECEF(r Vec3, at timescale.Instant) Vec3 {
	return tr.ChainAt(at).ECIToECEF().Apply(r)
}

// SunECI returns the geocentric Sun on J2000 axes.
func (tr *Transformer) SunECI(at timescale.Instant) Vec3 {
	jd, t := tr.dynamicalTime(at)
	return PrecessionMatrix(t).Apply(SunPosition(jd))
}

// MoonECI returns the geocentric Moon on J2000 axes.
func (tr *Transformer) MoonECI(at timescale.Instant) Vec3 {
	jd, t := tr.dynamicalTime(at)
	return PrecessionMatrix(t).Apply(MoonPosition(jd))
}

func (tr *Transformer) dynamicalTime(at timescale.Instant) (jdTDB, tTT float64) {
	tdb := tr.conv.Convert(at, timescale.TDB)
	tt := tr.conv.Convert(at, timescale.TT)
	return tdb.JD(), timescale.JulianCenturies(tt.JD())
}

// Horizontal returns the azimuth/elevation of an ECI target seen from the site.
func (tr *Transformer) Horizontal(eci Vec3, at timescale.Instant) Horizontal {
	ecef := tr.ECIToECEF(eci, at)
	enu := ENUMatrix(tr.site).Apply(ecef.Sub(tr.site.ToECEF()))
	return HorizontalFromENU(enu)
}

// Transform re-expresses pos in frame to at the given instant. The instant's
// scale is verified against the position's contract first; vc decides whether
// a mismatch is fatal.
func (tr *Transformer) Transform(vc *contract.Context, pos Position, to contract.Frame, at timescale.Instant) (Position, error) {
	if pos.Contract.IsZero() {
		return Position{}, errors.New("position has no contract")
	}
	if !to.Valid() {
		return Position{}, fmt.Errorf("%w: %d", contract.ErrUnknownFrame, uint8(to))
	}
	if err := vc.Verify(pos.Contract, pos.Contract.WithScale(at.Scale)); err != nil {
		return Position{}, fmt.Errorf("transform %v -> %v: %w", pos.Contract.Frame(), to, err)
	}

	out := Position{R: pos.R, Contract: pos.Contract.WithFrame(to)}
	if pos.Contract.Frame() == to {
		return out, nil
	}

	// Only ask for the chain once; both legs may need it.
	chain := tr.ChainAt(at)
	eci := tr.toECI(pos.R, pos.Contract.Frame(), at, chain)
	out.R = tr.fromECI(eci, to, at, chain)
	return out, nil
}

func (tr *Transformer) toECI(r Vec3, from contract.Frame, at timescale.Instant, chain RotationChain) Vec3 {
	switch from {
	case contract.ECI:
		return r
	case contract.ECEF:
		return chain.ECEFToECI().Apply(r)
	case contract.Topocentric:
		ecef := tr.site.ToECEF().Add(ENUMatrix(tr.site).T().Apply(r))
		return chain.ECEFToECI().Apply(ecef)
	case contract.HeliocentricEcliptic:
		return EclipticMatrix().T().Apply(r).Add(tr.SunECI(at))
	case contract.ICRFBarycentric:
		return r.Add(tr.SunECI(at))
	case contract.MoonCentered:
		return r.Add(tr.MoonECI(at))
	default:
		panic("celestial: unhandled frame " + from.String())
	}
}

func (tr *Transformer) fromECI(eci Vec3, to contract.Frame, at timescale.Instant, chain RotationChain) Vec3 {
	switch to {
	case contract.ECI:
		return eci
	case contract.ECEF:
		return chain.ECIToECEF().Apply(eci)
	case contract.Topocentric:
		ecef := chain.ECIToECEF().Apply(eci)
		return ENUMatrix(tr.site).Apply(ecef.Sub(tr.site.ToECEF()))
	case contract.HeliocentricEcliptic:
		return EclipticMatrix().Apply(eci.Sub(tr.SunECI(at)))
	case contract.ICRFBarycentric:
		return eci.Sub(tr.SunECI(at))
	case contract.MoonCentered:
		return eci.Sub(tr.MoonECI(at))
	default:
		panic("celestial: unhandled frame " + to.String())
	}
}

// Separation returns the distance between two positions. They must share a
// frame, and their contracts are verified through vc.
func Separation(vc *contract.Context, a, b Position) (float64, error) {
	if err := vc.Verify(a.Contract, b.Contract); err != nil {
		return 0, err
	}
	if a.Contract.Frame() != b.Contract.Frame() {
		return 0, fmt.Errorf("%w: %v vs %v", ErrFrameDiffers, a.Contract.Frame(), b.Contract.Frame())
	}
	return a.R.Sub(b.R).Norm(), nil
}
