package weather

// Modifiers are the gameplay and rendering effects of the current weather.
type Modifiers struct {
	ParticleDensity float64 `json:"particle_density"` // 0 none to 1 whiteout
	WindX           float64 `json:"wind_x"`           // m/s east
	WindZ           float64 `json:"wind_z"`           // m/s north
	VisibilityM     float64 `json:"visibility_m"`
	TravelPenalty   float64 `json:"travel_penalty"` // Multiplier on travel time
	TempModifier    float64 `json:"temp_modifier"`  // -1 cold to +1 hot
	Description     string  `json:"description"`
}

// ModifiersFor converts a weather state to simulation modifiers.
func ModifiersFor(s State) Modifiers {
	mod := Modifiers{
		WindX:         s.WindX,
		WindZ:         s.WindZ,
		VisibilityM:   20000,
		TravelPenalty: 1.0,
		Description:   s.Description,
	}

	// Temperature modifier: map celsius to -1..+1 (0C = -0.5, 20C = 0, 40C = +1).
	mod.TempModifier = clamp((s.TempC-20)/20, -1, 1)

	i := clamp(s.Intensity, 0, 1)
	switch s.Condition {
	case Cloudy:
		mod.VisibilityM = 15000
	case Rain:
		mod.ParticleDensity = 0.2 + 0.5*i
		mod.VisibilityM = 6000 - 4000*i
		mod.TravelPenalty = 1.2
	case Snow:
		mod.ParticleDensity = 0.3 + 0.7*i
		mod.VisibilityM = 3000 - 2500*i
		mod.TravelPenalty = 1.5
	case Storm:
		mod.ParticleDensity = 0.6 + 0.4*i
		mod.VisibilityM = 1500 - 1000*i
		mod.TravelPenalty = 2.0
	case Fog:
		mod.VisibilityM = 1000 - 900*i
		mod.TravelPenalty = 1.1
	}
	return mod
}
