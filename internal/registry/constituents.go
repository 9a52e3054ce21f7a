package registry

// constituentSpeeds maps harmonic constituent names to their angular speeds
// in degrees per hour, from the standard Doodson tables. These cover the
// dominant semidiurnal and diurnal signals in the Strait of Georgia;
// shallow-water overtides are below the centimetre level there and are
// folded into the station's mean level.
var constituentSpeeds = map[string]float64{
	"M2": 28.9841042, // principal lunar semidiurnal
	"S2": 30.0000000, // principal solar semidiurnal
	"N2": 28.4397295, // larger lunar elliptic semidiurnal
	"K1": 15.0410686, // lunisolar diurnal
	"O1": 13.9430356, // lunar diurnal
	"P1": 14.9589314, // solar diurnal
	"Q1": 13.3986609, // larger lunar elliptic diurnal
	"K2": 30.0821373, // lunisolar semidiurnal
}

// ConstituentSpeed returns the angular speed in degrees per hour for a named
// constituent, and whether the name is known.
func ConstituentSpeed(name string) (float64, bool) {
	v, ok := constituentSpeeds[name]
	return v, ok
}
