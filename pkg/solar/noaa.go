package solar

import (
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
)

// NOAAProvider implements the NOAA solar calculator formulation. It needs only
// low-order series and agrees with MeeusProvider to a few hundredths of a degree
// for present-day dates.
type NOAAProvider struct{}

// sunCoords holds the intermediate values shared by the NOAA position and the
// equation of time.
type sunCoords struct {
	declinationRad float64
	eqTimeMin      float64
}

func noaaSun(t time.Time) sunCoords {
	jd := julian.TimeToJD(t.UTC())
	T := (jd - 2451545.0) / 36525.0

	L0 := fixAngle(280.46646 + T*(36000.76983+T*0.0003032))
	M := fixAngle(357.52911 + T*(35999.05029-T*0.0001537))
	e := 0.016708634 - T*(0.000042037+T*0.0000001267)
	C := math.Sin(degToRad(M))*(1.914602-T*(0.004817+T*0.000014)) +
		math.Sin(degToRad(2*M))*(0.019993-T*0.000101) +
		math.Sin(degToRad(3*M))*0.000289
	Ω := 125.04 - 1934.136*T
	λ := L0 + C - 0.00569 - 0.00478*math.Sin(degToRad(Ω))
	eps0 := 23 + (26+(21.448-T*(46.815+T*(0.00059-T*0.001813)))/60)/60
	eps := eps0 + 0.00256*math.Cos(degToRad(Ω))

	y := math.Tan(degToRad(eps)/2) * math.Tan(degToRad(eps)/2)
	eqTime := radToDeg(y*math.Sin(degToRad(2*L0))-
		2*e*math.Sin(degToRad(M))+
		4*e*y*math.Sin(degToRad(M))*math.Cos(degToRad(2*L0))-
		0.5*y*y*math.Sin(degToRad(4*L0))-
		1.25*e*e*math.Sin(degToRad(2*M))) * 4

	return sunCoords{
		declinationRad: math.Asin(math.Sin(degToRad(eps)) * math.Sin(degToRad(λ))),
		eqTimeMin:      eqTime,
	}
}

// equationOfTime returns apparent minus mean solar time in minutes.
func equationOfTime(t time.Time) float64 {
	return noaaSun(t).eqTimeMin
}

// Position returns the sun position at t for loc.
func (NOAAProvider) Position(t time.Time, loc Location) (Position, error) {
	sun := noaaSun(t)

	u := t.UTC()
	utcMin := float64(u.Hour()*60+u.Minute()) + float64(u.Second())/60.0
	trueSolarMin := utcMin + 4*loc.Longitude + sun.eqTimeMin
	ha := trueSolarMin/4 - 180

	return horizontal(degToRad(ha), sun.declinationRad, degToRad(loc.Latitude)), nil
}
