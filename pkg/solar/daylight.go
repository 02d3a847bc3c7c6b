package solar

import (
	"math"
	"time"
)

// Daylight is the sunrise and sunset of one day, in minutes from midnight UTC.
// Sunrise and Sunset are -1 when PolarDay or PolarNight is set.
type Daylight struct {
	Sunrise    int
	Sunset     int
	PolarDay   bool
	PolarNight bool
}

// Sunlit reports whether the sun rises at all on this day.
func (d Daylight) Sunlit() bool {
	return !d.PolarNight
}

// CalculateDaylight returns sunrise and sunset for the given year and day-of-year at
// the specified latitude and longitude.
func CalculateDaylight(year, dayOfYear int, latitude, longitude float64) Daylight {
	// Reference time at noon UTC for the given day
	refTime := time.Date(year, 1, 1, 12, 0, 0, 0, time.UTC).AddDate(0, 0, dayOfYear-1)
	sun := noaaSun(refTime)

	// cos(H) = -tan(lat) * tan(declination) with the sun on the horizon
	cosH := -math.Tan(degToRad(latitude)) * math.Tan(sun.declinationRad)

	if cosH < -1.0 {
		return Daylight{Sunrise: -1, Sunset: -1, PolarDay: true}
	}
	if cosH > 1.0 {
		return Daylight{Sunrise: -1, Sunset: -1, PolarNight: true}
	}

	// 15 degrees per hour, 4 minutes per degree
	hourAngleMinutes := radToDeg(math.Acos(cosH)) * 4.0

	// Positive longitude (east) means an earlier UTC noon
	solarNoonUTC := 720.0 - longitude*4.0 - sun.eqTimeMin

	sunrise := math.Mod(solarNoonUTC-hourAngleMinutes+1440, 1440)
	sunset := math.Mod(solarNoonUTC+hourAngleMinutes+1440, 1440)

	return Daylight{
		Sunrise: int(math.Round(sunrise)),
		Sunset:  int(math.Round(sunset)),
	}
}

// FormatSunTime converts UTC minutes from midnight to a clock string in loc.
func FormatSunTime(utcMinutes int, loc *time.Location) string {
	if utcMinutes < 0 {
		return ""
	}

	t := time.Date(2000, 1, 1, utcMinutes/60, utcMinutes%60, 0, 0, time.UTC)
	return t.In(loc).Format("15:04")
}
