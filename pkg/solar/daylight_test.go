package solar

import (
	"math"
	"testing"
	"time"
)

func TestCalculateDaylight(t *testing.T) {
	tests := []struct {
		name             string
		dayOfYear        int
		latitude         float64
		longitude        float64
		polarDay         bool
		polarNight       bool
		sunriseApproxUTC int // ±30 min
		sunsetApproxUTC  int // ±30 min
	}{
		{
			name:             "Equator at equinox",
			dayOfYear:        80,
			sunriseApproxUTC: 360,
			sunsetApproxUTC:  1080,
		},
		{
			name:             "London summer solstice",
			dayOfYear:        173,
			latitude:         51.5,
			longitude:        -0.1,
			sunriseApproxUTC: 223, // 03:43
			sunsetApproxUTC:  1221,
		},
		{
			name:             "Seattle winter solstice wraps past midnight UTC",
			dayOfYear:        356,
			latitude:         47.6,
			longitude:        -122.3,
			sunriseApproxUTC: 955, // 07:55 PST
			sunsetApproxUTC:  20,  // 16:20 PST
		},
		{
			name:      "Tromso midsummer",
			dayOfYear: 173,
			latitude:  69.6,
			longitude: 18.9,
			polarDay:  true,
		},
		{
			name:       "Svalbard midwinter",
			dayOfYear:  356,
			latitude:   78.2,
			longitude:  15.6,
			polarNight: true,
		},
		{
			name:       "Antarctic June",
			dayOfYear:  173,
			latitude:   -77.8,
			longitude:  166.7,
			polarNight: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := CalculateDaylight(2024, tt.dayOfYear, tt.latitude, tt.longitude)

			if d.PolarDay != tt.polarDay || d.PolarNight != tt.polarNight {
				t.Fatalf("polar day/night = %v/%v, expected %v/%v", d.PolarDay, d.PolarNight, tt.polarDay, tt.polarNight)
			}
			if d.Sunlit() == tt.polarNight {
				t.Errorf("Sunlit() = %v with polar night %v", d.Sunlit(), tt.polarNight)
			}
			if tt.polarDay || tt.polarNight {
				if d.Sunrise != -1 || d.Sunset != -1 {
					t.Errorf("expected -1/-1 for polar conditions, got %d/%d", d.Sunrise, d.Sunset)
				}
				return
			}

			if diff := minutesApart(d.Sunrise, tt.sunriseApproxUTC); diff > 30 {
				t.Errorf("sunrise = %d, expected ~%d", d.Sunrise, tt.sunriseApproxUTC)
			}
			if diff := minutesApart(d.Sunset, tt.sunsetApproxUTC); diff > 30 {
				t.Errorf("sunset = %d, expected ~%d", d.Sunset, tt.sunsetApproxUTC)
			}
		})
	}
}

func minutesApart(a, b int) int {
	d := int(math.Abs(float64(a - b)))
	if d > 720 {
		d = 1440 - d
	}
	return d
}

func TestDaylightConsistency(t *testing.T) {
	for doy := 1; doy <= 366; doy++ {
		d := CalculateDaylight(2024, doy, 45.0, 0.0)
		if d.PolarDay || d.PolarNight {
			t.Errorf("day %d: unexpected polar conditions at 45°N", doy)
			continue
		}

		dayLength := d.Sunset - d.Sunrise
		if dayLength < 0 {
			dayLength += 1440
		}
		if dayLength < 480 || dayLength > 960 {
			t.Errorf("day %d: unreasonable day length: %d minutes", doy, dayLength)
		}
	}
}

func TestFormatSunTime(t *testing.T) {
	tokyo := time.FixedZone("UTC+9", 9*3600)

	tests := []struct {
		name       string
		utcMinutes int
		loc        *time.Location
		expected   string
	}{
		{name: "noon UTC", utcMinutes: 720, loc: time.UTC, expected: "12:00"},
		{name: "midnight UTC", utcMinutes: 0, loc: time.UTC, expected: "00:00"},
		{name: "fixed offset", utcMinutes: 1200, loc: tokyo, expected: "05:00"},
		{name: "polar returns empty", utcMinutes: -1, loc: time.UTC, expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatSunTime(tt.utcMinutes, tt.loc); got != tt.expected {
				t.Errorf("FormatSunTime(%d) = %q, expected %q", tt.utcMinutes, got, tt.expected)
			}
		})
	}
}
