package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"
)

// Validate checks the run sections of a configuration after defaults have been
// applied. It reports every problem found, joined.
func (c *ConfigData) Validate() error {
	var errs []error

	if c.Rasters.DSM == "" {
		errs = append(errs, errors.New("rasters.dsm is required"))
	}

	if c.Location.Latitude < -90 || c.Location.Latitude > 90 {
		errs = append(errs, fmt.Errorf("location.latitude %v outside -90..90", c.Location.Latitude))
	}
	if c.Location.Longitude < -180 || c.Location.Longitude > 180 {
		errs = append(errs, fmt.Errorf("location.longitude %v outside -180..180", c.Location.Longitude))
	}

	if err := c.Date.validate(); err != nil {
		errs = append(errs, err)
	}

	if c.UTCOffset < -12 || c.UTCOffset > 14 {
		errs = append(errs, fmt.Errorf("utc-offset %v outside -12..14", c.UTCOffset))
	}

	switch c.Schedule.Mode {
	case "onetime":
		if c.Schedule.Hour < 0 || c.Schedule.Hour > 23 || c.Schedule.Minute < 0 || c.Schedule.Minute > 59 {
			errs = append(errs, fmt.Errorf("schedule time %02d:%02d is not a valid clock time", c.Schedule.Hour, c.Schedule.Minute))
		}
	case "sweep":
		if c.Schedule.IntervalMinutes <= 0 {
			errs = append(errs, fmt.Errorf("schedule.interval-minutes must be positive, got %d", c.Schedule.IntervalMinutes))
		}
	default:
		errs = append(errs, fmt.Errorf("schedule.mode %q must be onetime or sweep", c.Schedule.Mode))
	}

	if v := c.Vegetation; v != nil {
		if c.Rasters.Canopy == "" {
			errs = append(errs, errors.New("vegetation requires rasters.canopy"))
		}
		if v.TransmissivityPercent < 0 || v.TransmissivityPercent > 100 {
			errs = append(errs, fmt.Errorf("vegetation.transmissivity-percent %v outside 0..100", v.TransmissivityPercent))
		}
		if v.TrunkZonePercent < 0 || v.TrunkZonePercent > 100 {
			errs = append(errs, fmt.Errorf("vegetation.trunk-zone-percent %v outside 0..100", v.TrunkZonePercent))
		}
		if s := v.Season; s != nil && !s.Conifer {
			if s.LeafStart < 1 || s.LeafStart > 366 || s.LeafEnd < 1 || s.LeafEnd > 366 {
				errs = append(errs, fmt.Errorf("vegetation.season days %d..%d outside 1..366", s.LeafStart, s.LeafEnd))
			}
		}
	}

	if c.WallShadows && (c.Rasters.WallHeight == "" || c.Rasters.WallAspect == "") {
		errs = append(errs, errors.New("wall-shadows requires rasters.wall-height and rasters.wall-aspect"))
	}

	if c.Scale < 0 {
		errs = append(errs, fmt.Errorf("scale must not be negative, got %v", c.Scale))
	}

	switch c.Solar.Algorithm {
	case "", "meeus", "noaa":
	default:
		errs = append(errs, fmt.Errorf("solar.algorithm %q must be meeus or noaa", c.Solar.Algorithm))
	}

	if (c.Output.PersistSteps || c.Output.SaveMean) && c.Output.Folder == "" {
		errs = append(errs, errors.New("output.folder is required when rasters are persisted"))
	}

	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must not be negative, got %d", c.Workers))
	}

	return errors.Join(errs...)
}

// ValidateServer checks the sections the run service needs.
func (c *ConfigData) ValidateServer() error {
	s := c.Server
	if s == nil {
		return errors.New("server section is required")
	}

	var errs []error
	if s.Port < 1 || s.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d outside 1..65535", s.Port))
	}
	if (s.Cert == "") != (s.Key == "") {
		errs = append(errs, errors.New("server.cert and server.key must be set together"))
	}
	if s.MaxRuns < 1 {
		errs = append(errs, fmt.Errorf("server.max-runs must be positive, got %d", s.MaxRuns))
	}
	if s.InputRoot == "" {
		errs = append(errs, errors.New("server.input-root is required"))
	}
	if c.Output.Folder == "" {
		errs = append(errs, errors.New("output.folder is required by the server"))
	}
	if c.Output.Catalog == "" {
		errs = append(errs, errors.New("output.catalog is required by the server"))
	}
	return errors.Join(errs...)
}

func (d DateData) validate() error {
	if d.Month < 1 || d.Month > 12 {
		return fmt.Errorf("date.month %d outside 1..12", d.Month)
	}
	t := time.Date(d.Year, time.Month(d.Month), d.Day, 0, 0, 0, 0, time.UTC)
	if d.Day < 1 || t.Day() != d.Day {
		return fmt.Errorf("date %04d-%02d-%02d does not exist", d.Year, d.Month, d.Day)
	}
	return nil
}

// Confine resolves every raster path against root. Paths must be relative and stay
// inside root; absolute paths and paths climbing out with ".." are rejected.
func (r *RastersData) Confine(root string) error {
	layers := []struct {
		key  string
		path *string
	}{
		{"dsm", &r.DSM},
		{"canopy", &r.Canopy},
		{"trunk-zone", &r.TrunkZone},
		{"wall-height", &r.WallHeight},
		{"wall-aspect", &r.WallAspect},
	}

	var errs []error
	for _, l := range layers {
		if *l.path == "" {
			continue
		}
		if !filepath.IsLocal(*l.path) {
			errs = append(errs, fmt.Errorf("rasters.%s must be a relative path inside the input root", l.key))
			continue
		}
		*l.path = filepath.Join(root, *l.path)
	}
	return errors.Join(errs...)
}
