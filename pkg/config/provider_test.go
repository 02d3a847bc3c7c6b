package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleYAML = `
rasters:
  dsm: /data/goteborg/dsm.msgpack
  canopy: /data/goteborg/cdsm.msgpack
  wall-height: /data/goteborg/wallheight.msgpack
  wall-aspect: /data/goteborg/wallaspect.msgpack
location:
  latitude: 57.7
  longitude: 11.97
date:
  year: 2024
  month: 6
  day: 21
utc-offset: 1
dst: 1
schedule:
  mode: sweep
  interval-minutes: 15
vegetation:
  transmissivity-percent: 3
  season: {}
wall-shadows: true
solar:
  algorithm: noaa
output:
  folder: /tmp/shade
  persist-steps: true
  save-mean: true
  catalog: /tmp/shade/runs.db
workers: 4
verify-samples: true
server:
  listen-addr: 127.0.0.1
  input-root: /data
`

func TestYAMLProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	p := NewYAMLProvider(path)
	defer p.Close()

	cfg, err := p.LoadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Rasters.WallAspect != "/data/goteborg/wallaspect.msgpack" {
		t.Errorf("wall aspect = %q", cfg.Rasters.WallAspect)
	}
	if cfg.Schedule.IntervalMinutes != 15 || cfg.Schedule.Mode != "sweep" {
		t.Errorf("schedule = %+v", cfg.Schedule)
	}
	if cfg.Vegetation == nil || cfg.Vegetation.TransmissivityPercent != 3 {
		t.Fatalf("vegetation = %+v", cfg.Vegetation)
	}
	if s := cfg.Vegetation.Season; s == nil || s.LeafStart != DefaultLeafStart || s.LeafEnd != DefaultLeafEnd {
		t.Errorf("season defaults not applied: %+v", s)
	}
	if cfg.Caster != DefaultCaster {
		t.Errorf("caster = %q, expected default %q", cfg.Caster, DefaultCaster)
	}
	if cfg.UTCOffset != 1 || cfg.DST != 1 || cfg.Workers != 4 || !cfg.WallShadows || !cfg.VerifySamples {
		t.Errorf("scalars not decoded: %+v", cfg)
	}

	server, err := p.GetServer()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if server.Port != DefaultPort || server.MaxRuns != DefaultMaxRuns {
		t.Errorf("server defaults not applied: %+v", server)
	}
	if server.InputRoot != "/data" {
		t.Errorf("input root = %q", server.InputRoot)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}
	if err := cfg.ValidateServer(); err != nil {
		t.Errorf("unexpected server validation error: %v", err)
	}
	if !p.IsReadOnly() {
		t.Error("YAML provider should be read-only")
	}
}

func TestYAMLProviderMissingFile(t *testing.T) {
	p := NewYAMLProvider(filepath.Join(t.TempDir(), "absent.yaml"))
	if _, err := p.GetRasters(); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestParseYAMLDefaults(t *testing.T) {
	cfg, err := ParseYAML([]byte("rasters: {dsm: a.msgpack}\ndate: {year: 2023, month: 3, day: 1}\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Schedule.Mode != "sweep" || cfg.Schedule.IntervalMinutes != DefaultInterval {
		t.Errorf("schedule defaults = %+v", cfg.Schedule)
	}
	if cfg.Server != nil {
		t.Errorf("server = %+v, expected nil", cfg.Server)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *ConfigData {
		c := &ConfigData{
			Rasters:  RastersData{DSM: "dsm.msgpack"},
			Location: LocationData{Latitude: 51.5, Longitude: -0.1},
			Date:     DateData{Year: 2024, Month: 2, Day: 29},
		}
		c.ApplyDefaults()
		return c
	}

	tests := []struct {
		name    string
		modify  func(*ConfigData)
		wantErr string
	}{
		{name: "valid", modify: func(*ConfigData) {}},
		{name: "missing dsm", modify: func(c *ConfigData) { c.Rasters.DSM = "" }, wantErr: "rasters.dsm"},
		{name: "bad month", modify: func(c *ConfigData) { c.Date.Month = 13 }, wantErr: "date.month"},
		{name: "feb 29 non-leap", modify: func(c *ConfigData) { c.Date.Year = 2023 }, wantErr: "does not exist"},
		{name: "latitude", modify: func(c *ConfigData) { c.Location.Latitude = 91 }, wantErr: "latitude"},
		{name: "interval", modify: func(c *ConfigData) { c.Schedule.IntervalMinutes = -5 }, wantErr: "interval-minutes"},
		{name: "schedule mode", modify: func(c *ConfigData) { c.Schedule.Mode = "hourly" }, wantErr: "schedule.mode"},
		{name: "onetime clock", modify: func(c *ConfigData) {
			c.Schedule = ScheduleData{Mode: "onetime", Hour: 24}
		}, wantErr: "valid clock time"},
		{name: "vegetation without canopy", modify: func(c *ConfigData) {
			c.Vegetation = &VegetationData{TransmissivityPercent: 3}
		}, wantErr: "rasters.canopy"},
		{name: "transmissivity percent", modify: func(c *ConfigData) {
			c.Rasters.Canopy = "cdsm.msgpack"
			c.Vegetation = &VegetationData{TransmissivityPercent: 120}
		}, wantErr: "transmissivity-percent"},
		{name: "walls without rasters", modify: func(c *ConfigData) { c.WallShadows = true }, wantErr: "wall-shadows"},
		{name: "algorithm", modify: func(c *ConfigData) { c.Solar.Algorithm = "spa" }, wantErr: "solar.algorithm"},
		{name: "output folder", modify: func(c *ConfigData) { c.Output.SaveMean = true }, wantErr: "output.folder"},
		{name: "workers", modify: func(c *ConfigData) { c.Workers = -1 }, wantErr: "workers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.modify(c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, expected mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateServer(t *testing.T) {
	c := &ConfigData{Server: &ServerData{Cert: "server.crt"}}
	c.ApplyDefaults()

	err := c.ValidateServer()
	if err == nil {
		t.Fatal("expected an error")
	}
	for _, want := range []string{"server.key", "server.input-root", "output.folder", "output.catalog"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}

	if err := (&ConfigData{}).ValidateServer(); err == nil {
		t.Error("expected an error without a server section")
	}
}

func TestConfineRasters(t *testing.T) {
	root := filepath.Join(t.TempDir(), "inputs")

	r := RastersData{DSM: "dsm.msgpack", Canopy: "veg/cdsm.msgpack"}
	if err := r.Confine(root); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.DSM != filepath.Join(root, "dsm.msgpack") || r.Canopy != filepath.Join(root, "veg", "cdsm.msgpack") {
		t.Errorf("rasters not resolved against root: %+v", r)
	}
	if r.WallHeight != "" {
		t.Errorf("unset layer resolved to %q", r.WallHeight)
	}

	tests := []struct {
		name    string
		rasters RastersData
		wantErr string
	}{
		{"absolute dsm", RastersData{DSM: "/etc/passwd"}, "rasters.dsm"},
		{"parent escape", RastersData{DSM: "dsm.msgpack", Canopy: "../secret.msgpack"}, "rasters.canopy"},
		{"nested escape", RastersData{DSM: "a/../../b.msgpack"}, "rasters.dsm"},
		{"wall aspect", RastersData{DSM: "dsm.msgpack", WallAspect: "/tmp/aspect.msgpack"}, "rasters.wall-aspect"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rasters.Confine(root)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, expected mention of %q", err, tt.wantErr)
			}
			if strings.Contains(err.Error(), ".msgpack") || strings.Contains(err.Error(), "passwd") {
				t.Errorf("error %q echoes the rejected path", err)
			}
		})
	}
}
