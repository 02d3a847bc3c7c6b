package config

import (
	"os"

	"gopkg.in/yaml.v2"
)

// YAMLProvider implements ConfigProvider for YAML configuration files
type YAMLProvider struct {
	filename string
	config   *ConfigData
}

// NewYAMLProvider creates a new YAML configuration provider
func NewYAMLProvider(filename string) *YAMLProvider {
	return &YAMLProvider{
		filename: filename,
	}
}

// LoadConfig loads the complete configuration from YAML file
func (y *YAMLProvider) LoadConfig() (*ConfigData, error) {
	cfgFile, err := os.ReadFile(y.filename)
	if err != nil {
		return nil, err
	}

	config, err := ParseYAML(cfgFile)
	if err != nil {
		return nil, err
	}

	y.config = config
	return config, nil
}

// ParseYAML decodes a YAML (or JSON) document into a ConfigData with defaults
// applied. It does not validate.
func ParseYAML(data []byte) (*ConfigData, error) {
	var yamlConfig ConfigYAML
	if err := yaml.Unmarshal(data, &yamlConfig); err != nil {
		return nil, err
	}

	config := yamlConfig.toData()
	config.ApplyDefaults()
	return config, nil
}

// GetRasters returns the input raster paths
func (y *YAMLProvider) GetRasters() (*RastersData, error) {
	if y.config == nil {
		_, err := y.LoadConfig()
		if err != nil {
			return nil, err
		}
	}
	return &y.config.Rasters, nil
}

// GetOutput returns the output configuration
func (y *YAMLProvider) GetOutput() (*OutputData, error) {
	if y.config == nil {
		_, err := y.LoadConfig()
		if err != nil {
			return nil, err
		}
	}
	return &y.config.Output, nil
}

// GetServer returns the server configuration, nil when the file has none
func (y *YAMLProvider) GetServer() (*ServerData, error) {
	if y.config == nil {
		_, err := y.LoadConfig()
		if err != nil {
			return nil, err
		}
	}
	return y.config.Server, nil
}

// IsReadOnly returns true since YAML files are read-only through this interface
func (y *YAMLProvider) IsReadOnly() bool {
	return true
}

// Close is a no-op for YAML provider
func (y *YAMLProvider) Close() error {
	return nil
}

// YAML-specific structs with proper YAML tags
type ConfigYAML struct {
	Rasters       RastersYAML     `yaml:"rasters"`
	Location      LocationYAML    `yaml:"location"`
	Date          DateYAML        `yaml:"date"`
	UTCOffset     float64         `yaml:"utc-offset,omitempty"`
	DST           float64         `yaml:"dst,omitempty"`
	Schedule      ScheduleYAML    `yaml:"schedule"`
	Vegetation    *VegetationYAML `yaml:"vegetation,omitempty"`
	WallShadows   bool            `yaml:"wall-shadows,omitempty"`
	Scale         float64         `yaml:"scale,omitempty"`
	Caster        string          `yaml:"caster,omitempty"`
	Solar         SolarYAML       `yaml:"solar,omitempty"`
	Output        OutputYAML      `yaml:"output,omitempty"`
	Workers       int             `yaml:"workers,omitempty"`
	VerifySamples bool            `yaml:"verify-samples,omitempty"`
	Server        *ServerYAML     `yaml:"server,omitempty"`
}

type RastersYAML struct {
	DSM        string `yaml:"dsm"`
	Canopy     string `yaml:"canopy,omitempty"`
	TrunkZone  string `yaml:"trunk-zone,omitempty"`
	WallHeight string `yaml:"wall-height,omitempty"`
	WallAspect string `yaml:"wall-aspect,omitempty"`
}

type LocationYAML struct {
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
}

type DateYAML struct {
	Year  int `yaml:"year"`
	Month int `yaml:"month"`
	Day   int `yaml:"day"`
}

type ScheduleYAML struct {
	Mode            string `yaml:"mode,omitempty"`
	IntervalMinutes int    `yaml:"interval-minutes,omitempty"`
	Hour            int    `yaml:"hour,omitempty"`
	Minute          int    `yaml:"minute,omitempty"`
}

type VegetationYAML struct {
	TransmissivityPercent float64     `yaml:"transmissivity-percent"`
	TrunkZonePercent      float64     `yaml:"trunk-zone-percent,omitempty"`
	Season                *SeasonYAML `yaml:"season,omitempty"`
}

type SeasonYAML struct {
	LeafStart int  `yaml:"leaf-start,omitempty"`
	LeafEnd   int  `yaml:"leaf-end,omitempty"`
	Conifer   bool `yaml:"conifer,omitempty"`
}

type SolarYAML struct {
	Algorithm string `yaml:"algorithm,omitempty"`
}

type OutputYAML struct {
	Folder       string `yaml:"folder,omitempty"`
	PersistSteps bool   `yaml:"persist-steps,omitempty"`
	SaveMean     bool   `yaml:"save-mean,omitempty"`
	Catalog      string `yaml:"catalog,omitempty"`
}

type ServerYAML struct {
	ListenAddr string `yaml:"listen-addr,omitempty"`
	Port       int    `yaml:"port,omitempty"`
	Cert       string `yaml:"cert,omitempty"`
	Key        string `yaml:"key,omitempty"`
	EnableCORS bool   `yaml:"enable-cors,omitempty"`
	MaxRuns    int    `yaml:"max-runs,omitempty"`
	InputRoot  string `yaml:"input-root,omitempty"`
}

// toData converts to our internal format
func (y ConfigYAML) toData() *ConfigData {
	config := &ConfigData{
		Rasters: RastersData{
			DSM:        y.Rasters.DSM,
			Canopy:     y.Rasters.Canopy,
			TrunkZone:  y.Rasters.TrunkZone,
			WallHeight: y.Rasters.WallHeight,
			WallAspect: y.Rasters.WallAspect,
		},
		Location: LocationData{
			Latitude:  y.Location.Latitude,
			Longitude: y.Location.Longitude,
		},
		Date: DateData{
			Year:  y.Date.Year,
			Month: y.Date.Month,
			Day:   y.Date.Day,
		},
		UTCOffset: y.UTCOffset,
		DST:       y.DST,
		Schedule: ScheduleData{
			Mode:            y.Schedule.Mode,
			IntervalMinutes: y.Schedule.IntervalMinutes,
			Hour:            y.Schedule.Hour,
			Minute:          y.Schedule.Minute,
		},
		WallShadows: y.WallShadows,
		Scale:       y.Scale,
		Caster:      y.Caster,
		Solar:       SolarData{Algorithm: y.Solar.Algorithm},
		Output: OutputData{
			Folder:       y.Output.Folder,
			PersistSteps: y.Output.PersistSteps,
			SaveMean:     y.Output.SaveMean,
			Catalog:      y.Output.Catalog,
		},
		Workers:       y.Workers,
		VerifySamples: y.VerifySamples,
	}

	if y.Vegetation != nil {
		config.Vegetation = &VegetationData{
			TransmissivityPercent: y.Vegetation.TransmissivityPercent,
			TrunkZonePercent:      y.Vegetation.TrunkZonePercent,
		}
		if s := y.Vegetation.Season; s != nil {
			config.Vegetation.Season = &SeasonData{
				LeafStart: s.LeafStart,
				LeafEnd:   s.LeafEnd,
				Conifer:   s.Conifer,
			}
		}
	}

	if y.Server != nil {
		config.Server = &ServerData{
			ListenAddr: y.Server.ListenAddr,
			Port:       y.Server.Port,
			Cert:       y.Server.Cert,
			Key:        y.Server.Key,
			EnableCORS: y.Server.EnableCORS,
			MaxRuns:    y.Server.MaxRuns,
			InputRoot:  y.Server.InputRoot,
		}
	}

	return config
}
