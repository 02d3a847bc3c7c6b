package config

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration
	LoadConfig() (*ConfigData, error)

	// Get specific configuration sections
	GetRasters() (*RastersData, error)
	GetOutput() (*OutputData, error)
	GetServer() (*ServerData, error)

	IsReadOnly() bool
	Close() error
}

// ConfigData represents the complete configuration of a shading run and, for the
// server, how it listens
type ConfigData struct {
	Rasters       RastersData     `json:"rasters"`
	Location      LocationData    `json:"location"`
	Date          DateData        `json:"date"`
	UTCOffset     float64         `json:"utc_offset"`
	DST           float64         `json:"dst"`
	Schedule      ScheduleData    `json:"schedule"`
	Vegetation    *VegetationData `json:"vegetation,omitempty"`
	WallShadows   bool            `json:"wall_shadows"`
	Scale         float64         `json:"scale,omitempty"`
	Caster        string          `json:"caster,omitempty"`
	Solar         SolarData       `json:"solar"`
	Output        OutputData      `json:"output"`
	Workers       int             `json:"workers,omitempty"`
	VerifySamples bool            `json:"verify_samples,omitempty"`
	Server        *ServerData     `json:"server,omitempty"`
}

// RastersData holds the paths of the input rasters
type RastersData struct {
	DSM        string `json:"dsm"`
	Canopy     string `json:"canopy,omitempty"`
	TrunkZone  string `json:"trunk_zone,omitempty"`
	WallHeight string `json:"wall_height,omitempty"`
	WallAspect string `json:"wall_aspect,omitempty"`
}

// LocationData is the site position in decimal degrees
type LocationData struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// DateData is the calendar date of the run
type DateData struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Day   int `json:"day"`
}

// ScheduleData selects one-time or sweep sampling
type ScheduleData struct {
	Mode            string `json:"mode"`
	IntervalMinutes int    `json:"interval_minutes,omitempty"`
	Hour            int    `json:"hour,omitempty"`
	Minute          int    `json:"minute,omitempty"`
}

// VegetationData enables vegetation shadows
type VegetationData struct {
	TransmissivityPercent float64     `json:"transmissivity_percent"`
	TrunkZonePercent      float64     `json:"trunk_zone_percent,omitempty"`
	Season                *SeasonData `json:"season,omitempty"`
}

// SeasonData is the leaf-on window in day-of-year terms
type SeasonData struct {
	LeafStart int  `json:"leaf_start"`
	LeafEnd   int  `json:"leaf_end"`
	Conifer   bool `json:"conifer,omitempty"`
}

// SolarData selects the solar position algorithm
type SolarData struct {
	Algorithm string `json:"algorithm,omitempty"`
}

// OutputData controls what the run persists
type OutputData struct {
	Folder       string `json:"folder,omitempty"`
	PersistSteps bool   `json:"persist_steps,omitempty"`
	SaveMean     bool   `json:"save_mean,omitempty"`
	Catalog      string `json:"catalog,omitempty"`
}

// ServerData holds the run service listener configuration
type ServerData struct {
	ListenAddr string `json:"listen_addr,omitempty"`
	Port       int    `json:"port,omitempty"`
	Cert       string `json:"cert,omitempty"`
	Key        string `json:"key,omitempty"`
	EnableCORS bool   `json:"enable_cors,omitempty"`
	MaxRuns    int    `json:"max_runs,omitempty"`
	InputRoot  string `json:"input_root,omitempty"`
}

// Defaults
const (
	DefaultCaster   = "unobstructed"
	DefaultInterval = 30
	DefaultPort     = 8150
	DefaultMaxRuns  = 2

	DefaultLeafStart = 97
	DefaultLeafEnd   = 300
)

// ApplyDefaults fills unset optional fields.
func (c *ConfigData) ApplyDefaults() {
	if c.Caster == "" {
		c.Caster = DefaultCaster
	}
	if c.Schedule.Mode == "" {
		c.Schedule.Mode = "sweep"
	}
	if c.Schedule.Mode == "sweep" && c.Schedule.IntervalMinutes == 0 {
		c.Schedule.IntervalMinutes = DefaultInterval
	}
	if c.Vegetation != nil && c.Vegetation.Season != nil {
		s := c.Vegetation.Season
		if s.LeafStart == 0 && s.LeafEnd == 0 {
			s.LeafStart, s.LeafEnd = DefaultLeafStart, DefaultLeafEnd
		}
	}
	if c.Server != nil {
		if c.Server.Port == 0 {
			c.Server.Port = DefaultPort
		}
		if c.Server.MaxRuns == 0 {
			c.Server.MaxRuns = DefaultMaxRuns
		}
	}
}
