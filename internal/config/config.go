package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Paths  PathsConfig  `yaml:"paths" mapstructure:"paths"`
	Render RenderConfig `yaml:"render" mapstructure:"render"`
	Fetch  FetchConfig  `yaml:"fetch" mapstructure:"fetch"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// PathsConfig locates the project directories. Relative directories are
// resolved against Root.
type PathsConfig struct {
	Root       string `yaml:"root" mapstructure:"root"`
	DataDir    string `yaml:"data_dir" mapstructure:"data_dir"`
	GeoJSONDir string `yaml:"geojson_dir" mapstructure:"geojson_dir"`
	RawDataDir string `yaml:"raw_data_dir" mapstructure:"raw_data_dir"`
	OutputsDir string `yaml:"outputs_dir" mapstructure:"outputs_dir"`
	MapsDir    string `yaml:"maps_dir" mapstructure:"maps_dir"`
}

// RenderConfig holds map styling defaults.
type RenderConfig struct {
	Tiles       string  `yaml:"tiles" mapstructure:"tiles"`
	Palette     string  `yaml:"palette" mapstructure:"palette"`
	ZoomStart   int     `yaml:"zoom_start" mapstructure:"zoom_start"`
	FillOpacity float64 `yaml:"fill_opacity" mapstructure:"fill_opacity"`
	LineOpacity float64 `yaml:"line_opacity" mapstructure:"line_opacity"`
	LineWeight  float64 `yaml:"line_weight" mapstructure:"line_weight"`
	Width       int     `yaml:"width" mapstructure:"width"`
	Height      int     `yaml:"height" mapstructure:"height"`
}

// FetchConfig configures raw data downloads.
type FetchConfig struct {
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int     `yaml:"max_retries" mapstructure:"max_retries"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, the config file and the environment.
func Load() (*Config, error) {
	// A missing .env is the normal case.
	_ = godotenv.Load(".env")

	v := viper.New()

	v.SetConfigName("spbu-maps")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("SPBU_MAPS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("paths.root", ".")
	v.SetDefault("paths.data_dir", "data")
	v.SetDefault("paths.geojson_dir", "geojsons")
	v.SetDefault("paths.raw_data_dir", "raw_data")
	v.SetDefault("paths.outputs_dir", "outputs")
	v.SetDefault("paths.maps_dir", "maps")
	v.SetDefault("render.tiles", "cartodbpositron")
	v.SetDefault("render.palette", "") // per format: YlGnBu html, viridis png
	v.SetDefault("render.zoom_start", 10)
	v.SetDefault("render.fill_opacity", 0.7)
	v.SetDefault("render.line_opacity", 0.2)
	v.SetDefault("render.line_weight", 1.0)
	v.SetDefault("render.width", 800)
	v.SetDefault("render.height", 800)
	v.SetDefault("fetch.user_agent", "spbu-maps/1.0")
	v.SetDefault("fetch.timeout_secs", 60)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.rate_per_sec", 5.0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks value ranges that would otherwise fail deep inside a render.
func (c *Config) Validate() error {
	if c.Render.ZoomStart < 0 || c.Render.ZoomStart > 22 {
		return eris.Errorf("config: render.zoom_start %d out of range [0, 22]", c.Render.ZoomStart)
	}
	if c.Render.FillOpacity < 0 || c.Render.FillOpacity > 1 {
		return eris.Errorf("config: render.fill_opacity %.2f out of range [0, 1]", c.Render.FillOpacity)
	}
	if c.Render.Width <= 0 || c.Render.Height <= 0 {
		return eris.Errorf("config: render size %dx%d must be positive", c.Render.Width, c.Render.Height)
	}
	if c.Fetch.MaxRetries < 1 {
		return eris.Errorf("config: fetch.max_retries must be at least 1, got %d", c.Fetch.MaxRetries)
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
