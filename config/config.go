package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Service struct {
	URL string `yaml:"url" mapstructure:"url"`
}
type Services struct {
	VoiceFeatures Service `yaml:"voice_features" mapstructure:"voice_features"`
	FaceDetection Service `yaml:"face_detection" mapstructure:"face_detection"`
	Visualization Service `yaml:"visualization" mapstructure:"visualization"`
}
type Log struct {
	Level      string `yaml:"level" mapstructure:"level"`
	Format     string `yaml:"format" mapstructure:"format"`
	File       string `yaml:"file" mapstructure:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
}
type HTTP struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
	Mode string `yaml:"mode" mapstructure:"mode"`
}
type Voice struct {
	Seed             uint64  `yaml:"seed" mapstructure:"seed"`
	ConfidenceMin    float64 `yaml:"confidence_min" mapstructure:"confidence_min"`
	ConfidenceSpread float64 `yaml:"confidence_spread" mapstructure:"confidence_spread"`
}
type Face struct {
	Nuanced    bool `yaml:"nuanced" mapstructure:"nuanced"`
	Simulation bool `yaml:"simulation" mapstructure:"simulation"`
}
type Timeline struct {
	DefaultHours int `yaml:"default_hours" mapstructure:"default_hours"`
	TimeWindow   int `yaml:"time_window" mapstructure:"time_window"`
	Overlap      int `yaml:"overlap" mapstructure:"overlap"`
}
type Root struct {
	Service struct {
		Name    string `yaml:"name" mapstructure:"name"`
		Version string `yaml:"version" mapstructure:"version"`
	} `yaml:"service" mapstructure:"service"`
	Log      Log      `yaml:"log" mapstructure:"log"`
	HTTP     HTTP     `yaml:"http" mapstructure:"http"`
	Storage  struct {
		Path string `yaml:"path" mapstructure:"path"`
	} `yaml:"storage" mapstructure:"storage"`
	Services Services `yaml:"services" mapstructure:"services"`
	Voice    Voice    `yaml:"voice" mapstructure:"voice"`
	Face     Face     `yaml:"face" mapstructure:"face"`
	Timeline Timeline `yaml:"timeline" mapstructure:"timeline"`
	Paths    struct {
		Outputs string `yaml:"outputs" mapstructure:"outputs"`
	} `yaml:"paths" mapstructure:"paths"`
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("service.name", "edmo-mood")
	v.SetDefault("service.version", "dev")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 50)
	v.SetDefault("log.max_backups", 3)

	v.SetDefault("http.addr", ":5000")
	v.SetDefault("http.mode", "release")

	v.SetDefault("storage.path", "data/emotions.db")

	v.SetDefault("services.voice_features.url", "")
	v.SetDefault("services.face_detection.url", "")
	v.SetDefault("services.visualization.url", "")

	v.SetDefault("voice.seed", 0)
	v.SetDefault("voice.confidence_min", 0.7)
	v.SetDefault("voice.confidence_spread", 0.2)

	v.SetDefault("face.nuanced", true)
	v.SetDefault("face.simulation", false)

	v.SetDefault("timeline.default_hours", 1)
	v.SetDefault("timeline.time_window", 60)
	v.SetDefault("timeline.overlap", 30)

	v.SetDefault("paths.outputs", "outputs")
}

// Load reads path, or the first existing file of the CONFIG_ENV guess list
// when path is empty. A missing file leaves defaults and EDMO_* environment
// variables in charge. A .env in the working directory is loaded first.
func Load(path string) (*Root, error) {
	_ = godotenv.Load()

	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix("EDMO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = guess()
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	return FromViper(v)
}

func guess() string {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	for _, p := range []string{
		filepath.Join("config", env, "config.yaml"),
		"config.yaml",
	} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func FromViper(v *viper.Viper) (*Root, error) {
	var cfg Root
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Root) Validate() error {
	var errs []error
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	if c.Voice.ConfidenceMin < 0 || c.Voice.ConfidenceMin > 1 {
		errs = append(errs, fmt.Errorf("voice.confidence_min must be in [0,1]"))
	}
	if c.Voice.ConfidenceSpread < 0 || c.Voice.ConfidenceMin+c.Voice.ConfidenceSpread > 1 {
		errs = append(errs, fmt.Errorf("voice.confidence_min + voice.confidence_spread must stay within [0,1]"))
	}
	if c.Timeline.TimeWindow <= 0 {
		errs = append(errs, fmt.Errorf("timeline.time_window must be positive"))
	}
	if c.Timeline.Overlap < 0 || c.Timeline.Overlap >= c.Timeline.TimeWindow {
		errs = append(errs, fmt.Errorf("timeline.overlap must be in [0, time_window)"))
	}
	if c.Timeline.DefaultHours <= 0 {
		errs = append(errs, fmt.Errorf("timeline.default_hours must be positive"))
	}
	if c.Storage.Path == "" {
		errs = append(errs, fmt.Errorf("storage.path is required"))
	}
	return errors.Join(errs...)
}
