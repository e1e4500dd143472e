package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigPath = "config.yaml"

	defaultProjectName         = "audiobook"
	defaultTemplateDir         = "./template"
	defaultHeader              = "top.txt"
	defaultOutputDir           = "."
	defaultSimilarityThreshold = 0.5
	defaultMaxLineDistance     = 15
	defaultCanvasWidth         = 1920
	defaultCanvasHeight        = 1080
	defaultFFmpegPath          = "ffmpeg"
	defaultChunkSize           = 25
	defaultFilePrefix          = "audiobook"
	defaultGain                = 1.0
	defaultSpeed               = 1.0
	defaultAutosaveEvery       = 10
	defaultGCSPrefix           = "projects"
)

type Config struct {
	GCSBucket string `yaml:"-"`

	Project   ProjectConfig   `yaml:"project"`
	Subtitles SubtitlesConfig `yaml:"subtitles"`
	Ruby      RubyConfig      `yaml:"ruby"`
	Placement PlacementConfig `yaml:"placement"`
	Audio     AudioConfig     `yaml:"audio"`
	Script    ScriptConfig    `yaml:"script"`
	GCS       GCSConfig       `yaml:"gcs"`
}

type ProjectConfig struct {
	Name        string `yaml:"name"`
	TemplateDir string `yaml:"template_dir"`
	Header      string `yaml:"header"`
	OutputDir   string `yaml:"output_dir"`
}

type SubtitlesConfig struct {
	// OffsetMs pads cue boundaries; negative values pull them earlier.
	OffsetMs int64 `yaml:"offset_ms"`
}

type RubyConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
}

type PlacementConfig struct {
	MaxLineDistance  int  `yaml:"max_line_distance"`
	DeferWeakAnchors bool `yaml:"defer_weak_anchors"`
	CanvasWidth      int  `yaml:"canvas_width"`
	CanvasHeight     int  `yaml:"canvas_height"`
}

type AudioConfig struct {
	FFmpegPath string  `yaml:"ffmpeg_path"`
	ChunkSize  int     `yaml:"chunk_size"`
	Workers    int     `yaml:"workers"`
	FilePrefix string  `yaml:"file_prefix"`
	Gain       float64 `yaml:"gain"`
	Speed      float64 `yaml:"speed"`
}

type ScriptConfig struct {
	AutosaveEvery int `yaml:"autosave_every"`
}

type GCSConfig struct {
	Prefix string `yaml:"prefix"`
}

// Load reads .env, then the YAML file at path, then fills in defaults. A
// missing file is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, relying on environment variables")
	}
	if path == "" {
		path = DefaultConfigPath
	}

	cfg := &Config{}
	seedTunables(cfg)
	if err := loadYAMLConfig(path, cfg); err != nil {
		return nil, err
	}

	cfg.GCSBucket = os.Getenv("GCS_BUCKET")
	if ffmpeg := os.Getenv("FFMPEG_PATH"); ffmpeg != "" {
		cfg.Audio.FFmpegPath = ffmpeg
	}

	applyDefaults(cfg)
	return cfg, nil
}

func Default() *Config {
	cfg := &Config{}
	seedTunables(cfg)
	applyDefaults(cfg)
	return cfg
}

// Save writes cfg as YAML to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func loadYAMLConfig(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		slog.Warn("No config file found, using defaults", "path", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// seedTunables sets the fields for which zero is a meaningful value before
// the YAML is decoded, so only keys absent from the file take the default.
func seedTunables(cfg *Config) {
	cfg.Ruby.SimilarityThreshold = defaultSimilarityThreshold
	cfg.Placement.MaxLineDistance = defaultMaxLineDistance
}

func applyDefaults(cfg *Config) {
	applyProjectDefaults(cfg)
	applyRubyDefaults(cfg)
	applyPlacementDefaults(cfg)
	applyAudioDefaults(cfg)
	applyScriptDefaults(cfg)
	applyGCSDefaults(cfg)
}

func applyProjectDefaults(cfg *Config) {
	if cfg.Project.Name == "" {
		cfg.Project.Name = defaultProjectName
	}
	if cfg.Project.TemplateDir == "" {
		cfg.Project.TemplateDir = defaultTemplateDir
	}
	if cfg.Project.Header == "" {
		cfg.Project.Header = defaultHeader
	}
	if cfg.Project.OutputDir == "" {
		cfg.Project.OutputDir = defaultOutputDir
	}
}

func applyRubyDefaults(cfg *Config) {
	if cfg.Ruby.SimilarityThreshold < 0 {
		cfg.Ruby.SimilarityThreshold = defaultSimilarityThreshold
	}
}

func applyPlacementDefaults(cfg *Config) {
	if cfg.Placement.MaxLineDistance < 0 {
		cfg.Placement.MaxLineDistance = defaultMaxLineDistance
	}
	if cfg.Placement.CanvasWidth == 0 {
		cfg.Placement.CanvasWidth = defaultCanvasWidth
	}
	if cfg.Placement.CanvasHeight == 0 {
		cfg.Placement.CanvasHeight = defaultCanvasHeight
	}
}

func applyAudioDefaults(cfg *Config) {
	if cfg.Audio.FFmpegPath == "" {
		cfg.Audio.FFmpegPath = defaultFFmpegPath
	}
	if cfg.Audio.ChunkSize == 0 {
		cfg.Audio.ChunkSize = defaultChunkSize
	}
	if cfg.Audio.Workers == 0 {
		cfg.Audio.Workers = max(1, runtime.NumCPU()/2)
	}
	if cfg.Audio.FilePrefix == "" {
		cfg.Audio.FilePrefix = defaultFilePrefix
	}
	if cfg.Audio.Gain == 0 {
		cfg.Audio.Gain = defaultGain
	}
	if cfg.Audio.Speed == 0 {
		cfg.Audio.Speed = defaultSpeed
	}
}

func applyScriptDefaults(cfg *Config) {
	if cfg.Script.AutosaveEvery == 0 {
		cfg.Script.AutosaveEvery = defaultAutosaveEvery
	}
}

func applyGCSDefaults(cfg *Config) {
	if cfg.GCS.Prefix == "" {
		cfg.GCS.Prefix = defaultGCSPrefix
	}
}
