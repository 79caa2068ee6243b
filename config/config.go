package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Upload    UploadConfig    `mapstructure:"upload"`
	Watermark WatermarkConfig `mapstructure:"watermark"`
	Stream    StreamConfig    `mapstructure:"stream"`
	Storage   StorageConfig   `mapstructure:"storage"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type UploadConfig struct {
	MaxSize       int64    `mapstructure:"max_size"`
	UploadDir     string   `mapstructure:"upload_dir"`
	AllowedTypes  []string `mapstructure:"allowed_types"`
	CleanupFiles  bool     `mapstructure:"cleanup_files"`
	MaxConcurrent int      `mapstructure:"max_concurrent"`
	QueueTimeout  int      `mapstructure:"queue_timeout"`
}

// WatermarkConfig 水印默认参数，Text 为空时使用主机名
type WatermarkConfig struct {
	Text       string `mapstructure:"text"`
	Visible    bool   `mapstructure:"visible"`
	Redundant  bool   `mapstructure:"redundant"`
	Seed       uint32 `mapstructure:"seed"`
	Redundancy uint8  `mapstructure:"redundancy"`
	Terminator bool   `mapstructure:"terminator"`
	Lenient    bool   `mapstructure:"lenient"`
}

// StreamConfig 实时流参数，Source 为 "synthetic"、摄像头编号或视频文件/URL
type StreamConfig struct {
	Source        string `mapstructure:"source"`
	Width         int    `mapstructure:"width"`
	Height        int    `mapstructure:"height"`
	FrameInterval int    `mapstructure:"frame_interval"`
	MaxFPS        int    `mapstructure:"max_fps"`
	JPEGQuality   int    `mapstructure:"jpeg_quality"`
}

type StorageConfig struct {
	SnapshotDir    string  `mapstructure:"snapshot_dir"`
	RecordingDir   string  `mapstructure:"recording_dir"`
	RecordingFPS   float64 `mapstructure:"recording_fps"`
	RecordingCodec string  `mapstructure:"recording_codec"`
}

// Load 从 YAML 文件加载配置
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	// 设置默认值
	setDefaults(v)

	// 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// New 使用默认配置路径加载配置
func New() *Config {
	cfg, err := Load("config.yaml")
	if err != nil {
		// 如果加载失败，返回默认配置
		return Default()
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.mode", d.Server.Mode)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)

	v.SetDefault("redis.enabled", d.Redis.Enabled)
	v.SetDefault("redis.addr", d.Redis.Addr)
	v.SetDefault("redis.password", d.Redis.Password)
	v.SetDefault("redis.db", d.Redis.DB)
	v.SetDefault("redis.ttl", d.Redis.TTL)

	v.SetDefault("upload.max_size", d.Upload.MaxSize)
	v.SetDefault("upload.upload_dir", d.Upload.UploadDir)
	v.SetDefault("upload.allowed_types", d.Upload.AllowedTypes)
	v.SetDefault("upload.cleanup_files", d.Upload.CleanupFiles)
	v.SetDefault("upload.max_concurrent", d.Upload.MaxConcurrent)
	v.SetDefault("upload.queue_timeout", d.Upload.QueueTimeout)

	v.SetDefault("watermark.text", d.Watermark.Text)
	v.SetDefault("watermark.visible", d.Watermark.Visible)
	v.SetDefault("watermark.redundant", d.Watermark.Redundant)
	v.SetDefault("watermark.seed", d.Watermark.Seed)
	v.SetDefault("watermark.redundancy", d.Watermark.Redundancy)
	v.SetDefault("watermark.terminator", d.Watermark.Terminator)
	v.SetDefault("watermark.lenient", d.Watermark.Lenient)

	v.SetDefault("stream.source", d.Stream.Source)
	v.SetDefault("stream.width", d.Stream.Width)
	v.SetDefault("stream.height", d.Stream.Height)
	v.SetDefault("stream.frame_interval", d.Stream.FrameInterval)
	v.SetDefault("stream.max_fps", d.Stream.MaxFPS)
	v.SetDefault("stream.jpeg_quality", d.Stream.JPEGQuality)

	v.SetDefault("storage.snapshot_dir", d.Storage.SnapshotDir)
	v.SetDefault("storage.recording_dir", d.Storage.RecordingDir)
	v.SetDefault("storage.recording_fps", d.Storage.RecordingFPS)
	v.SetDefault("storage.recording_codec", d.Storage.RecordingCodec)
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         ":8000",
			Mode:         "debug",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Redis: RedisConfig{
			Enabled:  false,
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			TTL:      24 * time.Hour,
		},
		Upload: UploadConfig{
			MaxSize:       20 * 1024 * 1024,
			UploadDir:     "./uploads",
			AllowedTypes:  []string{"image/jpeg", "image/png", "image/jpg", "image/bmp"},
			CleanupFiles:  true,
			MaxConcurrent: 3,
			QueueTimeout:  30,
		},
		Watermark: WatermarkConfig{
			Text:       "",
			Visible:    false,
			Redundant:  false,
			Seed:       42,
			Redundancy: 10,
			Terminator: false,
			Lenient:    false,
		},
		Stream: StreamConfig{
			Source:        "synthetic",
			Width:         1280,
			Height:        720,
			FrameInterval: 5,
			MaxFPS:        30,
			JPEGQuality:   85,
		},
		Storage: StorageConfig{
			SnapshotDir:    "./screen_shot",
			RecordingDir:   "./recorded_video",
			RecordingFPS:   30,
			RecordingCodec: "mp4v",
		},
	}
}
