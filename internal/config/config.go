package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/spf13/viper"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	WebPath    string        `mapstructure:"web_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	Secret     string        `mapstructure:"secret"`

	// Remote analyzer services; empty means the analyzer runs in
	// degraded mode (sentinel transcripts, skin-only frame analysis).
	ASRAddr      string `mapstructure:"asr_addr"`
	LandmarkAddr string `mapstructure:"landmark_addr"`

	AnalysisWorkers int           `mapstructure:"analysis_workers"`
	AnalysisQueue   int           `mapstructure:"analysis_queue"`
	AnalysisTimeout time.Duration `mapstructure:"analysis_timeout"`

	MediaRateLimit  int           `mapstructure:"media_rate_limit"`
	MediaRateWindow time.Duration `mapstructure:"media_rate_window"`

	STUNServers []string `mapstructure:"stun_servers"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 5000)
	v.SetDefault("web_path", "./web")
	// Frames arrive as base64 data URLs; allow large reads.
	v.SetDefault("read_limit", 10_000_000)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("secret", "dev-secret-key-change-in-production")
	v.SetDefault("analysis_workers", 4)
	v.SetDefault("analysis_queue", 8)
	v.SetDefault("analysis_timeout", "15s")
	v.SetDefault("media_rate_limit", 10)
	v.SetDefault("media_rate_window", "1s")
	v.SetDefault("stun_servers", []string{"stun:stun.l.google.com:19302"})

	_ = v.BindEnv("secret", "SESSION_SECRET")

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("✅ Loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	fmt.Printf("🧩 Mode: %s | Port: %d | Web: %s\n", cfg.Mode, cfg.Port, cfg.WebPath)
	return &cfg, nil
}

// ICEServers converts the configured STUN urls into the ICE server
// list handed to browsers on join.
func (c *Config) ICEServers() []webrtc.ICEServer {
	if len(c.STUNServers) == 0 {
		return nil
	}
	return []webrtc.ICEServer{{URLs: c.STUNServers}}
}
