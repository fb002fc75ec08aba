package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server    ServerConfig
	Delivery  DeliveryConfig
	Polling   PollingConfig
	Rotation  RotationConfig
	Catalogue CatalogueConfig
	RateLimit RateLimitConfig
}

// Load 从环境变量加载配置；CONFIG_FILE 指向的 YAML 文件提供默认值，环境变量优先。
func Load() (*Config, error) {
	file, err := loadFile(strings.TrimSpace(os.Getenv("CONFIG_FILE")))
	if err != nil {
		return nil, err
	}

	server, err := loadServerConfig(file)
	if err != nil {
		return nil, err
	}

	delivery, err := loadDeliveryConfig(file)
	if err != nil {
		return nil, err
	}

	polling, err := loadPollingConfig(file)
	if err != nil {
		return nil, err
	}

	rotation, err := loadRotationConfig(file)
	if err != nil {
		return nil, err
	}

	rateLimit, err := loadRateLimitConfig(file)
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:    server,
		Delivery:  delivery,
		Polling:   polling,
		Rotation:  rotation,
		Catalogue: loadCatalogueConfig(file),
		RateLimit: rateLimit,
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig(file fileConfig) (ServerConfig, error) {
	port := getEnvOrDefault("PORT", orDefault(file.Port, "8080"))

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// DeliveryConfig 描述外部点歌端点的投递配置。
type DeliveryConfig struct {
	Endpoint     string
	Timeout      time.Duration
	MaxRedirects int
	UserAgent    string
	Enabled      bool
}

func loadDeliveryConfig(file fileConfig) (DeliveryConfig, error) {
	timeout, err := parseDurationEnv("DELIVERY_TIMEOUT", orDefault(file.Delivery.Timeout, "10s"))
	if err != nil {
		return DeliveryConfig{}, err
	}

	maxRedirects := 5
	if file.Delivery.MaxRedirects != nil {
		maxRedirects = *file.Delivery.MaxRedirects
	}
	if override, err := parseOptionalIntEnv("DELIVERY_MAX_REDIRECTS"); err != nil {
		return DeliveryConfig{}, err
	} else if override != nil {
		maxRedirects = *override
	}
	if maxRedirects < 0 {
		return DeliveryConfig{}, fmt.Errorf("invalid DELIVERY_MAX_REDIRECTS value %d: must be >= 0", maxRedirects)
	}

	enabledDefault := true
	if file.Delivery.Enabled != nil {
		enabledDefault = *file.Delivery.Enabled
	}
	enabled, err := parseBoolEnv("DELIVERY_ENABLED", enabledDefault)
	if err != nil {
		return DeliveryConfig{}, err
	}

	return DeliveryConfig{
		Endpoint:     getEnvOrDefault("DELIVERY_ENDPOINT", orDefault(file.Delivery.Endpoint, "https://virtualdj.com/ask/HawaiianNight")),
		Timeout:      timeout,
		MaxRedirects: maxRedirects,
		UserAgent:    getEnvOrDefault("DELIVERY_USER_AGENT", orDefault(file.Delivery.UserAgent, "MobileDJay/1.0")),
		Enabled:      enabled,
	}, nil
}

// PollingConfig 描述三个轮询通道的间隔。
type PollingConfig struct {
	Display   time.Duration
	Dashboard time.Duration
	Bell      time.Duration
}

func loadPollingConfig(file fileConfig) (PollingConfig, error) {
	display, err := parseDurationEnv("POLL_DISPLAY_INTERVAL", orDefault(file.Polling.Display, "3s"))
	if err != nil {
		return PollingConfig{}, err
	}

	dashboard, err := parseDurationEnv("POLL_DASHBOARD_INTERVAL", orDefault(file.Polling.Dashboard, "30s"))
	if err != nil {
		return PollingConfig{}, err
	}

	bell, err := parseDurationEnv("POLL_BELL_INTERVAL", orDefault(file.Polling.Bell, "30s"))
	if err != nil {
		return PollingConfig{}, err
	}

	return PollingConfig{Display: display, Dashboard: dashboard, Bell: bell}, nil
}

// RotationConfig 描述展示屏轮播的基本时间单位。
type RotationConfig struct {
	TimeUnit time.Duration
}

func loadRotationConfig(file fileConfig) (RotationConfig, error) {
	unit, err := parseDurationEnv("ROTATION_TIME_UNIT", orDefault(file.Rotation.TimeUnit, "1s"))
	if err != nil {
		return RotationConfig{}, err
	}
	return RotationConfig{TimeUnit: unit}, nil
}

// CatalogueConfig 指向歌曲 XML 与卡拉 OK CSV 文件。
type CatalogueConfig struct {
	SongsXML   string
	KaraokeCSV string
}

func loadCatalogueConfig(file fileConfig) CatalogueConfig {
	return CatalogueConfig{
		SongsXML:   getEnvOrDefault("CATALOGUE_SONGS_XML", orDefault(file.Catalogue.SongsXML, "DB/Song_Database.xml")),
		KaraokeCSV: getEnvOrDefault("CATALOGUE_KARAOKE_CSV", orDefault(file.Catalogue.KaraokeCSV, "DB/karaoke.csv")),
	}
}

// RateLimitConfig 描述顾客提交接口的限流参数。
type RateLimitConfig struct {
	Enabled bool
	RPS     float64
	Burst   int
}

func loadRateLimitConfig(file fileConfig) (RateLimitConfig, error) {
	enabledDefault := true
	if file.RateLimit.Enabled != nil {
		enabledDefault = *file.RateLimit.Enabled
	}
	enabled, err := parseBoolEnv("RATE_LIMIT_ENABLED", enabledDefault)
	if err != nil {
		return RateLimitConfig{}, err
	}

	rps := 1.0
	if file.RateLimit.RPS != nil {
		rps = *file.RateLimit.RPS
	}
	if override, err := parseOptionalFloatEnv("RATE_LIMIT_RPS"); err != nil {
		return RateLimitConfig{}, err
	} else if override != nil {
		rps = *override
	}

	burst := 5
	if file.RateLimit.Burst != nil {
		burst = *file.RateLimit.Burst
	}
	if override, err := parseOptionalIntEnv("RATE_LIMIT_BURST"); err != nil {
		return RateLimitConfig{}, err
	} else if override != nil {
		burst = *override
	}

	if enabled && (rps <= 0 || burst < 1) {
		return RateLimitConfig{}, fmt.Errorf("invalid rate limit: rps=%v burst=%d", rps, burst)
	}

	return RateLimitConfig{Enabled: enabled, RPS: rps, Burst: burst}, nil
}

// fileConfig 是 CONFIG_FILE 的结构，所有字段可省略。
type fileConfig struct {
	Port     string `yaml:"port"`
	Delivery struct {
		Endpoint     string `yaml:"endpoint"`
		Timeout      string `yaml:"timeout"`
		MaxRedirects *int   `yaml:"maxRedirects"`
		UserAgent    string `yaml:"userAgent"`
		Enabled      *bool  `yaml:"enabled"`
	} `yaml:"delivery"`
	Polling struct {
		Display   string `yaml:"display"`
		Dashboard string `yaml:"dashboard"`
		Bell      string `yaml:"bell"`
	} `yaml:"polling"`
	Rotation struct {
		TimeUnit string `yaml:"timeUnit"`
	} `yaml:"rotation"`
	Catalogue struct {
		SongsXML   string `yaml:"songsXml"`
		KaraokeCSV string `yaml:"karaokeCsv"`
	} `yaml:"catalogue"`
	RateLimit struct {
		Enabled *bool    `yaml:"enabled"`
		RPS     *float64 `yaml:"rps"`
		Burst   *int     `yaml:"burst"`
	} `yaml:"rateLimit"`
}

func loadFile(path string) (fileConfig, error) {
	var file fileConfig
	if path == "" {
		return file, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return file, fmt.Errorf("read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &file); err != nil {
		return file, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return file, nil
}

func orDefault(value, defaultValue string) string {
	if value = strings.TrimSpace(value); value != "" {
		return value
	}
	return defaultValue
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

// parseDurationEnv 接受 "500ms"、"3s" 这类写法，纯数字按秒处理。
func parseDurationEnv(key, defaultValue string) (time.Duration, error) {
	raw := getEnvOrDefault(key, defaultValue)

	if secs, err := strconv.Atoi(raw); err == nil {
		if secs <= 0 {
			return 0, fmt.Errorf("invalid %s value %q: must be positive", key, raw)
		}
		return time.Duration(secs) * time.Second, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	if val <= 0 {
		return 0, fmt.Errorf("invalid %s value %q: must be positive", key, raw)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
