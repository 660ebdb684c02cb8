package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// EmbeddingDim is the fixed length of a face embedding vector. Identity
// records whose stored blob does not decode to exactly this many values
// are rejected at load time.
const EmbeddingDim = 128

// Default alternate endpoints tried when the configured primary fails.
// Mirrors the deployment layout: local API first, then the LAN address
// of the admin panel host.
var defaultAlternateEndpoints = []string{
	"http://localhost:5001",
	"http://127.0.0.1:5001",
	"http://localhost:5000",
	"http://127.0.0.1:5000",
	"http://10.202.65.203:5001",
}

type Config struct {
	Database  DatabaseConfig
	Engine    EngineConfig
	Dispatch  DispatchConfig
	Vision    VisionConfig
	Web       WebConfig
	CachePath string // JSON snapshot of the known set for offline operation
}

type DatabaseConfig struct {
	Host     string
	User     string
	Password string
	Name     string
}

// Configured reports whether every connection parameter is present.
// A partially configured database is treated the same as none at all.
func (c *DatabaseConfig) Configured() bool {
	return c.Host != "" && c.User != "" && c.Password != "" && c.Name != ""
}

// DSN returns a go-sql-driver DSN for the configured database.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?timeout=10s", c.User, c.Password, c.Host, c.Name)
}

type EngineConfig struct {
	MatchThreshold    float64       // max Euclidean distance for a positive match
	FrameSkip         int           // analyze every Nth frame
	FrameScale        float64       // downsample factor before detection
	RefreshInterval   time.Duration // how often to reload the known set
	Cooldown          time.Duration // minimum gap between dispatched events
	PersistenceWindow time.Duration // how long a track survives without detections
	PositionTolerance float64       // center distance (px) for track association
}

type DispatchConfig struct {
	PrimaryURL string
	Alternates []string
	Timeout    time.Duration
	Location   string // reported in verification log records
}

// Candidates returns the ordered endpoint list: primary first, then
// every alternate that differs from it.
func (c *DispatchConfig) Candidates() []string {
	urls := make([]string, 0, len(c.Alternates)+1)
	urls = append(urls, c.PrimaryURL)
	for _, alt := range c.Alternates {
		if alt != c.PrimaryURL {
			urls = append(urls, alt)
		}
	}
	return urls
}

type VisionConfig struct {
	DetectorURL string // face detection/encoding service
	CaptureURL  string // camera snapshot service
}

type WebConfig struct {
	Host string
	Port int
}

// endpointsFile is the optional YAML override for the dispatch endpoint list.
type endpointsFile struct {
	Primary    string   `yaml:"primary"`
	Alternates []string `yaml:"alternates"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func Load() *Config {
	cfg := &Config{
		Database: DatabaseConfig{
			Host:     os.Getenv("DB_HOST"),
			User:     os.Getenv("DB_USER"),
			Password: os.Getenv("DB_PASSWORD"),
			Name:     os.Getenv("DB_NAME"),
		},
		Engine: EngineConfig{
			MatchThreshold:    envFloat("MATCH_THRESHOLD", 0.65),
			FrameSkip:         envInt("FRAME_SKIP", 3),
			FrameScale:        envFloat("FRAME_SCALE", 0.5),
			RefreshInterval:   envDuration("REFRESH_INTERVAL", 300*time.Second),
			Cooldown:          envDuration("RECOGNITION_COOLDOWN", 2*time.Second),
			PersistenceWindow: envDuration("FACE_PERSISTENCE", 3*time.Second),
			PositionTolerance: envFloat("FACE_POSITION_TOLERANCE", 50),
		},
		Dispatch: DispatchConfig{
			PrimaryURL: envString("GATE_API_URL", "http://localhost:5001"),
			Alternates: defaultAlternateEndpoints,
			Timeout:    envDuration("HTTP_TIMEOUT", 3*time.Second),
			Location:   envString("GATE_LOCATION", "Raspberry Pi"),
		},
		Vision: VisionConfig{
			DetectorURL: envString("DETECTOR_URL", "http://localhost:8000"),
			CaptureURL:  os.Getenv("CAPTURE_URL"),
		},
		Web: WebConfig{
			Host: envString("WEB_HOST", "0.0.0.0"),
			Port: envInt("WEB_PORT", 8080),
		},
		CachePath: envString("FACE_CACHE_PATH", "cache/face_encodings.json"),
	}

	if path := os.Getenv("ENDPOINTS_FILE"); path != "" {
		if err := cfg.loadEndpointsFile(path); err != nil {
			// Endpoint override is best effort; the baked-in list still works.
			fmt.Fprintf(os.Stderr, "Warning: could not load endpoints file %s: %v\n", path, err)
		}
	}

	return cfg
}

// loadEndpointsFile replaces the dispatch endpoint list with the contents
// of a YAML file. Empty fields keep their previous values.
func (c *Config) loadEndpointsFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading endpoints file: %w", err)
	}

	var ep endpointsFile
	if err := yaml.Unmarshal(data, &ep); err != nil {
		return fmt.Errorf("parsing endpoints file: %w", err)
	}

	if ep.Primary != "" {
		c.Dispatch.PrimaryURL = ep.Primary
	}
	if len(ep.Alternates) > 0 {
		c.Dispatch.Alternates = ep.Alternates
	}
	return nil
}
