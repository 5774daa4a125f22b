package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sethvargo/go-password/password"
	"github.com/spf13/afero"
)

// Settings represents the application configuration persisted to disk.
type Settings struct {
	Server         ServerSettings         `json:"server"`
	Database       DatabaseSettings       `json:"database"`
	Metadata       MetadataSettings       `json:"metadata"`
	Search         SearchSettings         `json:"search"`
	Feed           FeedSettings           `json:"feed"`
	Stats          StatsSettings          `json:"stats"`
	Tasks          TaskSettings           `json:"tasks"`
	Log            LogConfig              `json:"log"`
	ScheduledTasks ScheduledTasksSettings `json:"scheduledTasks,omitempty"`
}

type ServerSettings struct {
	Host          string `json:"host"`
	Port          int    `json:"port"`
	JWTSecret     string `json:"jwtSecret"`
	TokenTTLHours int    `json:"tokenTtlHours"`
	DevMode       bool   `json:"devMode"` // unknown providers abort reconciliation instead of being skipped
	// MaxConnections caps concurrent client connections; 0 means unlimited.
	MaxConnections int `json:"maxConnections"`
}

// DatabaseSettings selects the SQL driver. Driver is "sqlite3" or "pgx".
type DatabaseSettings struct {
	Driver string `json:"driver"`
	DSN    string `json:"dsn"`
}

type MetadataSettings struct {
	TMDBAPIKey            string `json:"tmdbApiKey"`
	OMDBAPIKey            string `json:"omdbApiKey"`
	Language              string `json:"language"`
	Country               string `json:"country"` // watch provider region, ISO 3166-1
	RequestTimeoutSeconds int    `json:"requestTimeoutSeconds"`
}

// RequestTimeout returns the fixed per-request timeout for provider calls.
func (m MetadataSettings) RequestTimeout() time.Duration {
	if m.RequestTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(m.RequestTimeoutSeconds) * time.Second
}

type SearchSettings struct {
	MinPopularity float64 `json:"minPopularity"`
	MaxResults    int     `json:"maxResults"`
}

type FeedSettings struct {
	PageSize int `json:"pageSize"`
}

type StatsSettings struct {
	TopN int `json:"topN"`
}

// TaskBackend selects how background work is dispatched.
type TaskBackend string

const (
	TaskBackendMemory TaskBackend = "memory"
	TaskBackendAMQP   TaskBackend = "amqp"
)

type TaskSettings struct {
	Backend TaskBackend `json:"backend"`
	AMQPURL string      `json:"amqpUrl"`
	Queue   string      `json:"queue"`
	Workers int         `json:"workers"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	File       string `json:"file"`
	Level      string `json:"level"`
	MaxSize    int    `json:"maxSize"`
	MaxAge     int    `json:"maxAge"`
	MaxBackups int    `json:"maxBackups"`
	Compress   bool   `json:"compress"`
}

// ScheduledTaskType defines the type of scheduled task
type ScheduledTaskType string

const (
	ScheduledTaskTypeProviderCatalogSync ScheduledTaskType = "provider_catalog_sync"
	ScheduledTaskTypeOrphanSweep         ScheduledTaskType = "orphan_sweep"
	ScheduledTaskTypeMetadataRefresh     ScheduledTaskType = "metadata_refresh"
)

// ScheduledTaskFrequency defines how often a task runs
type ScheduledTaskFrequency string

const (
	ScheduledTaskFrequency1Min    ScheduledTaskFrequency = "1min"
	ScheduledTaskFrequency5Min    ScheduledTaskFrequency = "5min"
	ScheduledTaskFrequency15Min   ScheduledTaskFrequency = "15min"
	ScheduledTaskFrequency30Min   ScheduledTaskFrequency = "30min"
	ScheduledTaskFrequencyHourly  ScheduledTaskFrequency = "hourly"
	ScheduledTaskFrequency6Hours  ScheduledTaskFrequency = "6hours"
	ScheduledTaskFrequency12Hours ScheduledTaskFrequency = "12hours"
	ScheduledTaskFrequencyDaily   ScheduledTaskFrequency = "daily"
	ScheduledTaskFrequencyWeekly  ScheduledTaskFrequency = "weekly"
)

// Valid reports whether f is one of the declared frequencies.
func (f ScheduledTaskFrequency) Valid() bool {
	switch f {
	case ScheduledTaskFrequency1Min, ScheduledTaskFrequency5Min, ScheduledTaskFrequency15Min,
		ScheduledTaskFrequency30Min, ScheduledTaskFrequencyHourly, ScheduledTaskFrequency6Hours,
		ScheduledTaskFrequency12Hours, ScheduledTaskFrequencyDaily, ScheduledTaskFrequencyWeekly:
		return true
	}
	return false
}

// ScheduledTaskStatus represents the last run status
type ScheduledTaskStatus string

const (
	ScheduledTaskStatusPending ScheduledTaskStatus = "pending"
	ScheduledTaskStatusRunning ScheduledTaskStatus = "running"
	ScheduledTaskStatusSuccess ScheduledTaskStatus = "success"
	ScheduledTaskStatusError   ScheduledTaskStatus = "error"
)

// ScheduledTask represents a single scheduled task configuration
type ScheduledTask struct {
	ID            string                 `json:"id"`
	Type          ScheduledTaskType      `json:"type"`
	Name          string                 `json:"name"`
	Enabled       bool                   `json:"enabled"`
	Frequency     ScheduledTaskFrequency `json:"frequency"`
	Config        map[string]string      `json:"config"` // e.g. staleDays, batchSize for metadata_refresh
	LastRunAt     *time.Time             `json:"lastRunAt,omitempty"`
	LastStatus    ScheduledTaskStatus    `json:"lastStatus"`
	LastError     string                 `json:"lastError,omitempty"`
	ItemsAffected int                    `json:"itemsAffected,omitempty"`
	CreatedAt     time.Time              `json:"createdAt"`
}

// ScheduledTasksSettings contains all scheduled task configurations
type ScheduledTasksSettings struct {
	Tasks                []ScheduledTask `json:"tasks"`
	CheckIntervalSeconds int             `json:"checkIntervalSeconds"` // How often scheduler checks for due tasks (default: 60)
}

func defaultScheduledTasks() []ScheduledTask {
	return []ScheduledTask{
		{
			ID:         "provider-catalog",
			Type:       ScheduledTaskTypeProviderCatalogSync,
			Name:       "Sync streaming provider catalog",
			Enabled:    true,
			Frequency:  ScheduledTaskFrequencyDaily,
			Config:     map[string]string{},
			LastStatus: ScheduledTaskStatusPending,
		},
		{
			ID:         "orphan-sweep",
			Type:       ScheduledTaskTypeOrphanSweep,
			Name:       "Remove movies without records",
			Enabled:    true,
			Frequency:  ScheduledTaskFrequencyDaily,
			Config:     map[string]string{},
			LastStatus: ScheduledTaskStatusPending,
		},
		{
			ID:         "metadata-refresh",
			Type:       ScheduledTaskTypeMetadataRefresh,
			Name:       "Refresh stale movie metadata",
			Enabled:    true,
			Frequency:  ScheduledTaskFrequency6Hours,
			Config:     map[string]string{"staleDays": "30", "batchSize": "50"},
			LastStatus: ScheduledTaskStatusPending,
		},
	}
}

// DefaultSettings returns sane defaults for a fresh install.
func DefaultSettings() Settings {
	return Settings{
		Server:   ServerSettings{Host: "0.0.0.0", Port: 7777, TokenTTLHours: 24 * 7},
		Database: DatabaseSettings{Driver: "sqlite3", DSN: "cache/filmlog.db"},
		Metadata: MetadataSettings{Language: "en-US", Country: "US", RequestTimeoutSeconds: 10},
		Search:   SearchSettings{MinPopularity: 1.0, MaxResults: 20},
		Feed:     FeedSettings{PageSize: 25},
		Stats:    StatsSettings{TopN: 10},
		Tasks:    TaskSettings{Backend: TaskBackendMemory, Queue: "filmlog.tasks", Workers: 4},
		Log: LogConfig{
			File:       "cache/logs/backend.log",
			Level:      "info",
			MaxSize:    50,   // 50 MB per file
			MaxBackups: 3,    // keep 3 old files
			MaxAge:     7,    // 7 days
			Compress:   true, // compress old files
		},
		ScheduledTasks: ScheduledTasksSettings{
			Tasks:                defaultScheduledTasks(),
			CheckIntervalSeconds: 60,
		},
	}
}

// Manager loads and persists settings to a JSON file.
type Manager struct {
	fs   afero.Fs
	path string

	// held across Update's load-modify-save
	mu sync.Mutex
}

func NewManager(configPath string) *Manager {
	return NewManagerWithFs(afero.NewOsFs(), configPath)
}

// NewManagerWithFs is NewManager over an arbitrary filesystem.
func NewManagerWithFs(fsys afero.Fs, configPath string) *Manager {
	return &Manager{fs: fsys, path: configPath}
}

// Path returns the settings file location.
func (m *Manager) Path() string {
	return m.path
}

// EnsureDir ensures parent directory exists.
func (m *Manager) EnsureDir() error {
	dir := filepath.Dir(m.path)
	if dir == "." || dir == "" {
		return nil
	}
	return m.fs.MkdirAll(dir, 0o755)
}

// Load reads settings.json from disk or creates defaults if missing.
// A missing jwtSecret is generated and written back.
func (m *Manager) Load() (Settings, error) {
	if m.path == "" {
		return Settings{}, errors.New("config path not set")
	}
	if _, err := m.fs.Stat(m.path); errors.Is(err, fs.ErrNotExist) {
		defaults := DefaultSettings()
		secret, err := generateSecret()
		if err != nil {
			return Settings{}, err
		}
		defaults.Server.JWTSecret = secret
		if err := m.Save(defaults); err != nil {
			return Settings{}, err
		}
		return defaults, nil
	}

	data, err := afero.ReadFile(m.fs, m.path)
	if err != nil {
		return Settings{}, err
	}

	var s Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("parse %s: %w", m.path, err)
	}

	backfill(&s)

	if strings.TrimSpace(s.Server.JWTSecret) == "" {
		secret, err := generateSecret()
		if err != nil {
			return Settings{}, err
		}
		s.Server.JWTSecret = secret
		if err := m.Save(s); err != nil {
			return Settings{}, err
		}
	}

	return s, nil
}

// backfill fills zero values for settings introduced after the file was written.
func backfill(s *Settings) {
	d := DefaultSettings()

	if strings.TrimSpace(s.Server.Host) == "" {
		s.Server.Host = d.Server.Host
	}
	if s.Server.Port == 0 {
		s.Server.Port = d.Server.Port
	}
	if s.Server.TokenTTLHours <= 0 {
		s.Server.TokenTTLHours = d.Server.TokenTTLHours
	}

	// Backfill Database settings
	if strings.TrimSpace(s.Database.Driver) == "" {
		s.Database.Driver = d.Database.Driver
	}
	if strings.TrimSpace(s.Database.DSN) == "" && s.Database.Driver == d.Database.Driver {
		s.Database.DSN = d.Database.DSN
	}

	if strings.TrimSpace(s.Metadata.Language) == "" {
		s.Metadata.Language = d.Metadata.Language
	}
	if strings.TrimSpace(s.Metadata.Country) == "" {
		s.Metadata.Country = d.Metadata.Country
	}
	if s.Metadata.RequestTimeoutSeconds <= 0 {
		s.Metadata.RequestTimeoutSeconds = d.Metadata.RequestTimeoutSeconds
	}

	if s.Search.MaxResults <= 0 {
		s.Search.MaxResults = d.Search.MaxResults
	}
	if s.Feed.PageSize <= 0 {
		s.Feed.PageSize = d.Feed.PageSize
	}
	if s.Stats.TopN <= 0 {
		s.Stats.TopN = d.Stats.TopN
	}

	if s.Tasks.Backend == "" {
		s.Tasks.Backend = d.Tasks.Backend
	}
	if strings.TrimSpace(s.Tasks.Queue) == "" {
		s.Tasks.Queue = d.Tasks.Queue
	}
	if s.Tasks.Workers <= 0 {
		s.Tasks.Workers = d.Tasks.Workers
	}

	if strings.TrimSpace(s.Log.Level) == "" {
		s.Log.Level = d.Log.Level
	}
	if s.Log.MaxSize == 0 {
		s.Log.MaxSize = d.Log.MaxSize
	}

	if s.ScheduledTasks.CheckIntervalSeconds <= 0 {
		s.ScheduledTasks.CheckIntervalSeconds = d.ScheduledTasks.CheckIntervalSeconds
	}
	// Seed any built-in task the file does not know about yet
	for _, def := range defaultScheduledTasks() {
		found := false
		for _, t := range s.ScheduledTasks.Tasks {
			if t.Type == def.Type {
				found = true
				break
			}
		}
		if !found {
			s.ScheduledTasks.Tasks = append(s.ScheduledTasks.Tasks, def)
		}
	}
}

func generateSecret() (string, error) {
	secret, err := password.Generate(48, 10, 0, false, true)
	if err != nil {
		return "", fmt.Errorf("generate jwt secret: %w", err)
	}
	return secret, nil
}

// Save writes the provided settings to disk atomically.
func (m *Manager) Save(s Settings) error {
	if m.path == "" {
		return errors.New("config path not set")
	}
	if err := m.EnsureDir(); err != nil {
		return err
	}
	tmp := m.path + ".tmp"
	f, err := m.fs.Create(tmp)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		f.Close()
		_ = m.fs.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		_ = m.fs.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = m.fs.Remove(tmp)
		return err
	}
	return m.fs.Rename(tmp, m.path)
}

// Update loads the settings, applies fn and saves the result. Updates are
// serialised so concurrent writers never drop each other's changes. Nothing
// is saved when fn returns an error.
func (m *Manager) Update(fn func(*Settings) error) (Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.Load()
	if err != nil {
		return Settings{}, err
	}
	if err := fn(&s); err != nil {
		return Settings{}, err
	}
	if err := m.Save(s); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Environment variables that override the settings file. They are applied to
// the in-memory copy only and never persisted.
const (
	EnvConfigPath  = "FILMLOG_CONFIG"
	EnvTMDBAPIKey  = "FILMLOG_TMDB_API_KEY"
	EnvOMDBAPIKey  = "FILMLOG_OMDB_API_KEY"
	EnvDatabaseDSN = "FILMLOG_DATABASE_DSN"
	EnvDatabase    = "FILMLOG_DATABASE_DRIVER"
	EnvAMQPURL     = "FILMLOG_AMQP_URL"
	EnvDevMode     = "FILMLOG_DEV"
)

// ApplyEnv returns s with environment overrides applied.
func ApplyEnv(s Settings) Settings {
	return applyEnv(s, os.LookupEnv)
}

func applyEnv(s Settings, lookup func(string) (string, bool)) Settings {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get(EnvTMDBAPIKey); ok {
		s.Metadata.TMDBAPIKey = v
	}
	if v, ok := get(EnvOMDBAPIKey); ok {
		s.Metadata.OMDBAPIKey = v
	}
	if v, ok := get(EnvDatabase); ok {
		s.Database.Driver = v
	}
	if v, ok := get(EnvDatabaseDSN); ok {
		s.Database.DSN = v
	}
	if v, ok := get(EnvAMQPURL); ok {
		s.Tasks.AMQPURL = v
		s.Tasks.Backend = TaskBackendAMQP
	}
	if v, ok := get(EnvDevMode); ok {
		if dev, err := strconv.ParseBool(v); err == nil {
			s.Server.DevMode = dev
		}
	}
	return s
}
