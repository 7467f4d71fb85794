package config

import "time"

type Config struct {
	Repository RepositoryConfig `yaml:"repository"`

	// InstalledVersion is the version of the artifact currently deployed.
	// Empty means "use the build version", or 0.0.0 for development builds.
	InstalledVersion string `yaml:"installed_version"`
	AutoCheck        bool   `yaml:"auto_check"`

	Cache     CacheConfig     `yaml:"cache"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Timeouts  TimeoutConfig   `yaml:"timeouts"`
	Download  DownloadConfig  `yaml:"download"`
	Classify  ClassifyConfig  `yaml:"classify"`
	Offline   OfflineConfig   `yaml:"offline"`
	State     StateConfig     `yaml:"state"`

	SkipDuration time.Duration `yaml:"skip_duration"`
}

type RepositoryConfig struct {
	Owner        string `yaml:"owner"`
	Name         string `yaml:"name"`
	Branch       string `yaml:"branch"`
	ArtifactPath string `yaml:"artifact_path"`
	APIBaseURL   string `yaml:"api_base_url"`
	RawBaseURL   string `yaml:"raw_base_url"`
	// TokenEnv names the environment variable holding an API token. The
	// structured query tier is skipped when it is unset.
	TokenEnv string `yaml:"token_env"`
}

type CacheConfig struct {
	FreshnessWindow time.Duration `yaml:"freshness_window"`
	EmergencyTTL    time.Duration `yaml:"emergency_ttl"`
	VersionTTL      time.Duration `yaml:"version_ttl"`
}

type SchedulerConfig struct {
	BaseInterval time.Duration `yaml:"base_interval"`
	MaxFailures  int           `yaml:"max_failures"`
}

type TimeoutConfig struct {
	Metadata time.Duration `yaml:"metadata"`
	Download time.Duration `yaml:"download"`
}

type DownloadConfig struct {
	MaxConcurrent int      `yaml:"max_concurrent"`
	Providers     []string `yaml:"providers"`
}

type ClassifyConfig struct {
	CriticalSubstrings []string `yaml:"critical_substrings"`
	CriticalPrefixes   []string `yaml:"critical_prefixes"`
	VolumeThreshold    int      `yaml:"volume_threshold"`
}

type OfflineConfig struct {
	Capacity   int           `yaml:"capacity"`
	MaxAge     time.Duration `yaml:"max_age"`
	DrainDelay time.Duration `yaml:"drain_delay"`
}

type StateConfig struct {
	Backend    string `yaml:"backend"`
	Dir        string `yaml:"dir"`
	InstallDir string `yaml:"install_dir"`
}

func DefaultConfig() Config {
	return Config{
		Repository: RepositoryConfig{
			Branch:       "main",
			ArtifactPath: "deltasync.user.js",
			APIBaseURL:   "https://api.github.com",
			RawBaseURL:   "https://raw.githubusercontent.com",
			TokenEnv:     "GITHUB_TOKEN",
		},
		AutoCheck: true,
		Cache: CacheConfig{
			FreshnessWindow: 10 * time.Minute,
			EmergencyTTL:    60 * time.Minute,
			VersionTTL:      24 * time.Hour,
		},
		Scheduler: SchedulerConfig{
			BaseInterval: 5 * time.Minute,
			MaxFailures:  3,
		},
		Timeouts: TimeoutConfig{
			Metadata: 5 * time.Second,
			Download: 10 * time.Second,
		},
		Download: DownloadConfig{
			MaxConcurrent: 3,
			Providers: []string{
				"https://raw.githubusercontent.com/{owner}/{repo}/{ref}/{path}",
				"https://cdn.jsdelivr.net/gh/{owner}/{repo}@{ref}/{path}",
				"https://rawcdn.githack.com/{owner}/{repo}/{ref}/{path}",
			},
		},
		Classify: ClassifyConfig{
			CriticalSubstrings: []string{".user.js", "manifest.json", "package.json"},
			CriticalPrefixes:   []string{"src/core/", "dist/"},
			VolumeThreshold:    10,
		},
		Offline: OfflineConfig{
			Capacity:   10,
			MaxAge:     24 * time.Hour,
			DrainDelay: 2 * time.Second,
		},
		State: StateConfig{
			Backend: "file",
		},
		SkipDuration: 7 * 24 * time.Hour,
	}
}
