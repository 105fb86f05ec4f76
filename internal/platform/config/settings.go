// Copyright (c) 2026 CERN for the benefit of the FCC collaboration. All rights reserved.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Startup modes for the dictionary file watcher.
const (
	StartupIgnore     = "ignore"      // skip whatever is on disk at startup
	StartupProcessAll = "process_all" // ingest every watched file unconditionally
	StartupProcessNew = "process_new" // ingest only files that changed since the last run
)

// Settings holds the deployment-specific settings loaded from the YAML file.
// Unlike [Config], these describe the data being served rather than the
// process serving it: which table is the catalog's main table, how the
// navigation menu is ordered, and which dictionary files to watch.
type Settings struct {
	Application ApplicationSettings
	Database    DatabaseSettings
	General     GeneralSettings
	Navigation  NavigationSettings
	FileWatcher FileWatcherSettings
}

// ApplicationSettings brands the frontend and names the main table.
type ApplicationSettings struct {
	// MainTable is the table every search and navigation query centers on.
	MainTable string
	// Title is shown by the frontend, e.g. "FCC Physics Samples".
	Title string
	// SearchPlaceholder is the search box hint. Derived from MainTable
	// when not set explicitly.
	SearchPlaceholder string
}

// DatabaseSettings assemble the PostgreSQL DSN when DATABASE_URL is not set.
type DatabaseSettings struct {
	User     string
	Password string
	Host     string
	Port     int
	DB       string
}

// DSN renders the settings as a postgres:// URL.
func (d DatabaseSettings) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   "/" + d.DB,
	}
	return u.String()
}

// GeneralSettings scope who may mutate the catalog.
type GeneralSettings struct {
	// RequiredCERNRole must appear in the user's SSO roles for mutating
	// endpoints. Empty means any signed-in user may mutate.
	RequiredCERNRole string
	// CookiePrefix namespaces the session cookies, e.g. "fcc".
	CookiePrefix string
}

// NavigationSettings order the discovered navigation tables.
type NavigationSettings struct {
	// Order lists navigation keys in display order. Keys not present in the
	// database are dropped; discovered keys not listed here are appended.
	Order []string
}

// FileWatcherSettings drive the dictionary file watcher.
type FileWatcherSettings struct {
	WatchPaths      []string
	PollingInterval time.Duration
	StartupMode     string
	StateFile       string
}

// Enabled reports whether any dictionary file is being watched.
func (w FileWatcherSettings) Enabled() bool { return len(w.WatchPaths) > 0 }

// LoadSettings reads the deployment settings YAML at path. A missing file is
// not an error; every key has a default so a bare deployment still serves the
// "datasets" table with an alphabetical menu and no watcher.
func LoadSettings(path string) (*Settings, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(path)

	// Environment variables take precedence over the file,
	// e.g. DATACAT_APPLICATION_MAIN_TABLE overrides application.main_table.
	v.SetEnvPrefix("DATACAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("application.main_table", "datasets")
	v.SetDefault("application.title", "Data Explorer")
	v.SetDefault("application.search_placeholder", "")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.db", "datacat")
	v.SetDefault("general.required_cern_role", "")
	v.SetDefault("general.cookie_prefix", "datacat")
	v.SetDefault("navigation.order", []string{})
	v.SetDefault("file_watcher.watch_paths", []string{})
	v.SetDefault("file_watcher.polling_interval", "5m")
	v.SetDefault("file_watcher.startup_mode", StartupProcessNew)
	v.SetDefault("file_watcher.state_file", "")

	if err := v.ReadInConfig(); err != nil {
		// The file is optional; anything else (bad YAML, permissions) is fatal.
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: failed to read settings file %s: %w", path, err)
		}
	}

	s := &Settings{
		Application: ApplicationSettings{
			MainTable:         v.GetString("application.main_table"),
			Title:             v.GetString("application.title"),
			SearchPlaceholder: v.GetString("application.search_placeholder"),
		},
		Database: DatabaseSettings{
			User:     v.GetString("database.user"),
			Password: v.GetString("database.password"),
			Host:     v.GetString("database.host"),
			Port:     v.GetInt("database.port"),
			DB:       v.GetString("database.db"),
		},
		General: GeneralSettings{
			RequiredCERNRole: v.GetString("general.required_cern_role"),
			CookiePrefix:     v.GetString("general.cookie_prefix"),
		},
		Navigation: NavigationSettings{
			Order: v.GetStringSlice("navigation.order"),
		},
		FileWatcher: FileWatcherSettings{
			WatchPaths:      v.GetStringSlice("file_watcher.watch_paths"),
			PollingInterval: v.GetDuration("file_watcher.polling_interval"),
			StartupMode:     v.GetString("file_watcher.startup_mode"),
			StateFile:       v.GetString("file_watcher.state_file"),
		},
	}

	if s.Application.SearchPlaceholder == "" {
		s.Application.SearchPlaceholder = fmt.Sprintf("Search %s...", s.Application.MainTable)
	}

	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Settings) validate() error {
	if s.Application.MainTable == "" {
		return fmt.Errorf("config: application.main_table must not be empty")
	}
	switch s.FileWatcher.StartupMode {
	case StartupIgnore, StartupProcessAll, StartupProcessNew:
	default:
		return fmt.Errorf("config: file_watcher.startup_mode must be one of %q, %q, %q; got %q",
			StartupIgnore, StartupProcessAll, StartupProcessNew, s.FileWatcher.StartupMode)
	}
	if s.FileWatcher.PollingInterval < 0 {
		return fmt.Errorf("config: file_watcher.polling_interval must not be negative")
	}
	if s.FileWatcher.Enabled() && s.FileWatcher.StateFile == "" && s.FileWatcher.StartupMode == StartupProcessNew {
		return fmt.Errorf("config: file_watcher.startup_mode %q requires file_watcher.state_file", StartupProcessNew)
	}
	return nil
}
