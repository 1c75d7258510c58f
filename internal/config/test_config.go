package config

import "time"

// TestConfig returns a config suitable for testing
func TestConfig() *Config {
	cfg := defaultConfig()
	cfg.Server.BaseURL = "http://127.0.0.1:0/api"
	cfg.Server.HTTPTimeout = 2 * time.Second
	cfg.Server.UserAgent = "casedesk-test/1.0"
	cfg.Feed.Debounce = 10 * time.Millisecond
	cfg.Database.Path = ":memory:"
	cfg.Database.SearchIndex = ""
	cfg.Log.Level = "off"
	cfg.Log.File = ""
	return cfg
}
