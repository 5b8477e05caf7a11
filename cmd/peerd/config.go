package main

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/tensorwire/internal/config"
)

// localOverrides is the host-local shape layered onto the shared peer config,
// so one deployment file can serve several machines.
type localOverrides struct {
	Name        string   `toml:"name"`
	Listen      string   `toml:"listen"`
	AdminAddr   string   `toml:"admin_addr"`
	CorsOrigins []string `toml:"cors_origins"`
}

func applyLocalOverrides(cfg config.PeerConfig, path string) (config.PeerConfig, error) {
	var raw localOverrides
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return config.PeerConfig{}, fmt.Errorf("load local overrides: %w", err)
	}

	if meta.IsDefined("name") {
		if name := strings.TrimSpace(raw.Name); name != "" {
			cfg.Name = name
		}
	}
	if meta.IsDefined("listen") {
		if listen := strings.TrimSpace(raw.Listen); listen != "" {
			cfg.Listen = listen
		}
	}
	if meta.IsDefined("admin_addr") {
		cfg.AdminAddr = strings.TrimSpace(raw.AdminAddr)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = raw.CorsOrigins
	}

	if err := config.ValidatePeerConfig(cfg); err != nil {
		return config.PeerConfig{}, err
	}
	return cfg, nil
}
