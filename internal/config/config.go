package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/danmuck/tensorwire/internal/channel"
	"github.com/danmuck/tensorwire/internal/wire"
	"github.com/pelletier/go-toml/v2"
)

type PeerConfig struct {
	Name        string       `toml:"name"`
	Rank        int32        `toml:"rank"`
	Listen      string       `toml:"listen"`
	AdminAddr   string       `toml:"admin_addr"`
	CorsOrigins []string     `toml:"cors_origins"`
	Peers       []PeerEntry  `toml:"peers"`
	Security    SecurityFile `toml:"security"`
}

type PeerEntry struct {
	Rank int32  `toml:"rank"`
	Addr string `toml:"addr"`
}

type SecurityFile struct {
	Mode string  `toml:"mode"`
	TLS  TLSFile `toml:"tls"`
}

type TLSFile struct {
	Enabled            bool   `toml:"enabled"`
	Mutual             bool   `toml:"mutual"`
	CertFile           string `toml:"cert_file"`
	KeyFile            string `toml:"key_file"`
	CAFile             string `toml:"ca_file"`
	ServerName         string `toml:"server_name"`
	InsecureSkipVerify bool   `toml:"insecure_skip_verify"`
}

func LoadPeerConfig(path string) (PeerConfig, error) {
	var cfg PeerConfig
	if err := loadToml(path, &cfg); err != nil {
		return PeerConfig{}, err
	}
	if cfg.Name == "" {
		cfg.Name = "tensorwire"
	}
	if cfg.Listen == "" {
		cfg.Listen = ":7400"
	}
	if err := ValidatePeerConfig(cfg); err != nil {
		return PeerConfig{}, err
	}
	return cfg, nil
}

func ValidatePeerConfig(cfg PeerConfig) error {
	if cfg.Rank < 0 {
		return fmt.Errorf("peer config rank must be non-negative, got %d", cfg.Rank)
	}
	if strings.TrimSpace(cfg.Listen) == "" {
		return fmt.Errorf("peer config missing listen")
	}
	seen := make(map[int32]bool)
	for i, peer := range cfg.Peers {
		if peer.Rank < 0 {
			return fmt.Errorf("peers[%d] rank must be non-negative, got %d", i, peer.Rank)
		}
		if peer.Rank == cfg.Rank {
			return fmt.Errorf("peers[%d] duplicates own rank %d", i, cfg.Rank)
		}
		if seen[peer.Rank] {
			return fmt.Errorf("peers[%d] duplicates rank %d", i, peer.Rank)
		}
		seen[peer.Rank] = true
		if strings.TrimSpace(peer.Addr) == "" {
			return fmt.Errorf("peers[%d] missing addr", i)
		}
	}
	if err := cfg.Security.ToChannel().Validate(); err != nil {
		return fmt.Errorf("peer config security: %w", err)
	}
	return nil
}

// ToChannel converts the file shape into the channel security settings.
func (s SecurityFile) ToChannel() channel.Security {
	return channel.Security{
		Mode: channel.SecurityMode(s.Mode),
		TLS: channel.TLSSettings{
			Enabled:            s.TLS.Enabled,
			Mutual:             s.TLS.Mutual,
			CertFile:           s.TLS.CertFile,
			KeyFile:            s.TLS.KeyFile,
			CAFile:             s.TLS.CAFile,
			ServerName:         s.TLS.ServerName,
			InsecureSkipVerify: s.TLS.InsecureSkipVerify,
		},
	}
}

// PeerTable converts the peer entries into the channel's rank->addr map.
func (c PeerConfig) PeerTable() map[wire.Rank]string {
	table := make(map[wire.Rank]string, len(c.Peers))
	for _, peer := range c.Peers {
		table[wire.Rank(peer.Rank)] = peer.Addr
	}
	return table
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}
