package channel

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"strings"
)

type SecurityMode string

const (
	SecurityModeDevelopment SecurityMode = "development"
	SecurityModeProduction  SecurityMode = "production"
)

var (
	ErrInvalidSecurityMode     = errors.New("channel: invalid security mode")
	ErrTLSRequired             = errors.New("channel: tls required")
	ErrMTLSRequired            = errors.New("channel: mtls required")
	ErrTLSCertFileRequired     = errors.New("channel: tls cert file required")
	ErrTLSKeyFileRequired      = errors.New("channel: tls key file required")
	ErrTLSCAFileRequired       = errors.New("channel: tls ca file required")
	ErrTLSInsecureSkipNotAllow = errors.New("channel: insecure skip verify not allowed")
)

// TLSSettings is the TLS material for one peer endpoint.
type TLSSettings struct {
	Enabled            bool
	Mutual             bool
	CertFile           string
	KeyFile            string
	CAFile             string
	ServerName         string
	InsecureSkipVerify bool
}

// Security selects and constrains the transport security of a TCP channel.
type Security struct {
	Mode SecurityMode
	TLS  TLSSettings
}

func NormalizeSecurityMode(mode SecurityMode) SecurityMode {
	if strings.TrimSpace(string(mode)) == "" {
		return SecurityModeDevelopment
	}
	return SecurityMode(strings.ToLower(strings.TrimSpace(string(mode))))
}

func (s Security) Validate() error {
	mode := NormalizeSecurityMode(s.Mode)
	switch mode {
	case SecurityModeDevelopment, SecurityModeProduction:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidSecurityMode, s.Mode)
	}

	if mode == SecurityModeProduction {
		if !s.TLS.Enabled {
			return ErrTLSRequired
		}
		if !s.TLS.Mutual {
			return ErrMTLSRequired
		}
		if s.TLS.InsecureSkipVerify {
			return ErrTLSInsecureSkipNotAllow
		}
	}
	if s.TLS.Mutual && !s.TLS.Enabled {
		return ErrTLSRequired
	}
	if s.TLS.Enabled && strings.TrimSpace(s.TLS.CAFile) == "" && !s.TLS.InsecureSkipVerify {
		return ErrTLSCAFileRequired
	}
	if s.TLS.Enabled {
		if strings.TrimSpace(s.TLS.CertFile) == "" {
			return ErrTLSCertFileRequired
		}
		if strings.TrimSpace(s.TLS.KeyFile) == "" {
			return ErrTLSKeyFileRequired
		}
	}
	return nil
}

// ServerTLS builds the listener-side tls.Config, or nil when TLS is off.
func (s Security) ServerTLS() (*tls.Config, error) {
	if !s.TLS.Enabled {
		return nil, nil
	}
	cert, err := tls.LoadX509KeyPair(s.TLS.CertFile, s.TLS.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load server keypair: %w", err)
	}
	cfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}
	if s.TLS.Mutual {
		pool, err := loadCertPool(s.TLS.CAFile)
		if err != nil {
			return nil, err
		}
		cfg.ClientCAs = pool
		cfg.ClientAuth = tls.RequireAndVerifyClientCert
	}
	return cfg, nil
}

// ClientTLS builds the dial-side tls.Config, or nil when TLS is off.
func (s Security) ClientTLS() (*tls.Config, error) {
	if !s.TLS.Enabled {
		return nil, nil
	}
	cfg := &tls.Config{
		ServerName: s.TLS.ServerName,
		MinVersion: tls.VersionTLS12,
	}
	if s.TLS.InsecureSkipVerify {
		cfg.InsecureSkipVerify = true
	} else {
		pool, err := loadCertPool(s.TLS.CAFile)
		if err != nil {
			return nil, err
		}
		cfg.RootCAs = pool
	}
	if s.TLS.Mutual {
		cert, err := tls.LoadX509KeyPair(s.TLS.CertFile, s.TLS.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client keypair: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}
	return cfg, nil
}

func loadCertPool(path string) (*x509.CertPool, error) {
	if strings.TrimSpace(path) == "" {
		return nil, ErrTLSCAFileRequired
	}
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ca file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("parse ca file %s: no certificates found", path)
	}
	return pool, nil
}
