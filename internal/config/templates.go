package config

import (
	"fmt"
	"os"
)

func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(peerTemplate), 0o600)
}

const peerTemplate = `name = "tensorwire"
rank = 0
listen = ":7400"
admin_addr = ":9400"
cors_origins = ["http://localhost:3000"]

[[peers]]
rank = 1
addr = "localhost:7401"

[security]
mode = "development"

[security.tls]
enabled = false
mutual = false
cert_file = ""
key_file = ""
ca_file = ""
`
