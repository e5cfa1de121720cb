// Package config holds configuration for both modbusreader binaries.
//
// The console keeps a YAML registry of known readers (serial number,
// nickname, last service URL, last seen time) and its preferences in the
// platform configuration directory:
//   - Linux: $XDG_CONFIG_HOME/modbusreader/config.yaml or $HOME/.config/modbusreader/config.yaml
//   - macOS: $HOME/.config/modbusreader/config.yaml
//   - Windows: %LOCALAPPDATA%\modbusreader\config.yaml
//
// Passwords are never written to the registry.
//
// The configuration service reads modbusreader.yaml through viper. Every key
// can be overridden from the environment with the MODBUSREADER_ prefix and
// dots replaced by underscores:
//
//	log_level: info
//	server:
//	  port: 8080
//	  username: admin
//	  password: secret
//	  advertise: true
//	reader:
//	  mode: tcp            # or rtu
//	  address: 192.168.1.50:502
//	  slave_id: 1
//	  timeout: 2s
//
// MODBUSREADER_READER_ADDRESS=/dev/ttyUSB0 overrides reader.address.
//
// # Thread Safety
//
// The global registry uses sync.Once for safe initialization across goroutines.
// File writes are serialized by a mutex and go through a temporary file.
package config
