// Package config handles application configuration management.
//
// The config package loads configuration from an optional YAML file and from
// environment variables using viper. The container-level variables
// WORKSPACE_DIR, SESSION_ID, SECRET_TOKEN, HOST and PORT are honored as-is;
// every other key can be overridden with an EXECD_ prefixed variable, for
// example EXECD_SANDBOX_COMMAND_TIMEOUT_SEC.
//
// Usage:
//
//	cfg, err := config.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
