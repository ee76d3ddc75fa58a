package config

import "os"

// Environment variable names for overrides.
const (
	EnvConfig     = "FORGEPUSH_CONFIG"
	EnvRepository = "FORGEPUSH_REPOSITORY"
	EnvRoot       = "FORGEPUSH_ROOT"
)

// Environment variables that carry the platform identity used by the
// connector broker. These are set by the hosting platform, not the user.
const (
	EnvConnectorsHostname = "REPLIT_CONNECTORS_HOSTNAME"
	EnvReplIdentity       = "REPL_IDENTITY"
	EnvReplRenewal        = "WEB_REPL_RENEWAL"
)

// EnvOverrides holds values derived from environment variables.
type EnvOverrides struct {
	ConfigPath string // FORGEPUSH_CONFIG: override config file path
	Repository string // FORGEPUSH_REPOSITORY: repository selector
	RootDir    string // FORGEPUSH_ROOT: directory to upload
}

// ReadEnvOverrides reads environment variables and returns any overrides found.
// This does not modify the Config; Resolve applies the relevant fields.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath: os.Getenv(EnvConfig),
		Repository: os.Getenv(EnvRepository),
		RootDir:    os.Getenv(EnvRoot),
	}
}

// BrokerEnv holds the ambient identity the connector broker accepts.
// Values are secrets; never log them.
type BrokerEnv struct {
	Hostname     string
	ReplIdentity string
	Renewal      string
}

// ReadBrokerEnv reads the connector broker's environment variables.
func ReadBrokerEnv() BrokerEnv {
	return BrokerEnv{
		Hostname:     os.Getenv(EnvConnectorsHostname),
		ReplIdentity: os.Getenv(EnvReplIdentity),
		Renewal:      os.Getenv(EnvReplRenewal),
	}
}
