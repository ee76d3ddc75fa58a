package config

// Default values for configuration options. These represent the "layer 0"
// of the four-layer override chain and reproduce the tool's historical
// behavior when no config file exists.
const (
	defaultIgnoreFile       = ".forgepushignore"
	defaultMaxFileSize      = "0"
	defaultTextDecoding     = TextDecodingReplace
	defaultAPIURL           = "https://api.github.com/"
	defaultHTTPTimeout      = "60s"
	defaultLogLevel         = "info"
	defaultLogFormat        = "auto"
	defaultLogRetentionDays = 30
)

// defaultBinaryExtensions are uploaded as raw bytes; everything else goes
// through the text decoding path.
var defaultBinaryExtensions = []string{
	".png", ".jpg", ".jpeg", ".gif", ".bmp", ".ico", ".webp", ".pdf",
}

// DefaultConfig returns a Config populated with all default values.
// This is used both as the starting point for TOML decoding (so unset
// fields retain defaults) and as the fallback when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		RepositoryConfig: RepositoryConfig{},
		FilterConfig:     defaultFilterConfig(),
		UploadConfig:     defaultUploadConfig(),
		NetworkConfig:    defaultNetworkConfig(),
		LoggingConfig:    defaultLoggingConfig(),
	}
}

func defaultFilterConfig() FilterConfig {
	return FilterConfig{
		IgnoreFile:  defaultIgnoreFile,
		MaxFileSize: defaultMaxFileSize,
	}
}

func defaultUploadConfig() UploadConfig {
	return UploadConfig{
		BinaryExtensions: append([]string(nil), defaultBinaryExtensions...),
		TextDecoding:     defaultTextDecoding,
		VerifyUploads:    true,
	}
}

func defaultNetworkConfig() NetworkConfig {
	return NetworkConfig{
		APIURL:      defaultAPIURL,
		HTTPTimeout: defaultHTTPTimeout,
	}
}

func defaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		LogLevel:         defaultLogLevel,
		LogFormat:        defaultLogFormat,
		LogRetentionDays: defaultLogRetentionDays,
	}
}
