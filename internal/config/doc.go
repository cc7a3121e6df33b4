// Package config handles configuration loading, saving, and schema definition.
package config

// Config is the top-level streamtalk configuration.
// Uses json tags in camelCase to match the JSON config file format.
type Config struct {
	Redis       RedisConfig       `json:"redis"`
	Interpreter InterpreterConfig `json:"interpreter"`
	Chat        ChatConfig        `json:"chat"`
	LogFile     string            `json:"logFile,omitempty"`
}

// RedisConfig holds connection settings for the log service and the
// session document store (one Redis instance serves both).
type RedisConfig struct {
	URL      string `json:"url"`
	Password string `json:"password,omitempty"`
	DB       int    `json:"db,omitempty"`
}

// InterpreterConfig holds the script-interpretation service endpoint.
type InterpreterConfig struct {
	BaseURL        string `json:"baseUrl"`
	TimeoutSeconds int    `json:"timeoutSeconds"`
}

// ChatConfig tunes the transport loops and the signal channel. These are
// responsiveness knobs, not correctness knobs.
type ChatConfig struct {
	// BlockMillis bounds one blocking stream read.
	BlockMillis int `json:"blockMillis"`
	// ReadCount bounds how many entries one read returns.
	ReadCount int `json:"readCount"`
	// SignalBuffer is the mediator channel capacity.
	SignalBuffer int `json:"signalBuffer"`
	// OutboundBuffer is the output loop channel capacity.
	OutboundBuffer int `json:"outboundBuffer"`
	// ShutdownGraceMillis bounds how long quit waits for transport loops.
	ShutdownGraceMillis int `json:"shutdownGraceMillis"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Redis: RedisConfig{
			URL: "redis://127.0.0.1:6379",
		},
		Interpreter: InterpreterConfig{
			BaseURL:        "http://127.0.0.1:8000",
			TimeoutSeconds: 60,
		},
		Chat: ChatConfig{
			BlockMillis:         2000,
			ReadCount:           10,
			SignalBuffer:        1024,
			OutboundBuffer:      1024,
			ShutdownGraceMillis: 200,
		},
	}
}
