package internal

import (
	"chatter-box/gateway"
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Host     string `env:"HOST,default=localhost"`
	Port     int    `env:"PORT,default=8080"`
	LogLevel string `env:"LOG_LEVEL,default=INFO"`

	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`

	JWTSecret          string        `env:"JWT_SECRET,required=true"`
	AuthTokenDuration  time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`
	AuthRateLimitRPS   float64       `env:"AUTH_RATE_LIMIT_RPS,default=5"`
	AuthRateLimitBurst int           `env:"AUTH_RATE_LIMIT_BURST,default=10"`

	// Live channel
	PingInterval         time.Duration `env:"PING_INTERVAL,default=54s"`
	PongWait             time.Duration `env:"PONG_WAIT,default=60s"`
	WriteWait            time.Duration `env:"WRITE_WAIT,default=10s"`
	MaxMessageSize       int64         `env:"MAX_MESSAGE_SIZE,default=65536"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=256"`
	DeliveryTimeout      time.Duration `env:"DELIVERY_TIMEOUT,default=2s"`
	AllowedOrigins       string        `env:"ALLOWED_ORIGINS"`

	PresenceBufferSize int           `env:"PRESENCE_BUFFER_SIZE,default=64"`
	SinkTimeout        time.Duration `env:"SINK_TIMEOUT,default=2s"`
	RestartInterval    time.Duration `env:"RESTART_INTERVAL,default=1s"`
	MetricInterval     time.Duration `env:"METRIC_INTERVAL,default=1m"`
	ShutdownTimeout    time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`

	MaxContentLength  int    `env:"MAX_CONTENT_LENGTH,default=4000"`
	EnableModeration  bool   `env:"ENABLE_MODERATION,default=false"`
	CharReplacement   string `env:"CHARACTER_REPLACEMENT,default=*"`
	CensoredWordsPath string `env:"CENSORED_WORDS_PATH"`
}

func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Gateway maps the live channel settings onto the gateway configuration.
func (c Config) Gateway() gateway.Config {
	cfg := gateway.Config{
		PingInterval:    c.PingInterval,
		PongWait:        c.PongWait,
		WriteWait:       c.WriteWait,
		MaxMessageSize:  c.MaxMessageSize,
		BufferSize:      c.ConnectionBufferSize,
		DeliveryTimeout: c.DeliveryTimeout,
	}
	for _, origin := range strings.Split(c.AllowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
		}
	}
	return cfg
}

// Validate checks the relations between settings that tags cannot express.
func (c Config) Validate() error {
	if c.PingInterval >= c.PongWait {
		return fmt.Errorf("PING_INTERVAL (%s) must be shorter than PONG_WAIT (%s)", c.PingInterval, c.PongWait)
	}
	if c.ConnectionBufferSize <= 0 || c.PresenceBufferSize <= 0 {
		return fmt.Errorf("buffer sizes must be positive")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 bytes")
	}
	return nil
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
