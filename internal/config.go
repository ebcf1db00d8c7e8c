package internal

import (
	goerrors "errors"
	"fmt"
	"io/fs"
	"net"
	"secure-chat/errors"
	"strconv"
	"time"

	"github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Host string `env:"HOST,default=0.0.0.0"`
	Port int    `env:"PORT,default=8443" validate:"gte=0,lte=65535"`

	TLSCertFile         string `env:"TLS_CERT_FILE" validate:"required_with=TLSKeyFile"`
	TLSKeyFile          string `env:"TLS_KEY_FILE" validate:"required_with=TLSCertFile"`
	TLSKeystoreFile     string `env:"TLS_KEYSTORE_FILE"`
	TLSKeystorePassword string `env:"TLS_KEYSTORE_PASSWORD"`
	TLSSelfSigned       bool   `env:"TLS_SELF_SIGNED,default=false"`

	HandshakeTimeout  time.Duration `env:"HANDSHAKE_TIMEOUT,default=10s" validate:"gt=0"`
	OutboundQueueSize int           `env:"OUTBOUND_QUEUE_SIZE,default=256" validate:"gt=0"`
	DefaultRoom       string        `env:"DEFAULT_ROOM,default=General" validate:"required"`
	LogLevel          string        `env:"LOG_LEVEL,default=INFO" validate:"oneof=DEBUG INFO WARN ERROR debug info warn error"`

	RequireCredentials bool          `env:"REQUIRE_CREDENTIALS,default=false"`
	AutoRegister       bool          `env:"AUTO_REGISTER,default=true"`
	BadgerFilepath     string        `env:"BADGER_FILEPATH"`
	AuthTokenSecret    string        `env:"AUTH_TOKEN_SECRET,required=true" validate:"min=16"`
	AuthTokenDuration  time.Duration `env:"AUTH_TOKEN_DURATION,default=24h" validate:"gt=0"`

	ModerationEnabled bool   `env:"MODERATION_ENABLED,default=false"`
	CharReplacement   string `env:"CHARACTER_REPLACEMENT,default=*"`

	HealthPort      int           `env:"HEALTH_PORT,default=0" validate:"gte=0,lte=65535"`
	MetricInterval  time.Duration `env:"METRIC_INTERVAL,default=30s" validate:"gt=0"`
	RestartInterval time.Duration `env:"RESTART_INTERVAL,default=200ms" validate:"gt=0"`
}

var validate = validator.New()

// LoadConfig reads the environment, after loading envFiles when they exist.
func LoadConfig(envFiles ...string) (Config, error) {
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !goerrors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("loading %s: %w", file, err)
		}
	}

	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return Config{}, fmt.Errorf("%w: %v", errors.ErrInvalidConfig, err)
	}
	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

// Validate checks field constraints and that exactly one certificate source
// is configured.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidConfig, err)
	}
	sources := 0
	if c.TLSCertFile != "" {
		sources++
	}
	if c.TLSKeystoreFile != "" {
		sources++
	}
	if c.TLSSelfSigned {
		sources++
	}
	switch {
	case sources == 0:
		return errors.ErrNoCertificate
	case sources > 1:
		return fmt.Errorf("%w: set only one of TLS_CERT_FILE, TLS_KEYSTORE_FILE or TLS_SELF_SIGNED",
			errors.ErrInvalidConfig)
	}
	if _, err := CharacterRune(c.CharReplacement); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidConfig, err)
	}
	return nil
}

func (c Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c Config) HealthAddress() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.HealthPort))
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
