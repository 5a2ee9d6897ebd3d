package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/dkeye/voicelink/internal/codec"
)

type Config struct {
	LogLevel string `mapstructure:"log_level"`

	URL        string `mapstructure:"url"`
	Token      string `mapstructure:"token"`
	Room       string `mapstructure:"room"`
	Name       string `mapstructure:"name"`
	SampleRate int    `mapstructure:"sample_rate"`
	TickRate   int    `mapstructure:"tick_rate"`

	ICEServers         []string `mapstructure:"ice_servers"`
	ICETransportPolicy string   `mapstructure:"ice_transport_policy"`

	ChatRateLimit    int           `mapstructure:"chat_rate_limit"`
	ChatRateInterval time.Duration `mapstructure:"chat_rate_interval"`
	PingPeriod       time.Duration `mapstructure:"ping_period"`
	ReadLimit        int64         `mapstructure:"read_limit"`

	DebugAddr string `mapstructure:"debug_addr"`

	TokenAPIKey    string        `mapstructure:"token_api_key"`
	TokenAPISecret string        `mapstructure:"token_api_secret"`
	TokenTTL       time.Duration `mapstructure:"token_ttl"`
}

// Load reads config/config.<CONFIG_ENV>.yaml, falling back to defaults.
func Load(flags *pflag.FlagSet) (*Config, error) {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(fmt.Sprintf("config/config.%s.yaml", env), flags)
}

// LoadFile reads fileName on top of the defaults. VOICELINK_* environment
// variables override the file, and flags set on the command line override
// everything. Flag names map to keys with dashes replaced by underscores.
func LoadFile(fileName string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)

	v.SetEnvPrefix("voicelink")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("log_level", "info")
	v.SetDefault("url", "ws://localhost:8080/ws")
	v.SetDefault("token", "")
	v.SetDefault("room", "main")
	v.SetDefault("name", "")
	v.SetDefault("sample_rate", 48000)
	v.SetDefault("tick_rate", 100)
	v.SetDefault("ice_servers", []string{"stun:stun.l.google.com:19302"})
	v.SetDefault("ice_transport_policy", "all")
	v.SetDefault("chat_rate_limit", 5)
	v.SetDefault("chat_rate_interval", "1s")
	v.SetDefault("ping_period", "54s")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("debug_addr", "")
	v.SetDefault("token_api_key", "")
	v.SetDefault("token_api_secret", "")
	v.SetDefault("token_ttl", "6h")

	if flags != nil {
		var bindErr error
		flags.VisitAll(func(f *pflag.Flag) {
			if err := v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f); err != nil && bindErr == nil {
				bindErr = err
			}
		})
		if bindErr != nil {
			return nil, fmt.Errorf("bind flags: %w", bindErr)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("✅ Loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.TickRate <= 0 {
		return fmt.Errorf("tick_rate must be positive, got %d", c.TickRate)
	}
	if !codec.SupportedSampleRate(c.SampleRate) {
		return fmt.Errorf("%w: sample_rate %d", codec.ErrUnsupportedSampleRate, c.SampleRate)
	}
	switch c.ICETransportPolicy {
	case "all", "relay":
	default:
		return fmt.Errorf("ice_transport_policy must be all or relay, got %q", c.ICETransportPolicy)
	}
	return nil
}

// TickInterval is the host loop period.
func (c *Config) TickInterval() time.Duration {
	return time.Second / time.Duration(c.TickRate)
}
