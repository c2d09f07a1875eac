// Package config loads the bot configuration with viper. Values come from a
// YAML file and can be overridden by LOBBYBOT_* environment variables, e.g.
// LOBBYBOT_STORE_DRIVER or LOBBYBOT_IRC_SERVER.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides
const EnvPrefix = "LOBBYBOT"

// Store drivers
const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// Config holds all bot configuration
type Config struct {
	IRC            IRCConfig       `mapstructure:"irc"`
	DataDir        string          `mapstructure:"data_dir"`
	KeyFile        string          `mapstructure:"key_file"`
	RegionsFile    string          `mapstructure:"regions_file"`
	PrivateReplies bool            `mapstructure:"private_replies"`
	Operators      []string        `mapstructure:"operators"`
	AdminPassHash  string          `mapstructure:"admin_pass_hash"`
	LogLevel       string          `mapstructure:"log_level"`
	Commands       CommandsConfig  `mapstructure:"commands"`
	Steam          SteamConfig     `mapstructure:"steam"`
	Shortener      ShortenerConfig `mapstructure:"shortener"`
	Store          StoreConfig     `mapstructure:"store"`
}

// IRCConfig holds the connection and identity of the bot
type IRCConfig struct {
	Server     string   `mapstructure:"server"`
	Port       int      `mapstructure:"port"`
	UseTLS     bool     `mapstructure:"use_tls"`
	Nick       string   `mapstructure:"nick"`
	Alternate  string   `mapstructure:"alternate"`
	NickPass   string   `mapstructure:"nick_pass"`
	Username   string   `mapstructure:"username"`
	RealName   string   `mapstructure:"real_name"`
	ServerPass string   `mapstructure:"server_pass"`
	Channels   []string `mapstructure:"channels"`
	Prefix     string   `mapstructure:"prefix"`
}

// Addr returns host:port of the IRC server
func (c *IRCConfig) Addr() string {
	return net.JoinHostPort(c.Server, strconv.Itoa(c.Port))
}

// CommandsConfig bounds command execution
type CommandsConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// SteamConfig holds the Steam endpoints
type SteamConfig struct {
	APIBase       string        `mapstructure:"api_base"`
	CommunityBase string        `mapstructure:"community_base"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// ShortenerConfig holds the TinyURL endpoint
type ShortenerConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// StoreConfig selects and configures the identity store backend
type StoreConfig struct {
	Driver   string         `mapstructure:"driver"`
	File     string         `mapstructure:"file"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	User           string        `mapstructure:"user"`
	Password       string        `mapstructure:"password"`
	Name           string        `mapstructure:"name"`
	PoolSize       int           `mapstructure:"pool_size"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// DSN returns the PostgreSQL connection string
func (p *PostgresConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(p.User, p.Password),
		Host:     net.JoinHostPort(p.Host, strconv.Itoa(p.Port)),
		Path:     "/" + p.Name,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	URL       string `mapstructure:"url"`
	PoolSize  int    `mapstructure:"pool_size"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// Load reads configuration from path and the environment. With an empty
// path, lobbybot.yaml is searched in the working directory and
// /etc/lobbybot; a missing file is fine then.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("lobbybot")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/lobbybot")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers every key, so each one can be set from the
// environment even when the file does not mention it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("irc.server", "")
	v.SetDefault("irc.port", 6667)
	v.SetDefault("irc.use_tls", false)
	v.SetDefault("irc.nick", "LobbyBot")
	v.SetDefault("irc.alternate", "LobbyBot_")
	v.SetDefault("irc.nick_pass", "")
	v.SetDefault("irc.username", "lobbybot")
	v.SetDefault("irc.real_name", "Steam lobby bot")
	v.SetDefault("irc.server_pass", "")
	v.SetDefault("irc.channels", []string{})
	v.SetDefault("irc.prefix", ".")

	v.SetDefault("data_dir", "./data")
	v.SetDefault("key_file", "key")
	v.SetDefault("regions_file", "locs.json")
	v.SetDefault("private_replies", false)
	v.SetDefault("operators", []string{})
	v.SetDefault("admin_pass_hash", "")
	v.SetDefault("log_level", "info")

	v.SetDefault("commands.timeout", "20s")

	v.SetDefault("steam.api_base", "https://api.steampowered.com")
	v.SetDefault("steam.community_base", "https://steamcommunity.com")
	v.SetDefault("steam.timeout", "10s")

	v.SetDefault("shortener.base_url", "https://tinyurl.com/api-create.php")
	v.SetDefault("shortener.timeout", "10s")

	v.SetDefault("store.driver", DriverFile)
	v.SetDefault("store.file", "")
	v.SetDefault("store.postgres.host", "localhost")
	v.SetDefault("store.postgres.port", 5432)
	v.SetDefault("store.postgres.user", "lobbybot")
	v.SetDefault("store.postgres.password", "")
	v.SetDefault("store.postgres.name", "lobbybot")
	v.SetDefault("store.postgres.pool_size", 5)
	v.SetDefault("store.postgres.connect_timeout", "10s")
	v.SetDefault("store.redis.url", "redis://localhost:6379/0")
	v.SetDefault("store.redis.pool_size", 10)
	v.SetDefault("store.redis.key_prefix", "lobbybot")
}

// Validate reports the first setting the bot cannot run with
func (c *Config) Validate() error {
	switch {
	case c.IRC.Server == "":
		return errors.New("irc.server is required")
	case c.IRC.Port <= 0 || c.IRC.Port > 65535:
		return fmt.Errorf("irc.port %d is out of range", c.IRC.Port)
	case c.IRC.Nick == "":
		return errors.New("irc.nick is required")
	case c.IRC.Prefix == "":
		return errors.New("irc.prefix must not be empty")
	case c.Commands.Timeout <= 0:
		return errors.New("commands.timeout must be positive")
	}

	switch c.Store.Driver {
	case DriverMemory, DriverFile, DriverPostgres, DriverRedis:
	default:
		return fmt.Errorf("unknown store.driver %q", c.Store.Driver)
	}
	return nil
}

// StoreFile returns the path of the file store, defaulting to users.json in
// the data directory.
func (c *Config) StoreFile() string {
	if c.Store.File != "" {
		return c.Store.File
	}
	return filepath.Join(c.DataDir, "users.json")
}

// LoadKey reads the Steam Web API key from path
func LoadKey(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read key file: %w", err)
	}
	key := strings.TrimSpace(string(data))
	if key == "" {
		return "", fmt.Errorf("key file %s is empty", path)
	}
	return key, nil
}
