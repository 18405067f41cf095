package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port          string `envconfig:"PORT" default:"8080"`
	AllowedOrigin string `envconfig:"ALLOWED_ORIGIN" default:"http://127.0.0.1:3000"`
	DatabaseURL   string `envconfig:"DATABASE_URL"`
	AutoMigrate   bool   `envconfig:"AUTO_MIGRATE" default:"true"`

	RedisAddr           string `envconfig:"REDIS_ADDR"`
	RedisPassword       string `envconfig:"REDIS_PASSWORD"`
	RedisDB             int    `envconfig:"REDIS_DB" default:"0"`
	ItemCacheTTLSeconds int    `envconfig:"ITEM_CACHE_TTL_SECONDS" default:"15"`

	AuthSecret            string `envconfig:"AUTH_SECRET"`
	AccessTokenTTLMinutes int    `envconfig:"ACCESS_TOKEN_TTL_MINUTES" default:"480"`
	AdminUsername         string `envconfig:"ADMIN_USERNAME" default:"admin"`
	AdminPassword         string `envconfig:"ADMIN_PASSWORD"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	ShopName         string `envconfig:"SHOP_NAME" default:"Sakhi Collections"`
	ShopTagline      string `envconfig:"SHOP_TAGLINE" default:"Retail Invoice"`
	ShopAddress      string `envconfig:"SHOP_ADDRESS" default:"Opposite State bank of India, Near Ambika Mata Mandir"`
	ShareBrand       string `envconfig:"SHARE_BRAND" default:"StockFlow"`
	PublicBaseURL    string `envconfig:"PUBLIC_BASE_URL"`
	PhoneCountryCode string `envconfig:"PHONE_COUNTRY_CODE" default:"91"`
	Timezone         string `envconfig:"TIMEZONE" default:"Asia/Kolkata"`

	MaxLabelsPerPrint int `envconfig:"MAX_LABELS_PER_PRINT" default:"60"`
	CartIdleMinutes   int `envconfig:"CART_IDLE_MINUTES" default:"240"`
}

func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}

	cfg.AuthSecret = strings.TrimSpace(cfg.AuthSecret)
	cfg.PublicBaseURL = strings.TrimRight(strings.TrimSpace(cfg.PublicBaseURL), "/")
	if cfg.ItemCacheTTLSeconds < 1 {
		cfg.ItemCacheTTLSeconds = 15
	}
	if cfg.AccessTokenTTLMinutes < 1 {
		cfg.AccessTokenTTLMinutes = 480
	}
	if cfg.MaxLabelsPerPrint < 1 {
		cfg.MaxLabelsPerPrint = 60
	}
	if cfg.CartIdleMinutes < 1 {
		cfg.CartIdleMinutes = 240
	}
	return cfg, nil
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

// Location resolves TIMEZONE. Hosts without tzdata fall back to a fixed IST offset.
func (c Config) Location() *time.Location {
	if loc, err := time.LoadLocation(c.Timezone); err == nil {
		return loc
	}
	return time.FixedZone("IST", 5*60*60+30*60)
}

func (c Config) ItemCacheTTL() time.Duration {
	return time.Duration(c.ItemCacheTTLSeconds) * time.Second
}

func (c Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLMinutes) * time.Minute
}

func (c Config) CartIdleTimeout() time.Duration {
	return time.Duration(c.CartIdleMinutes) * time.Minute
}
