/*
Package config loads storefront configuration.

SOURCES (later wins):
  1. Default()           built-in values
  2. YAML file (-config) only the keys present override defaults
  3. Command-line flags  applied by cmd/server

EXAMPLE FILE:
  server:
    port: 8080
    static_dir: ./web/dist
  database:
    path: ./data/cart.db
  cart:
    undo_window: 10s
    undo_capacity: 5
  promo:
    code: GREEN10
    percent: 10
  checkout:
    orders_per_minute: 30
  delivery_zones:
    - id: mkad
      name: Moscow (inside MKAD)
      price: 0
      min_order_for_free_delivery: 2000
      estimated_duration: 2 hours

  A delivery_zones or payment_methods list in the file replaces the
  default list entirely.

SEE ALSO:
  - cmd/server/main.go: Flag overrides
  - pricing/zones.go: DefaultZones
*/
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/microgreen/storefront/cart"
	"github.com/microgreen/storefront/checkout"
	"github.com/microgreen/storefront/pricing"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Server         ServerConfig          `yaml:"server"`
	Database       DatabaseConfig        `yaml:"database"`
	Cart           CartConfig            `yaml:"cart"`
	Promo          PromoConfig           `yaml:"promo"`
	Checkout       CheckoutConfig        `yaml:"checkout"`
	DeliveryZones  []ZoneConfig          `yaml:"delivery_zones"`
	PaymentMethods []PaymentMethodConfig `yaml:"payment_methods"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
	// StaticDir holds a built storefront frontend. Empty serves an endpoint
	// index page at / instead.
	StaticDir string `yaml:"static_dir"`
}

type DatabaseConfig struct {
	// Path is the SQLite file. ":memory:" keeps the cart for the process lifetime only.
	Path string `yaml:"path"`
}

type CartConfig struct {
	UndoWindow   time.Duration `yaml:"undo_window"`
	UndoCapacity int           `yaml:"undo_capacity"`
}

type PromoConfig struct {
	Code    string `yaml:"code"`
	Percent int64  `yaml:"percent"`
}

type CheckoutConfig struct {
	OrdersPerMinute int `yaml:"orders_per_minute"`
}

type ZoneConfig struct {
	ID                      string `yaml:"id"`
	Name                    string `yaml:"name"`
	Price                   int64  `yaml:"price"`
	MinOrderForFreeDelivery int64  `yaml:"min_order_for_free_delivery"`
	EstimatedDuration       string `yaml:"estimated_duration"`
}

type PaymentMethodConfig struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Instant     bool   `yaml:"instant"`
}

// Default returns the stock configuration.
func Default() Config {
	cfg := Config{
		Server:   ServerConfig{Port: 8080},
		Database: DatabaseConfig{Path: "storefront.db"},
		Cart: CartConfig{
			UndoWindow:   cart.DefaultUndoWindow,
			UndoCapacity: cart.DefaultUndoCapacity,
		},
		Promo:    PromoConfig{Code: pricing.DefaultPromoCode, Percent: pricing.DefaultPromoPercent},
		Checkout: CheckoutConfig{OrdersPerMinute: 30},
	}
	for _, z := range pricing.DefaultZones() {
		cfg.DeliveryZones = append(cfg.DeliveryZones, ZoneConfig(z))
	}
	for _, m := range checkout.DefaultPaymentMethods() {
		cfg.PaymentMethods = append(cfg.PaymentMethods, PaymentMethodConfig(m))
	}
	return cfg
}

// Load reads path over the defaults. An empty path returns Default().
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	cfg.merge(file)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) merge(f Config) {
	if f.Server.Port != 0 {
		c.Server.Port = f.Server.Port
	}
	if f.Server.StaticDir != "" {
		c.Server.StaticDir = f.Server.StaticDir
	}
	if f.Database.Path != "" {
		c.Database.Path = f.Database.Path
	}
	if f.Cart.UndoWindow != 0 {
		c.Cart.UndoWindow = f.Cart.UndoWindow
	}
	if f.Cart.UndoCapacity != 0 {
		c.Cart.UndoCapacity = f.Cart.UndoCapacity
	}
	if f.Promo.Code != "" {
		c.Promo.Code = f.Promo.Code
	}
	if f.Promo.Percent != 0 {
		c.Promo.Percent = f.Promo.Percent
	}
	if f.Checkout.OrdersPerMinute != 0 {
		c.Checkout.OrdersPerMinute = f.Checkout.OrdersPerMinute
	}
	if f.DeliveryZones != nil {
		c.DeliveryZones = f.DeliveryZones
	}
	if f.PaymentMethods != nil {
		c.PaymentMethods = f.PaymentMethods
	}
}

// Validate checks the reference tables and limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, c.Server.Port)
	}
	if c.Cart.UndoWindow <= 0 {
		return fmt.Errorf("%w: cart.undo_window must be positive", ErrInvalidConfig)
	}
	if c.Cart.UndoCapacity <= 0 {
		return fmt.Errorf("%w: cart.undo_capacity must be positive", ErrInvalidConfig)
	}
	if c.Promo.Percent <= 0 || c.Promo.Percent > 100 {
		return fmt.Errorf("%w: promo.percent %d not in (0,100]", ErrInvalidConfig, c.Promo.Percent)
	}
	if c.Checkout.OrdersPerMinute <= 0 {
		return fmt.Errorf("%w: checkout.orders_per_minute must be positive", ErrInvalidConfig)
	}
	if len(c.DeliveryZones) == 0 {
		return fmt.Errorf("%w: at least one delivery zone is required", ErrInvalidConfig)
	}
	seen := map[string]bool{}
	for _, z := range c.DeliveryZones {
		if z.ID == "" {
			return fmt.Errorf("%w: delivery zone without id", ErrInvalidConfig)
		}
		if seen[z.ID] {
			return fmt.Errorf("%w: duplicate delivery zone %q", ErrInvalidConfig, z.ID)
		}
		seen[z.ID] = true
		if z.Price < 0 || z.MinOrderForFreeDelivery < 0 {
			return fmt.Errorf("%w: delivery zone %q has a negative amount", ErrInvalidConfig, z.ID)
		}
	}
	if len(c.PaymentMethods) == 0 {
		return fmt.Errorf("%w: at least one payment method is required", ErrInvalidConfig)
	}
	return nil
}

// Zones converts the zone list for pricing.
func (c Config) Zones() pricing.Zones {
	zs := make(pricing.Zones, 0, len(c.DeliveryZones))
	for _, z := range c.DeliveryZones {
		zs = append(zs, pricing.DeliveryZone(z))
	}
	return zs
}

// PromoCode returns the recognized promo code.
func (c Config) PromoCode() pricing.PromoCode {
	return pricing.PromoCode{Code: c.Promo.Code, Percent: c.Promo.Percent}
}

// Methods converts the payment method list for checkout.
func (c Config) Methods() []checkout.PaymentMethod {
	ms := make([]checkout.PaymentMethod, 0, len(c.PaymentMethods))
	for _, m := range c.PaymentMethods {
		ms = append(ms, checkout.PaymentMethod(m))
	}
	return ms
}

// LedgerOptions returns the undo settings for cart.NewLedger.
func (c Config) LedgerOptions() cart.Options {
	return cart.Options{UndoWindow: c.Cart.UndoWindow, UndoCapacity: c.Cart.UndoCapacity}
}
