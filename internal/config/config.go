package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ignite/listbridge/internal/rules"
)

// Config holds all configuration for the service. The Set/Condition blocks
// are authored by the store owner and are read-only input at runtime.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Redis     RedisConfig     `yaml:"redis"`
	MailChimp MailChimpConfig `yaml:"mailchimp"`
	Checkout  CheckoutConfig  `yaml:"checkout"`
	Widget    FormConfig      `yaml:"widget"`
	Shortcode FormConfig      `yaml:"shortcode"`
	Ecommerce EcommerceConfig `yaml:"ecommerce"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// BaseURL is this service's own externally reachable URL, used for
	// the deferred loopback refresh request.
	BaseURL string `yaml:"base_url"`

	AllowedOrigins []string `yaml:"allowed_origins"`
}

// PostgresConfig holds the database connection settings.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// RedisConfig holds the cache connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// MailChimpConfig holds provider credentials and global toggles.
type MailChimpConfig struct {
	APIKey  string `yaml:"api_key"`
	Enabled bool   `yaml:"enabled"`

	// AlreadySubscribedAction selects what a subscribe call does for an
	// address already on the list: "ignore" posts and reports the
	// member-exists outcome, "update" puts and overwrites.
	AlreadySubscribedAction string `yaml:"already_subscribed_action"`
}

// SubscribeOn selects the order lifecycle moment a subscription fires at.
type SubscribeOn string

const (
	SubscribeOnCheckout  SubscribeOn = "checkout"
	SubscribeOnCompleted SubscribeOn = "completed"
	SubscribeOnPayment   SubscribeOn = "payment"
	SubscribeDisabled    SubscribeOn = "disabled"
)

// CheckoutConfig holds the two checkout subscription channels.
type CheckoutConfig struct {
	Auto     AutoConfig     `yaml:"auto"`
	Checkbox CheckboxConfig `yaml:"checkbox"`
}

// AutoConfig configures automatic (no consent checkbox) subscription.
type AutoConfig struct {
	SubscribeOn      SubscribeOn `yaml:"subscribe_on"`
	DoNotResubscribe bool        `yaml:"do_not_resubscribe"`
	Sets             []Set       `yaml:"sets"`
}

// CheckboxConfig configures checkbox-driven subscription.
type CheckboxConfig struct {
	SubscribeOn    SubscribeOn `yaml:"subscribe_on"`
	DefaultChecked bool        `yaml:"default_checked"`
	Sets           []Set       `yaml:"sets"`
}

// Set binds a mailing list plus groups and field mappings to a condition.
type Set struct {
	List      string          `yaml:"list"`
	Groups    []string        `yaml:"groups"` // "id:name" pairs
	Fields    []FieldMapping  `yaml:"fields"`
	Condition ConditionConfig `yaml:"condition"`
}

// FieldMapping maps a data source to a target merge-field tag. Name
// identifies the source: an "order_*" property, a "user_*" meta key,
// "custom_order_field"/"custom_user_field" (key in Value), or
// "static_value" (literal in Value).
type FieldMapping struct {
	Name  string `yaml:"name"`
	Tag   string `yaml:"tag"`
	Value string `yaml:"value"`
}

// ConditionConfig is the serialized form of a subscription condition.
type ConditionConfig struct {
	Key      string   `yaml:"key"`
	Operator string   `yaml:"operator"`
	Values   []string `yaml:"values"`
	Value    string   `yaml:"value"`
	Field    string   `yaml:"field"`
}

// Build translates the serialized condition into its typed form.
func (c ConditionConfig) Build() (rules.Condition, error) {
	switch c.Key {
	case "", "always":
		return rules.Always{}, nil
	case "products":
		ids, err := parseIDs(c.Values)
		if err != nil {
			return nil, fmt.Errorf("products condition: %w", err)
		}
		return rules.Products{Operator: rules.SetOperator(c.Operator), IDs: ids}, nil
	case "variations":
		ids, err := parseIDs(c.Values)
		if err != nil {
			return nil, fmt.Errorf("variations condition: %w", err)
		}
		return rules.Variations{Operator: rules.SetOperator(c.Operator), IDs: ids}, nil
	case "categories":
		ids, err := parseIDs(c.Values)
		if err != nil {
			return nil, fmt.Errorf("categories condition: %w", err)
		}
		return rules.Categories{Operator: rules.SetOperator(c.Operator), IDs: ids}, nil
	case "amount":
		threshold, err := strconv.ParseFloat(c.Value, 64)
		if err != nil {
			return nil, fmt.Errorf("amount condition: invalid threshold %q", c.Value)
		}
		return rules.Amount{Operator: rules.CompareOperator(c.Operator), Threshold: threshold}, nil
	case "roles":
		return rules.Roles{Operator: rules.MatchOperator(c.Operator), Names: c.Values}, nil
	case "custom":
		return rules.CustomField{Key: c.Field, Operator: c.Operator, Value: c.Value}, nil
	default:
		return nil, fmt.Errorf("unknown condition key %q", c.Key)
	}
}

func parseIDs(values []string) ([]int64, error) {
	ids := make([]int64, 0, len(values))
	for _, v := range values {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q", v)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// FormConfig configures a standalone subscription form (widget or
// shortcode).
type FormConfig struct {
	Enabled bool           `yaml:"enabled"`
	List    string         `yaml:"list"`
	Groups  []string       `yaml:"groups"`
	Fields  []FieldMapping `yaml:"fields"`
	Labels  Labels         `yaml:"labels"`
}

// Labels are the user-facing response messages of a subscription form.
type Labels struct {
	Success           string `yaml:"success"`
	AlreadySubscribed string `yaml:"already_subscribed"`
	Error             string `yaml:"error"`
}

// EcommerceConfig configures the order/product data push.
type EcommerceConfig struct {
	Enabled           bool   `yaml:"enabled"`
	ListID            string `yaml:"list_id"`
	StoreID           string `yaml:"store_id"`
	StoreName         string `yaml:"store_name"`
	CurrencyCode      string `yaml:"currency_code"`
	SendOrderData     bool   `yaml:"send_order_data"`
	UpdateOrderStatus bool   `yaml:"update_order_status"`
	DeleteOrderData   bool   `yaml:"delete_order_data"`
	OptInAll          bool   `yaml:"opt_in_all"`
}

// Load reads configuration from a yaml file, applying .env and environment
// overrides for deployment-specific values.
func Load(path string) (*Config, error) {
	// Missing .env is fine; environment may be set directly.
	_ = godotenv.Load()

	cfg := defaultConfig()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8080},
		Redis:  RedisConfig{Addr: "localhost:6379"},
		MailChimp: MailChimpConfig{
			AlreadySubscribedAction: "ignore",
		},
		Checkout: CheckoutConfig{
			Auto:     AutoConfig{SubscribeOn: SubscribeDisabled},
			Checkbox: CheckboxConfig{SubscribeOn: SubscribeDisabled},
		},
		Widget:    FormConfig{Labels: defaultLabels()},
		Shortcode: FormConfig{Labels: defaultLabels()},
	}
}

func defaultLabels() Labels {
	return Labels{
		Success:           "Thank you, you have been added to our mailing list.",
		AlreadySubscribed: "You are already subscribed to our mailing list.",
		Error:             "An error occurred, please try again later.",
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MAILCHIMP_API_KEY"); v != "" {
		cfg.MailChimp.APIKey = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Postgres.DSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("BASE_URL"); v != "" {
		cfg.Server.BaseURL = v
	}
}

// Validate reports configuration errors that should stop startup. Storefront
// behavior degrades soft at runtime; a broken static configuration should
// not.
func (c *Config) Validate() error {
	if c.MailChimp.Enabled && c.MailChimp.APIKey == "" {
		return fmt.Errorf("mailchimp.api_key is required when the integration is enabled")
	}
	if action := c.MailChimp.AlreadySubscribedAction; action != "ignore" && action != "update" {
		return fmt.Errorf("mailchimp.already_subscribed_action must be \"ignore\" or \"update\", got %q", action)
	}
	if c.Postgres.DSN == "" {
		return fmt.Errorf("postgres.dsn is required")
	}

	for _, form := range []struct {
		name string
		cfg  FormConfig
	}{{"widget", c.Widget}, {"shortcode", c.Shortcode}} {
		if form.cfg.Enabled && form.cfg.List == "" {
			return fmt.Errorf("%s.list is required when the %s form is enabled", form.name, form.name)
		}
	}

	if c.Ecommerce.Enabled && c.Ecommerce.ListID == "" {
		return fmt.Errorf("ecommerce.list_id is required when the e-commerce push is enabled")
	}

	for name, sets := range map[string][]Set{
		"checkout.auto":     c.Checkout.Auto.Sets,
		"checkout.checkbox": c.Checkout.Checkbox.Sets,
	} {
		for i, set := range sets {
			if set.List == "" {
				return fmt.Errorf("%s.sets[%d]: list is required", name, i)
			}
			cond, err := set.Condition.Build()
			if err != nil {
				return fmt.Errorf("%s.sets[%d]: %w", name, i, err)
			}
			if err := rules.Validate(cond); err != nil {
				return fmt.Errorf("%s.sets[%d]: %w", name, i, err)
			}
		}
	}

	return nil
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
