package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/jgoulah/gridmeter/pkg/models"
)

// Config holds the application configuration
type Config struct {
	HomeAssistant  HAConfig                                 `yaml:"home_assistant,omitempty"`
	MQTT           MQTTConfig                               `yaml:"mqtt,omitempty"`
	DaysToFetch    int                                      `yaml:"days_to_fetch,omitempty"`   // Global default (fallback: 90)
	DefaultMethod  models.ElectricityUsageMethod            `yaml:"default_method,omitempty"`  // Applied to imported rows without a method
	ServiceMethods map[string]models.ElectricityUsageMethod `yaml:"service_methods,omitempty"` // Per-service override of DefaultMethod
	Rates          map[string]float64                       `yaml:"rates,omitempty"`           // Cost per kWh by service
	NYSEGRate      float64                                  `yaml:"nyseg_rate,omitempty"`      // Deprecated: use rates.nyseg
	ConEdRate      float64                                  `yaml:"coned_rate,omitempty"`      // Deprecated: use rates.coned
}

// HAConfig holds Home Assistant HTTP API configuration
type HAConfig struct {
	Enabled        bool                                     `yaml:"enabled"`
	URL            string                                   `yaml:"url"`       // e.g., "http://yourdomain.local:5050"
	Token          string                                   `yaml:"token"`     // Long-lived access token
	EntityID       string                                   `yaml:"entity_id"` // e.g., "sensor.nyseg_energy_usage_direct"
	MethodEntities map[models.ElectricityUsageMethod]string `yaml:"method_entities,omitempty"`
}

// MQTTConfig holds MQTT broker configuration
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"` // host:port
	Username    string `yaml:"username,omitempty"`
	Password    string `yaml:"password,omitempty"`
	TopicPrefix string `yaml:"topic_prefix,omitempty"` // default "electric_meter"
	ClientID    string `yaml:"client_id,omitempty"`
	Format      string `yaml:"format,omitempty"` // "json" (default) or "cbor"
}

// Load reads the config file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// Return empty config if file doesn't exist
			return &Config{}, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config file: %w", err)
	}

	return &cfg, nil
}

// Save writes the config to file
func Save(configPath string, cfg *Config) error {
	// Ensure directory exists
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// DefaultConfigPath returns the default config file path (local directory)
func DefaultConfigPath() string {
	return "config.yaml"
}

// Validate checks settings that cannot be expressed in the YAML types alone
func (c *Config) Validate() error {
	switch c.MQTT.Format {
	case "", "json", "cbor":
	default:
		return fmt.Errorf("mqtt.format must be json or cbor, got %q", c.MQTT.Format)
	}
	if c.DaysToFetch < 0 {
		return fmt.Errorf("days_to_fetch must not be negative")
	}
	return nil
}

// GetDaysToFetch returns the number of days to fetch with a default of 90 (3 months)
func (c *Config) GetDaysToFetch() int {
	if c.DaysToFetch <= 0 {
		return 90 // Default to 3 months
	}
	return c.DaysToFetch
}

// GetMethod returns the usage method for rows from service that carry none,
// falling back to the global default and then to Consumption
func (c *Config) GetMethod(service string) models.ElectricityUsageMethod {
	if m, ok := c.ServiceMethods[service]; ok && m.IsValid() {
		return m
	}
	if c.DefaultMethod.IsValid() {
		return c.DefaultMethod
	}
	return models.Consumption
}

// GetRate returns the rate for the specified service, or 0 if not set
func (c *Config) GetRate(service string) float64 {
	if rate, ok := c.Rates[service]; ok {
		return rate
	}
	switch service {
	case "nyseg":
		return c.NYSEGRate
	case "coned":
		return c.ConEdRate
	default:
		return 0
	}
}

// EntityFor returns the Home Assistant entity that receives readings of method m
func (h HAConfig) EntityFor(m models.ElectricityUsageMethod) string {
	if entity, ok := h.MethodEntities[m]; ok && entity != "" {
		return entity
	}
	return h.EntityID
}

// Entities returns every distinct entity configured, default entity first
func (h HAConfig) Entities() []string {
	var entities []string
	seen := make(map[string]bool)
	add := func(e string) {
		if e != "" && !seen[e] {
			seen[e] = true
			entities = append(entities, e)
		}
	}
	add(h.EntityID)
	for _, m := range models.ElectricityUsageMethods() {
		add(h.MethodEntities[m])
	}
	return entities
}

// GetTopicPrefix returns the MQTT topic prefix, defaulting to "electric_meter"
func (m MQTTConfig) GetTopicPrefix() string {
	if m.TopicPrefix == "" {
		return "electric_meter"
	}
	return m.TopicPrefix
}
