package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

const (
	numChannels    = 36
	maxDutyCycle   = 0xFFFF
	defaultAddress = 0x3C
)

type Config struct {
	I2C     I2CConfig     `yaml:"i2c"`
	Driver  DriverConfig  `yaml:"driver"`
	SDB     SDBConfig     `yaml:"sdb"`
	Logging LoggingConfig `yaml:"logging"`
	HTTP    HTTPConfig    `yaml:"http"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	Store   StoreConfig   `yaml:"store"`
	MDNS    MDNSConfig    `yaml:"mdns"`
	Console ConsoleConfig `yaml:"console"`
}

type I2CConfig struct {
	Bus     string `yaml:"bus"`
	Address int    `yaml:"address"`
}

type DriverConfig struct {
	// FrequencyHz is applied at startup when non-zero (3000 or 22000).
	FrequencyHz  int           `yaml:"frequency_hz"`
	RestoreState bool          `yaml:"restore_state"`
	Initial      []ChannelDuty `yaml:"initial"`
}

type ChannelDuty struct {
	Channel int `yaml:"channel"`
	Duty    int `yaml:"duty"`
}

type SDBConfig struct {
	Enable bool   `yaml:"enable"`
	Chip   string `yaml:"chip"`
	Line   string `yaml:"line"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

type HTTPConfig struct {
	Enable bool   `yaml:"enable"`
	Listen string `yaml:"listen"`
	// WSPingInterval controls websocket keepalive pings.
	WSPingInterval time.Duration `yaml:"ws_ping_interval"`
}

type MQTTConfig struct {
	Enable      bool   `yaml:"enable"`
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         int    `yaml:"qos"`
}

type StoreConfig struct {
	Enable bool   `yaml:"enable"`
	Path   string `yaml:"path"`
}

type MDNSConfig struct {
	Enable    bool   `yaml:"enable"`
	Instance  string `yaml:"instance"`
	Service   string `yaml:"service"`
	Interface string `yaml:"interface"`
}

type ConsoleConfig struct {
	Enable bool `yaml:"enable"`
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(b)
}

// Parse decodes YAML, applies defaults and validates.
func Parse(b []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}

	cfg.I2C.Bus = strings.TrimSpace(cfg.I2C.Bus)
	if cfg.I2C.Bus == "" {
		return Config{}, fmt.Errorf("i2c.bus is required")
	}
	if cfg.I2C.Address == 0 {
		cfg.I2C.Address = defaultAddress
	}
	if cfg.I2C.Address < 0x01 || cfg.I2C.Address > 0x7F {
		return Config{}, fmt.Errorf("i2c.address must be in 0x01..0x7F")
	}

	switch cfg.Driver.FrequencyHz {
	case 0, 3000, 22000:
	default:
		return Config{}, fmt.Errorf("driver.frequency_hz must be 3000 or 22000")
	}
	for i, cd := range cfg.Driver.Initial {
		if cd.Channel < 0 || cd.Channel >= numChannels {
			return Config{}, fmt.Errorf("driver.initial[%d].channel out of range", i)
		}
		if cd.Duty < 0 || cd.Duty > maxDutyCycle {
			return Config{}, fmt.Errorf("driver.initial[%d].duty out of range", i)
		}
	}

	if cfg.SDB.Enable {
		if strings.TrimSpace(cfg.SDB.Line) == "" {
			return Config{}, fmt.Errorf("sdb.line is required when sdb.enable is true")
		}
		if cfg.SDB.Chip == "" {
			cfg.SDB.Chip = "/dev/gpiochip0"
		}
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stderr"
	}

	if cfg.HTTP.Enable && strings.TrimSpace(cfg.HTTP.Listen) == "" {
		return Config{}, fmt.Errorf("http.listen is required when http.enable is true")
	}
	if cfg.HTTP.WSPingInterval <= 0 {
		cfg.HTTP.WSPingInterval = 30 * time.Second
	}

	if cfg.MQTT.Enable && strings.TrimSpace(cfg.MQTT.Broker) == "" {
		return Config{}, fmt.Errorf("mqtt.broker is required when mqtt.enable is true")
	}
	if cfg.MQTT.QoS < 0 || cfg.MQTT.QoS > 2 {
		return Config{}, fmt.Errorf("mqtt.qos must be 0, 1 or 2")
	}
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = "is31ledd"
	}
	cfg.MQTT.TopicPrefix = strings.TrimRight(cfg.MQTT.TopicPrefix, "/")
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "is31ledd-" + uuid.NewString()
	}

	if cfg.Store.Enable && strings.TrimSpace(cfg.Store.Path) == "" {
		return Config{}, fmt.Errorf("store.path is required when store.enable is true")
	}
	if cfg.Driver.RestoreState && !cfg.Store.Enable {
		return Config{}, fmt.Errorf("driver.restore_state requires store.enable")
	}

	if cfg.MDNS.Instance == "" {
		cfg.MDNS.Instance = "is31ledd"
	}
	if cfg.MDNS.Service == "" {
		cfg.MDNS.Service = "_is31ledd._tcp"
	}
	if cfg.MDNS.Enable && !cfg.HTTP.Enable {
		return Config{}, fmt.Errorf("mdns.enable requires http.enable")
	}

	return cfg, nil
}
