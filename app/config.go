package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"minigram/common/logx"
	"minigram/core/api"
	"minigram/core/dispatch"
	"minigram/core/transport"
)

// EnvironPrefix marks environment variables overriding config values.
// Nesting levels are separated by a double underscore:
// MINIGRAM__TRANSPORT__READ_TIMEOUT=30s sets transport.read_timeout.
const EnvironPrefix = "MINIGRAM__"

type Config struct {
	Telegram   api.Config       `yaml:"telegram"`
	Polling    dispatch.Config  `yaml:"polling,omitempty"`
	Transport  transport.Config `yaml:"transport,omitempty"`
	Webhook    WebhookConfig    `yaml:"webhook,omitempty"`
	Logging    logx.Config      `yaml:"logging,omitempty"`
	Prometheus PrometheusConfig `yaml:"prometheus,omitempty"`
	Graphite   GraphiteConfig   `yaml:"graphite,omitempty"`
}

type WebhookConfig struct {
	// Listen enables push mode. Updates are polled when it is empty.
	Listen string `yaml:"listen,omitempty"`
	// Path defaults to /webhook.
	Path string `yaml:"path,omitempty"`
	// URL is registered with setWebhook on startup when set.
	URL         string `yaml:"url,omitempty"`
	Secret      string `yaml:"secret,omitempty"`
	DropPending bool   `yaml:"drop_pending,omitempty"`
}

type PrometheusConfig struct {
	// Listen is the address /metrics is served on. Disabled when empty.
	Listen string `yaml:"listen,omitempty"`
}

type GraphiteConfig struct {
	// Address of the carbon plaintext listener. Disabled when empty.
	Address string `yaml:"address,omitempty"`
	// Interval defaults to one minute.
	Interval time.Duration `yaml:"interval,omitempty"`
}

// Environ is the bootstrap environment read before any config file.
type Environ struct {
	Config []string `env:"MINIGRAM_CONFIG" envSeparator:","`
	Token  string   `env:"MINIGRAM_TOKEN"`
}

func ParseEnviron() (Environ, error) {
	var environ Environ
	if err := env.Parse(&environ); err != nil {
		return environ, errors.Wrap(err, "parse environment")
	}

	return environ, nil
}

// Load collects the config from the files listed in the environment
// and applies the environment overrides.
func Load(environ Environ) (*Config, error) {
	data, err := CollectConfig(EnvironPrefix, environ.Config...)
	if err != nil {
		return nil, err
	}

	config := new(Config)
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}

	if environ.Token != "" {
		config.Telegram.Token = environ.Token
	}

	if config.Telegram.Token == "" {
		return nil, errors.New("telegram token is not set")
	}

	if config.Graphite.Interval <= 0 {
		config.Graphite.Interval = time.Minute
	}

	if config.Webhook.Path == "" {
		config.Webhook.Path = "/webhook"
	}

	return config, nil
}

// CollectConfig merges YAML files in order, expanding ${VAR} references,
// then merges the prefixed environment on top and encodes the result.
func CollectConfig(environPrefix string, files ...string) ([]byte, error) {
	global := make(map[string]interface{})
	for _, file := range files {
		file = strings.TrimSpace(file)
		if file == "" {
			continue
		}

		data, err := os.ReadFile(file)
		if err != nil {
			return nil, errors.Wrapf(err, "read config %s", file)
		}

		config := make(map[string]interface{})
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &config); err != nil {
			return nil, errors.Wrapf(err, "read expanded config %s", file)
		}

		if global, err = merge(global, config); err != nil {
			return nil, errors.Wrapf(err, "merge config %s", file)
		}
	}

	global, err := merge(global, environ(environPrefix, os.Environ()))
	if err != nil {
		return nil, errors.Wrap(err, "merge environment")
	}

	data, err := yaml.Marshal(global)
	if err != nil {
		return nil, errors.Wrap(err, "encode global config")
	}

	return data, nil
}

func environ(prefix string, lines []string) map[string]interface{} {
	m := make(map[string]interface{})
	for _, line := range lines {
		if !strings.HasPrefix(line, prefix) {
			continue
		}

		key, value, ok := strings.Cut(line[len(prefix):], "=")
		if !ok {
			continue
		}

		keyTokens := strings.Split(key, "__")
		keyTokensLastIdx := len(keyTokens) - 1
		entry := m
		for i, keyToken := range keyTokens {
			if keyToken == "" {
				break
			}

			keyToken = strings.ToLower(keyToken)
			if i == keyTokensLastIdx {
				if ev, ok := entry[keyToken]; ok {
					if _, ok := ev.(map[string]interface{}); ok {
						logx.Get("config").Warnf("discarding env var %s due to type incompatibility", key)
						continue
					}
				}

				entry[keyToken] = scalar(value)
			} else {
				var mev map[string]interface{}
				if ev, ok := entry[keyToken]; ok {
					if mev, ok = ev.(map[string]interface{}); !ok {
						logx.Get("config").Warnf("overriding parent as object for env var %s", key)
						mev = make(map[string]interface{})
						entry[keyToken] = mev
					}
				} else {
					mev = make(map[string]interface{})
					entry[keyToken] = mev
				}

				entry = mev
			}
		}
	}

	return m
}

func scalar(value string) interface{} {
	if v, err := strconv.ParseInt(value, 10, 64); err == nil {
		return v
	} else if v, err := strconv.ParseFloat(value, 64); err == nil {
		return v
	} else if v, err := strconv.ParseBool(value); err == nil {
		return v
	}

	return value
}

func merge(a, b map[string]interface{}) (map[string]interface{}, error) {
	for k, v := range b {
		if av, ok := a[k]; !ok {
			a[k] = v
			continue
		} else if mav, ok := av.(map[string]interface{}); ok {
			if mv, ok := v.(map[string]interface{}); ok {
				merged, err := merge(mav, mv)
				if err != nil {
					return nil, errors.Wrap(err, k)
				}

				a[k] = merged
				continue
			}
		} else if _, ok := v.(map[string]interface{}); !ok {
			a[k] = v
			continue
		}

		return nil, errors.Errorf("configuration keys %s must have the same type", k)
	}

	return a, nil
}
