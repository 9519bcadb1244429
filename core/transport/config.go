package transport

import (
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	StrategyAuto     = "auto"
	StrategyFastHTTP = "fasthttp"
	StrategyResty    = "resty"
	StrategyRaw      = "raw"

	// EnvStrategy forces a strategy when the configured one is auto.
	EnvStrategy = "MINIGRAM_TRANSPORT"
	// EnvDisable is a comma-separated list of strategies auto selection must skip.
	EnvDisable = "MINIGRAM_TRANSPORT_DISABLE"

	DefaultReadTimeout = 180 * time.Second
	DefaultDialTimeout = 10 * time.Second
)

// Strategies lists the available strategies in auto selection order.
var Strategies = []string{StrategyFastHTTP, StrategyResty, StrategyRaw}

type Config struct {
	Strategy    string        `yaml:"strategy,omitempty"`
	ReadTimeout time.Duration `yaml:"read_timeout,omitempty"`
	DialTimeout time.Duration `yaml:"dial_timeout,omitempty"`
	// Proxy is an optional proxy URL: socks5://, http:// or https://.
	Proxy string `yaml:"proxy,omitempty"`
	// InsecureSkipVerify disables TLS certificate verification.
	// It exists for broken middleboxes and is off by default.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify,omitempty"`
}

func (c Config) withDefaults() Config {
	if c.Strategy == "" {
		c.Strategy = StrategyAuto
	}

	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultReadTimeout
	}

	if c.DialTimeout <= 0 {
		c.DialTimeout = DefaultDialTimeout
	}

	return c
}

func (c Config) proxyURL() (*url.URL, error) {
	if c.Proxy == "" {
		return nil, nil
	}

	u, err := url.Parse(c.Proxy)
	if err != nil {
		return nil, errors.Wrap(err, "parse proxy url")
	}

	return u, nil
}

// Select resolves the configured strategy to a concrete one.
func Select(strategy string, getenv func(string) string) (string, error) {
	if strategy == "" {
		strategy = StrategyAuto
	}

	if strategy != StrategyAuto {
		if !known(strategy) {
			return "", errors.Errorf("unknown transport strategy: %s", strategy)
		}

		return strategy, nil
	}

	if forced := strings.TrimSpace(getenv(EnvStrategy)); forced != "" && forced != StrategyAuto {
		if !known(forced) {
			return "", errors.Errorf("unknown transport strategy in %s: %s", EnvStrategy, forced)
		}

		return forced, nil
	}

	disabled := make(map[string]bool)
	for _, name := range strings.Split(getenv(EnvDisable), ",") {
		disabled[strings.TrimSpace(name)] = true
	}

	for _, name := range Strategies {
		if !disabled[name] {
			return name, nil
		}
	}

	return "", errors.New("all transport strategies are disabled")
}

func known(strategy string) bool {
	for _, name := range Strategies {
		if name == strategy {
			return true
		}
	}

	return false
}

// New selects a strategy and constructs it.
func New(config Config) (Transport, error) {
	config = config.withDefaults()
	strategy, err := Select(config.Strategy, os.Getenv)
	if err != nil {
		return nil, err
	}

	var transport Transport
	switch strategy {
	case StrategyFastHTTP:
		transport, err = NewFastHTTP(config)
	case StrategyResty:
		transport, err = NewResty(config)
	default:
		transport, err = NewRaw(config)
	}

	if err != nil {
		return nil, errors.Wrapf(err, "create %s transport", strategy)
	}

	return WithLogging(transport), nil
}
