// Package config loads the service configuration from the environment.
package config

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/hex"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Config holds every tunable of the service.
type Config struct {
	ListenAddr    string        `json:"listen_addr"`
	RedisURL      string        `json:"redis_url"` // empty selects in-memory stores
	SigningKeyHex string        `json:"-"`         // hex DER (SEC 1) P-256 private key
	ChallengeTTL  time.Duration `json:"challenge_ttl"`
	SessionTTL    time.Duration `json:"session_ttl"`
	StoreTimeout  time.Duration `json:"store_timeout"`
	StoreRetries  uint64        `json:"store_retries"`
	SweepInterval time.Duration `json:"sweep_interval"`
	LogLevel      string        `json:"log_level"`
	GinMode       string        `json:"gin_mode"`
}

// Default returns the configuration used when no variable is set.
func Default() Config {
	return Config{
		ListenAddr:    ":9000",
		ChallengeTTL:  5 * time.Minute,
		SessionTTL:    15 * time.Minute,
		StoreTimeout:  2 * time.Second,
		StoreRetries:  3,
		SweepInterval: time.Minute,
		LogLevel:      "info",
		GinMode:       "release",
	}
}

// FromEnv overlays environment variables on Default.
func FromEnv() (Config, error) {
	return fromLookup(os.LookupEnv)
}

func fromLookup(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()

	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}
	duration := func(key string, dst *time.Duration) error {
		v, ok := get(key)
		if !ok {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return errors.Wrapf(err, "invalid %s", key)
		}
		if d <= 0 {
			return errors.Errorf("invalid %s: must be positive", key)
		}
		*dst = d
		return nil
	}

	if v, ok := get("LISTEN_ADDR"); ok {
		cfg.ListenAddr = v
	}
	if v, ok := get("REDIS_URL"); ok {
		cfg.RedisURL = v
	}
	if v, ok := get("SIGNING_KEY"); ok {
		cfg.SigningKeyHex = v
	}
	if v, ok := get("LOG_LEVEL"); ok {
		cfg.LogLevel = v
	}
	if v, ok := get("GIN_MODE"); ok {
		switch v {
		case "debug", "release", "test":
			cfg.GinMode = v
		default:
			return Config{}, errors.Errorf("invalid GIN_MODE %q", v)
		}
	}
	if v, ok := get("STORE_RETRIES"); ok {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return Config{}, errors.Wrap(err, "invalid STORE_RETRIES")
		}
		cfg.StoreRetries = n
	}

	for key, dst := range map[string]*time.Duration{
		"CHALLENGE_TTL":  &cfg.ChallengeTTL,
		"SESSION_TTL":    &cfg.SessionTTL,
		"STORE_TIMEOUT":  &cfg.StoreTimeout,
		"SWEEP_INTERVAL": &cfg.SweepInterval,
	} {
		if err := duration(key, dst); err != nil {
			return Config{}, err
		}
	}

	return cfg, nil
}

// SigningKey parses the configured key or, when none is set, generates an
// ephemeral one. Sessions signed with an ephemeral key do not survive restarts.
func (c Config) SigningKey() (key *ecdsa.PrivateKey, ephemeral bool, err error) {
	if c.SigningKeyHex == "" {
		key, err = ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			return nil, false, errors.Wrap(err, "failed to generate signing key")
		}
		return key, true, nil
	}

	der, err := hex.DecodeString(strings.TrimPrefix(c.SigningKeyHex, "0x"))
	if err != nil {
		return nil, false, errors.Wrap(err, "invalid SIGNING_KEY hex")
	}
	key, err = x509.ParseECPrivateKey(der)
	if err != nil {
		return nil, false, errors.Wrap(err, "invalid SIGNING_KEY")
	}
	if key.Curve != elliptic.P256() {
		return nil, false, errors.New("SIGNING_KEY must be a P-256 key")
	}
	return key, false, nil
}
