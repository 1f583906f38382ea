package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables
const (
	EnvRPCURL     = "RPC_URL"
	EnvPrivateKey = "PRIVATE_KEY"
	EnvGasBase    = "GAS_BASE" // gas price in wei for the one-shot claim
	EnvGasLimit   = "GAS_LIMIT"
	EnvLineToken  = "LINE_NOTI_TOKEN"
	EnvClaim      = "CLAIM" // "true" runs a single claim and exits
)

// LoadEnv loads environment variables from .env files. A missing default
// .env is not an error.
func LoadEnv(filenames ...string) error {
	err := godotenv.Load(filenames...)
	if err != nil && len(filenames) == 0 && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// GetEnvWithDefault gets an environment variable with a default value
func GetEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// GetRequiredEnv gets an environment variable that must be set
func GetRequiredEnv(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("environment variable %s is not set", key)
	}
	return value, nil
}

// ApplyEnv overrides file settings with the environment
func (c *Config) ApplyEnv() error {
	c.Network.RPCEndpoint = GetEnvWithDefault(EnvRPCURL, c.Network.RPCEndpoint)
	c.PrivateKey = strings.TrimPrefix(GetEnvWithDefault(EnvPrivateKey, c.PrivateKey), "0x")
	c.Gas.ClaimGasPrice = GetEnvWithDefault(EnvGasBase, c.Gas.ClaimGasPrice)
	c.Notify.LineToken = GetEnvWithDefault(EnvLineToken, c.Notify.LineToken)

	if v := os.Getenv(EnvGasLimit); v != "" {
		limit, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvGasLimit, err)
		}
		c.Gas.GasLimit = limit
	}

	if v := os.Getenv(EnvClaim); v != "" {
		claim, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvClaim, err)
		}
		c.ClaimOnly = claim
	}

	return nil
}
