package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// StructuredJSONConfig is the on-disk layout of the optional JSON config file.
type StructuredJSONConfig struct {
	App struct {
		TokenSignKey        string   `json:"token_sign_key"`
		TokenIssuer         string   `json:"token_issuer"`
		AccessTokenTTL      Duration `json:"access_token_ttl"`
		RefreshTokenTTL     Duration `json:"refresh_token_ttl"`
		ChallengeTTL        Duration `json:"challenge_ttl"`
		PendingTwoFactorTTL Duration `json:"pending_two_factor_ttl"`
		MaxCodeAttempts     int      `json:"max_code_attempts"`
		BcryptCost          int      `json:"bcrypt_cost"`
		MaxConcurrentHashes int      `json:"max_concurrent_hashes"`
		HashTimeout         Duration `json:"hash_timeout"`
		TOTPIssuer          string   `json:"totp_issuer"`
		LogLevel            string   `json:"log_level"`
		Version             string   `json:"version"`
	} `json:"app,omitempty"`

	Storage struct {
		DB struct {
			Driver string `json:"driver"`
			DSN    string `json:"dsn"`
		} `json:"db,omitempty"`

		Redis struct {
			Address  string `json:"address"`
			Password string `json:"password"`
			DB       int    `json:"db"`
		} `json:"redis,omitempty"`

		OperationTimeout Duration `json:"operation_timeout"`
		RetryBackoff     Duration `json:"retry_backoff"`
	} `json:"storage,omitempty"`

	Server struct {
		HTTPAddress     string   `json:"http_address"`
		GRPCAddress     string   `json:"grpc_address"`
		RequestTimeout  Duration `json:"request_timeout"`
		ShutdownTimeout Duration `json:"shutdown_timeout"`
	} `json:"server,omitempty"`

	Workers struct {
		JanitorInterval Duration `json:"janitor_interval"`
	} `json:"workers,omitempty"`
}

func parseJSON(jsonFilePath string) (*StructuredConfig, error) {
	jsonFile, err := os.Open(jsonFilePath)
	if err != nil {
		return nil, fmt.Errorf("error reading a json file: %w", err)
	}
	defer jsonFile.Close()

	var jsonCfg StructuredJSONConfig
	if err := json.NewDecoder(jsonFile).Decode(&jsonCfg); err != nil {
		return nil, fmt.Errorf("error decoding json configs: %w", err)
	}

	cfg := &StructuredConfig{
		App: App{
			TokenSignKey:        jsonCfg.App.TokenSignKey,
			TokenIssuer:         jsonCfg.App.TokenIssuer,
			AccessTokenTTL:      time.Duration(jsonCfg.App.AccessTokenTTL),
			RefreshTokenTTL:     time.Duration(jsonCfg.App.RefreshTokenTTL),
			ChallengeTTL:        time.Duration(jsonCfg.App.ChallengeTTL),
			PendingTwoFactorTTL: time.Duration(jsonCfg.App.PendingTwoFactorTTL),
			MaxCodeAttempts:     jsonCfg.App.MaxCodeAttempts,
			BcryptCost:          jsonCfg.App.BcryptCost,
			MaxConcurrentHashes: jsonCfg.App.MaxConcurrentHashes,
			HashTimeout:         time.Duration(jsonCfg.App.HashTimeout),
			TOTPIssuer:          jsonCfg.App.TOTPIssuer,
			LogLevel:            jsonCfg.App.LogLevel,
			Version:             jsonCfg.App.Version,
		},
		Storage: Storage{
			DB: DB{
				Driver: jsonCfg.Storage.DB.Driver,
				DSN:    jsonCfg.Storage.DB.DSN,
			},
			Redis: Redis{
				Address:  jsonCfg.Storage.Redis.Address,
				Password: jsonCfg.Storage.Redis.Password,
				DB:       jsonCfg.Storage.Redis.DB,
			},
			OperationTimeout: time.Duration(jsonCfg.Storage.OperationTimeout),
			RetryBackoff:     time.Duration(jsonCfg.Storage.RetryBackoff),
		},
		Server: Server{
			HTTPAddress:     jsonCfg.Server.HTTPAddress,
			GRPCAddress:     jsonCfg.Server.GRPCAddress,
			RequestTimeout:  time.Duration(jsonCfg.Server.RequestTimeout),
			ShutdownTimeout: time.Duration(jsonCfg.Server.ShutdownTimeout),
		},
		Workers: Workers{
			JanitorInterval: time.Duration(jsonCfg.Workers.JanitorInterval),
		},
	}

	return cfg, nil
}

// Duration is a wrapper around time.Duration that supports JSON
// unmarshaling from strings like "1h" or "30s" as well as raw nanoseconds.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		tmp, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		*d = Duration(tmp)
		return nil
	default:
		return fmt.Errorf("invalid duration: %s", string(b))
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}
