// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const minTokenSignKeyLength = 32

// validate checks that the final merged [StructuredConfig] satisfies all
// invariants before it is used at startup. Every violation is reported.
func (cfg *StructuredConfig) validate() error {
	var errs []error

	if len(cfg.App.TokenSignKey) < minTokenSignKeyLength {
		errs = append(errs, fmt.Errorf("%w: token sign key must be at least %d bytes", ErrInvalidAppConfigs, minTokenSignKeyLength))
	}
	if cfg.App.AccessTokenTTL <= 0 || cfg.App.RefreshTokenTTL <= 0 {
		errs = append(errs, fmt.Errorf("%w: token TTLs must be positive", ErrInvalidAppConfigs))
	}
	if cfg.App.AccessTokenTTL >= cfg.App.RefreshTokenTTL {
		errs = append(errs, fmt.Errorf("%w: access token TTL must be shorter than refresh token TTL", ErrInvalidAppConfigs))
	}
	if cfg.App.ChallengeTTL <= 0 || cfg.App.PendingTwoFactorTTL <= 0 {
		errs = append(errs, fmt.Errorf("%w: two-factor TTLs must be positive", ErrInvalidAppConfigs))
	}
	if cfg.App.MaxCodeAttempts <= 0 {
		errs = append(errs, fmt.Errorf("%w: max code attempts must be positive", ErrInvalidAppConfigs))
	}
	if cfg.App.BcryptCost < bcrypt.MinCost || cfg.App.BcryptCost > bcrypt.MaxCost {
		errs = append(errs, fmt.Errorf("%w: bcrypt cost must be in [%d, %d]", ErrInvalidAppConfigs, bcrypt.MinCost, bcrypt.MaxCost))
	}
	if cfg.App.MaxConcurrentHashes <= 0 || cfg.App.HashTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%w: hashing limits must be positive", ErrInvalidAppConfigs))
	}

	switch cfg.Storage.DB.Driver {
	case DriverPostgres, DriverSQLite:
		if cfg.Storage.DB.DSN == "" {
			errs = append(errs, fmt.Errorf("%w: driver %q requires a DSN", ErrInvalidStorageConfigs, cfg.Storage.DB.Driver))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("%w: unknown driver %q", ErrInvalidStorageConfigs, cfg.Storage.DB.Driver))
	}
	if cfg.Storage.OperationTimeout <= 0 || cfg.Storage.RetryBackoff <= 0 {
		errs = append(errs, fmt.Errorf("%w: operation timeout and retry backoff must be positive", ErrInvalidStorageConfigs))
	}

	if cfg.Server.HTTPAddress == "" && cfg.Server.GRPCAddress == "" {
		errs = append(errs, fmt.Errorf("%w: at least one of HTTP or gRPC address is required", ErrInvalidServerConfigs))
	}

	return errors.Join(errs...)
}
