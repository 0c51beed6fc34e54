package config

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Driver names accepted by STORAGE_DB_DRIVER.
const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite3"
	DriverMemory   = "memory"
)

func defaultConfig() *StructuredConfig {
	return &StructuredConfig{
		App: App{
			TokenIssuer:         "go-todo-auth",
			AccessTokenTTL:      15 * time.Minute,
			RefreshTokenTTL:     7 * 24 * time.Hour,
			ChallengeTTL:        5 * time.Minute,
			PendingTwoFactorTTL: 10 * time.Minute,
			MaxCodeAttempts:     5,
			BcryptCost:          bcrypt.DefaultCost,
			MaxConcurrentHashes: 8,
			HashTimeout:         5 * time.Second,
			TOTPIssuer:          "Todo App",
			LogLevel:            "info",
			Version:             "dev",
		},
		Storage: Storage{
			DB: DB{
				Driver: DriverMemory,
			},
			OperationTimeout: 2 * time.Second,
			RetryBackoff:     50 * time.Millisecond,
		},
		Server: Server{
			RequestTimeout:  30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Workers: Workers{
			JanitorInterval: time.Minute,
		},
	}
}
