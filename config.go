package authkit

import (
	"errors"
	"time"
)

// Config is the full engine configuration.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	JWT         JWTConfig
	Session     SessionConfig
	Lockout     LockoutConfig
	TOTP        TOTPConfig
	BackupCodes BackupCodesConfig
	Password    PasswordConfig
	Audit       AuditConfig
	Metrics     MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures token issuance. RefreshTTL bounds the whole session
// lifetime; AccessTTL bounds each stateless access window.
type JWTConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod string // "ed25519" (default), "hs256" optional
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	KeyID         string
	VerifyKeys    map[string][]byte
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig configures the session registry.
type SessionConfig struct {
	RedisPrefix string
	// MaxPerPrincipal caps live sessions per principal. 0 = unlimited.
	MaxPerPrincipal int
}

/*
====================================
LOCKOUT CONFIG
====================================
*/

// LockoutConfig configures brute-force lockout. The counter resets only on
// a fully verified authentication (password plus MFA when enrolled).
type LockoutConfig struct {
	Enabled      bool
	Threshold    int
	Window       time.Duration
	LockDuration time.Duration // 0 = manual unlock only
}

/*
====================================
TOTP CONFIG
====================================
*/

// TOTPConfig configures the time-based second factor.
type TOTPConfig struct {
	Enabled   bool
	Issuer    string
	Digits    int
	Period    int
	Skew      int
	Algorithm string // "SHA1" (default), "SHA256", "SHA512"
	// EnforceReplayProtection rejects a time-step counter at or below the
	// last accepted one.
	EnforceReplayProtection bool
	ChallengeTTL            time.Duration
	MaxChallengeAttempts    int
}

// BackupCodesConfig configures recovery codes generated at MFA enrollment.
type BackupCodesConfig struct {
	Count int
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig configures Argon2id costs and password policy.
type PasswordConfig struct {
	Memory         uint32 // in KB
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	MinLength      int
	UpgradeOnLogin bool
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig configures async audit event dispatch.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull sheds events instead of blocking producers when the
	// buffer is full. Dropped counts are observable on the dispatcher.
	DropIfFull bool
}

// MetricsConfig configures in-process counters and latency histograms.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns a production-leaning baseline. Callers supply keys
// and may override any policy knob before Build.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
			SigningMethod: "ed25519",
			Leeway:        30 * time.Second,
		},
		Session: SessionConfig{
			RedisPrefix:     "aks",
			MaxPerPrincipal: 10,
		},
		Lockout: LockoutConfig{
			Enabled:      true,
			Threshold:    5,
			Window:       15 * time.Minute,
			LockDuration: 30 * time.Minute,
		},
		TOTP: TOTPConfig{
			Enabled:                 true,
			Issuer:                  "authkit",
			Digits:                  6,
			Period:                  30,
			Skew:                    1,
			Algorithm:               "SHA1",
			EnforceReplayProtection: true,
			ChallengeTTL:            5 * time.Minute,
			MaxChallengeAttempts:    5,
		},
		BackupCodes: BackupCodesConfig{
			Count: 10,
		},
		Password: PasswordConfig{
			Memory:         64 * 1024,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			MinLength:      10,
			UpgradeOnLogin: true,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
	}
}

func validateConfig(cfg *Config) error {
	if cfg.JWT.AccessTTL <= 0 {
		return errors.New("config: jwt access TTL must be positive")
	}
	if cfg.JWT.RefreshTTL <= cfg.JWT.AccessTTL {
		return errors.New("config: refresh TTL must exceed access TTL")
	}
	if cfg.JWT.SigningMethod == "" {
		cfg.JWT.SigningMethod = "ed25519"
	}

	if cfg.Session.RedisPrefix == "" {
		cfg.Session.RedisPrefix = "aks"
	}
	if cfg.Session.MaxPerPrincipal < 0 {
		return errors.New("config: session cap cannot be negative")
	}

	if cfg.Lockout.Enabled {
		if cfg.Lockout.Threshold < 1 {
			return errors.New("config: lockout threshold must be >= 1")
		}
		if cfg.Lockout.Window <= 0 {
			cfg.Lockout.Window = 15 * time.Minute
		}
		if cfg.Lockout.LockDuration < 0 {
			return errors.New("config: lock duration cannot be negative")
		}
	}

	if cfg.TOTP.Enabled {
		if cfg.TOTP.Digits < 6 || cfg.TOTP.Digits > 8 {
			return errors.New("config: totp digits must be 6-8")
		}
		if cfg.TOTP.Period < 15 || cfg.TOTP.Period > 120 {
			return errors.New("config: totp period must be 15-120 seconds")
		}
		if cfg.TOTP.Skew < 0 || cfg.TOTP.Skew > 2 {
			return errors.New("config: totp skew must be 0-2 steps")
		}
		if cfg.TOTP.Issuer == "" {
			return errors.New("config: totp issuer required")
		}
		if cfg.TOTP.ChallengeTTL <= 0 {
			cfg.TOTP.ChallengeTTL = 5 * time.Minute
		}
		if cfg.TOTP.MaxChallengeAttempts <= 0 {
			cfg.TOTP.MaxChallengeAttempts = 5
		}
	}

	if cfg.BackupCodes.Count < 0 || cfg.BackupCodes.Count > 64 {
		return errors.New("config: backup code count must be 0-64")
	}
	if cfg.BackupCodes.Count == 0 {
		cfg.BackupCodes.Count = 10
	}

	if cfg.Password.MinLength <= 0 {
		cfg.Password.MinLength = 10
	}

	if cfg.Audit.Enabled && cfg.Audit.BufferSize <= 0 {
		cfg.Audit.BufferSize = 1024
	}

	return nil
}

// cloneConfig deep-copies the byte slices and maps so a caller mutating its
// Config after Build cannot reach into the engine.
func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	if cfg.JWT.VerifyKeys != nil {
		out.JWT.VerifyKeys = make(map[string][]byte, len(cfg.JWT.VerifyKeys))
		for kid, key := range cfg.JWT.VerifyKeys {
			out.JWT.VerifyKeys[kid] = cloneBytes(key)
		}
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
