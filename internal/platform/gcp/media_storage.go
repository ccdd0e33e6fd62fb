package gcp

import (
	"fmt"
	"net/url"
	"strings"
)

// ObjectStorageMode selects where recording media and exports are stored.
type ObjectStorageMode string

const (
	ObjectStorageModeGCS         ObjectStorageMode = "gcs"
	ObjectStorageModeGCSEmulator ObjectStorageMode = "gcs_emulator"
)

func (m ObjectStorageMode) Valid() bool {
	return m == ObjectStorageModeGCS || m == ObjectStorageModeGCSEmulator
}

func (m ObjectStorageMode) IsEmulator() bool {
	return m == ObjectStorageModeGCSEmulator
}

// ModeSource records how the media storage mode was chosen.
type ModeSource string

const (
	ModeSourceConfigured   ModeSource = "configured"
	ModeSourceEmulatorHost ModeSource = "emulator_host"
	ModeSourceDefault      ModeSource = "default"
)

// ObjectStorageConfig is the resolved media storage target.
type ObjectStorageConfig struct {
	Mode         ObjectStorageMode
	EmulatorHost string
	Source       ModeSource
}

func (cfg ObjectStorageConfig) IsEmulatorMode() bool {
	return cfg.Mode.IsEmulator()
}

type StorageConfigErrorCode string

const (
	StorageConfigInvalidMode         StorageConfigErrorCode = "invalid_mode"
	StorageConfigMissingEmulatorHost StorageConfigErrorCode = "missing_emulator_host"
	StorageConfigInvalidEmulatorHost StorageConfigErrorCode = "invalid_emulator_host"
)

// StorageConfigError reports a media storage setting the archive cannot start
// with. Value holds the offending setting.
type StorageConfigError struct {
	Code  StorageConfigErrorCode
	Value string
	Cause error
}

func (e *StorageConfigError) Error() string {
	switch e.Code {
	case StorageConfigInvalidMode:
		return fmt.Sprintf("media storage: unknown OBJECT_STORAGE_MODE %q, want %q or %q",
			e.Value, ObjectStorageModeGCS, ObjectStorageModeGCSEmulator)
	case StorageConfigMissingEmulatorHost:
		return fmt.Sprintf("media storage: mode %q needs STORAGE_EMULATOR_HOST", ObjectStorageModeGCSEmulator)
	case StorageConfigInvalidEmulatorHost:
		return fmt.Sprintf("media storage: STORAGE_EMULATOR_HOST %q is not an absolute URL", e.Value)
	}
	return "media storage: invalid config"
}

func (e *StorageConfigError) Unwrap() error { return e.Cause }

// ResolveObjectStorageConfig turns the configured mode and emulator host into a
// validated media storage target. An unset mode picks the emulator when a host
// is given and GCS otherwise. The returned config is populated even on error so
// callers can log what was rejected.
func ResolveObjectStorageConfig(rawMode, emulatorHost string) (ObjectStorageConfig, error) {
	cfg := ObjectStorageConfig{
		Mode:         ObjectStorageMode(strings.ToLower(strings.TrimSpace(rawMode))),
		EmulatorHost: strings.TrimRight(strings.TrimSpace(emulatorHost), "/"),
		Source:       ModeSourceConfigured,
	}
	if cfg.Mode == "" {
		if cfg.EmulatorHost != "" {
			cfg.Mode, cfg.Source = ObjectStorageModeGCSEmulator, ModeSourceEmulatorHost
		} else {
			cfg.Mode, cfg.Source = ObjectStorageModeGCS, ModeSourceDefault
		}
	}
	return cfg, cfg.Validate()
}

func (cfg ObjectStorageConfig) Validate() error {
	if !cfg.Mode.Valid() {
		return &StorageConfigError{Code: StorageConfigInvalidMode, Value: string(cfg.Mode)}
	}
	if !cfg.Mode.IsEmulator() {
		return nil
	}
	if cfg.EmulatorHost == "" {
		return &StorageConfigError{Code: StorageConfigMissingEmulatorHost}
	}
	u, err := url.Parse(cfg.EmulatorHost)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return &StorageConfigError{Code: StorageConfigInvalidEmulatorHost, Value: cfg.EmulatorHost, Cause: err}
	}
	return nil
}
