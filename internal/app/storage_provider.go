package app

import (
	"errors"
	"fmt"

	"github.com/yungbote/gmr-archive-backend/internal/platform/gcp"
	"github.com/yungbote/gmr-archive-backend/internal/pkg/logger"
)

var newBucketService = gcp.NewBucketService

type StorageProviderBootstrapErrorCode string

const (
	StorageProviderBootstrapErrorInvalidMode         StorageProviderBootstrapErrorCode = "invalid_mode"
	StorageProviderBootstrapErrorMissingEmulatorHost StorageProviderBootstrapErrorCode = "missing_emulator_host"
	StorageProviderBootstrapErrorInvalidEmulatorHost StorageProviderBootstrapErrorCode = "invalid_emulator_host"
	StorageProviderBootstrapErrorConnectFailed       StorageProviderBootstrapErrorCode = "connect_failed"
)

type StorageProviderBootstrapError struct {
	Code         StorageProviderBootstrapErrorCode
	Mode         string
	EmulatorHost string
	Cause        error
}

func (e *StorageProviderBootstrapError) Error() string {
	return fmt.Sprintf(
		"media storage bootstrap failed (code=%s mode=%q emulator_host=%q): %v",
		e.Code,
		e.Mode,
		e.EmulatorHost,
		e.Cause,
	)
}

func (e *StorageProviderBootstrapError) Unwrap() error { return e.Cause }

// resolveBucketService builds the media bucket client. Every configured mode
// goes through gcp.ResolveObjectStorageConfig; failures come back as
// *StorageProviderBootstrapError.
func resolveBucketService(log *logger.Logger, cfg Config) (gcp.BucketService, error) {
	storageCfg, err := gcp.ResolveObjectStorageConfig(cfg.ObjectStorageMode, cfg.StorageEmulatorHost)
	if err == nil {
		log.Info(
			"Selecting media storage",
			"mode", storageCfg.Mode,
			"mode_source", storageCfg.Source,
			"emulator_host", storageCfg.EmulatorHost,
			"media_bucket", cfg.MediaBucket,
		)
		var bucket gcp.BucketService
		bucket, err = newBucketService(log, gcp.BucketConfig{
			Name:          cfg.MediaBucket,
			CDNDomain:     cfg.MediaCDNDomain,
			PublicBaseURL: cfg.ObjectStoragePublicBaseURL,
			Storage:       storageCfg,
		})
		if err == nil {
			return bucket, nil
		}
	}

	classified := classifyStorageProviderBootstrapError(storageCfg, err)
	log.Error(
		"Media storage bootstrap failed",
		"mode", storageCfg.Mode,
		"mode_source", storageCfg.Source,
		"emulator_host", storageCfg.EmulatorHost,
		"error_code", classified.Code,
		"error", classified,
	)
	return nil, classified
}

var storageConfigErrorCodes = map[gcp.StorageConfigErrorCode]StorageProviderBootstrapErrorCode{
	gcp.StorageConfigInvalidMode:         StorageProviderBootstrapErrorInvalidMode,
	gcp.StorageConfigMissingEmulatorHost: StorageProviderBootstrapErrorMissingEmulatorHost,
	gcp.StorageConfigInvalidEmulatorHost: StorageProviderBootstrapErrorInvalidEmulatorHost,
}

func classifyStorageProviderBootstrapError(storageCfg gcp.ObjectStorageConfig, err error) *StorageProviderBootstrapError {
	code := StorageProviderBootstrapErrorConnectFailed
	var cfgErr *gcp.StorageConfigError
	if errors.As(err, &cfgErr) {
		if mapped, ok := storageConfigErrorCodes[cfgErr.Code]; ok {
			code = mapped
		}
	}
	return &StorageProviderBootstrapError{
		Code:         code,
		Mode:         string(storageCfg.Mode),
		EmulatorHost: storageCfg.EmulatorHost,
		Cause:        err,
	}
}
