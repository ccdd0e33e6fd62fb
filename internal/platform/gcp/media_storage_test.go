package gcp

import (
	"errors"
	"testing"
)

func TestResolveObjectStorageConfig(t *testing.T) {
	cases := []struct {
		name     string
		mode     string
		host     string
		wantMode ObjectStorageMode
		wantSrc  ModeSource
		wantHost string
		wantErr  StorageConfigErrorCode
	}{
		{name: "unset defaults to gcs", wantMode: ObjectStorageModeGCS, wantSrc: ModeSourceDefault},
		{name: "unset with emulator host", host: "http://fake-gcs:4443/", wantMode: ObjectStorageModeGCSEmulator, wantSrc: ModeSourceEmulatorHost, wantHost: "http://fake-gcs:4443"},
		{name: "explicit gcs ignores emulator host", mode: "gcs", host: "http://fake-gcs:4443", wantMode: ObjectStorageModeGCS, wantSrc: ModeSourceConfigured, wantHost: "http://fake-gcs:4443"},
		{name: "explicit emulator", mode: " GCS_Emulator ", host: "http://localhost:4443", wantMode: ObjectStorageModeGCSEmulator, wantSrc: ModeSourceConfigured, wantHost: "http://localhost:4443"},
		{name: "unknown mode", mode: "s3", wantMode: "s3", wantSrc: ModeSourceConfigured, wantErr: StorageConfigInvalidMode},
		{name: "emulator without host", mode: "gcs_emulator", wantMode: ObjectStorageModeGCSEmulator, wantSrc: ModeSourceConfigured, wantErr: StorageConfigMissingEmulatorHost},
		{name: "emulator host without scheme", mode: "gcs_emulator", host: "fake-gcs:4443", wantMode: ObjectStorageModeGCSEmulator, wantSrc: ModeSourceConfigured, wantHost: "fake-gcs:4443", wantErr: StorageConfigInvalidEmulatorHost},
		{name: "inferred emulator with bad host", host: "not-a-url", wantMode: ObjectStorageModeGCSEmulator, wantSrc: ModeSourceEmulatorHost, wantHost: "not-a-url", wantErr: StorageConfigInvalidEmulatorHost},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := ResolveObjectStorageConfig(tc.mode, tc.host)
			if cfg.Mode != tc.wantMode || cfg.Source != tc.wantSrc || cfg.EmulatorHost != tc.wantHost {
				t.Fatalf("config: want mode=%q source=%q host=%q got %+v", tc.wantMode, tc.wantSrc, tc.wantHost, cfg)
			}
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var cfgErr *StorageConfigError
			if !errors.As(err, &cfgErr) || cfgErr.Code != tc.wantErr {
				t.Fatalf("error: want code=%q got %v", tc.wantErr, err)
			}
		})
	}
}

func TestObjectStorageModeEmulatorFlag(t *testing.T) {
	if ObjectStorageModeGCS.IsEmulator() || !ObjectStorageModeGCSEmulator.IsEmulator() {
		t.Fatalf("only gcs_emulator should report emulator mode")
	}
	if ObjectStorageMode("").Valid() {
		t.Fatalf("empty mode must not validate on its own")
	}
}
