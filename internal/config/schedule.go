package config

import (
	"os"
	"strconv"
)

const (
	lowStockThresholdEnv    = "LOW_STOCK_THRESHOLD"
	lowStockGraceMinutesEnv = "LOW_STOCK_GRACE_MINUTES"
	expiryOffsetMinutesEnv  = "EXPIRY_OFFSET_MINUTES"
	surveyCadenceDaysEnv    = "SURVEY_CADENCE_DAYS"
	resyncCronSpecEnv       = "RESYNC_CRON_SPEC"

	defaultLowStockThreshold    = 3
	defaultLowStockGraceMinutes = 5
	defaultExpiryOffsetMinutes  = 2
	defaultSurveyCadenceDays    = 1
	defaultResyncCronSpec       = "0 3 * * *"
)

type ScheduleConfig struct {
	LowStockThreshold    int
	LowStockGraceMinutes int
	ExpiryOffsetMinutes  int
	SurveyCadenceDays    int
	ResyncCronSpec       string
}

func LoadScheduleConfig() *ScheduleConfig {
	threshold := defaultLowStockThreshold
	if v := os.Getenv(lowStockThresholdEnv); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			threshold = parsed
		}
	}

	graceMinutes := defaultLowStockGraceMinutes
	if v := os.Getenv(lowStockGraceMinutesEnv); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			graceMinutes = parsed
		}
	}

	expiryOffset := defaultExpiryOffsetMinutes
	if v := os.Getenv(expiryOffsetMinutesEnv); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			expiryOffset = parsed
		}
	}

	surveyCadence := defaultSurveyCadenceDays
	if v := os.Getenv(surveyCadenceDaysEnv); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			surveyCadence = parsed
		}
	}

	resyncSpec := os.Getenv(resyncCronSpecEnv)
	if resyncSpec == "" {
		resyncSpec = defaultResyncCronSpec
	}

	return &ScheduleConfig{
		LowStockThreshold:    threshold,
		LowStockGraceMinutes: graceMinutes,
		ExpiryOffsetMinutes:  expiryOffset,
		SurveyCadenceDays:    surveyCadence,
		ResyncCronSpec:       resyncSpec,
	}
}
