package service

import (
	"github.com/smartcity/transitweather/internal/domain"
)

// AnalyticsRepository is re-exported from domain for convenience
type AnalyticsRepository = domain.AnalyticsRepository

// ObjectStore is re-exported from domain for convenience
type ObjectStore = domain.ObjectStore
