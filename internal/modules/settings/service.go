package settings

import (
	"fmt"
	"strconv"

	"github.com/rs/zerolog"
)

// Service provides validated access to the operator-adjustable runtime
// settings backing the distribution, AI-enhancement, migration, and
// fund-monitor components.
type Service struct {
	repo *Repository
	log  zerolog.Logger
}

// NewService creates a new settings service.
func NewService(repo *Repository, log zerolog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With().Str("service", "settings").Logger(),
	}
}

// GetAll retrieves all settings, falling back to Defaults for any key
// not yet overridden in storage.
func (s *Service) GetAll() (map[string]interface{}, error) {
	dbValues, err := s.repo.GetAll()
	if err != nil {
		return nil, err
	}

	result := make(map[string]interface{}, len(Defaults))
	for key, defaultValue := range Defaults {
		dbValue, exists := dbValues[key]
		if !exists {
			result[key] = defaultValue
			continue
		}
		if StringSettings[key] {
			result[key] = dbValue
			continue
		}
		if floatVal, err := strconv.ParseFloat(dbValue, 64); err == nil {
			result[key] = floatVal
		} else {
			result[key] = defaultValue
		}
	}

	return result, nil
}

// Get retrieves a setting value, falling back to its default.
func (s *Service) Get(key string) (interface{}, error) {
	dbValue, err := s.repo.Get(key)
	if err != nil {
		return nil, err
	}

	if dbValue != nil {
		if StringSettings[key] {
			return *dbValue, nil
		}
		if floatVal, err := strconv.ParseFloat(*dbValue, 64); err == nil {
			return floatVal, nil
		}
	}

	defaultValue, exists := Defaults[key]
	if !exists {
		return nil, fmt.Errorf("unknown setting: %s", key)
	}
	return defaultValue, nil
}

// Set validates and persists a setting value. Only keys present in
// Defaults are accepted, so an operator cannot write arbitrary keys
// into the settings table.
func (s *Service) Set(key string, value interface{}) error {
	if _, exists := Defaults[key]; !exists {
		return fmt.Errorf("unknown setting: %s", key)
	}

	if err := s.validate(key, value); err != nil {
		return err
	}

	var strValue string
	switch v := value.(type) {
	case string:
		strValue = v
	case float64:
		strValue = fmt.Sprintf("%f", v)
	case int:
		strValue = fmt.Sprintf("%d", v)
	default:
		return fmt.Errorf("unsupported value type for setting %s", key)
	}

	return s.repo.Set(key, strValue, nil)
}

// validate applies the fraction-shaped and enum-shaped field
// constraints the operator surface (§6) relies on when rejecting bad
// input before it ever reaches storage.
func (s *Service) validate(key string, value interface{}) error {
	switch key {
	case "distribution_strategy":
		mode, ok := value.(string)
		if !ok {
			return fmt.Errorf("distribution_strategy must be a string")
		}
		switch mode {
		case "fair_share", "priority_based", "round_robin":
			return nil
		default:
			return fmt.Errorf("invalid distribution_strategy: %s", mode)
		}
	case "min_technical_confidence", "structure_weight", "arbitrage_weight",
		"distribution_priority_boost", "fund_monitor_low_balance_pct":
		floatVal, ok := value.(float64)
		if !ok {
			return fmt.Errorf("%s must be a float", key)
		}
		if floatVal < 0 || floatVal > 1 {
			return fmt.Errorf("%s must be in [0, 1]", key)
		}
	}
	return nil
}
