package modules

import (
	"github.com/spf13/cast"
)

// Settings holds the merged per category configuration a module was loaded
// with, plus the shared api_keys map.
type Settings map[string]any

func (s Settings) String(key, fallback string) string {
	if value, ok := s[key]; ok {
		return cast.ToString(value)
	}
	return fallback
}

func (s Settings) Int(key string, fallback int) int {
	if value, ok := s[key]; ok {
		return cast.ToInt(value)
	}
	return fallback
}

func (s Settings) Float(key string, fallback float64) float64 {
	if value, ok := s[key]; ok {
		return cast.ToFloat64(value)
	}
	return fallback
}

func (s Settings) Bool(key string, fallback bool) bool {
	if value, ok := s[key]; ok {
		return cast.ToBool(value)
	}
	return fallback
}

func (s Settings) StringSlice(key string, fallback []string) []string {
	if value, ok := s[key]; ok {
		if parsed := cast.ToStringSlice(value); parsed != nil {
			return parsed
		}
	}
	return fallback
}

func (s Settings) IntSlice(key string, fallback []int) []int {
	if value, ok := s[key]; ok {
		if parsed, err := cast.ToIntSliceE(value); err == nil && parsed != nil {
			return parsed
		}
	}
	return fallback
}

// APIKey looks up a provider key from the shared api_keys map.
func (s Settings) APIKey(provider string) string {
	keys, ok := s["api_keys"]
	if !ok {
		return ""
	}
	return cast.ToStringMapString(keys)[provider]
}
