package config

import "time"

type Limits struct {
	MaxConcurrentChapters int             `yaml:"max_concurrent_chapters" validate:"required,min=1,max=64"`
	MaxConcurrentImages   int             `yaml:"max_concurrent_images" validate:"required,min=1,max=16"`
	CallTimeout           time.Duration   `yaml:"call_timeout" validate:"required,min=1s,max=1h"`
	ImageTimeout          time.Duration   `yaml:"image_timeout" validate:"required,min=1s,max=1h"`
	StageRetries          int             `yaml:"stage_retries" validate:"min=0,max=10"`
	RateLimit             RateLimitConfig `yaml:"rate_limit" validate:"required"`
}

type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" validate:"required,min=1,max=10000"`
	BurstSize         int `yaml:"burst_size" validate:"required,min=1,max=100"`
}

func DefaultLimits() Limits {
	return Limits{
		MaxConcurrentChapters: 8,
		MaxConcurrentImages:   4,
		CallTimeout:           2 * time.Minute,
		ImageTimeout:          3 * time.Minute,
		StageRetries:          0,
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 60,
			BurstSize:         10,
		},
	}
}
