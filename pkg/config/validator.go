package config

import "fmt"

// Validator validates a configuration value.
type Validator interface {
	Validate(cfg interface{}) error
}

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc func(cfg interface{}) error

func (f ValidatorFunc) Validate(cfg interface{}) error {
	return f(cfg)
}

// Validate runs cfg through every validator in order.
func Validate(cfg interface{}, validators ...Validator) error {
	for _, v := range validators {
		if err := v.Validate(cfg); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
	}
	return nil
}
