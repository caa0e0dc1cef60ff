package config

import (
	"go.uber.org/zap"
)

// NewLogger returns a JSON logger in production and a console logger otherwise
func NewLogger(env Environment) (*zap.Logger, error) {
	if env.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
