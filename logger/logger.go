package logger

import (
	"fmt"

	"go.uber.org/zap"
)

// New builds the process logger: human-readable in debug mode, JSON otherwise.
func New(debugMode bool) (l *zap.Logger, err error) {
	if debugMode {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	return l, nil
}
