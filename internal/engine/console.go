package engine

import "log/slog"

// Console is the logging host object handed to scripts. Engines expose it
// under their own conventional name (console in JavaScript, log in Risor).
type Console struct {
	logger *slog.Logger
	source string
}

// NewConsole returns a Console writing to logger. A nil logger discards.
func NewConsole(logger *slog.Logger, engineName string) *Console {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Console{logger: logger, source: engineName}
}

func (c *Console) Log(msg string) {
	c.logger.Info(msg, "engine", c.source)
}

func (c *Console) Info(msg string) {
	c.logger.Info(msg, "engine", c.source)
}

func (c *Console) Warn(msg string) {
	c.logger.Warn(msg, "engine", c.source)
}

func (c *Console) Error(msg string) {
	c.logger.Error(msg, "engine", c.source)
}
