package cli

import (
	"time"

	"github.com/gofiber/fiber/v3"
)

// createFiberConfig returns Fiber configuration. Timeouts are generous
// because warehouse queries behind the section API can be slow.
func createFiberConfig(appName string) fiber.Config {
	return fiber.Config{
		AppName:      appName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}
}
