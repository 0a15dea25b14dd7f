package security

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

type HeadersConfig struct {
	IsDevelopment bool
	// NoStorePrefixes lists path prefixes whose responses must not be
	// cached by browsers or proxies.
	NoStorePrefixes []string
}

// The API only serves JSON, so nothing may be loaded or framed.
const apiCSP = "default-src 'none'; frame-ancestors 'none'; base-uri 'none'; form-action 'none'"

func HeadersMiddleware(cfg HeadersConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("Referrer-Policy", "no-referrer")
		c.Set("Content-Security-Policy", apiCSP)
		c.Set("Cross-Origin-Resource-Policy", "same-site")

		if !cfg.IsDevelopment {
			c.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		if noStore(c.Path(), cfg.NoStorePrefixes) {
			c.Set(fiber.HeaderCacheControl, "no-store")
		}

		return c.Next()
	}
}

func noStore(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
