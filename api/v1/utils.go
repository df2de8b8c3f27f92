package v1

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// clientIPHeaders is the trust order for client-IP extraction: the
// platform-supplied header first, then the generic proxy chain.
var clientIPHeaders = []string{
	"X-Nf-Client-Connection-Ip",
	"X-Forwarded-For",
	"Client-Ip",
}

// getClientIP extracts the client IP from the forwarding header chain.
// A header holding a comma-separated list yields its first entry. When
// no header is present the connection's remote address is used.
func getClientIP(c *fiber.Ctx) string {
	for _, header := range clientIPHeaders {
		if value := c.Get(header); value != "" {
			return strings.TrimSpace(strings.Split(value, ",")[0])
		}
	}
	return c.IP()
}
