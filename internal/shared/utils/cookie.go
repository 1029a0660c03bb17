package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/icubam/icubam/internal/shared/config"
)

// UpdateTokenCookie carries the update token between GET and POST /update.
const UpdateTokenCookie = "icubam_id"

// SetTokenCookie stores the bearer in an HttpOnly cookie.
func SetTokenCookie(c *gin.Context, cookieConfig config.CookieConfig, token string) {
	c.SetSameSite(parseSameSite(cookieConfig.SameSite))
	c.SetCookie(
		UpdateTokenCookie,
		token,
		cookieConfig.MaxAge,
		cookieConfig.Path,
		cookieConfig.Domain,
		cookieConfig.Secure,
		true,
	)
}

// ClearTokenCookie expires a bearer that no longer authenticates.
func ClearTokenCookie(c *gin.Context, cookieConfig config.CookieConfig) {
	c.SetSameSite(parseSameSite(cookieConfig.SameSite))
	c.SetCookie(UpdateTokenCookie, "", -1, cookieConfig.Path, cookieConfig.Domain, cookieConfig.Secure, true)
}

// GetTokenFromCookie returns the stored bearer or "".
func GetTokenFromCookie(c *gin.Context) string {
	token, err := c.Cookie(UpdateTokenCookie)
	if err != nil {
		return ""
	}
	return token
}

func parseSameSite(sameSite string) http.SameSite {
	switch sameSite {
	case "Strict":
		return http.SameSiteStrictMode
	case "None":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
