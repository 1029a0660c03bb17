package middleware

import (
	"net"
	"net/http"
	"net/netip"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/icubam/icubam/internal/shared/logger"
	"github.com/icubam/icubam/internal/shared/utils"
)

// TelegramNetworks are the ranges the Bot API delivers webhooks from.
var TelegramNetworks = []string{"149.154.160.0/20", "91.108.4.0/22"}

// TrustedHosts answers 404 unless the request Host, without port, is one of
// hosts. Matching is case-insensitive.
func TrustedHosts(hosts []string) gin.HandlerFunc {
	allowed := make([]string, 0, len(hosts))
	for _, h := range hosts {
		allowed = append(allowed, strings.ToLower(h))
	}
	return func(c *gin.Context) {
		if !slices.Contains(allowed, requestHost(c.Request)) {
			utils.ErrorResponse(c, http.StatusNotFound, "not found")
			c.Abort()
			return
		}
		c.Next()
	}
}

func requestHost(r *http.Request) string {
	host := r.Host
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.ToLower(strings.Trim(host, "[]"))
}

// AllowNetworks answers 403 to clients outside cidrs. Invalid entries are
// logged and skipped.
func AllowNetworks(cidrs []string, log logger.Interface) gin.HandlerFunc {
	prefixes := make([]netip.Prefix, 0, len(cidrs))
	for _, s := range cidrs {
		p, err := netip.ParsePrefix(s)
		if err != nil {
			log.Warnw("ignoring invalid network", "cidr", s, "error", err)
			continue
		}
		prefixes = append(prefixes, p.Masked())
	}
	return func(c *gin.Context) {
		addr, err := netip.ParseAddr(c.ClientIP())
		if err == nil && inNetworks(addr.Unmap(), prefixes) {
			c.Next()
			return
		}
		log.Warnw("rejected request from outside allowed networks", "client_ip", c.ClientIP(), "path", c.Request.URL.Path)
		utils.ErrorResponse(c, http.StatusForbidden, "forbidden")
		c.Abort()
	}
}

func inNetworks(addr netip.Addr, prefixes []netip.Prefix) bool {
	for _, p := range prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
