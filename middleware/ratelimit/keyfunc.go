package ratelimit

import (
	"net"
	"net/http"
	"strings"
)

// KeyFunc extrai a chave de limite (normalmente o IP do cliente).
type KeyFunc func(r *http.Request) string

// DefaultKeyFunc procura, nesta ordem: o header keyHeader; com trustXFF, o
// primeiro hop de X-Forwarded-For que seja um IP válido e depois X-Real-IP;
// por fim o host de RemoteAddr.
func DefaultKeyFunc(keyHeader string, trustXFF bool) KeyFunc {
	return func(r *http.Request) string {
		if keyHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(keyHeader)); v != "" {
				return v
			}
		}
		if trustXFF {
			if ip := forwardedIP(r.Header); ip != "" {
				return ip
			}
		}
		return remoteHost(r.RemoteAddr)
	}
}

func forwardedIP(h http.Header) string {
	if xff := h.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
			return ip.String()
		}
	}
	if ip := net.ParseIP(strings.TrimSpace(h.Get("X-Real-IP"))); ip != nil {
		return ip.String()
	}
	return ""
}

func remoteHost(addr string) string {
	addr = strings.TrimSpace(addr)
	if host, _, err := net.SplitHostPort(addr); err == nil && host != "" {
		return host
	}
	if addr != "" {
		return addr
	}
	return "unknown"
}
