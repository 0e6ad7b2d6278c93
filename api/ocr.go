package api

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
)

// NewOCRProxy encaminha POST /api/ocr para <target>/ocr sem tocar no corpo
// (multipart) nem no Content-Type.
func NewOCRProxy(target string) (http.Handler, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("invalid OCR_SERVICE_URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid OCR_SERVICE_URL %q: scheme and host required", target)
	}
	basePath := strings.TrimRight(u.Path, "/")

	proxy := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(u)
			pr.Out.URL.Path = basePath + "/ocr"
			pr.Out.URL.RawPath = ""
			pr.Out.URL.RawQuery = ""
			pr.Out.Host = u.Host
			// cookies de sessão não vão para o serviço de OCR
			pr.Out.Header.Del("Cookie")
			pr.SetXForwarded()
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("ocr proxy error")
			writeError(w, http.StatusBadGateway, "ocr service unavailable")
		},
	}
	return proxy, nil
}

func (s *server) ocr(w http.ResponseWriter, r *http.Request) {
	if s.OCR == nil {
		notConfigured(w, "ocr")
		return
	}
	s.OCR.ServeHTTP(w, r)
}
