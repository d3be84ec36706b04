package security

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/conneroisu/visualtree/internal/errors"
	"github.com/conneroisu/visualtree/internal/logging"
	"github.com/conneroisu/visualtree/internal/validation"
)

type contextKey string

// nonceContextKey is used to store CSP nonce values in request context
const nonceContextKey contextKey = "csp_nonce"

// Config holds HTTP security configuration for the host server.
type Config struct {
	// CSP is applied to every response that does not set its own policy.
	CSP *CSPConfig
	// XFrameOptions sets X-Frame-Options header (DENY, SAMEORIGIN)
	XFrameOptions string
	// XContentTypeNoSniff enables X-Content-Type-Options: nosniff header
	XContentTypeNoSniff bool
	// ReferrerPolicy sets Referrer-Policy header
	ReferrerPolicy string
	// AllowedOrigins lists origins permitted for state-changing requests
	AllowedOrigins []string
	// Logger handles security event logging
	Logger logging.Logger
}

// DefaultConfig returns the headers used for non-panel responses.
func DefaultConfig(allowedOrigins []string) *Config {
	return &Config{
		CSP: &CSPConfig{
			DefaultSrc:     []string{"'none'"},
			ScriptSrc:      []string{},
			StyleSrc:       []string{"'self'"},
			ImgSrc:         []string{"'self'", "data:"},
			FrameAncestors: []string{"'none'"},
			BaseURI:        []string{"'none'"},
			FormAction:     []string{"'none'"},
		},
		XFrameOptions:       "DENY",
		XContentTypeNoSniff: true,
		ReferrerPolicy:      "no-referrer",
		AllowedOrigins:      allowedOrigins,
	}
}

// GetNonceFromContext retrieves the CSP nonce from the request context
func GetNonceFromContext(ctx context.Context) string {
	if nonce, ok := ctx.Value(nonceContextKey).(string); ok {
		return nonce
	}
	return ""
}

// WithNonce stores nonce in ctx.
func WithNonce(ctx context.Context, nonce string) context.Context {
	return context.WithValue(ctx, nonceContextKey, nonce)
}

// Middleware applies security headers and rejects cross-origin
// state-changing requests.
func Middleware(secConfig *Config) func(http.Handler) http.Handler {
	if secConfig == nil {
		secConfig = DefaultConfig(nil)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			applySecurityHeaders(w, secConfig, GetNonceFromContext(r.Context()))

			if r.Method != http.MethodGet && r.Method != http.MethodHead && r.Method != http.MethodOptions {
				origin := r.Header.Get("Origin")
				if origin == "" {
					// Same-origin requests may omit Origin.
					if referer := r.Header.Get("Referer"); referer != "" {
						if refererURL, err := url.Parse(referer); err == nil {
							origin = fmt.Sprintf("%s://%s", refererURL.Scheme, refererURL.Host)
						}
					}
				}
				if err := validation.ValidateOrigin(origin, secConfig.AllowedOrigins); err != nil {
					if secConfig.Logger != nil {
						secConfig.Logger.Warn(r.Context(),
							errors.NewSecurityError(errors.CodeInvalidOrigin, "invalid origin in request"),
							"Security: Invalid origin",
							"origin", r.Header.Get("Origin"),
							"referer", r.Header.Get("Referer"),
							"ip", ClientIP(r))
					}
					http.Error(w, "Forbidden", http.StatusForbidden)
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func applySecurityHeaders(w http.ResponseWriter, config *Config, nonce string) {
	if config.CSP != nil {
		w.Header().Set("Content-Security-Policy", BuildCSP(config.CSP, nonce))
	}
	if config.XFrameOptions != "" {
		w.Header().Set("X-Frame-Options", config.XFrameOptions)
	}
	if config.XContentTypeNoSniff {
		w.Header().Set("X-Content-Type-Options", "nosniff")
	}
	if config.ReferrerPolicy != "" {
		w.Header().Set("Referrer-Policy", config.ReferrerPolicy)
	}
	w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
	w.Header().Set("Cross-Origin-Resource-Policy", "same-origin")
}

// CSPViolationReport represents a CSP violation report
type CSPViolationReport struct {
	CSPReport struct {
		DocumentURI       string `json:"document-uri"`
		ViolatedDirective string `json:"violated-directive"`
		BlockedURI        string `json:"blocked-uri"`
		SourceFile        string `json:"source-file"`
		LineNumber        int    `json:"line-number"`
	} `json:"csp-report"`
}

// CSPViolationHandler logs violation reports posted by panel pages.
func CSPViolationHandler(logger logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var report CSPViolationReport
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64*1024)).Decode(&report); err != nil {
			http.Error(w, "Bad Request", http.StatusBadRequest)
			return
		}

		if logger != nil {
			logger.Warn(r.Context(),
				errors.NewSecurityError(errors.CodeUnsafePolicy, "content security policy violation"),
				"CSP: Policy violation detected",
				"document_uri", report.CSPReport.DocumentURI,
				"violated_directive", report.CSPReport.ViolatedDirective,
				"blocked_uri", report.CSPReport.BlockedURI,
				"source_file", report.CSPReport.SourceFile,
				"line_number", report.CSPReport.LineNumber,
				"ip", ClientIP(r))
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// ClientIP returns the best-effort client address of r.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		return strings.TrimSpace(ips[0])
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	ip := r.RemoteAddr
	if colonPos := strings.LastIndex(ip, ":"); colonPos != -1 {
		ip = ip[:colonPos]
	}
	return ip
}
