// Package security builds content security policies for panel pages,
// generates script nonces, and applies HTTP security headers.
//
// Panel pages run scripts only when they carry the per-panel nonce. The
// policy builder strips 'unsafe-inline' and 'unsafe-eval' from script-src
// whenever a nonce is present, and ValidatePolicy refuses any policy that
// still grants broad script execution.
package security

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/conneroisu/visualtree/internal/errors"
)

// NonceBytes is the amount of randomness in every generated nonce.
const NonceBytes = 24

// CSPConfig holds Content Security Policy configuration
type CSPConfig struct {
	DefaultSrc     []string
	ScriptSrc      []string
	StyleSrc       []string
	ImgSrc         []string
	ConnectSrc     []string
	FontSrc        []string
	ObjectSrc      []string
	FrameAncestors []string
	BaseURI        []string
	FormAction     []string
	ReportURI      string

	// StyleNonce adds the nonce to style-src and strips its unsafe sources.
	StyleNonce bool
}

// PanelPolicyOptions describes the sources a panel page may use.
type PanelPolicyOptions struct {
	// CSPSource is the host-approved origin for local resources.
	CSPSource string
	// ConnectSources are extra connect-src entries, e.g. the panel socket.
	ConnectSources []string
	// AllowInlineStyles permits style attributes and unnonced style tags.
	AllowInlineStyles bool
	// ReportURI receives violation reports when set.
	ReportURI string
}

// PanelPolicy returns the policy applied to every panel page.
func PanelPolicy(opts PanelPolicyOptions) *CSPConfig {
	src := opts.CSPSource

	csp := &CSPConfig{
		DefaultSrc: []string{"'none'"},
		ScriptSrc:  []string{},
		StyleSrc:   []string{src},
		ImgSrc:     []string{src, "https:", "data:"},
		FontSrc:    []string{src, "https:"},
		ConnectSrc: append([]string{src, "https:"}, opts.ConnectSources...),
		ObjectSrc:  []string{"'none'"},
		BaseURI:    []string{"'none'"},
		FormAction: []string{"'none'"},
		ReportURI:  opts.ReportURI,
		StyleNonce: !opts.AllowInlineStyles,
	}
	if opts.AllowInlineStyles {
		csp.StyleSrc = append(csp.StyleSrc, "'unsafe-inline'")
	}
	return csp
}

// BuildCSP constructs the Content-Security-Policy header value
func BuildCSP(csp *CSPConfig, nonce string) string {
	var directives []string

	addDirective := func(name string, values []string, withNonce bool) {
		if withNonce && nonce != "" {
			filtered := make([]string, 0, len(values)+1)
			for _, value := range values {
				if value != "'unsafe-inline'" && value != "'unsafe-eval'" {
					filtered = append(filtered, value)
				}
			}
			values = append(filtered, fmt.Sprintf("'nonce-%s'", nonce))
		}
		if len(values) > 0 {
			directives = append(directives, fmt.Sprintf("%s %s", name, strings.Join(dedupe(values), " ")))
		}
	}

	addDirective("default-src", csp.DefaultSrc, false)
	addDirective("script-src", csp.ScriptSrc, true)
	addDirective("style-src", csp.StyleSrc, csp.StyleNonce)
	addDirective("img-src", csp.ImgSrc, false)
	addDirective("font-src", csp.FontSrc, false)
	addDirective("connect-src", csp.ConnectSrc, false)
	addDirective("object-src", csp.ObjectSrc, false)
	addDirective("frame-ancestors", csp.FrameAncestors, false)
	addDirective("base-uri", csp.BaseURI, false)
	addDirective("form-action", csp.FormAction, false)

	if csp.ReportURI != "" {
		directives = append(directives, fmt.Sprintf("report-uri %s", csp.ReportURI))
	}

	return strings.Join(directives, "; ")
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := values[:0:0]
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// broadScriptSources grant script execution without a nonce.
var broadScriptSources = map[string]struct{}{
	"'unsafe-inline'": {},
	"'unsafe-eval'":   {},
	"'unsafe-hashes'": {},
	"*":               {},
	"http:":           {},
	"https:":          {},
	"data:":           {},
	"blob:":           {},
}

// ValidatePolicy checks that policy restricts scripts to nonce.
func ValidatePolicy(policy, nonce string) error {
	directives := ParsePolicy(policy)

	script, ok := directives["script-src"]
	if !ok {
		return errors.NewSecurityError(errors.CodeUnsafePolicy, "policy has no script-src directive")
	}

	hasNonce := false
	for _, source := range script {
		if _, broad := broadScriptSources[strings.ToLower(source)]; broad {
			return errors.NewSecurityError(errors.CodeUnsafePolicy,
				fmt.Sprintf("script-src allows %s", source))
		}
		if source == fmt.Sprintf("'nonce-%s'", nonce) {
			hasNonce = true
		}
	}
	if !hasNonce {
		return errors.NewSecurityError(errors.CodeUnsafePolicy, "script-src does not carry the panel nonce")
	}

	if def, ok := directives["default-src"]; !ok || len(def) != 1 || def[0] != "'none'" {
		return errors.NewSecurityError(errors.CodeUnsafePolicy, "default-src must be 'none'")
	}

	return nil
}

// ParsePolicy splits a policy string into its directives.
func ParsePolicy(policy string) map[string][]string {
	directives := make(map[string][]string)
	for _, part := range strings.Split(policy, ";") {
		fields := strings.Fields(part)
		if len(fields) == 0 {
			continue
		}
		directives[strings.ToLower(fields[0])] = fields[1:]
	}
	return directives
}

// GenerateNonce generates a cryptographically secure random nonce
func GenerateNonce() (string, error) {
	buf := make([]byte, NonceBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}
