// Package gateway prepares panel HTML so it can run under a strict
// content security policy.
//
// A template is parsed into a document tree and three named insertion
// points are filled: the policy slot (a meta http-equiv
// Content-Security-Policy element whose content is PolicySlot), the nonce
// slot (every script element, plus any attribute whose value contains
// NonceSlot), and the asset base (every relative src/href on script,
// link, img and source elements, plus ResourceBaseSlot). A template that
// lacks the policy slot, or references an asset outside the resource
// root, is rejected.
package gateway

import (
	"bytes"
	"context"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/conneroisu/visualtree/internal/errors"
	"github.com/conneroisu/visualtree/internal/logging"
	"github.com/conneroisu/visualtree/internal/security"
)

// Insertion point placeholders recognised in templates.
const (
	PolicySlot       = "{{CSP_POLICY}}"
	NonceSlot        = "{{NONCE}}"
	ResourceBaseSlot = "{{RESOURCE_BASE}}"
	CSPSourceSlot    = "{{CSP_SOURCE}}"
)

// Options configures the policy applied to prepared pages.
type Options struct {
	// ConnectSources are appended to connect-src, e.g. the panel socket origin.
	ConnectSources []string
	// AllowInlineStyles leaves style elements unnonced and allows inline styles.
	AllowInlineStyles bool
	// ReportURI receives policy violation reports when set.
	ReportURI string
}

// Page is a prepared panel document.
type Page struct {
	HTML   string
	Nonce  string
	Policy string
}

// Gateway prepares panel templates.
type Gateway struct {
	opts   Options
	logger logging.Logger
}

// New creates a gateway. A nil logger discards diagnostics.
func New(opts Options, logger logging.Logger) *Gateway {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Gateway{opts: opts, logger: logger.WithComponent("gateway")}
}

// Prepare rewrites template for a panel whose local resources are served
// below resourceBase and whose policy source token is cspSource. Every call
// generates a fresh nonce.
func (g *Gateway) Prepare(template, resourceBase, cspSource string) (*Page, error) {
	nonce, err := security.GenerateNonce()
	if err != nil {
		return nil, errors.NewInternalError(errors.CodeInternal, "nonce generation failed", err)
	}

	policy := security.BuildCSP(security.PanelPolicy(security.PanelPolicyOptions{
		CSPSource:         cspSource,
		ConnectSources:    g.opts.ConnectSources,
		AllowInlineStyles: g.opts.AllowInlineStyles,
		ReportURI:         g.opts.ReportURI,
	}), nonce)
	if err := security.ValidatePolicy(policy, nonce); err != nil {
		return nil, err
	}

	doc, err := html.Parse(strings.NewReader(template))
	if err != nil {
		return nil, errors.NewTemplateError(errors.CodeTemplateParse, "template is not valid HTML: "+err.Error())
	}

	rw := &rewriter{
		nonce:        nonce,
		policy:       policy,
		resourceBase: strings.TrimSuffix(resourceBase, "/"),
		cspSource:    cspSource,
		styleNonce:   !g.opts.AllowInlineStyles,
	}
	if err := rw.walk(doc); err != nil {
		return nil, err
	}
	if rw.policySlots == 0 {
		return nil, errors.NewTemplateError(errors.CodePolicySlotMissing,
			"template has no Content-Security-Policy meta element with content "+PolicySlot)
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return nil, errors.NewTemplateError(errors.CodeTemplateParse, "template could not be rendered: "+err.Error())
	}

	g.logger.Debug(context.Background(), "Prepared panel page", "scripts", rw.scripts, "assets", rw.assets)

	return &Page{HTML: buf.String(), Nonce: nonce, Policy: policy}, nil
}

type rewriter struct {
	nonce        string
	policy       string
	resourceBase string
	cspSource    string
	styleNonce   bool

	policySlots int
	scripts     int
	assets      int
}

func (rw *rewriter) walk(n *html.Node) error {
	if n.Type == html.ElementNode {
		if err := rw.element(n); err != nil {
			return err
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := rw.walk(c); err != nil {
			return err
		}
	}
	return nil
}

func (rw *rewriter) element(n *html.Node) error {
	switch n.DataAtom {
	case atom.Meta:
		if strings.EqualFold(attr(n, "http-equiv"), "content-security-policy") {
			if strings.TrimSpace(attr(n, "content")) != PolicySlot || rw.policySlots > 0 {
				return errors.NewTemplateError(errors.CodePolicySlotMissing,
					"Content-Security-Policy meta element must appear once with content "+PolicySlot)
			}
			setAttr(n, "content", rw.policy)
			rw.policySlots++
			return nil
		}
	case atom.Script:
		setAttr(n, "nonce", rw.nonce)
		rw.scripts++
		if err := rw.rewriteRef(n, "src"); err != nil {
			return err
		}
	case atom.Style:
		if rw.styleNonce {
			setAttr(n, "nonce", rw.nonce)
		}
	case atom.Link:
		if err := rw.rewriteRef(n, "href"); err != nil {
			return err
		}
	case atom.Img, atom.Source:
		if err := rw.rewriteRef(n, "src"); err != nil {
			return err
		}
	}

	for i := range n.Attr {
		n.Attr[i].Val = rw.fillSlots(n.Attr[i].Val)
	}
	return nil
}

func (rw *rewriter) fillSlots(v string) string {
	if !strings.Contains(v, "{{") {
		return v
	}
	return strings.NewReplacer(
		NonceSlot, rw.nonce,
		ResourceBaseSlot, rw.resourceBase,
		CSPSourceSlot, rw.cspSource,
	).Replace(v)
}

func (rw *rewriter) rewriteRef(n *html.Node, key string) error {
	for i, a := range n.Attr {
		if a.Namespace != "" || a.Key != key {
			continue
		}
		if strings.HasPrefix(a.Val, ResourceBaseSlot) {
			return nil
		}
		resolved, err := ResolveAsset(rw.resourceBase, a.Val)
		if err != nil {
			return err
		}
		if resolved != a.Val {
			rw.assets++
		}
		n.Attr[i].Val = resolved
		return nil
	}
	return nil
}

// ResolveAsset maps a relative or root-relative reference onto base.
// Absolute URLs, protocol-relative URLs and fragments are returned as is.
func ResolveAsset(base, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", errors.NewTemplateError(errors.CodeAssetUnresolved, "empty asset reference")
	}
	if strings.HasPrefix(ref, "#") {
		return ref, nil
	}

	u, err := url.Parse(ref)
	if err != nil {
		return "", errors.NewTemplateError(errors.CodeAssetUnresolved, "asset reference "+ref+" is not a URL")
	}
	if u.Scheme != "" || u.Host != "" || strings.HasPrefix(ref, "//") {
		return ref, nil
	}

	clean, ok := cleanAssetPath(u.Path)
	if !ok {
		return "", errors.NewTemplateError(errors.CodeAssetUnresolved, "asset reference "+ref+" escapes the resource root")
	}
	if clean == "" {
		return "", errors.NewTemplateError(errors.CodeAssetUnresolved, "asset reference "+ref+" names no file")
	}

	out := strings.TrimSuffix(base, "/") + "/" + clean
	if u.RawQuery != "" {
		out += "?" + u.RawQuery
	}
	if u.Fragment != "" {
		out += "#" + u.Fragment
	}
	return out, nil
}

// cleanAssetPath resolves dot segments, failing when ".." climbs above the root.
func cleanAssetPath(p string) (string, bool) {
	var parts []string
	for _, seg := range strings.Split(p, "/") {
		switch seg {
		case "", ".":
		case "..":
			if len(parts) == 0 {
				return "", false
			}
			parts = parts[:len(parts)-1]
		default:
			parts = append(parts, seg)
		}
	}
	return strings.Join(parts, "/"), true
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val
		}
	}
	return ""
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}
