// Package routes classifies request paths for the gateway pipeline.
//
// Classification is an ordered first-match-wins prefix table kept as data, so
// a new gated prefix is an addition to the table, not an edit to control
// flow. Anything the table does not match falls into ClassDefault, which the
// auth gate treats as session-required: the explicit public allow-list is
// intentionally narrow and everything else is default-deny.
package routes

import (
	"path"
	"strings"
)

// Class is a request path category
type Class string

const (
	// ClassPublic paths are reachable without a session and are exempt
	// from rate limiting (static assets, health, metrics).
	ClassPublic Class = "public"
	// ClassAuthSensitive paths serve login/registration/reset flows:
	// reachable without a session but under the tighter rate cap.
	ClassAuthSensitive Class = "auth"
	// ClassAdmin paths require the admin role (superadmin also passes)
	ClassAdmin Class = "admin"
	// ClassSuperAdmin paths require the superadmin role
	ClassSuperAdmin Class = "superadmin"
	// ClassProxyPass paths are forwarded to the upstream backend
	ClassProxyPass Class = "proxy"
	// ClassDefault covers every unmatched path, including the root page;
	// the gate requires a session token for it.
	ClassDefault Class = "default"
)

// RateClass returns the rate limit bucket for a class: auth-sensitive paths
// share the tighter cap, everything else the general one.
func (c Class) RateClass() string {
	if c == ClassAuthSensitive {
		return "auth"
	}
	return "general"
}

// Rule maps a path prefix to a class
type Rule struct {
	Prefix string `yaml:"prefix"`
	Class  Class  `yaml:"class"`
}

// DefaultRules is the deploy-time classification table. Order matters:
// /api/auth must precede /api, /superadmin must precede /admin prefixes that
// could otherwise shadow them.
var DefaultRules = []Rule{
	{Prefix: "/login", Class: ClassAuthSensitive},
	{Prefix: "/register", Class: ClassAuthSensitive},
	{Prefix: "/recuperar", Class: ClassAuthSensitive},
	{Prefix: "/api/auth", Class: ClassAuthSensitive},
	{Prefix: "/superadmin", Class: ClassSuperAdmin},
	{Prefix: "/admin", Class: ClassAdmin},
	{Prefix: "/api", Class: ClassProxyPass},
	{Prefix: "/healthz", Class: ClassPublic},
	{Prefix: "/metrics", Class: ClassPublic},
	{Prefix: "/favicon.ico", Class: ClassPublic},
	{Prefix: "/static/", Class: ClassPublic},
}

// staticPrefixes are reserved asset locations that bypass the gateway
// entirely (no gating, no rate limiting).
var staticPrefixes = []string{"/static/", "/assets/", "/favicon.ico"}

// Classifier categorizes request paths against a rule table
type Classifier struct {
	rules []Rule
}

// NewClassifier creates a classifier over the given ordered rules
func NewClassifier(rules []Rule) *Classifier {
	if len(rules) == 0 {
		rules = DefaultRules
	}
	return &Classifier{rules: rules}
}

// Classify returns the class for a request path. The rule table wins over
// the static-asset fallback, so an extension-bearing /api path still proxies.
func (c *Classifier) Classify(requestPath string) Class {
	for _, rule := range c.rules {
		if strings.HasPrefix(requestPath, rule.Prefix) {
			return rule.Class
		}
	}
	if IsStaticAsset(requestPath) {
		return ClassPublic
	}
	return ClassDefault
}

// IsStaticAsset reports whether a path serves a static asset: under a
// reserved prefix, or carrying a file extension in its final segment.
func IsStaticAsset(requestPath string) bool {
	for _, prefix := range staticPrefixes {
		if strings.HasPrefix(requestPath, prefix) {
			return true
		}
	}
	ext := path.Ext(requestPath)
	return ext != "" && !strings.Contains(ext, "/")
}
