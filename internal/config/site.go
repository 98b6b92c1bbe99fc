package config

// SiteConfig holds per-host configuration for crawling.
// This allows customizing crawl behavior for specific sites, for example
// authenticated areas that need a cookie or hosts with strict rate limits.
type SiteConfig struct {
	// UserAgent overrides the global User-Agent for this host.
	UserAgent string `yaml:"userAgent,omitempty"`

	// Cookie is an HTTP cookie to send when crawling this host.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are custom HTTP headers to include in requests to this host.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Depth overrides the global maximum depth for crawls seeded at this
	// host. If zero, the global MaxDepth is used.
	Depth int `yaml:"depth,omitempty"`

	// RequestsPerSecond overrides the global rate limit for this host.
	// If zero, the global setting is used.
	RequestsPerSecond float64 `yaml:"requestsPerSecond,omitempty"`

	// IgnorePatterns are URL path patterns to skip during crawling.
	// Patterns are matched against the URL path using glob syntax.
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty"`

	// FollowPatterns are URL path patterns to follow during crawling.
	// If specified, only URLs matching these patterns are followed.
	FollowPatterns []string `yaml:"followPatterns,omitempty"`
}

// File represents the structure of the .wavecrawl configuration file.
type File struct {
	// Stopwords are additional words excluded from every frequency table,
	// on top of the built-in English stopword list. Useful for site
	// boilerplate like navigation labels.
	Stopwords []string `yaml:"stopwords,omitempty"`

	// Sites maps hostnames to their site-specific configurations.
	// Keys are bare hostnames without the protocol (e.g., "en.wikipedia.org").
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults contains default site configuration applied to all hosts
	// unless overridden in the site-specific configuration.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the configuration for a specific hostname.
// It merges the site-specific configuration with defaults.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	// Start with defaults
	result := cf.Defaults

	// Override with site-specific configuration if present
	if siteConfig, ok := cf.Sites[host]; ok {
		if siteConfig.UserAgent != "" {
			result.UserAgent = siteConfig.UserAgent
		}
		if siteConfig.Cookie != "" {
			result.Cookie = siteConfig.Cookie
		}
		if siteConfig.Depth != 0 {
			result.Depth = siteConfig.Depth
		}
		if siteConfig.RequestsPerSecond != 0 {
			result.RequestsPerSecond = siteConfig.RequestsPerSecond
		}
		if len(siteConfig.Headers) > 0 {
			// Merge into a fresh map; result.Headers still aliases the
			// defaults map at this point, and writing through it would
			// leak one site's headers into every later lookup.
			merged := make(map[string]string, len(result.Headers)+len(siteConfig.Headers))
			for k, v := range result.Headers {
				merged[k] = v
			}
			for k, v := range siteConfig.Headers {
				merged[k] = v
			}
			result.Headers = merged
		}
		if len(siteConfig.IgnorePatterns) > 0 {
			result.IgnorePatterns = siteConfig.IgnorePatterns
		}
		if len(siteConfig.FollowPatterns) > 0 {
			result.FollowPatterns = siteConfig.FollowPatterns
		}
	}

	return result
}
