package credentials

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultManagedCloudHosts match AEM as a Cloud Service author and publish
// hosts.
var DefaultManagedCloudHosts = []string{"*.adobeaemcloud.com", "*.adobeaemcloud.net"}

// Policy holds the environment-specific rules applied during resolution.
//
// Some managed-cloud deployments reject bearer tokens on the QueryBuilder
// endpoint. PreferBasicOnManagedCloud keeps basic auth on those hosts when
// both schemes are configured.
type Policy struct {
	ManagedCloudHosts         []string
	PreferBasicOnManagedCloud bool
}

// DefaultPolicy returns the built-in policy.
func DefaultPolicy() Policy {
	return Policy{
		ManagedCloudHosts:         append([]string(nil), DefaultManagedCloudHosts...),
		PreferBasicOnManagedCloud: true,
	}
}

// IsManagedCloud reports whether endpoint's host matches one of the
// configured patterns.
func (p Policy) IsManagedCloud(endpoint string) bool {
	host := hostOf(endpoint)
	if host == "" {
		return false
	}
	for _, pat := range p.ManagedCloudHosts {
		if matchHost(pat, host) {
			return true
		}
	}
	return false
}

type policyFile struct {
	ManagedCloudHosts         []string `yaml:"managed_cloud_hosts,omitempty"`
	PreferBasicOnManagedCloud *bool    `yaml:"prefer_basic_on_managed_cloud,omitempty"`
}

// ParsePolicy decodes YAML policy. Absent keys keep their defaults.
//
//	managed_cloud_hosts:
//	  - "*.adobeaemcloud.com"
//	prefer_basic_on_managed_cloud: false
func ParsePolicy(data []byte) (Policy, error) {
	p := DefaultPolicy()
	var f policyFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return p, fmt.Errorf("parse credential policy: %w", err)
	}
	if f.ManagedCloudHosts != nil {
		p.ManagedCloudHosts = f.ManagedCloudHosts
	}
	if f.PreferBasicOnManagedCloud != nil {
		p.PreferBasicOnManagedCloud = *f.PreferBasicOnManagedCloud
	}
	return p, nil
}

// LoadPolicy reads a YAML policy file. An empty path yields DefaultPolicy.
func LoadPolicy(path string) (Policy, error) {
	if path == "" {
		return DefaultPolicy(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultPolicy(), fmt.Errorf("read credential policy %s: %w", path, err)
	}
	return ParsePolicy(data)
}
