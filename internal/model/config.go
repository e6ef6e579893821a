package model

// RoutingConfig is the merged output of one compilation. Field order follows
// the order sections are rendered in.
type RoutingConfig struct {
	Proxies []Node

	// Runtime is only set when a full (kernel-startable) config is requested.
	Runtime *Runtime

	Groups        []Group
	RuleProviders []RuleProvider
	Rules         []Rule
	Sniffer       Sniffer
	DNS           DNS

	GeodataMode bool
	GeoxURL     *GeoxURL
}

// RuleProvider keeps Name next to the body so the catalog can hold providers
// as an ordered list; renderers turn it into a name-keyed mapping.
type RuleProvider struct {
	Name     string `yaml:"name" json:"-"`
	Type     string `yaml:"type" json:"type"`
	Behavior string `yaml:"behavior" json:"behavior"`
	Format   string `yaml:"format" json:"format"`
	Interval int    `yaml:"interval" json:"interval"`
	URL      string `yaml:"url" json:"url"`
	Path     string `yaml:"path" json:"path"`
}

type SniffPorts struct {
	Ports []int `yaml:"ports" json:"ports"`
}

type Sniff struct {
	TLS  *SniffPorts `yaml:"TLS,omitempty" json:"TLS,omitempty"`
	HTTP *SniffPorts `yaml:"HTTP,omitempty" json:"HTTP,omitempty"`
	QUIC *SniffPorts `yaml:"QUIC,omitempty" json:"QUIC,omitempty"`
}

type Sniffer struct {
	Sniff               Sniff    `yaml:"sniff" json:"sniff"`
	OverrideDestination bool     `yaml:"override-destination" json:"override-destination"`
	Enable              bool     `yaml:"enable" json:"enable"`
	ForceDNSMapping     bool     `yaml:"force-dns-mapping" json:"force-dns-mapping"`
	SkipDomain          []string `yaml:"skip-domain,omitempty" json:"skip-domain,omitempty"`
}

type DNS struct {
	Enable            bool     `yaml:"enable" json:"enable"`
	IPv6              bool     `yaml:"ipv6" json:"ipv6"`
	PreferH3          bool     `yaml:"prefer-h3" json:"prefer-h3"`
	EnhancedMode      string   `yaml:"enhanced-mode,omitempty" json:"enhanced-mode,omitempty"`
	FakeIPFilterMode  string   `yaml:"fake-ip-filter-mode,omitempty" json:"fake-ip-filter-mode,omitempty"`
	FakeIPRange       string   `yaml:"fake-ip-range,omitempty" json:"fake-ip-range,omitempty"`
	FakeIPFilter      []string `yaml:"fake-ip-filter,omitempty" json:"fake-ip-filter,omitempty"`
	CacheAlgorithm    string   `yaml:"cache-algorithm,omitempty" json:"cache-algorithm,omitempty"`
	DefaultNameserver []string `yaml:"default-nameserver,omitempty" json:"default-nameserver,omitempty"`
	Nameserver        []string `yaml:"nameserver,omitempty" json:"nameserver,omitempty"`
	Fallback          []string `yaml:"fallback,omitempty" json:"fallback,omitempty"`
}

type RuntimeProfile struct {
	StoreSelected bool `yaml:"store-selected" json:"store-selected"`
}

// Runtime holds listener and kernel settings for a standalone config.
type Runtime struct {
	MixedPort        int            `yaml:"mixed-port" json:"mixed-port"`
	RedirPort        int            `yaml:"redir-port" json:"redir-port"`
	TProxyPort       int            `yaml:"tproxy-port" json:"tproxy-port"`
	RoutingMark      int            `yaml:"routing-mark" json:"routing-mark"`
	AllowLAN         bool           `yaml:"allow-lan" json:"allow-lan"`
	IPv6             bool           `yaml:"ipv6" json:"ipv6"`
	Mode             string         `yaml:"mode" json:"mode"`
	UnifiedDelay     bool           `yaml:"unified-delay" json:"unified-delay"`
	TCPConcurrent    bool           `yaml:"tcp-concurrent" json:"tcp-concurrent"`
	FindProcessMode  string         `yaml:"find-process-mode" json:"find-process-mode"`
	LogLevel         string         `yaml:"log-level" json:"log-level"`
	GeodataLoader    string         `yaml:"geodata-loader" json:"geodata-loader"`
	DisableKeepAlive bool           `yaml:"disable-keep-alive" json:"disable-keep-alive"`
	Profile          RuntimeProfile `yaml:"profile" json:"profile"`
}

type GeoxURL struct {
	GeoIP   string `yaml:"geoip" json:"geoip"`
	GeoSite string `yaml:"geosite" json:"geosite"`
	MMDB    string `yaml:"mmdb" json:"mmdb"`
	ASN     string `yaml:"asn,omitempty" json:"asn,omitempty"`
}
