package security

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// EndpointGuard は外部カタログなど信頼できないネットワーク先への通信を制限する。
type EndpointGuard interface {
	// NewClient はhttps/443以外、およびプライベート・ループバック・リンクローカル宛の
	// 接続を拒否するHTTPクライアントを生成する。
	// 接続先IPはDNS解決後にDialerで検証される。
	NewClient(timeout time.Duration) *http.Client

	// ValidateEndpoint は設定された接続先URLを起動時に静的検証する。
	ValidateEndpoint(rawURL string) error
}

// blockedNetworks はValidateEndpointで拒否するネットワーク範囲。
var blockedNetworks = mustParseCIDRs(
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"127.0.0.0/8",
	// クラウドメタデータIP (169.254.169.254) を含む
	"169.254.0.0/16",
	"0.0.0.0/8",
	"::1/128",
	"fe80::/10",
	"fc00::/7",
)

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	out := make([]*net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("invalid CIDR in blockedNetworks: %s: %v", cidr, err))
		}
		out = append(out, network)
	}
	return out
}

type endpointGuard struct{}

// NewEndpointGuard はEndpointGuardの新しいインスタンスを生成する。
func NewEndpointGuard() EndpointGuard {
	return endpointGuard{}
}

// NewClient はsafeurlでラップしたHTTPクライアントを返す。
func (endpointGuard) NewClient(timeout time.Duration) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes("https").
		SetAllowedPorts(443).
		Build()

	return safeurl.Client(config).Client
}

// ValidateEndpoint はスキームがhttpsであり、ホストが内部向けでないことを検証する。
// DNS解決は行わないため、解決後のIP検証はNewClientのDialerに任せる。
func (endpointGuard) ValidateEndpoint(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("empty URL")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if !strings.EqualFold(parsed.Scheme, "https") {
		return fmt.Errorf("disallowed scheme: %q (https only)", parsed.Scheme)
	}
	if port := parsed.Port(); port != "" && port != "443" {
		return fmt.Errorf("disallowed port: %s", port)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("empty host in URL: %s", rawURL)
	}
	if ip := net.ParseIP(host); ip != nil {
		for _, network := range blockedNetworks {
			if network.Contains(ip) {
				return fmt.Errorf("blocked IP address: %s", ip)
			}
		}
		return nil
	}
	if strings.EqualFold(host, "localhost") || strings.HasSuffix(strings.ToLower(host), ".localhost") {
		return fmt.Errorf("blocked host: %s", host)
	}
	return nil
}
