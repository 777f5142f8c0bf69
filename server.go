package keygate

import (
	"fmt"
)

// ServerConf configures the http server
type ServerConf struct {
	IPListen          string   `yaml:"ip_listen"`
	Port              int      `yaml:"port"`
	TLS               tlsConf  `yaml:"tls"`
	TrustedProxies    []string `yaml:"trusted_proxies"`
	ForwardedIPHeader string   `yaml:"forwarded_ip_header"`
}

type tlsConf struct {
	Enabled      bool   `yaml:"enabled"`
	RedirectHTTP bool   `yaml:"redirect_http"`
	Cert         string `yaml:"cert"`
	Key          string `yaml:"key"`
}

// Addr returns the listen address of the server
func (c ServerConf) Addr() string {
	return addr(c.IPListen, c.Port)
}

func addr(ip string, port int) string {
	return fmt.Sprintf("%s:%d", ip, port)
}
