package warmup

import (
	"fmt"
	"time"

	"github.com/miekg/dns"
)

// Resolver abstracts the DNS lookups the checkers need. The production
// implementation talks to a recursive resolver over UDP; tests supply a
// canned map.
type Resolver interface {
	LookupTXT(name string) ([]string, error)
	LookupMX(name string) ([]string, error)
	LookupA(name string) ([]string, error)
}

// dnsResolver queries a single upstream resolver with miekg/dns.
type dnsResolver struct {
	server string
	client *dns.Client
}

// NewResolver returns a Resolver backed by the given "host:port" upstream.
// An empty server falls back to Google public DNS.
func NewResolver(server string) Resolver {
	if server == "" {
		server = "8.8.8.8:53"
	}
	return &dnsResolver{
		server: server,
		client: &dns.Client{Timeout: 5 * time.Second},
	}
}

func (r *dnsResolver) exchange(name string, qtype uint16) (*dns.Msg, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), qtype)
	msg.RecursionDesired = true

	resp, _, err := r.client.Exchange(msg, r.server)
	if err != nil {
		return nil, fmt.Errorf("dns query %s %s: %w", dns.TypeToString[qtype], name, err)
	}
	if resp.Rcode == dns.RcodeNameError {
		return nil, errNXDomain
	}
	if resp.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("dns query %s %s: rcode %s", dns.TypeToString[qtype], name, dns.RcodeToString[resp.Rcode])
	}
	return resp, nil
}

var errNXDomain = fmt.Errorf("nxdomain")

func (r *dnsResolver) LookupTXT(name string) ([]string, error) {
	resp, err := r.exchange(name, dns.TypeTXT)
	if err != nil {
		return nil, err
	}
	var records []string
	for _, rr := range resp.Answer {
		if txt, ok := rr.(*dns.TXT); ok {
			joined := ""
			for _, part := range txt.Txt {
				joined += part
			}
			records = append(records, joined)
		}
	}
	return records, nil
}

func (r *dnsResolver) LookupMX(name string) ([]string, error) {
	resp, err := r.exchange(name, dns.TypeMX)
	if err != nil {
		return nil, err
	}
	var hosts []string
	for _, rr := range resp.Answer {
		if mx, ok := rr.(*dns.MX); ok {
			hosts = append(hosts, mx.Mx)
		}
	}
	return hosts, nil
}

func (r *dnsResolver) LookupA(name string) ([]string, error) {
	resp, err := r.exchange(name, dns.TypeA)
	if err != nil {
		return nil, err
	}
	var addrs []string
	for _, rr := range resp.Answer {
		if a, ok := rr.(*dns.A); ok {
			addrs = append(addrs, a.A.String())
		}
	}
	return addrs, nil
}
