package probe

import (
	"context"
	"net/url"

	"go.uber.org/zap"
)

// DNSDiagnosis annotates transport failures with the resolver's view of the
// host, so a downtime reason reads e.g. "dial tcp: ... dns=NXDOMAIN".
type DNSDiagnosis struct {
	Inner  Checker
	Logger *zap.Logger
	Lookup func(ctx context.Context, host string) DNSStatus
}

func NewDNSDiagnosis(inner Checker, logger *zap.Logger) *DNSDiagnosis {
	return &DNSDiagnosis{Inner: inner, Logger: logger, Lookup: CheckDNS}
}

func (d *DNSDiagnosis) Check(ctx context.Context, target string) CheckResult {
	out := d.Inner.Check(ctx, target)
	if out.Failure != FailureTransport {
		return out
	}
	dns := d.Lookup(ctx, extractHost(target))
	if d.Logger != nil {
		d.Logger.Debug("dns_check",
			zap.String("domain", dns.Domain),
			zap.String("class", dns.Class),
			zap.Bool("has_a_or_aaaa", dns.HasAOrAAAA),
			zap.Strings("nameservers", dns.Nameservers),
			zap.String("cname", dns.CNAME),
			zap.String("resolver_error", dns.ResolverError),
		)
	}
	if dns.Class != "" && dns.Class != "RESOLVES" {
		out.Message = out.Message + " dns=" + dns.Class
	}
	return out
}

func extractHost(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return raw
	}
	return u.Hostname()
}
