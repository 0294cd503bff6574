package bw

import (
	"context"
	"net/http"
	"strings"

	"pkt.systems/pslog"

	"pkt.systems/sapadt/adterr"
	"pkt.systems/sapadt/internal/urlutil"
	"pkt.systems/sapadt/xmlcodec"
)

// DiscoveryPath is the BW modelling service document.
const DiscoveryPath = modelingBase + "discovery"

const (
	schemeBase = "http://www.sap.com/bw/modeling/"
	repoScheme = schemeBase + "repo"
	searchTerm = "bwSearch"
)

// Discover reads the BW modelling service document.
func Discover(ctx context.Context, s Session) (Discovery, error) {
	const op = "BwDiscover"
	resp, err := s.Get(ctx, DiscoveryPath, map[string]string{"Accept": "application/atomsvc+xml"})
	if err != nil {
		return Discovery{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return Discovery{}, httpError(op, DiscoveryPath, resp)
	}
	return xmlcodec.ParseDiscovery(resp.Body)
}

// ObjectScheme is the category scheme of an object type's collection.
func ObjectScheme(objectType string) string {
	return schemeBase + strings.ToLower(strings.TrimSpace(objectType))
}

func findService(d Discovery, scheme, term string) (Service, bool) {
	for _, svc := range d.Services {
		if svc.Scheme == scheme && svc.Term == term {
			return svc, true
		}
	}
	return Service{}, false
}

// ResolveEndpoint returns the URI template of the collection with the given
// category. The first non-empty template link wins over the collection href.
func ResolveEndpoint(d Discovery, scheme, term string) (string, error) {
	svc, ok := findService(d, scheme, term)
	if !ok {
		return "", adterr.Newf("BwResolveEndpoint", DiscoveryPath, adterr.NotFound, "no BW service for scheme %q term %q", scheme, term)
	}
	for _, tl := range svc.Templates {
		if strings.TrimSpace(tl.Template) != "" {
			return tl.Template, nil
		}
	}
	if strings.TrimSpace(svc.Href) == "" {
		return "", adterr.Newf("BwResolveEndpoint", DiscoveryPath, adterr.NotFound, "BW service %q has no href", term)
	}
	return svc.Href, nil
}

// ResolveContentType picks the media type an object type's collection
// accepts, preferring a versioned one. It is empty when the type is not
// advertised.
func ResolveContentType(d Discovery, objectType string) string {
	svc, ok := findService(d, ObjectScheme(objectType), strings.ToLower(strings.TrimSpace(objectType)))
	if !ok {
		return ""
	}
	for _, a := range svc.Accept {
		if strings.Contains(a, "-v") {
			return a
		}
	}
	if len(svc.Accept) > 0 {
		return svc.Accept[0]
	}
	return ""
}

type discoveredSession struct {
	Session
	discovery Discovery
}

// WithDiscovery returns a session whose reads resolve their endpoints and
// media types from d before falling back to the built-in paths.
func WithDiscovery(s Session, d Discovery) Session {
	if ds, ok := s.(*discoveredSession); ok {
		s = ds.Session
	}
	return &discoveredSession{Session: s, discovery: d}
}

// Discovered reads the service document and wraps s with it. Systems without
// one keep the built-in paths.
func Discovered(ctx context.Context, s Session) Session {
	d, err := Discover(ctx, s)
	if err != nil {
		loggerFor(s).Debug("bw.discovery.unavailable", "error", err)
		return s
	}
	return WithDiscovery(s, d)
}

func (d *discoveredSession) Logger() pslog.Base {
	if l, ok := d.Session.(interface{ Logger() pslog.Base }); ok {
		return l.Logger()
	}
	return pslog.NoopLogger()
}

func discoveryOf(s Session) (Discovery, bool) {
	if ds, ok := s.(*discoveredSession); ok {
		return ds.discovery, true
	}
	return Discovery{}, false
}

// resolvePath expands the advertised template with params. Unknown
// categories and expansions that leave a segment empty use fallback.
func resolvePath(s Session, scheme, term string, params map[string]string, fallback string) string {
	d, ok := discoveryOf(s)
	if !ok {
		return fallback
	}
	tmpl, err := ResolveEndpoint(d, scheme, term)
	if err != nil {
		loggerFor(s).Trace("bw.discovery.fallback", "scheme", scheme, "term", term, "path", fallback)
		return fallback
	}
	p := urlutil.ExpandTemplate(stripOrigin(tmpl), params, params)
	if p == "" || !strings.HasPrefix(p, "/") || strings.Contains(p, "//") || strings.ContainsAny(p, "{}") {
		loggerFor(s).Debug("bw.discovery.unusable_template", "template", tmpl, "expanded", p, "path", fallback)
		return fallback
	}
	return p
}

func stripOrigin(u string) string {
	i := strings.Index(u, "://")
	if i < 0 {
		return u
	}
	rest := u[i+3:]
	if j := strings.IndexByte(rest, '/'); j >= 0 {
		return rest[j:]
	}
	return "/"
}

var objectNameKeys = []string{
	"objectName", "objname", "objectname", "adsonm", "hcprnm", "infoobject",
	"trfnnm", "dtpanm", "compid", "fbpnm", "dmodnm", "segrnm", "destnm",
	"trcsnm", "rspcnm", "docanm", "dhdsnm", "infoprov", "datasource",
}

func objectParams(objectType, name, ver, sourceSystem string) map[string]string {
	p := map[string]string{
		"version":    version(ver),
		"objvers":    version(ver),
		"objectType": strings.ToLower(objectType),
	}
	for _, k := range objectNameKeys {
		p[k] = strings.ToLower(name)
	}
	if sourceSystem != "" {
		p["sourcesystem"] = sourceSystem
		p["logsys"] = sourceSystem
		p["logicalsystem"] = sourceSystem
	}
	return p
}

func objectReadPath(s Session, objectType, name, ver string) string {
	return resolvePath(s, ObjectScheme(objectType), strings.ToLower(objectType), objectParams(objectType, name, ver, ""), ObjectPath(objectType, name, ver))
}

func acceptFor(s Session, objectType string) string {
	if d, ok := discoveryOf(s); ok {
		if a := ResolveContentType(d, objectType); a != "" {
			return a
		}
	}
	return AcceptFor(objectType)
}
