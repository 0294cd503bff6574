// Package ident provides validated identifier types. Values are checked once
// at construction and are immutable afterwards.
package ident

import (
	"net/url"
	"strings"
	"unicode"

	"pkt.systems/sapadt/adterr"
)

func invalid(kind, msg string) error {
	return adterr.New("ident."+kind, "", adterr.Internal, msg)
}

// PackageName is an ABAP package (DEVC) name.
type PackageName struct{ v string }

// NewPackageName validates name. Accepted forms are NAME, /NS/NAME and
// local packages beginning with '$'.
func NewPackageName(name string) (PackageName, error) {
	if name == "" {
		return PackageName{}, invalid("PackageName", "package name must not be empty")
	}
	if len(name) > 30 {
		return PackageName{}, invalid("PackageName", "package name must be at most 30 characters")
	}
	if name[0] == '$' {
		if !upperDigitUnderscore(name[1:], false) {
			return PackageName{}, invalid("PackageName", "local package name must contain only uppercase letters, digits and underscores")
		}
		return PackageName{v: name}, nil
	}
	if !upperDigitUnderscore(name, true) {
		return PackageName{}, invalid("PackageName", "package name must contain only uppercase letters, digits, underscores and '/' for namespaces")
	}
	if name[0] == '/' {
		rest := name[1:]
		slash := strings.IndexByte(rest, '/')
		switch {
		case slash < 0:
			return PackageName{}, invalid("PackageName", "namespace package name must have the form /NAMESPACE/NAME")
		case slash == 0:
			return PackageName{}, invalid("PackageName", "namespace part must not be empty")
		case slash == len(rest)-1:
			return PackageName{}, invalid("PackageName", "package name after namespace must not be empty")
		case strings.Contains(rest[slash+1:], "/"):
			return PackageName{}, invalid("PackageName", "package name must not contain '/' after the namespace")
		}
		return PackageName{v: name}, nil
	}
	if strings.Contains(name, "/") {
		return PackageName{}, invalid("PackageName", "'/' is only allowed in a leading /NAMESPACE/ prefix")
	}
	if name[0] < 'A' || name[0] > 'Z' {
		return PackageName{}, invalid("PackageName", "package name must start with a letter")
	}
	return PackageName{v: name}, nil
}

func (p PackageName) String() string { return p.v }

// IsZero reports whether p was never initialised.
func (p PackageName) IsZero() bool { return p.v == "" }

func upperDigitUnderscore(s string, allowSlash bool) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_':
		case c == '/' && allowSlash:
		default:
			return false
		}
	}
	return true
}

// RepoURL is the remote URL of a linked git repository.
type RepoURL struct{ v string }

// NewRepoURL accepts http, https and git URLs with a host.
func NewRepoURL(raw string) (RepoURL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return RepoURL{}, invalid("RepoURL", "repository URL must not be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return RepoURL{}, invalid("RepoURL", "repository URL is malformed: "+err.Error())
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "git":
	default:
		return RepoURL{}, invalid("RepoURL", "repository URL scheme must be http, https or git")
	}
	if u.Host == "" {
		return RepoURL{}, invalid("RepoURL", "repository URL must have a host")
	}
	return RepoURL{v: raw}, nil
}

func (r RepoURL) String() string { return r.v }

// BranchRef is a git ref such as refs/heads/main.
type BranchRef struct{ v string }

// NewBranchRef requires a non-empty ref without whitespace.
func NewBranchRef(ref string) (BranchRef, error) {
	if ref == "" {
		return BranchRef{}, invalid("BranchRef", "branch reference must not be empty")
	}
	if strings.IndexFunc(ref, unicode.IsSpace) >= 0 {
		return BranchRef{}, invalid("BranchRef", "branch reference must not contain whitespace")
	}
	return BranchRef{v: ref}, nil
}

func (b BranchRef) String() string { return b.v }

// LockHandle is the opaque token returned by a successful lock.
type LockHandle struct{ v string }

// NewLockHandle wraps a server-issued handle verbatim.
func NewLockHandle(handle string) (LockHandle, error) {
	if handle == "" {
		return LockHandle{}, invalid("LockHandle", "lock handle must not be empty")
	}
	return LockHandle{v: handle}, nil
}

func (h LockHandle) String() string { return h.v }

// ObjectURI identifies a repository object by absolute path.
type ObjectURI struct{ v string }

// NewObjectURI requires an absolute path.
func NewObjectURI(uri string) (ObjectURI, error) {
	if uri == "" {
		return ObjectURI{}, invalid("ObjectURI", "object URI must not be empty")
	}
	if uri[0] != '/' {
		return ObjectURI{}, invalid("ObjectURI", "object URI must be an absolute path beginning with '/'")
	}
	if strings.IndexFunc(uri, unicode.IsSpace) >= 0 {
		return ObjectURI{}, invalid("ObjectURI", "object URI must not contain whitespace")
	}
	return ObjectURI{v: uri}, nil
}

func (o ObjectURI) String() string { return o.v }

// SAPClient is the three-digit logon client.
type SAPClient struct{ v string }

// NewSAPClient validates a three-digit client number.
func NewSAPClient(client string) (SAPClient, error) {
	if len(client) != 3 {
		return SAPClient{}, invalid("SAPClient", "SAP client must be exactly 3 digits")
	}
	for i := 0; i < 3; i++ {
		if client[i] < '0' || client[i] > '9' {
			return SAPClient{}, invalid("SAPClient", "SAP client must contain only digits")
		}
	}
	return SAPClient{v: client}, nil
}

func (c SAPClient) String() string { return c.v }

// IsZero reports whether c was never initialised.
func (c SAPClient) IsZero() bool { return c.v == "" }

// TransportID is a change request number such as NPLK900001.
type TransportID struct{ v string }

// NewTransportID validates SIDK###### style numbers.
func NewTransportID(id string) (TransportID, error) {
	if len(id) != 10 {
		return TransportID{}, invalid("TransportID", "transport ID must be exactly 10 characters (e.g. NPLK900001)")
	}
	for i := 0; i < 4; i++ {
		if id[i] < 'A' || id[i] > 'Z' {
			return TransportID{}, invalid("TransportID", "transport ID must start with 4 uppercase letters")
		}
	}
	for i := 4; i < 10; i++ {
		if id[i] < '0' || id[i] > '9' {
			return TransportID{}, invalid("TransportID", "transport ID must end with 6 digits")
		}
	}
	return TransportID{v: id}, nil
}

func (t TransportID) String() string { return t.v }

// ObjectType is an ADT type such as CLAS/OC.
type ObjectType struct{ v string }

// NewObjectType validates CATEGORY/SUB forms.
func NewObjectType(t string) (ObjectType, error) {
	t = strings.ToUpper(strings.TrimSpace(t))
	slash := strings.IndexByte(t, '/')
	switch {
	case t == "":
		return ObjectType{}, invalid("ObjectType", "object type must not be empty")
	case slash < 0:
		return ObjectType{}, invalid("ObjectType", "object type must contain a '/' separator (e.g. CLAS/OC)")
	case slash == 0:
		return ObjectType{}, invalid("ObjectType", "object type category must not be empty")
	case slash == len(t)-1:
		return ObjectType{}, invalid("ObjectType", "object type subcategory must not be empty")
	case strings.Count(t, "/") != 1 || !upperDigitUnderscore(t, true):
		return ObjectType{}, invalid("ObjectType", "object type must contain only uppercase letters, digits, underscores and one '/'")
	}
	return ObjectType{v: t}, nil
}

func (o ObjectType) String() string { return o.v }

// Language is a two-letter logon language.
type Language struct{ v string }

// NewLanguage validates and upper-cases lang.
func NewLanguage(lang string) (Language, error) {
	lang = strings.ToUpper(strings.TrimSpace(lang))
	if len(lang) != 2 || lang[0] < 'A' || lang[0] > 'Z' || lang[1] < 'A' || lang[1] > 'Z' {
		return Language{}, invalid("Language", "language must be 2 letters (e.g. EN)")
	}
	return Language{v: lang}, nil
}

func (l Language) String() string { return l.v }

// RepoKey is the abapGit repository key.
type RepoKey struct{ v string }

// NewRepoKey requires a non-empty key.
func NewRepoKey(key string) (RepoKey, error) {
	if strings.TrimSpace(key) == "" {
		return RepoKey{}, invalid("RepoKey", "repository key must not be empty")
	}
	return RepoKey{v: key}, nil
}

func (k RepoKey) String() string { return k.v }
