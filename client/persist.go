package client

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"time"

	"pkt.systems/sapadt/adterr"
	"pkt.systems/sapadt/internal/pathutil"
)

// SessionFileVersion is the persisted session format written by SaveSession.
const SessionFileVersion = 1

type persistedCookie struct {
	Name    string     `json:"name"`
	Value   string     `json:"value"`
	Domain  string     `json:"domain,omitempty"`
	Path    string     `json:"path,omitempty"`
	Expires *time.Time `json:"expires,omitempty"`
}

type sessionFile struct {
	Version   int               `json:"version"`
	CSRFToken string            `json:"csrf_token"`
	Stateful  bool              `json:"stateful"`
	ContextID string            `json:"context_id"`
	Cookies   []persistedCookie `json:"cookies"`
}

// sessionFileIn uses pointers so fields absent from the file leave the
// session untouched.
type sessionFileIn struct {
	Version   *int              `json:"version"`
	CSRFToken *string           `json:"csrf_token"`
	Stateful  *bool             `json:"stateful"`
	ContextID *string           `json:"context_id"`
	Cookies   []persistedCookie `json:"cookies"`
}

// SaveSession writes the token, stateful flag, context id and cookies to
// path with mode 0600.
func (s *Session) SaveSession(path string) error {
	const op = "SaveSession"
	s.mu.Lock()
	out := sessionFile{
		Version:   SessionFileVersion,
		CSRFToken: s.csrfToken,
		Stateful:  s.stateful,
		ContextID: s.contextID,
	}
	s.mu.Unlock()
	for _, c := range s.Cookies() {
		pc := persistedCookie{Name: c.Name, Value: c.Value, Domain: c.Domain, Path: c.Path}
		if !c.Expires.IsZero() {
			exp := c.Expires.UTC()
			pc.Expires = &exp
		}
		out.Cookies = append(out.Cookies, pc)
	}
	if out.Cookies == nil {
		out.Cookies = []persistedCookie{}
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return adterr.Wrap(op, path, adterr.Internal, err)
	}
	if err := pathutil.WriteFileAtomic(path, append(data, '\n'), 0o600); err != nil {
		return adterr.Wrap(op, path, adterr.Internal, err)
	}
	s.logger.Debug("client.session.saved", "path", path, "cookies", len(out.Cookies), "stateful", out.Stateful)
	return nil
}

// LoadSession restores a file written by SaveSession into s. A cookie list in
// the file replaces every cookie the session holds. A missing file is not an
// error. Files without a version are treated as version 1; any other
// version is rejected.
func (s *Session) LoadSession(path string) error {
	const op = "LoadSession"
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return adterr.Wrap(op, path, adterr.Internal, err)
	}
	var in sessionFileIn
	if err := json.Unmarshal(data, &in); err != nil {
		return adterr.Newf(op, path, adterr.Internal, "invalid session file: %v", err)
	}
	version := 1
	if in.Version != nil {
		version = *in.Version
	}
	if version != SessionFileVersion {
		return adterr.Newf(op, path, adterr.Internal, "unsupported session file version %d", version)
	}
	s.mu.Lock()
	if in.CSRFToken != nil {
		s.csrfToken = *in.CSRFToken
	}
	if in.Stateful != nil {
		s.stateful = *in.Stateful
	}
	if in.ContextID != nil {
		s.contextID = *in.ContextID
	}
	s.mu.Unlock()
	now := time.Now()
	cookies := make([]*http.Cookie, 0, len(in.Cookies))
	for _, pc := range in.Cookies {
		if pc.Name == "" {
			continue
		}
		c := &http.Cookie{Name: pc.Name, Value: pc.Value, Domain: pc.Domain, Path: pc.Path}
		if pc.Expires != nil {
			if pc.Expires.Before(now) {
				continue
			}
			c.Expires = *pc.Expires
		}
		cookies = append(cookies, c)
	}
	if in.Cookies != nil {
		if err := s.resetCookies(); err != nil {
			return adterr.Wrap(op, path, adterr.Internal, err)
		}
	}
	if len(cookies) > 0 {
		s.restoreCookies(cookies)
	}
	s.logger.Debug("client.session.loaded", "path", path, "cookies", len(cookies))
	return nil
}
