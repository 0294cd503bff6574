package adt

import (
	"bytes"
	"context"
	"net/http"
	"strings"

	"pkt.systems/sapadt/adterr"
	"pkt.systems/sapadt/ident"
	"pkt.systems/sapadt/internal/urlutil"
	"pkt.systems/sapadt/xmlcodec"
)

// GetObjectStructure reads the metadata and includes of an object.
func GetObjectStructure(ctx context.Context, s Session, uri ident.ObjectURI) (ObjectStructure, error) {
	resp, err := s.Get(ctx, uri.String(), map[string]string{"Accept": "application/*"})
	if err != nil {
		return ObjectStructure{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return ObjectStructure{}, httpError("GetObjectStructure", uri.String(), resp)
	}
	return xmlcodec.ParseObjectStructure(uri.String(), resp.Body)
}

// CreateObject creates a repository object and returns its URI. The type is
// validated before any request is made.
func CreateObject(ctx context.Context, s Session, req ObjectCreate, transport string) (ident.ObjectURI, error) {
	const op = "CreateObject"
	kind, ok := xmlcodec.LookupObjectKind(req.Type)
	if !ok {
		return ident.ObjectURI{}, adterr.Newf(op, "", adterr.Internal,
			"unsupported object type %q (supported: %s)", req.Type, strings.Join(xmlcodec.ObjectTypes(), ", "))
	}
	if strings.TrimSpace(req.Name) == "" {
		return ident.ObjectURI{}, adterr.New(op, "", adterr.Internal, "object name is required")
	}
	body, err := xmlcodec.BuildObjectCreate(req)
	if err != nil {
		return ident.ObjectURI{}, err
	}
	path := urlutil.JoinQuery(kind.CollectionPath(), "corrNr", transport)
	resp, err := s.Post(ctx, path, body, "application/*", nil)
	if err != nil {
		return ident.ObjectURI{}, err
	}
	if !statusIn(resp, http.StatusOK, http.StatusCreated) {
		return ident.ObjectURI{}, httpError(op, path, resp)
	}
	if len(bytes.TrimSpace(resp.Body)) > 0 {
		if st, err := xmlcodec.ParseObjectStructure("", resp.Body); err == nil && st.URI != "" {
			if uri, err := ident.NewObjectURI(st.URI); err == nil {
				return uri, nil
			}
		}
	}
	if loc := resp.Header.Get("Location"); loc != "" {
		if uri, err := ident.NewObjectURI(loc); err == nil {
			return uri, nil
		}
	}
	return ident.NewObjectURI(kind.CollectionPath() + "/" + urlutil.Encode(strings.ToLower(req.Name)))
}

// DeleteObject deletes a locked object.
func DeleteObject(ctx context.Context, s Session, uri ident.ObjectURI, handle ident.LockHandle, transport string) error {
	path := urlutil.JoinQuery(uri.String(), "lockHandle", handle.String(), "corrNr", transport)
	resp, err := s.Delete(ctx, path, nil)
	if err != nil {
		return err
	}
	if !statusIn(resp, http.StatusOK, http.StatusNoContent) {
		return httpError("DeleteObject", uri.String(), resp)
	}
	return nil
}
