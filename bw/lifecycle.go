package bw

import (
	"context"
	"net/http"
	"strings"

	"pkt.systems/sapadt/adterr"
	"pkt.systems/sapadt/internal/urlutil"
	"pkt.systems/sapadt/xmlcodec"
)

// Lock activities. ActivityChange is the default and is not sent.
const (
	ActivityChange   = "CHAN"
	ActivityActivate = "ACTV"
	ActivityDelete   = "DELE"
)

// EditPath is the version-less path the edit lifecycle addresses.
func EditPath(objectType, name string) string {
	return modelingBase + strings.ToLower(objectType) + "/" + urlutil.Encode(name)
}

func objectArgs(op, objectType, name string) error {
	if err := required(op, "object type", objectType); err != nil {
		return err
	}
	return required(op, "object name", name)
}

// LockObject takes the edit lock of a modelling object. The returned handle
// and timestamp are needed by SaveObject and DeleteObject.
func LockObject(ctx context.Context, s Session, objectType, name, activity string) (LockResult, error) {
	const op = "BwLockObject"
	if err := objectArgs(op, objectType, name); err != nil {
		return LockResult{}, err
	}
	path := EditPath(objectType, name)
	headers := map[string]string{"Accept": "application/xml"}
	if activity = strings.ToUpper(strings.TrimSpace(activity)); activity != "" && activity != ActivityChange {
		headers["activity_context"] = activity
	}
	resp, err := s.Post(ctx, path+"?action=lock", "", "application/xml", headers)
	if err != nil {
		return LockResult{}, err
	}
	if statusIn(resp, http.StatusConflict, http.StatusLocked) {
		e := httpError(op, path, resp)
		e.Category = adterr.LockConflict
		e.Message = "object is locked by another user"
		return LockResult{}, e
	}
	if resp.StatusCode != http.StatusOK {
		return LockResult{}, httpError(op, path, resp)
	}
	lock, err := xmlcodec.ParseBWLockResult(path, resp.Body)
	if err != nil {
		return LockResult{}, err
	}
	lock.Timestamp = resp.Header.Get("timestamp")
	lock.Package = resp.Header.Get("Development-Class")
	loggerFor(s).Debug("bw.lock.acquired", "type", objectType, "name", name, "transport", lock.Transport)
	return lock, nil
}

// UnlockObject releases the edit lock of a modelling object.
func UnlockObject(ctx context.Context, s Session, objectType, name string) error {
	const op = "BwUnlockObject"
	if err := objectArgs(op, objectType, name); err != nil {
		return err
	}
	path := EditPath(objectType, name)
	resp, err := s.Post(ctx, path+"?action=unlock", "", "application/xml", nil)
	if err != nil {
		return err
	}
	if !statusIn(resp, http.StatusOK, http.StatusNoContent) {
		return httpError(op, path, resp)
	}
	return nil
}

// SaveOptions describe a write of a locked modelling object.
type SaveOptions struct {
	ObjectType string
	Name       string
	Content    string
	Handle     string
	Transport  string
	// Timestamp is the value LockObject returned; the server rejects saves
	// over a newer version.
	Timestamp string
	// ContentType defaults to the type's media type.
	ContentType string
}

// SaveObject writes the XML of a locked modelling object.
func SaveObject(ctx context.Context, s Session, opts SaveOptions) error {
	const op = "BwSaveObject"
	if err := required(op, "lock handle", opts.Handle); err != nil {
		return err
	}
	if err := objectArgs(op, opts.ObjectType, opts.Name); err != nil {
		return err
	}
	path := EditPath(opts.ObjectType, opts.Name)
	url := urlutil.JoinQuery(path, "lockHandle", opts.Handle, "corrNr", opts.Transport, "timestamp", opts.Timestamp)
	ct := opts.ContentType
	if ct == "" {
		ct = acceptFor(s, opts.ObjectType)
	}
	resp, err := s.Put(ctx, url, opts.Content, ct, nil)
	if err != nil {
		return err
	}
	if !statusIn(resp, http.StatusOK, http.StatusNoContent) {
		return httpError(op, path, resp)
	}
	return nil
}

// DeleteObject deletes a locked modelling object.
func DeleteObject(ctx context.Context, s Session, objectType, name, handle, transport string) error {
	const op = "BwDeleteObject"
	if err := required(op, "lock handle", handle); err != nil {
		return err
	}
	if err := objectArgs(op, objectType, name); err != nil {
		return err
	}
	path := EditPath(objectType, name)
	resp, err := s.Delete(ctx, urlutil.JoinQuery(path, "lockHandle", handle, "corrNr", transport), nil)
	if err != nil {
		return err
	}
	if !statusIn(resp, http.StatusOK, http.StatusNoContent) {
		return httpError(op, path, resp)
	}
	return nil
}
