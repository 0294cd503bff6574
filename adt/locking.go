package adt

import (
	"context"
	"net/http"

	"pkt.systems/sapadt/adterr"
	"pkt.systems/sapadt/ident"
	"pkt.systems/sapadt/internal/urlutil"
	"pkt.systems/sapadt/xmlcodec"
)

const lockAccept = "application/*,application/vnd.sap.as+xml;charset=UTF-8;dataname=com.sap.adt.lock.result"

// LockObject takes an exclusive edit lock. The session must be stateful,
// because the server ties the lock to the session context.
func LockObject(ctx context.Context, s Session, uri ident.ObjectURI) (LockResult, error) {
	const op = "LockObject"
	if !s.IsStateful() {
		return LockResult{}, adterr.New(op, uri.String(), adterr.Internal, "locking requires a stateful session")
	}
	path := uri.String() + "?_action=LOCK&accessMode=MODIFY"
	resp, err := s.Post(ctx, path, "", "application/xml", map[string]string{"Accept": lockAccept})
	if err != nil {
		return LockResult{}, err
	}
	if resp.StatusCode == http.StatusConflict {
		e := adterr.FromResponse(op, uri.String(), resp.StatusCode, resp.Body)
		e.Message = "object is locked by another user"
		return LockResult{}, e
	}
	if resp.StatusCode != http.StatusOK {
		return LockResult{}, httpError(op, uri.String(), resp)
	}
	res, err := xmlcodec.ParseLockResult(uri.String(), resp.Body)
	if err != nil {
		return LockResult{}, adterr.Newf(op, uri.String(), adterr.LockConflict, "unreadable lock response: %v", err)
	}
	if res.Handle == "" {
		return LockResult{}, adterr.New(op, uri.String(), adterr.LockConflict, "lock response carried no lock handle")
	}
	return res, nil
}

// UnlockObject releases a lock taken by LockObject.
func UnlockObject(ctx context.Context, s Session, uri ident.ObjectURI, handle ident.LockHandle) error {
	path := urlutil.JoinQuery(uri.String()+"?_action=UNLOCK", "lockHandle", handle.String())
	resp, err := s.Post(ctx, path, "", "application/xml", nil)
	if err != nil {
		return err
	}
	if !statusIn(resp, http.StatusOK, http.StatusNoContent) {
		return httpError("UnlockObject", uri.String(), resp)
	}
	return nil
}
