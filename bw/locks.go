package bw

import (
	"context"
	"net/http"
	"strconv"

	"pkt.systems/sapadt/internal/urlutil"
	"pkt.systems/sapadt/xmlcodec"
)

const locksPath = modelingBase + "utils/locks"

// DefaultLockResults is the result size used when ListLocks gets max <= 0.
const DefaultLockResults = 100

// ListLocks reads the BW lock table, optionally filtered by user and a
// search string.
func ListLocks(ctx context.Context, s Session, user, search string, max int) ([]Lock, error) {
	if max <= 0 {
		max = DefaultLockResults
	}
	path := urlutil.JoinQuery(locksPath, "resultsize", strconv.Itoa(max), "user", user, "search", search)
	body, err := getXML(ctx, s, "BwListLocks", path, "application/xml")
	if err != nil {
		return nil, err
	}
	return xmlcodec.ParseBWLocks(body)
}

// DeleteLock removes an entry of the lock table. The entry is identified by
// the headers the server expects, all taken from a ListLocks result.
func DeleteLock(ctx context.Context, s Session, lock Lock) error {
	const op = "BwDeleteLock"
	if err := required(op, "lock user", lock.User); err != nil {
		return err
	}
	path := urlutil.JoinQuery(locksPath, "user", lock.User)
	scope := "1"
	headers := map[string]string{
		"BW_OBJNAME":  lock.TableName,
		"BW_ARGUMENT": lock.Arg,
		"BW_SCOPE":    scope,
		"BW_TYPE":     lock.Mode,
		"BW_OWNER1":   lock.Owner1,
		"BW_OWNER2":   lock.Owner2,
	}
	resp, err := s.Delete(ctx, path, headers)
	if err != nil {
		return err
	}
	if !statusIn(resp, http.StatusOK, http.StatusNoContent) {
		return httpError(op, path, resp)
	}
	return nil
}
