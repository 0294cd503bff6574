// Package workflow composes the ADT operations that must run inside an edit
// lock. The lock is released and the session's stateful flag restored on
// every exit path, including panics and cancelled contexts.
package workflow

import (
	"context"
	"strings"

	"pkt.systems/pslog"

	"pkt.systems/sapadt/adt"
	"pkt.systems/sapadt/adterr"
	"pkt.systems/sapadt/ident"
	"pkt.systems/sapadt/internal/loggingutil"
)

const sourceSegment = "/source/"

func loggerFor(s any) pslog.Base {
	if l, ok := s.(interface{ Logger() pslog.Base }); ok {
		return loggingutil.FromBase(l.Logger(), "workflow")
	}
	return pslog.NoopLogger()
}

// WithLock switches the session to stateful mode, locks uri and runs fn with
// the lock. The unlock runs on a context detached from ctx's cancellation so a
// cancelled caller still releases the lock. An unlock failure never replaces
// the result of fn; it is logged instead.
func WithLock(ctx context.Context, s adt.Session, uri ident.ObjectURI, fn func(context.Context, adt.LockResult) error) (err error) {
	logger := loggerFor(s)
	wasStateful := s.IsStateful()
	s.SetStateful(true)
	defer s.SetStateful(wasStateful)

	lock, err := adt.LockObject(ctx, s, uri)
	if err != nil {
		return err
	}
	logger.Debug("workflow.lock.acquired", "uri", uri.String(), "transport", lock.Transport)

	defer func() {
		handle, herr := ident.NewLockHandle(lock.Handle)
		uerr := herr
		if uerr == nil {
			uerr = adt.UnlockObject(context.WithoutCancel(ctx), s, uri, handle)
		}
		if uerr == nil {
			logger.Debug("workflow.lock.released", "uri", uri.String())
			return
		}
		if err != nil {
			logger.Warn("workflow.unlock.failed", "uri", uri.String(), "error", uerr, "body_error", err)
			return
		}
		logger.Warn("workflow.unlock.failed", "uri", uri.String(), "error", uerr)
	}()

	return fn(ctx, lock)
}

// ObjectURIFromSource strips the /source/<include> suffix from a source URI.
func ObjectURIFromSource(sourceURI ident.ObjectURI) (ident.ObjectURI, error) {
	raw := sourceURI.String()
	i := strings.Index(raw, sourceSegment)
	if i <= 0 {
		return ident.ObjectURI{}, adterr.Newf("WriteSourceWithAutoLock", raw, adterr.Internal,
			"source URI %q has no %s segment", raw, strings.TrimSuffix(sourceSegment, "/"))
	}
	return ident.NewObjectURI(raw[:i])
}

// WriteSourceWithAutoLock locks the object that owns sourceURI, writes the
// source and unlocks. An empty transport falls back to the transport the
// lock reported.
func WriteSourceWithAutoLock(ctx context.Context, s adt.Session, sourceURI ident.ObjectURI, source, transport string) error {
	objectURI, err := ObjectURIFromSource(sourceURI)
	if err != nil {
		return err
	}
	return WithLock(ctx, s, objectURI, func(ctx context.Context, lock adt.LockResult) error {
		handle, err := ident.NewLockHandle(lock.Handle)
		if err != nil {
			return err
		}
		corrNr := transport
		if corrNr == "" {
			corrNr = lock.Transport
		}
		return adt.WriteSource(ctx, s, sourceURI, source, handle, corrNr)
	})
}

// DeleteObjectWithAutoLock locks uri and deletes it.
func DeleteObjectWithAutoLock(ctx context.Context, s adt.Session, uri ident.ObjectURI, transport string) error {
	return WithLock(ctx, s, uri, func(ctx context.Context, lock adt.LockResult) error {
		handle, err := ident.NewLockHandle(lock.Handle)
		if err != nil {
			return err
		}
		corrNr := transport
		if corrNr == "" {
			corrNr = lock.Transport
		}
		return adt.DeleteObject(ctx, s, uri, handle, corrNr)
	})
}
