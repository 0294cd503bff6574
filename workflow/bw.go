package workflow

import (
	"context"

	"pkt.systems/sapadt/bw"
)

// BWSession is a BW modelling session that can switch to stateful mode.
type BWSession interface {
	bw.Session
	SetStateful(bool)
	IsStateful() bool
}

// WithBWLock is WithLock for BW modelling objects, which are addressed by
// type and name and unlocked without a handle.
func WithBWLock(ctx context.Context, s BWSession, objectType, name, activity string, fn func(context.Context, bw.LockResult) error) (err error) {
	logger := loggerFor(s)
	wasStateful := s.IsStateful()
	s.SetStateful(true)
	defer s.SetStateful(wasStateful)

	lock, err := bw.LockObject(ctx, s, objectType, name, activity)
	if err != nil {
		return err
	}
	logger.Debug("workflow.bw.lock.acquired", "type", objectType, "name", name, "transport", lock.Transport)

	defer func() {
		uerr := bw.UnlockObject(context.WithoutCancel(ctx), s, objectType, name)
		if uerr == nil {
			logger.Debug("workflow.bw.lock.released", "type", objectType, "name", name)
			return
		}
		if err != nil {
			logger.Warn("workflow.bw.unlock.failed", "type", objectType, "name", name, "error", uerr, "body_error", err)
			return
		}
		logger.Warn("workflow.bw.unlock.failed", "type", objectType, "name", name, "error", uerr)
	}()

	return fn(ctx, lock)
}

// SaveBWObjectWithAutoLock locks the object, writes content and unlocks.
// The lock's transport and timestamp are used unless opts names them.
func SaveBWObjectWithAutoLock(ctx context.Context, s BWSession, opts bw.SaveOptions) error {
	return WithBWLock(ctx, s, opts.ObjectType, opts.Name, bw.ActivityChange, func(ctx context.Context, lock bw.LockResult) error {
		opts.Handle = lock.Handle
		if opts.Transport == "" {
			opts.Transport = lock.Transport
		}
		if opts.Timestamp == "" {
			opts.Timestamp = lock.Timestamp
		}
		return bw.SaveObject(ctx, s, opts)
	})
}

// DeleteBWObjectWithAutoLock locks the object for deletion and deletes it.
func DeleteBWObjectWithAutoLock(ctx context.Context, s BWSession, objectType, name, transport string) error {
	return WithBWLock(ctx, s, objectType, name, bw.ActivityDelete, func(ctx context.Context, lock bw.LockResult) error {
		corrNr := transport
		if corrNr == "" {
			corrNr = lock.Transport
		}
		return bw.DeleteObject(ctx, s, objectType, name, lock.Handle, corrNr)
	})
}
