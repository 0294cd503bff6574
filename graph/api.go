package graph

import (
	"context"

	"pkt.systems/sapadt/bw"
)

// API is the set of BW reads the assemblers need. NewAPI adapts a session;
// tests supply their own implementation.
type API interface {
	ReadDTP(ctx context.Context, name, version string) (bw.DTPDetail, error)
	ReadTransformation(ctx context.Context, name, version string) (bw.TRFNDetail, error)
	ReadRSDS(ctx context.Context, name, sourceSystem, version string) (bw.RSDSDetail, error)
	ReadADSO(ctx context.Context, name, version string) (bw.ADSODetail, error)
	ReadQueryComponent(ctx context.Context, componentType, name, version string) (bw.QueryComponent, error)
	Search(ctx context.Context, opts bw.SearchOptions) (bw.SearchResult, error)
	Xref(ctx context.Context, opts bw.XrefOptions) ([]bw.XrefEntry, error)
	Nodes(ctx context.Context, objectType, name string) ([]bw.SearchItem, error)
}

type sessionAPI struct {
	s bw.Session
}

// NewAPI returns an API backed by s.
func NewAPI(s bw.Session) API { return sessionAPI{s: s} }

func (a sessionAPI) ReadDTP(ctx context.Context, name, version string) (bw.DTPDetail, error) {
	return bw.ReadDTP(ctx, a.s, name, version)
}

func (a sessionAPI) ReadTransformation(ctx context.Context, name, version string) (bw.TRFNDetail, error) {
	return bw.ReadTransformation(ctx, a.s, name, version)
}

func (a sessionAPI) ReadRSDS(ctx context.Context, name, sourceSystem, version string) (bw.RSDSDetail, error) {
	return bw.ReadRSDS(ctx, a.s, name, sourceSystem, version)
}

func (a sessionAPI) ReadADSO(ctx context.Context, name, version string) (bw.ADSODetail, error) {
	return bw.ReadADSO(ctx, a.s, name, version)
}

func (a sessionAPI) ReadQueryComponent(ctx context.Context, componentType, name, version string) (bw.QueryComponent, error) {
	return bw.ReadQueryComponent(ctx, a.s, componentType, name, version)
}

func (a sessionAPI) Search(ctx context.Context, opts bw.SearchOptions) (bw.SearchResult, error) {
	return bw.SearchObjects(ctx, a.s, opts)
}

func (a sessionAPI) Xref(ctx context.Context, opts bw.XrefOptions) ([]bw.XrefEntry, error) {
	return bw.GetXref(ctx, a.s, opts)
}

func (a sessionAPI) Nodes(ctx context.Context, objectType, name string) ([]bw.SearchItem, error) {
	return bw.GetNodes(ctx, a.s, objectType, name, false)
}
