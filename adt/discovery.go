package adt

import (
	"context"
	"net/http"

	"pkt.systems/sapadt/xmlcodec"
)

// DiscoveryPath is the ADT service document.
const DiscoveryPath = "/sap/bc/adt/discovery"

// Discover reads the service document.
func Discover(ctx context.Context, s Session) (DiscoveryInfo, error) {
	resp, err := s.Get(ctx, DiscoveryPath, map[string]string{"Accept": "application/atomsvc+xml"})
	if err != nil {
		return DiscoveryInfo{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return DiscoveryInfo{}, httpError("Discover", DiscoveryPath, resp)
	}
	return xmlcodec.ParseDiscovery(resp.Body)
}
