package bw

import (
	"bytes"
	"context"
	"net/http"
	"strings"

	"pkt.systems/sapadt/adterr"
	"pkt.systems/sapadt/internal/urlutil"
	"pkt.systems/sapadt/xmlcodec"
)

const ctoPath = modelingBase + "cto"

// Collection modes of the transport collector.
const (
	CollectModeNecessary = "0"
	CollectModeComplete  = "1"
	CollectModeDataflow  = "3"
)

// CollectTransport gathers an object and, depending on mode, its
// dependencies onto a transport request.
func CollectTransport(ctx context.Context, s Session, name, objectType, mode, transport string) (TransportCollect, error) {
	const op = "BwCollectTransport"
	if strings.TrimSpace(name) == "" || strings.TrimSpace(objectType) == "" {
		return TransportCollect{}, adterr.New(op, ctoPath, adterr.TransportError, "object type and name are required")
	}
	if mode == "" {
		mode = CollectModeNecessary
	}
	body, err := xmlcodec.BuildTransportCollect(name, objectType)
	if err != nil {
		return TransportCollect{}, err
	}
	path := urlutil.JoinQuery(ctoPath, "collect", "true", "mode", mode, "corrnum", transport)
	resp, err := s.Post(ctx, path, body, "application/xml", map[string]string{
		"Accept": "application/vnd.sap-bw-modeling.trcollect+xml",
	})
	if err != nil {
		return TransportCollect{}, err
	}
	if !statusIn(resp, http.StatusOK, http.StatusNoContent) {
		e := httpError(op, path, resp)
		if e.Category == adterr.Internal {
			e.Category = adterr.TransportError
		}
		return TransportCollect{}, e
	}
	if len(bytes.TrimSpace(resp.Body)) == 0 {
		return TransportCollect{}, nil
	}
	res, err := xmlcodec.ParseTransportCollect(resp.Body)
	if err != nil {
		return TransportCollect{}, adterr.Newf(op, path, adterr.TransportError, "unreadable collection result: %v", err)
	}
	return res, nil
}
