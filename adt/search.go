package adt

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"pkt.systems/sapadt/adterr"
	"pkt.systems/sapadt/internal/urlutil"
	"pkt.systems/sapadt/xmlcodec"
)

const searchPath = "/sap/bc/adt/repository/informationsystem/search"

// DefaultSearchMax is used when SearchObjects is called with max <= 0.
const DefaultSearchMax = 100

// SearchObjects runs the ADT quick search. query accepts * wildcards.
func SearchObjects(ctx context.Context, s Session, query, objectType string, max int) ([]SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, adterr.New("SearchObjects", searchPath, adterr.Internal, "search query must not be empty")
	}
	if max <= 0 {
		max = DefaultSearchMax
	}
	path := urlutil.JoinQuery(searchPath,
		"operation", "quickSearch",
		"query", query,
		"maxResults", strconv.Itoa(max),
		"objectType", objectType,
	)
	resp, err := s.Get(ctx, path, map[string]string{"Accept": "application/xml"})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, httpError("SearchObjects", path, resp)
	}
	return xmlcodec.ParseSearchResults(resp.Body)
}
