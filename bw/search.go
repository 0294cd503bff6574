package bw

import (
	"context"
	"strconv"

	"pkt.systems/sapadt/internal/urlutil"
	"pkt.systems/sapadt/xmlcodec"
)

const (
	searchPath = modelingBase + "repo/is/bwsearch"
	xrefPath   = modelingBase + "repo/is/xref"
)

// DefaultSearchMax is the page size used when SearchOptions.MaxResults is
// not set.
const DefaultSearchMax = 100

// SearchOptions are the filters of the BW repository search.
type SearchOptions struct {
	Query               string
	MaxResults          int
	ObjectType          string
	ObjectSubType       string
	ObjectStatus        string
	ObjectVersion       string
	ChangedBy           string
	ChangedOnFrom       string
	ChangedOnTo         string
	CreatedBy           string
	CreatedOnFrom       string
	CreatedOnTo         string
	DependsOnObjectName string
	DependsOnObjectType string
	SearchInDescription bool
	// DescriptionOnly turns off matching on technical names.
	DescriptionOnly bool
}

// SearchResult is one page of search hits.
type SearchResult struct {
	Items          []SearchItem `json:"items"`
	FeedIncomplete bool         `json:"feed_incomplete"`
}

func searchURL(base string, opts SearchOptions) string {
	max := opts.MaxResults
	if max <= 0 {
		max = DefaultSearchMax
	}
	kv := []string{
		"searchTerm", opts.Query,
		"maxSize", strconv.Itoa(max),
		"objectType", opts.ObjectType,
		"objectSubType", opts.ObjectSubType,
		"objectStatus", opts.ObjectStatus,
		"objectVersion", opts.ObjectVersion,
		"changedBy", opts.ChangedBy,
		"changedOnFrom", opts.ChangedOnFrom,
		"changedOnTo", opts.ChangedOnTo,
		"createdBy", opts.CreatedBy,
		"createdOnFrom", opts.CreatedOnFrom,
		"createdOnTo", opts.CreatedOnTo,
		"dependsOnObjectName", opts.DependsOnObjectName,
		"dependsOnObjectType", opts.DependsOnObjectType,
	}
	if opts.SearchInDescription {
		kv = append(kv, "searchInDescription", "true")
	}
	if opts.DescriptionOnly {
		kv = append(kv, "searchInName", "false")
	}
	return urlutil.JoinQuery(base, kv...)
}

// SearchObjects runs the BW repository search.
func SearchObjects(ctx context.Context, s Session, opts SearchOptions) (SearchResult, error) {
	const op = "BwSearchObjects"
	if err := required(op, "search term", opts.Query); err != nil {
		return SearchResult{}, err
	}
	path := searchURL(resolvePath(s, repoScheme, searchTerm, nil, searchPath), opts)
	body, err := getXML(ctx, s, op, path, "application/atom+xml")
	if err != nil {
		return SearchResult{}, err
	}
	feed, err := xmlcodec.ParseBWSearch(body)
	if err != nil {
		return SearchResult{}, err
	}
	if len(feed.UnqualifiedOnly) > 0 {
		logger := loggerFor(s)
		for _, name := range feed.UnqualifiedOnly {
			logger.Warn("bw.search.unqualified_attribute", "entry", name, "endpoint", searchPath)
		}
	}
	return SearchResult{Items: feed.Items, FeedIncomplete: feed.FeedIncomplete}, nil
}

// XrefOptions select the cross references of one object.
type XrefOptions struct {
	ObjectType           string
	ObjectName           string
	ObjectVersion        string
	Association          string
	AssociatedObjectType string
	MaxResults           int
}

// GetXref lists the objects related to an object.
func GetXref(ctx context.Context, s Session, opts XrefOptions) ([]XrefEntry, error) {
	const op = "BwGetXref"
	if err := required(op, "object type", opts.ObjectType); err != nil {
		return nil, err
	}
	if err := required(op, "object name", opts.ObjectName); err != nil {
		return nil, err
	}
	top := ""
	if opts.MaxResults > 0 {
		top = strconv.Itoa(opts.MaxResults)
	}
	path := urlutil.JoinQuery(xrefPath,
		"objectType", opts.ObjectType,
		"objectName", opts.ObjectName,
		"objectVersion", opts.ObjectVersion,
		"association", opts.Association,
		"associatedObjectType", opts.AssociatedObjectType,
		"$top", top,
	)
	body, err := getXML(ctx, s, op, path, "application/atom+xml")
	if err != nil {
		return nil, err
	}
	return xmlcodec.ParseXref(body)
}
