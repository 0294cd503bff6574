package bw

import (
	"context"
	"sort"
	"strconv"

	"pkt.systems/sapadt/internal/urlutil"
	"pkt.systems/sapadt/xmlcodec"
)

const valueHelpAccept = "application/xml, application/atom+xml, */*"

// GetValueHelp reads a value help domain. filters are passed as query
// parameters; the common ones are maxrows, pattern, objectType and
// infoprovider.
func GetValueHelp(ctx context.Context, s Session, domain string, filters map[string]string) ([]Row, error) {
	const op = "BwGetValueHelp"
	if err := required(op, "value help domain", domain); err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	kv := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		kv = append(kv, k, filters[k])
	}
	path := urlutil.JoinQuery(modelingBase+"is/values/"+urlutil.Encode(domain), kv...)
	return rows(ctx, s, op, path)
}

// GetVirtualFolders lists the virtual folders of a package.
func GetVirtualFolders(ctx context.Context, s Session, pkg, objectType, user string) ([]Row, error) {
	path := urlutil.JoinQuery(modelingBase+"repo/is/virtualfolders",
		"package", pkg, "objecttype", objectType, "user", user)
	return rows(ctx, s, "BwGetVirtualFolders", path)
}

// GetDataVolumes reports the data volume of an InfoProvider.
func GetDataVolumes(ctx context.Context, s Session, infoProvider string, max int) ([]Row, error) {
	maxRows := ""
	if max > 0 {
		maxRows = strconv.Itoa(max)
	}
	path := urlutil.JoinQuery(modelingBase+"repo/is/datavolumes",
		"infoprovider", infoProvider, "maxrows", maxRows)
	return rows(ctx, s, "BwGetDataVolumes", path)
}

func rows(ctx context.Context, s Session, op, path string) ([]Row, error) {
	body, err := getXML(ctx, s, op, path, valueHelpAccept)
	if err != nil {
		return nil, err
	}
	return xmlcodec.ParseGenericRows(path, body)
}
