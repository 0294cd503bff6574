package bw

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"pkt.systems/sapadt/adterr"
	"pkt.systems/sapadt/client"
	"pkt.systems/sapadt/internal/urlutil"
	"pkt.systems/sapadt/xmlcodec"
)

var objectAccept = map[string]string{
	"adso":  "application/vnd.sap.bw.modeling.adso-v1_2_0+xml",
	"iobj":  "application/xml",
	"hcpr":  "application/vnd.sap.bw.modeling.hcpr-v1_2_0+xml",
	"trfn":  "application/vnd.sap.bw.modeling.trfn-v1_0_0+xml",
	"dtpa":  "application/vnd.sap.bw.modeling.dtpa-v1_0_0+xml",
	"rsds":  "application/vnd.sap.bw.modeling.rsds+xml",
	"lsys":  "application/vnd.sap.bw.modeling.lsys-v1_1_0+xml",
	"query": "application/vnd.sap.bw.modeling.query-v1_10_0+xml",
	"dest":  "application/vnd.sap.bw.modeling.dest-v1_0_0+xml",
	"fbp":   "application/vnd.sap.bw.modeling.fbp-v1_0_0+xml",
	"dmod":  "application/vnd.sap.bw.modeling.dmod-v1_0_0+xml",
	"trcs":  "application/vnd.sap.bw.modeling.trcs-v1_0_0+xml",
	"doca":  "application/vnd.sap.bw.modeling.doca-v1_0_0+xml",
	"segr":  "application/vnd.sap.bw.modeling.segr-v1_0_0+xml",
	"area":  "application/vnd.sap.bw.modeling.area-v1_0_0+xml",
	"ctrt":  "application/vnd.sap.bw.modeling.ctrt-v1_0_0+xml",
	"uomt":  "application/vnd.sap.bw.modeling.uomt-v1_0_0+xml",
	"thjt":  "application/vnd.sap.bw.modeling.thjt-v1_0_0+xml",
}

// AcceptFor returns the vendor media type of an object type (TLOGO).
func AcceptFor(objectType string) string {
	lower := strings.ToLower(objectType)
	if a, ok := objectAccept[lower]; ok {
		return a
	}
	return "application/vnd.sap.bw.modeling." + lower + "+xml"
}

// ObjectPath is the modelling path of an object version.
func ObjectPath(objectType, name, ver string) string {
	return modelingBase + strings.ToLower(objectType) + "/" + urlutil.Encode(strings.ToLower(name)) + "/" + version(ver)
}

// ReadObject returns the raw XML of any modelling object. An empty accept
// selects the type's default media type. A session wrapped by Discovered
// takes both the path and the media type from the service document.
func ReadObject(ctx context.Context, s Session, objectType, name, ver, accept string) ([]byte, error) {
	const op = "BwReadObject"
	if err := required(op, "object type", objectType); err != nil {
		return nil, err
	}
	if err := required(op, "object name", name); err != nil {
		return nil, err
	}
	if accept == "" {
		accept = acceptFor(s, objectType)
	}
	return getXML(ctx, s, op, objectReadPath(s, objectType, name, ver), accept)
}

// ReadDTP reads a data transfer process.
func ReadDTP(ctx context.Context, s Session, name, ver string) (DTPDetail, error) {
	body, err := ReadObject(ctx, s, "dtpa", name, ver, "")
	if err != nil {
		return DTPDetail{}, err
	}
	return xmlcodec.ParseDTP(name, body)
}

// ReadTransformation reads a transformation with its field rules.
func ReadTransformation(ctx context.Context, s Session, name, ver string) (TRFNDetail, error) {
	body, err := ReadObject(ctx, s, "trfn", name, ver, "")
	if err != nil {
		return TRFNDetail{}, err
	}
	return xmlcodec.ParseTransformation(name, body)
}

// ReadADSO reads an advanced DataStore object.
func ReadADSO(ctx context.Context, s Session, name, ver string) (ADSODetail, error) {
	body, err := ReadObject(ctx, s, "adso", name, ver, "")
	if err != nil {
		return ADSODetail{}, err
	}
	return xmlcodec.ParseADSO(name, body)
}

// ReadDataFlow reads a data flow object with its nodes and connections.
func ReadDataFlow(ctx context.Context, s Session, name, ver string) (DataFlow, error) {
	body, err := ReadObject(ctx, s, "dmod", name, ver, "")
	if err != nil {
		var e *adterr.Error
		if errors.As(err, &e) && e.Status() == http.StatusNotFound {
			e.Operation = "BwReadDataFlow"
			e.Message = "BW DataFlow not found: DMOD " + name
		}
		return DataFlow{}, err
	}
	return xmlcodec.ParseDataFlow(name, body)
}

// ReadRSDS reads a DataSource, which is addressed by name and source system.
func ReadRSDS(ctx context.Context, s Session, name, sourceSystem, ver string) (RSDSDetail, error) {
	const op = "BwReadRSDS"
	if err := required(op, "DataSource name", name); err != nil {
		return RSDSDetail{}, err
	}
	if err := required(op, "source system", sourceSystem); err != nil {
		return RSDSDetail{}, err
	}
	fallback := modelingBase + "rsds/" + urlutil.Encode(name) + "/" + urlutil.Encode(sourceSystem) + "/" + version(ver)
	params := objectParams("rsds", name, ver, sourceSystem)
	params["datasource"] = name
	path := resolvePath(s, ObjectScheme("rsds"), "rsds", params, fallback)
	body, err := getXML(ctx, s, op, path, acceptFor(s, "rsds"))
	if err != nil {
		return RSDSDetail{}, err
	}
	return xmlcodec.ParseRSDS(name, sourceSystem, body)
}

var queryAccepts = map[string][]string{
	"QUERY":     {"application/vnd.sap.bw.modeling.query-v1_11_0+xml", "application/vnd.sap.bw.modeling.query-v1_10_0+xml", "application/xml"},
	"VARIABLE":  {"application/vnd.sap.bw.modeling.variable-v1_10_0+xml", "application/vnd.sap.bw.modeling.variable-v1_9_0+xml", "application/xml"},
	"RKF":       {"application/vnd.sap.bw.modeling.rkf-v1_10_0+xml", "application/vnd.sap.bw.modeling.rkf-v1_9_0+xml", "application/xml"},
	"CKF":       {"application/vnd.sap.bw.modeling.ckf-v1_10_0+xml", "application/vnd.sap.bw.modeling.ckf-v1_9_0+xml", "application/xml"},
	"FILTER":    {"application/vnd.sap.bw.modeling.filter-v1_9_0+xml", "application/vnd.sap.bw.modeling.filter-v1_8_0+xml", "application/xml"},
	"STRUCTURE": {"application/vnd.sap.bw.modeling.structure-v1_9_0+xml", "application/vnd.sap.bw.modeling.structure-v1_8_0+xml", "application/xml"},
}

// IsQueryComponentType reports whether t is read through the query endpoint.
func IsQueryComponentType(t string) bool {
	_, ok := queryAccepts[strings.ToUpper(strings.TrimSpace(t))]
	return ok
}

// ReadQueryComponent reads a query, variable, key figure, filter or
// structure. Servers lag media versions, so a 406 or 415 answer moves on to
// the next candidate Accept type.
func ReadQueryComponent(ctx context.Context, s Session, componentType, name, ver string) (QueryComponent, error) {
	const op = "BwReadQueryComponent"
	t := strings.ToUpper(strings.TrimSpace(componentType))
	accepts, ok := queryAccepts[t]
	if !ok {
		return QueryComponent{}, adterr.Newf(op, "", adterr.Internal, "unsupported query component type %q", componentType)
	}
	if err := required(op, "component name", name); err != nil {
		return QueryComponent{}, err
	}
	path := modelingBase + "query/" + urlutil.Encode(strings.ToLower(name)) + "/" + version(ver)
	var resp *client.Response
	for i, accept := range accepts {
		var err error
		resp, err = s.Get(ctx, path, map[string]string{"Accept": accept})
		if err != nil {
			return QueryComponent{}, err
		}
		retry := resp.StatusCode == http.StatusNotAcceptable || resp.StatusCode == http.StatusUnsupportedMediaType
		if !retry || i == len(accepts)-1 {
			break
		}
	}
	if resp.StatusCode == http.StatusNotFound {
		e := httpError(op, path, resp)
		e.Message = "BW query component not found: " + t + " " + name
		return QueryComponent{}, e
	}
	if resp.StatusCode != http.StatusOK {
		return QueryComponent{}, httpError(op, path, resp)
	}
	return xmlcodec.ParseQueryComponent(t, name, resp.Body)
}

const (
	infoProviderStructurePath = modelingBase + "repo/infoproviderstructure"
	dataSourceStructurePath   = modelingBase + "repo/datasourcestructure"
)

// GetNodes reads the child nodes of an InfoProvider, InfoArea or, with
// datasource set, a DataSource folder.
func GetNodes(ctx context.Context, s Session, objectType, name string, datasource bool) ([]SearchItem, error) {
	const op = "BwGetNodes"
	if err := required(op, "object type", objectType); err != nil {
		return nil, err
	}
	if err := required(op, "object name", name); err != nil {
		return nil, err
	}
	base := infoProviderStructurePath
	if datasource {
		base = dataSourceStructurePath
	}
	path := base + "/" + urlutil.Encode(objectType) + "/" + urlutil.Encode(name)
	body, err := getXML(ctx, s, op, path, "application/atom+xml")
	if err != nil {
		return nil, err
	}
	return xmlcodec.ParseNodes(body)
}
