package xmlcodec

import (
	"strings"

	"github.com/beevik/etree"

	"pkt.systems/sapadt/adterr"
)

// bwEntry is the common shape of BW Atom feed entries.
type bwEntry struct {
	title           string
	id              string
	self            string
	props           *etree.Element
	unqualifiedOnly bool
}

func bwEntries(root *etree.Element) []bwEntry {
	var out []bwEntry
	for _, entry := range root.ChildElements() {
		if !is(entry, "entry") {
			continue
		}
		var e bwEntry
		for _, c := range entry.ChildElements() {
			switch c.Tag {
			case "title":
				e.title = text(c)
			case "id":
				e.id = text(c)
			case "content":
				if kids := c.ChildElements(); len(kids) > 0 {
					e.props = kids[0]
				}
			case "link":
				if attr(c, "rel") == "self" {
					e.self = attr(c, "href")
				}
			}
		}
		if e.props != nil {
			_, e.unqualifiedOnly = AttrAny(e.props, "bwModel:objectName")
		}
		out = append(out, e)
	}
	return out
}

func (e bwEntry) uri() string { return firstNonEmpty(e.id, e.self) }

func (e bwEntry) item() BWSearchItem {
	return BWSearchItem{
		Name:          attr(e.props, "bwModel:objectName"),
		Type:          attr(e.props, "bwModel:objectType"),
		Subtype:       attr(e.props, "bwModel:objectSubtype"),
		Version:       attr(e.props, "bwModel:objectVersion"),
		Status:        attr(e.props, "bwModel:objectStatus"),
		TechnicalName: attr(e.props, "bwModel:technicalObjectName"),
		LastChanged:   attr(e.props, "bwModel:lastChangedAt"),
		Description:   firstNonEmpty(e.title, attr(e.props, "bwModel:objectDesc")),
		URI:           e.uri(),
	}
}

// ParseBWSearch parses a BW repository search feed. Entries without an object
// name are dropped.
func ParseBWSearch(data []byte) (BWSearchFeed, error) {
	root, err := parse("ParseBWSearch", "/sap/bw/modeling/repo/is/bwsearch", data)
	if err != nil {
		return BWSearchFeed{}, err
	}
	var feed BWSearchFeed
	for _, e := range bwEntries(root) {
		it := e.item()
		if it.Name == "" {
			continue
		}
		if e.unqualifiedOnly {
			feed.UnqualifiedOnly = append(feed.UnqualifiedOnly, it.Name)
		}
		feed.Items = append(feed.Items, it)
	}
	feed.FeedIncomplete = feedIncomplete(root)
	return feed, nil
}

func feedIncomplete(root *etree.Element) bool {
	if flag(attr(root, "bwModel:feedIncomplete")) {
		return true
	}
	for _, l := range children(root, "link") {
		if attr(l, "rel") == "next" {
			return true
		}
	}
	return false
}

// ParseNodes parses an infoprovider or datasource structure feed.
func ParseNodes(data []byte) ([]BWSearchItem, error) {
	root, err := parse("ParseNodes", "/sap/bw/modeling/repo", data)
	if err != nil {
		return nil, err
	}
	var out []BWSearchItem
	for _, e := range bwEntries(root) {
		if it := e.item(); it.Name != "" {
			out = append(out, it)
		}
	}
	return out, nil
}

var associationLabels = map[string]string{
	"001": "Used by",
	"002": "Uses",
	"003": "Depends on",
	"004": "Required by",
	"005": "Part of",
	"006": "Contains",
}

// AssociationLabel names an xref association code. Unknown codes are
// returned unchanged.
func AssociationLabel(code string) string {
	if l, ok := associationLabels[code]; ok {
		return l
	}
	return code
}

// ParseXref parses a BW cross reference feed.
func ParseXref(data []byte) ([]XrefEntry, error) {
	root, err := parse("ParseXref", "/sap/bw/modeling/repo/is/xref", data)
	if err != nil {
		return nil, err
	}
	var out []XrefEntry
	for _, e := range bwEntries(root) {
		x := XrefEntry{
			Name:            attr(e.props, "bwModel:objectName"),
			Type:            attr(e.props, "bwModel:objectType"),
			Version:         attr(e.props, "bwModel:objectVersion"),
			Status:          attr(e.props, "bwModel:objectStatus"),
			AssociationType: attr(e.props, "bwModel:associationType"),
			Description:     firstNonEmpty(e.title, attr(e.props, "bwModel:objectDesc")),
			URI:             e.uri(),
		}
		if x.Name == "" {
			continue
		}
		x.AssociationLabel = AssociationLabel(x.AssociationType)
		out = append(out, x)
	}
	return out, nil
}

// attrMap copies every non-namespace attribute of el, keyed by its written
// name.
func attrMap(el *etree.Element) map[string]string {
	if el == nil || len(el.Attr) == 0 {
		return nil
	}
	out := make(map[string]string, len(el.Attr))
	for _, a := range el.Attr {
		if a.Space == "xmlns" || (a.Space == "" && a.Key == "xmlns") {
			continue
		}
		out[a.FullKey()] = a.Value
	}
	return out
}

// ParseDTP parses a data transfer process definition.
func ParseDTP(name string, data []byte) (DTPDetail, error) {
	root, err := parse("ParseDTP", "/sap/bw/modeling/dtpa/"+strings.ToLower(name), data)
	if err != nil {
		return DTPDetail{}, err
	}
	d := DTPDetail{
		Name:        name,
		Description: attr(root, "description"),
		Type:        attr(root, "type"),
	}
	if src := child(root, "source"); src != nil {
		d.SourceName = attr(src, "objectName")
		d.SourceType = attr(src, "objectType")
		d.SourceSystem = attr(src, "sourceSystem")
	}
	if tgt := child(root, "target"); tgt != nil {
		d.TargetName = attr(tgt, "objectName")
		d.TargetType = attr(tgt, "objectType")
	}
	d.RequestSelectionMode = attr(child(root, "requestSelection"), "mode")
	d.ExtractionSettings = attrMap(child(root, "extractionSettings"))
	d.ExecutionSettings = attrMap(child(root, "execution"))
	return d, nil
}

// ParseTransformation parses a transformation with its fields and rules.
func ParseTransformation(name string, data []byte) (TRFNDetail, error) {
	root, err := parse("ParseTransformation", "/sap/bw/modeling/trfn/"+strings.ToLower(name), data)
	if err != nil {
		return TRFNDetail{}, err
	}
	d := TRFNDetail{
		Name:          name,
		Description:   attr(root, "description"),
		StartRoutine:  attr(root, "startRoutine"),
		EndRoutine:    attr(root, "endRoutine"),
		ExpertRoutine: attr(root, "expertRoutine"),
		HANARuntime:   flag(attr(root, "HANARuntime", "hanaRuntime")),
	}
	if src := child(root, "source"); src != nil {
		d.SourceName = attr(src, "objectName")
		d.SourceType = attr(src, "objectType")
	}
	if tgt := child(root, "target"); tgt != nil {
		d.TargetName = attr(tgt, "objectName")
		d.TargetType = attr(tgt, "objectType")
	}
	d.SourceFields = trfnFields(child(root, "sourceFields"))
	d.TargetFields = trfnFields(child(root, "targetFields"))
	trfnRules(child(root, "rules"), "", &d.Rules)
	return d, nil
}

func trfnFields(el *etree.Element) []TRFNField {
	var out []TRFNField
	if el == nil {
		return nil
	}
	for _, f := range el.ChildElements() {
		out = append(out, TRFNField{
			Name:        attr(f, "name"),
			Type:        attr(f, "intType"),
			Aggregation: attr(f, "aggregation"),
			Key:         attr(f, "keyFlag") == "X",
		})
	}
	return out
}

func trfnRules(container *etree.Element, group string, out *[]TRFNRule) {
	if container == nil {
		return
	}
	for _, node := range container.ChildElements() {
		switch node.Tag {
		case "group":
			trfnRules(node, attr(node, "id"), out)
		case "rule":
			*out = append(*out, trfnRule(node, group))
		}
	}
}

func trfnRule(el *etree.Element, group string) TRFNRule {
	r := TRFNRule{ID: attr(el, "id"), Group: group}
	if v := attr(el, "sourceField"); v != "" {
		r.SourceFields = append(r.SourceFields, v)
	}
	if v := attr(el, "targetField"); v != "" {
		r.TargetFields = append(r.TargetFields, v)
	}
	for _, s := range children(el, "source") {
		if v := fieldRef(s); v != "" {
			r.SourceFields = append(r.SourceFields, v)
		}
	}
	for _, t := range children(el, "target") {
		if v := fieldRef(t); v != "" {
			r.TargetFields = append(r.TargetFields, v)
		}
	}
	if step := child(el, "step"); step != nil {
		r.RuleType = attr(step, "type")
		r.Formula = attr(step, "formula")
		r.Constant = attr(step, "constant")
		r.StepAttrs = attrMap(step)
	} else {
		r.RuleType = attr(el, "ruleType")
		r.Formula = attr(el, "formula")
		r.Constant = attr(el, "constant")
	}
	return r
}

func fieldRef(el *etree.Element) string {
	return firstNonEmpty(attr(el, "field", "name", "sourceField", "targetField"), text(el))
}

// ParseADSO parses an advanced DataStore object.
func ParseADSO(name string, data []byte) (ADSODetail, error) {
	root, err := parse("ParseADSO", "/sap/bw/modeling/adso/"+strings.ToLower(name), data)
	if err != nil {
		return ADSODetail{}, err
	}
	d := ADSODetail{
		Name:        name,
		Description: attr(root, "description"),
		Package:     attr(root, "packageName"),
	}
	if fields := child(root, "fields"); fields != nil {
		for _, f := range fields.ChildElements() {
			d.Fields = append(d.Fields, ADSOField{
				Name:        attr(f, "name"),
				DataType:    attr(f, "type"),
				InfoObject:  attr(f, "infoObject"),
				Description: attr(f, "description"),
				Key:         attr(f, "keyFlag") == "X",
				Length:      atoi(attr(f, "length")),
				Decimals:    atoi(attr(f, "decimals")),
			})
		}
	}
	return d, nil
}

// ParseRSDS parses a DataSource with the fields of every segment.
func ParseRSDS(name, sourceSystem string, data []byte) (RSDSDetail, error) {
	root, err := parse("ParseRSDS", "/sap/bw/modeling/rsds/"+name+"/"+sourceSystem, data)
	if err != nil {
		return RSDSDetail{}, err
	}
	d := RSDSDetail{
		Name:         name,
		SourceSystem: sourceSystem,
		Description:  attr(root, "description"),
		Package:      attr(root, "packageName", "package"),
	}
	for _, seg := range children(root, "segment") {
		rsdsFields(seg, attr(seg, "ID", "id"), &d.Fields)
	}
	return d, nil
}

func rsdsFields(el *etree.Element, segment string, out *[]RSDSField) {
	if is(el, "field") || is(el, "element") {
		f := RSDSField{
			Segment:     segment,
			Name:        attr(el, "name", "field"),
			Description: attr(el, "description", "text"),
			DataType:    attr(el, "intType", "type"),
			Length:      atoi(attr(el, "length")),
			Decimals:    atoi(attr(el, "decimals")),
			Key:         flag(attr(el, "key", "keyFlag")),
		}
		if f.Name != "" {
			*out = append(*out, f)
		}
	}
	for _, c := range el.ChildElements() {
		rsdsFields(c, segment, out)
	}
}

// ParseQueryComponent parses a query, variable, key figure, filter or
// structure. Both the flat reference form and the queryResource runtime
// form are understood; references are deduplicated by type, role and name.
func ParseQueryComponent(componentType, name string, data []byte) (QueryComponent, error) {
	root, err := parse("ParseQueryComponent", "/sap/bw/modeling/query/"+strings.ToLower(name), data)
	if err != nil {
		return QueryComponent{}, err
	}
	qc := QueryComponent{
		Name:         name,
		Type:         strings.ToUpper(componentType),
		Description:  attr(root, "description", "objectDesc"),
		InfoProvider: attr(root, "infoProvider", "provider", "infoprovider"),
		ProviderType: attr(root, "infoProviderType", "providerType", "infoproviderType"),
	}
	seen := make(map[string]bool)
	add := func(r QueryRef) {
		if r.Name == "" {
			return
		}
		key := r.Type + "|" + r.Role + "|" + r.Name
		if seen[key] {
			return
		}
		seen[key] = true
		qc.References = append(qc.References, r)
	}

	var walk func(*etree.Element)
	walk = func(el *etree.Element) {
		switch el.Tag {
		case "member", "reference", "component", "element":
			add(QueryRef{
				Name: attr(el, "name", "objectName", "compid"),
				Type: attr(el, "type", "objectType", "subType"),
				Role: attr(el, "role", "usage", "kind"),
			})
		}
		for _, c := range el.ChildElements() {
			walk(c)
		}
	}
	walk(root)

	if !is(root, "queryResource") {
		return qc, nil
	}
	main := child(root, "mainComponent")
	if main != nil {
		if v := attr(main, "technicalName", "name", "adtCore:name"); v != "" {
			qc.Name = v
		}
		if v := attr(child(main, "description"), "value"); v != "" {
			qc.Description = v
		}
		if v := attr(main, "providerName", "provider", "infoProvider"); v != "" {
			qc.InfoProvider = v
		}
	}
	for _, sub := range children(root, "subComponents") {
		add(QueryRef{
			Name: attr(sub, "technicalName", "adtCore:name", "name"),
			Type: normalizeTypeToken(attr(sub, "xsi:type", "type")),
			Role: "subcomponent",
		})
	}
	if main == nil {
		return qc, nil
	}
	for _, c := range main.ChildElements() {
		switch c.Tag {
		case "rows", "columns", "free":
			add(QueryRef{Name: attr(c, "infoObjectName", "technicalName", "name"), Type: "DIMENSION", Role: c.Tag})
		}
	}
	var hints func(*etree.Element)
	hints = func(el *etree.Element) {
		switch el.Tag {
		case "selections":
			add(QueryRef{Name: attr(el, "infoObject", "infoObjectName", "name"), Type: "FILTER_FIELD", Role: "filter"})
		case "members":
			add(QueryRef{Name: childText(child(el, "defaultHint"), "value"), Type: "MEMBER", Role: "member"})
		}
		for _, c := range el.ChildElements() {
			hints(c)
		}
	}
	hints(main)
	return qc, nil
}

func normalizeTypeToken(raw string) string {
	return strings.ToUpper(localName(raw))
}

func jobFrom(el *etree.Element, fallbackGUID string) Job {
	return Job{
		GUID:        firstNonEmpty(attr(el, "guid", "id"), fallbackGUID),
		Status:      attr(el, "status", "value"),
		JobType:     attr(el, "jobType"),
		Description: attr(el, "description"),
	}
}

// ParseJobs parses the job collection. A single job document yields one job.
func ParseJobs(data []byte) ([]Job, error) {
	root, err := parse("ParseJobs", "/sap/bw/modeling/jobs", data)
	if err != nil {
		return nil, err
	}
	if is(root, "job") {
		return []Job{jobFrom(root, "")}, nil
	}
	var out []Job
	for _, c := range children(root, "job") {
		out = append(out, jobFrom(c, ""))
	}
	return out, nil
}

// ParseJob parses a job or job status resource.
func ParseJob(guid string, data []byte) (Job, error) {
	root, err := parse("ParseJob", "/sap/bw/modeling/jobs/"+guid, data)
	if err != nil {
		return Job{}, err
	}
	return jobFrom(root, guid), nil
}

// ParseJobProgress parses the progress resource of a job.
func ParseJobProgress(guid string, data []byte) (JobProgress, error) {
	root, err := parse("ParseJobProgress", "/sap/bw/modeling/jobs/"+guid+"/progress", data)
	if err != nil {
		return JobProgress{}, err
	}
	return JobProgress{
		Status:      attr(root, "status"),
		Description: attr(root, "description"),
		Percentage:  atoi(attr(root, "percentage", "value")),
	}, nil
}

// ParseJobSteps parses the steps resource of a job.
func ParseJobSteps(guid string, data []byte) ([]JobStep, error) {
	root, err := parse("ParseJobSteps", "/sap/bw/modeling/jobs/"+guid+"/steps", data)
	if err != nil {
		return nil, err
	}
	var out []JobStep
	for _, s := range root.ChildElements() {
		out = append(out, JobStep{
			Name:        attr(s, "name"),
			Status:      attr(s, "status"),
			Description: attr(s, "description"),
		})
	}
	return out, nil
}

// ParseJobMessages parses the application log of a job.
func ParseJobMessages(guid string, data []byte) ([]JobMessage, error) {
	root, err := parse("ParseJobMessages", "/sap/bw/modeling/jobs/"+guid+"/messages", data)
	if err != nil {
		return nil, err
	}
	var out []JobMessage
	for _, m := range root.ChildElements() {
		out = append(out, JobMessage{
			Severity:   attr(m, "severity", "type"),
			ObjectName: attr(m, "objectName"),
			Text:       firstNonEmpty(attr(m, "text"), text(m)),
		})
	}
	return out, nil
}

// ParseBWLocks parses the BW lock table.
func ParseBWLocks(data []byte) ([]BWLock, error) {
	root, err := parse("ParseBWLocks", "/sap/bw/modeling/utils/locks", data)
	if err != nil {
		return nil, err
	}
	var out []BWLock
	for _, el := range children(root, "lock") {
		out = append(out, BWLock{
			Client:    attr(el, "client"),
			User:      attr(el, "user"),
			Mode:      attr(el, "mode"),
			TableName: attr(el, "tableName"),
			TableDesc: attr(el, "tableDesc"),
			Object:    attr(el, "object"),
			Arg:       attr(el, "arg"),
			Owner1:    attr(el, "owner1"),
			Owner2:    attr(el, "owner2"),
			Timestamp: attr(el, "timestamp"),
			UpdCount:  atoi(attr(el, "updCount")),
			DiaCount:  atoi(attr(el, "diaCount")),
		})
	}
	return out, nil
}

// ParseTransportCollect parses the result of a CTO collection.
func ParseTransportCollect(data []byte) (TransportCollect, error) {
	root, err := parse("ParseTransportCollect", "/sap/bw/modeling/cto", data)
	if err != nil {
		return TransportCollect{}, err
	}
	var out TransportCollect
	for _, section := range root.ChildElements() {
		switch section.Tag {
		case "details":
			for _, o := range section.ChildElements() {
				out.Details = append(out.Details, CollectedObject{
					Name:          attr(o, "name"),
					Type:          attr(o, "type"),
					Description:   attr(o, "description"),
					Status:        attr(o, "status"),
					URI:           attr(o, "uri"),
					LastChangedBy: attr(o, "lastChangedBy"),
					LastChangedAt: attr(o, "lastChangedAt"),
				})
			}
		case "dependencies":
			for _, d := range section.ChildElements() {
				out.Dependencies = append(out.Dependencies, CollectedDependency{
					Name:            attr(d, "name"),
					Type:            attr(d, "type"),
					Version:         attr(d, "version"),
					Author:          attr(d, "author"),
					Package:         attr(d, "packageName"),
					AssociationType: attr(d, "associationType"),
					AssociatedName:  attr(d, "associatedName"),
					AssociatedType:  attr(d, "associatedType"),
				})
			}
		case "messages":
			for _, m := range section.ChildElements() {
				if v := firstNonEmpty(text(m), attr(m, "text")); v != "" {
					out.Messages = append(out.Messages, v)
				}
			}
		}
	}
	return out, nil
}

// ParseGenericRows flattens a document into attribute rows. An element
// becomes a row when it carries attributes or text and is either a leaf or
// has text of its own.
func ParseGenericRows(endpoint string, data []byte) ([]Row, error) {
	root, err := parse("ParseGenericRows", endpoint, data)
	if err != nil {
		return nil, err
	}
	var out []Row
	var visit func(*etree.Element)
	visit = func(el *etree.Element) {
		row := Row{"_element": el.Tag}
		for k, v := range attrMap(el) {
			row[k] = v
		}
		ownText := text(el)
		if ownText != "" {
			row["_text"] = ownText
		}
		leaf := len(el.ChildElements()) == 0
		if len(row) > 1 && (leaf || ownText != "") {
			out = append(out, row)
		}
		for _, c := range el.ChildElements() {
			visit(c)
		}
	}
	visit(root)
	return out, nil
}

// ParseBWLockResult reads the lock response of a BW modelling object. The
// server answers with bare elements and no root, so the body is wrapped
// before parsing. A missing LOCK_HANDLE is a LockConflict.
func ParseBWLockResult(endpoint string, data []byte) (BWLockResult, error) {
	const op = "ParseBWLockResult"
	body := strings.TrimSpace(string(data))
	if strings.HasPrefix(body, "<?xml") {
		if i := strings.Index(body, "?>"); i >= 0 {
			body = body[i+2:]
		}
	}
	root, err := parse(op, endpoint, []byte("<root>"+body+"</root>"))
	if err != nil {
		return BWLockResult{}, err
	}
	out := BWLockResult{
		Handle:        text(first(root, "LOCK_HANDLE")),
		Transport:     text(first(root, "CORRNR")),
		TransportText: text(first(root, "CORRTEXT")),
		TransportUser: text(first(root, "CORRUSER")),
		Local:         text(first(root, "IS_LOCAL")) == "X",
	}
	if out.Handle == "" {
		return BWLockResult{}, adterr.New(op, endpoint, adterr.LockConflict, "lock response carries no LOCK_HANDLE")
	}
	return out, nil
}

// ParseBWActivation reads the result of a BW activation. An empty or
// unreadable body after a successful request counts as success.
func ParseBWActivation(data []byte) BWActivationResult {
	res := BWActivationResult{Success: true}
	if len(strings.TrimSpace(string(data))) == 0 {
		return res
	}
	root, err := parse("ParseBWActivation", "/sap/bw/modeling/activation", data)
	if err != nil {
		return res
	}
	message := func(el, owner *etree.Element) BWActivationMessage {
		m := BWActivationMessage{
			Severity:   firstNonEmpty(attr(el, "severity", "type"), "I"),
			ObjectName: attr(owner, "objectName"),
			ObjectType: attr(owner, "objectType"),
			Text:       firstNonEmpty(text(el), attr(el, "text")),
		}
		if m.Severity == "E" {
			res.Success = false
		}
		return m
	}
	for _, el := range root.ChildElements() {
		switch el.Tag {
		case "message", "msg":
			res.Messages = append(res.Messages, message(el, el))
		case "object":
			for _, m := range children(el, "message") {
				res.Messages = append(res.Messages, message(m, el))
			}
		}
	}
	return res
}

// ParseDataFlow parses a data flow object. Nodes and connections are
// collected from any depth.
func ParseDataFlow(name string, data []byte) (DataFlow, error) {
	root, err := parse("ParseDataFlow", "/sap/bw/modeling/dmod/"+strings.ToLower(name), data)
	if err != nil {
		return DataFlow{}, err
	}
	out := DataFlow{
		Name:        name,
		Description: attr(root, "description", "objectDesc"),
		Attributes:  attrMap(root),
	}
	var walk func(*etree.Element)
	walk = func(el *etree.Element) {
		switch el.Tag {
		case "node":
			n := DataFlowNode{
				ID:         attr(el, "id", "key"),
				Name:       attr(el, "name", "txt"),
				Type:       attr(el, "type", "nodeType"),
				Attributes: attrMap(el),
			}
			if n.ID != "" || n.Name != "" {
				out.Nodes = append(out.Nodes, n)
			}
		case "connection", "edge", "link":
			c := DataFlowConnection{
				From:       attr(el, "from", "source"),
				To:         attr(el, "to", "target"),
				Type:       attr(el, "type", "edgeType"),
				Attributes: attrMap(el),
			}
			if c.From != "" || c.To != "" {
				out.Connections = append(out.Connections, c)
			}
		}
		for _, c := range el.ChildElements() {
			walk(c)
		}
	}
	walk(root)
	return out, nil
}

// ParseDBInfo parses the database information of a BW system. Flat
// documents, Atom entries with a properties element, and the connect
// element form are all accepted; the first non-empty value wins.
func ParseDBInfo(data []byte) (DBInfo, error) {
	root, err := parse("ParseDBInfo", "/sap/bw/modeling/repo/is/dbinfo", data)
	if err != nil {
		return DBInfo{}, err
	}
	var info DBInfo
	setFirst := func(dst *string, values ...string) {
		if *dst == "" {
			*dst = firstNonEmpty(values...)
		}
	}
	fromAttrs := func(el *etree.Element) {
		setFirst(&info.Host, attr(el, "dbHost", "host"))
		setFirst(&info.Port, attr(el, "dbPort", "port"))
		setFirst(&info.Schema, attr(el, "dbSchema", "schema"))
		setFirst(&info.DatabaseType, attr(el, "dbType", "databaseType"))
	}
	fromChildren := func(el *etree.Element) {
		connect := child(el, "connect")
		setFirst(&info.Host, childText(el, "dbHost"), childText(el, "host"), attr(connect, "host"))
		setFirst(&info.Port, childText(el, "dbPort"), childText(el, "port"), attr(connect, "port"))
		setFirst(&info.Schema, childText(el, "dbSchema"), childText(el, "schema"))
		setFirst(&info.DatabaseType, childText(el, "dbType"), childText(el, "databaseType"), childText(el, "type"))
		setFirst(&info.Instance, attr(connect, "instance"))
		setFirst(&info.User, attr(connect, "user"))
		setFirst(&info.DatabaseName, childText(el, "name"))
		setFirst(&info.Version, attr(child(el, "version"), "server"))
		setFirst(&info.Patchlevel, childText(el, "patchlevel"))
	}
	fromAttrs(root)
	for _, entry := range children(root, "entry") {
		content := child(entry, "content")
		if content == nil || len(content.ChildElements()) == 0 {
			continue
		}
		props := content.ChildElements()[0]
		fromAttrs(props)
		fromChildren(props)
	}
	fromChildren(root)
	return info, nil
}
