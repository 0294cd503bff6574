package xmlcodec

import (
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// ParseDiscovery parses the ADT Atom service document.
func ParseDiscovery(data []byte) (Discovery, error) {
	const op = "ParseDiscovery"
	root, err := parse(op, "/sap/bc/adt/discovery", data)
	if err != nil {
		return Discovery{}, err
	}
	var out Discovery
	for _, ws := range children(root, "app:workspace") {
		wsTitle := childText(ws, "atom:title")
		for _, coll := range children(ws, "app:collection") {
			svc := Service{
				Title:     childText(coll, "atom:title"),
				Href:      attr(coll, "href"),
				Workspace: wsTitle,
			}
			cat := child(coll, "atom:category")
			if cat == nil {
				cat = child(child(coll, "categories"), "category")
			}
			if cat != nil {
				svc.Scheme = attr(cat, "scheme")
				svc.Term = attr(cat, "term")
			}
			for _, acc := range children(coll, "app:accept") {
				if v := text(acc); v != "" {
					svc.Accept = append(svc.Accept, v)
				}
			}
			for _, tl := range descendants(coll, "adtcomp:templateLink") {
				svc.Templates = append(svc.Templates, TemplateLink{
					Rel:      attr(tl, "rel"),
					Template: attr(tl, "template"),
					Type:     attr(tl, "type"),
				})
			}
			for _, l := range children(coll, "atom:link") {
				svc.Templates = append(svc.Templates, TemplateLink{
					Rel:      attr(l, "rel"),
					Template: firstNonEmpty(attr(l, "template"), attr(l, "href")),
					Type:     attr(l, "type"),
				})
			}
			switch {
			case strings.Contains(svc.Href, "/abapgit/repos"):
				out.HasAbapGit = true
			case svc.Href == "/sap/bc/adt/activation":
				out.HasActivation = true
			}
			if strings.Contains(svc.Href, "/packages") {
				out.HasPackages = true
			}
			if strings.HasPrefix(svc.Href, "/sap/bw/modeling") {
				out.HasBW = true
			}
			out.Services = append(out.Services, svc)
		}
	}
	return out, nil
}

// ParsePackage parses a pak:package document.
func ParsePackage(data []byte) (PackageInfo, error) {
	root, err := parse("ParsePackage", "/sap/bc/adt/packages", data)
	if err != nil {
		return PackageInfo{}, err
	}
	info := PackageInfo{
		Name:        attr(root, "adtcore:name"),
		Description: attr(root, "adtcore:description"),
		URI:         attr(root, "adtcore:uri"),
	}
	info.SuperPackage = attr(child(root, "pak:superPackage"), "adtcore:name")
	transport := child(root, "pak:transport")
	info.SoftwareComponent = attr(child(transport, "pak:softwareComponent"), "pak:name")
	info.TransportLayer = attr(child(transport, "pak:transportLayer"), "pak:name")
	return info, nil
}

// ParseRepos parses the abapGit repository list.
func ParseRepos(data []byte) ([]Repo, error) {
	root, err := parse("ParseRepos", "/sap/bc/adt/abapgit/repos", data)
	if err != nil {
		return nil, err
	}
	if is(root, "repository") {
		return []Repo{repoFrom(root)}, nil
	}
	var out []Repo
	for _, el := range children(root, "abapgitrepo:repository") {
		out = append(out, repoFrom(el))
	}
	return out, nil
}

// ParseRepo parses a single repository or status document.
func ParseRepo(data []byte) (Repo, error) {
	root, err := parse("ParseRepo", "/sap/bc/adt/abapgit/repos", data)
	if err != nil {
		return Repo{}, err
	}
	if !is(root, "repository") {
		if el := first(root, "repository"); el != nil {
			root = el
		}
	}
	return repoFrom(root), nil
}

func repoFrom(el *etree.Element) Repo {
	return Repo{
		Key:        childText(el, "abapgitrepo:key"),
		Package:    childText(el, "abapgitrepo:package"),
		URL:        childText(el, "abapgitrepo:url"),
		Branch:     childText(el, "abapgitrepo:branchName"),
		Status:     parseRepoStatus(childText(el, "abapgitrepo:status")),
		StatusText: childText(el, "abapgitrepo:statusText"),
	}
}

func parseRepoStatus(code string) RepoStatus {
	switch strings.ToUpper(code) {
	case "A":
		return RepoActive
	case "E":
		return RepoError
	case "":
		return RepoUnknown
	default:
		return RepoInactive
	}
}

// ParseInactiveObjects parses an ioc:inactiveObjects document.
func ParseInactiveObjects(data []byte) ([]InactiveObject, error) {
	root, err := parse("ParseInactiveObjects", "/sap/bc/adt/activation/inactiveobjects", data)
	if err != nil {
		return nil, err
	}
	return inactiveEntries(root), nil
}

func inactiveEntries(el *etree.Element) []InactiveObject {
	var out []InactiveObject
	for _, entry := range children(el, "ioc:entry") {
		ref := child(child(entry, "ioc:object"), "ioc:ref")
		if ref == nil {
			continue
		}
		obj := InactiveObject{
			URI:  attr(ref, "adtcore:uri"),
			Type: attr(ref, "adtcore:type"),
			Name: attr(ref, "adtcore:name"),
		}
		obj.ParentURI = attr(child(child(entry, "ioc:object"), "ioc:parentRef"), "adtcore:uri")
		if obj.URI == "" && obj.Name == "" {
			continue
		}
		out = append(out, obj)
	}
	return out
}

// ParseActivationResult accepts the chkl:messages activation log and the
// compact <activation><total/><activated/><failed/></activation> summary.
func ParseActivationResult(data []byte) (ActivationResult, error) {
	root, err := parse("ParseActivationResult", "/sap/bc/adt/activation", data)
	if err != nil {
		return ActivationResult{}, err
	}
	var res ActivationResult
	if t := child(root, "total"); t != nil {
		res.Total = atoi(text(t))
		res.Activated = atoi(childText(root, "activated"))
		res.Failed = atoi(childText(root, "failed"))
	}
	for _, msg := range children(child(root, "chkl:messages"), "msg") {
		m := ActivationMessage{
			Type: attr(msg, "type"),
			URI:  attr(msg, "objDescr", "href", "uri"),
			Line: atoi(attr(msg, "line")),
		}
		m.ShortText = childText(child(msg, "shortText"), "txt")
		if m.ShortText == "" {
			m.ShortText = childText(msg, "shortText")
		}
		res.Messages = append(res.Messages, m)
		res.Total++
		if m.IsError() {
			res.Failed++
		} else {
			res.Activated++
		}
	}
	for range inactiveEntries(child(root, "ioc:inactiveObjects")) {
		res.Failed++
		res.Total++
	}
	return res, nil
}

// ParsePollStatus reads the state of an asynchronous operation. Unknown
// states are treated as still running.
func ParsePollStatus(data []byte) (PollStatus, error) {
	root, err := parse("ParsePollStatus", "", data)
	if err != nil {
		return PollStatus{}, err
	}
	state := attr(root, "adtcore:status", "status", "state")
	if state == "" {
		state = firstNonEmpty(childText(root, "adtcore:status"), childText(root, "status"), childText(root, "state"))
	}
	out := PollStatus{State: PollStateOf(state), Explicit: strings.TrimSpace(state) != ""}
	out.Description = firstNonEmpty(childText(root, "adtcore:description"), attr(root, "adtcore:description"))
	if out.State == PollFailed {
		if progress := childText(child(root, "adtcore:progress"), "adtcore:text"); progress != "" {
			if out.Description != "" {
				out.Description += ": "
			}
			out.Description += progress
		}
	}
	return out, nil
}

// PollStateOf maps a server state name onto a PollState.
func PollStateOf(state string) PollState {
	switch strings.ToLower(strings.TrimSpace(state)) {
	case "completed", "finished", "success", "done":
		return PollCompleted
	case "failed", "error", "aborted", "cancelled":
		return PollFailed
	default:
		return PollRunning
	}
}

// ParseObjectStructure parses object metadata and its includes.
func ParseObjectStructure(uri string, data []byte) (ObjectStructure, error) {
	root, err := parse("ParseObjectStructure", uri, data)
	if err != nil {
		return ObjectStructure{}, err
	}
	s := ObjectStructure{
		Name:        attr(root, "adtcore:name"),
		Type:        attr(root, "adtcore:type"),
		URI:         uri,
		Description: attr(root, "adtcore:description"),
		SourceURI:   attr(root, "abapsource:sourceUri"),
		Version:     attr(root, "adtcore:version"),
		Language:    attr(root, "adtcore:language"),
		Responsible: attr(root, "adtcore:responsible"),
		ChangedBy:   attr(root, "adtcore:changedBy"),
		ChangedAt:   attr(root, "adtcore:changedAt"),
		CreatedAt:   attr(root, "adtcore:createdAt"),
	}
	if u := attr(root, "adtcore:uri"); u != "" {
		s.URI = u
	}
	for _, el := range root.ChildElements() {
		if !strings.Contains(strings.ToLower(el.Tag), "include") {
			continue
		}
		inc := Include{
			Name:        attr(el, "adtcore:name"),
			Type:        attr(el, "adtcore:type"),
			IncludeType: attr(el, "class:includeType"),
			SourceURI:   attr(el, "abapsource:sourceUri"),
		}
		if inc.Name != "" {
			s.Includes = append(s.Includes, inc)
		}
	}
	return s, nil
}

// ParseSearchResults parses the ADT quick search result list.
func ParseSearchResults(data []byte) ([]SearchResult, error) {
	root, err := parse("ParseSearchResults", "/sap/bc/adt/repository/informationsystem/search", data)
	if err != nil {
		return nil, err
	}
	var out []SearchResult
	for _, el := range root.ChildElements() {
		r := SearchResult{
			URI:         attr(el, "adtcore:uri"),
			Type:        attr(el, "adtcore:type"),
			Name:        attr(el, "adtcore:name"),
			Description: attr(el, "adtcore:description"),
			Package:     attr(el, "adtcore:packageName"),
		}
		if r.Name == "" {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// ParseTransports parses the transport organizer tree. Requests are the
// direct children carrying a number; their numbered descendants are tasks.
func ParseTransports(data []byte) ([]Transport, error) {
	root, err := parse("ParseTransports", "/sap/bc/adt/cts/transportrequests", data)
	if err != nil {
		return nil, err
	}
	var out []Transport
	var collect func(el *etree.Element, dst *[]Transport)
	collect = func(el *etree.Element, dst *[]Transport) {
		for _, c := range el.ChildElements() {
			number := attr(c, "tm:number")
			if number == "" {
				collect(c, dst)
				continue
			}
			tr := Transport{
				Number:      number,
				Description: attr(c, "tm:desc"),
				Owner:       attr(c, "tm:owner"),
				Status:      attr(c, "tm:status"),
				Target:      attr(c, "tm:target"),
			}
			collect(c, &tr.Tasks)
			*dst = append(*dst, tr)
		}
	}
	collect(root, &out)
	return out, nil
}

// ParseLockResult reads asx:abap/asx:values/DATA of a lock response. The
// caller decides how to treat an empty handle.
func ParseLockResult(uri string, data []byte) (LockResult, error) {
	root, err := parse("ParseLockResult", uri, data)
	if err != nil {
		return LockResult{}, err
	}
	d := child(child(root, "asx:values"), "DATA")
	if d == nil {
		d = first(root, "DATA")
	}
	return LockResult{
		Handle:        childText(d, "LOCK_HANDLE"),
		Transport:     childText(d, "CORRNR"),
		TransportUser: childText(d, "CORRUSER"),
		TransportText: childText(d, "CORRTEXT"),
	}, nil
}

// ParseCheckMessages walks checkRunReports/checkReport/checkMessageList.
func ParseCheckMessages(data []byte) ([]CheckMessage, error) {
	root, err := parse("ParseCheckMessages", "/sap/bc/adt/checkruns", data)
	if err != nil {
		return nil, err
	}
	var out []CheckMessage
	for _, msg := range descendants(root, "checkMessage") {
		m := CheckMessage{
			Type: attr(msg, "chkrun:type"),
			Text: attr(msg, "chkrun:shortText"),
			URI:  attr(msg, "chkrun:uri"),
		}
		m.Line, m.Offset = sourcePosition(m.URI)
		out = append(out, m)
	}
	return out, nil
}

// sourcePosition reads #start=line,offset from a source URI fragment.
func sourcePosition(uri string) (line, offset int) {
	hash := strings.IndexByte(uri, '#')
	if hash < 0 {
		return 0, 0
	}
	frag := uri[hash+1:]
	i := strings.Index(frag, "start=")
	if i < 0 {
		return 0, 0
	}
	nums := frag[i+len("start="):]
	if end := strings.IndexAny(nums, ";&"); end >= 0 {
		nums = nums[:end]
	}
	l, o, _ := strings.Cut(nums, ",")
	return atoi(l), atoi(o)
}

// ParseUnitTestResult parses an ABAP Unit run result.
func ParseUnitTestResult(data []byte) (UnitTestResult, error) {
	root, err := parse("ParseUnitTestResult", "/sap/bc/adt/abapunit/testruns", data)
	if err != nil {
		return UnitTestResult{}, err
	}
	var out UnitTestResult
	for _, cls := range descendants(root, "testClass") {
		tc := TestClass{
			Name:             attr(cls, "adtcore:name"),
			URI:              attr(cls, "adtcore:uri"),
			RiskLevel:        attr(cls, "riskLevel"),
			DurationCategory: attr(cls, "durationCategory"),
			Alerts:           testAlerts(child(cls, "alerts")),
		}
		for _, m := range children(child(cls, "testMethods"), "testMethod") {
			secs, _ := strconv.ParseFloat(attr(m, "executionTime"), 64)
			tc.Methods = append(tc.Methods, TestMethod{
				Name:          attr(m, "adtcore:name"),
				ExecutionTime: secs,
				Alerts:        testAlerts(child(m, "alerts")),
			})
		}
		out.Classes = append(out.Classes, tc)
	}
	return out, nil
}

func testAlerts(el *etree.Element) []TestAlert {
	var out []TestAlert
	for _, a := range children(el, "alert") {
		alert := TestAlert{
			Kind:     attr(a, "kind"),
			Severity: attr(a, "severity"),
			Title:    childText(a, "title"),
		}
		for _, d := range descendants(child(a, "details"), "detail") {
			if t := attr(d, "text"); t != "" {
				alert.Details = append(alert.Details, t)
			}
		}
		out = append(out, alert)
	}
	return out
}

// ParseATCWorklist parses the findings of an ATC worklist.
func ParseATCWorklist(data []byte) ([]ATCFinding, error) {
	root, err := parse("ParseATCWorklist", "/sap/bc/adt/atc/worklists", data)
	if err != nil {
		return nil, err
	}
	var out []ATCFinding
	for _, obj := range children(child(root, "objects"), "object") {
		for _, f := range children(child(obj, "findings"), "finding") {
			out = append(out, ATCFinding{
				URI:          attr(f, "uri"),
				Priority:     atoi(attr(f, "priority")),
				CheckTitle:   attr(f, "checkTitle"),
				MessageTitle: attr(f, "messageTitle"),
				Message:      firstNonEmpty(attr(f, "message"), text(f)),
			})
		}
	}
	return out, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// ParseTableDefinition parses a DDIC table. Columns are the root children
// whose element name mentions field or column.
func ParseTableDefinition(name string, data []byte) (TableInfo, error) {
	root, err := parse("ParseTableDefinition", "/sap/bc/adt/ddic/tables/"+strings.ToLower(name), data)
	if err != nil {
		return TableInfo{}, err
	}
	out := TableInfo{
		Name:          firstNonEmpty(attr(root, "adtcore:name"), name),
		Description:   attr(root, "adtcore:description"),
		DeliveryClass: attr(root, "tabl:deliveryClass"),
	}
	for _, el := range root.ChildElements() {
		tag := strings.ToLower(el.Tag)
		if !strings.Contains(tag, "field") && !strings.Contains(tag, "column") {
			continue
		}
		f := TableField{
			Name:        attr(el, "adtcore:name"),
			Type:        attr(el, "tabl:type"),
			Description: attr(el, "adtcore:description"),
			Key:         attr(el, "tabl:keyField") == "true",
		}
		if f.Name != "" {
			out.Fields = append(out.Fields, f)
		}
	}
	return out, nil
}
