package xmlcodec

import (
	"strings"

	"pkt.systems/sapadt/adterr"
)

// ObjectKind describes how a repository object type is created.
type ObjectKind struct {
	Type       string
	Collection string
	Root       string
	Prefix     string
	Namespace  string
}

// CollectionPath is the ADT endpoint objects of this kind are POSTed to.
func (k ObjectKind) CollectionPath() string { return "/sap/bc/adt/" + k.Collection }

var objectKinds = []ObjectKind{
	{"PROG/P", "programs/programs", "program:abapProgram", "program", "http://www.sap.com/adt/programs/programs"},
	{"CLAS/OC", "oo/classes", "class:abapClass", "class", "http://www.sap.com/adt/oo/classes"},
	{"INTF/OI", "oo/interfaces", "intf:abapInterface", "intf", "http://www.sap.com/adt/oo/interfaces"},
	{"PROG/I", "programs/includes", "include:abapInclude", "include", "http://www.sap.com/adt/programs/includes"},
	{"FUGR/F", "functions/groups", "group:abapFunctionGroup", "group", "http://www.sap.com/adt/functions/groups"},
	{"DEVC/K", "packages", "pak:package", "pak", NSPackages},
	{"DDLS/DF", "ddic/ddl/sources", "ddl:ddlSource", "ddl", "http://www.sap.com/adt/ddic/ddl/sources"},
	{"TABL/DT", "ddic/tables", "blue:blueSource", "blue", "http://www.sap.com/adt/ddic/tables"},
	{"DTEL/DE", "ddic/dataelements", "blue:wbobj", "blue", "http://www.sap.com/adt/ddic/dataelements"},
	{"MSAG/N", "messageclass", "mc:messageClass", "mc", "http://www.sap.com/adt/messageclass"},
}

// LookupObjectKind returns the creation metadata for an ADT type such as
// CLAS/OC.
func LookupObjectKind(objectType string) (ObjectKind, bool) {
	t := strings.ToUpper(strings.TrimSpace(objectType))
	for _, k := range objectKinds {
		if k.Type == t {
			return k, true
		}
	}
	return ObjectKind{}, false
}

// ObjectTypes lists the creatable types in table order.
func ObjectTypes() []string {
	out := make([]string, len(objectKinds))
	for i, k := range objectKinds {
		out[i] = k.Type
	}
	return out
}

// BuildPackageCreate renders the body for POST /sap/bc/adt/packages.
func BuildPackageCreate(p PackageCreate) (string, error) {
	doc, root := newDoc("pak:package", map[string]string{"pak": NSPackages, "adtcore": NSAdtCore})
	root.CreateAttr("adtcore:description", p.Description)
	root.CreateAttr("adtcore:name", p.Name)
	root.CreateAttr("adtcore:type", "DEVC/K")
	root.CreateAttr("adtcore:version", "active")
	if p.Responsible != "" {
		root.CreateAttr("adtcore:responsible", p.Responsible)
	}
	root.CreateElement("adtcore:packageRef").CreateAttr("adtcore:name", p.Name)

	packageType := p.PackageType
	if packageType == "" {
		packageType = "development"
	}
	root.CreateElement("pak:attributes").CreateAttr("pak:packageType", packageType)

	super := root.CreateElement("pak:superPackage")
	if p.SuperPackage != "" {
		super.CreateAttr("adtcore:name", p.SuperPackage)
	}
	app := root.CreateElement("pak:applicationComponent")
	if p.ApplicationComponent != "" {
		app.CreateAttr("pak:name", p.ApplicationComponent)
	}

	transport := root.CreateElement("pak:transport")
	component := p.SoftwareComponent
	if component == "" {
		component = "LOCAL"
	}
	transport.CreateElement("pak:softwareComponent").CreateAttr("pak:name", component)
	layer := transport.CreateElement("pak:transportLayer")
	if p.TransportLayer != "" {
		layer.CreateAttr("pak:name", p.TransportLayer)
	}

	for _, name := range []string{"pak:translation", "pak:useAccesses", "pak:packageInterfaces", "pak:subPackages"} {
		root.CreateElement(name)
	}
	return render(doc)
}

// BuildRepoClone renders the abapGit link request. Empty transport and
// credential elements are always present.
func BuildRepoClone(repoURL, branch, pkg, transport, user, password string) (string, error) {
	doc, root := newDoc("abapgitrepo:repository", map[string]string{"abapgitrepo": NSAbapGit})
	root.CreateElement("abapgitrepo:package").SetText(pkg)
	root.CreateElement("abapgitrepo:url").SetText(repoURL)
	root.CreateElement("abapgitrepo:branchName").SetText(branch)
	root.CreateElement("abapgitrepo:transportRequest").SetText(transport)
	root.CreateElement("abapgitrepo:remoteUser").SetText(user)
	root.CreateElement("abapgitrepo:remotePassword").SetText(password)
	return render(doc)
}

// BuildActivation renders the object reference list for mass activation.
func BuildActivation(objects []InactiveObject) (string, error) {
	doc, root := newDoc("adtcore:objectReferences", map[string]string{"adtcore": NSAdtCore})
	for _, o := range objects {
		ref := root.CreateElement("adtcore:objectReference")
		ref.CreateAttr("adtcore:uri", o.URI)
		if o.Type != "" {
			ref.CreateAttr("adtcore:type", o.Type)
		}
		if o.Name != "" {
			ref.CreateAttr("adtcore:name", o.Name)
		}
	}
	return render(doc)
}

// BuildTransportCollect renders the BW CTO collection request.
func BuildTransportCollect(name, objectType string) (string, error) {
	doc, root := newDoc("bwCTO:transport", map[string]string{"bwCTO": NSBWCTO})
	obj := root.CreateElement("objects").CreateElement("object")
	obj.CreateAttr("name", name)
	obj.CreateAttr("type", objectType)
	return render(doc)
}

// BuildObjectCreate renders the creation body for one of the supported
// object types. Unknown types yield an Internal error.
func BuildObjectCreate(o ObjectCreate) (string, error) {
	kind, ok := LookupObjectKind(o.Type)
	if !ok {
		return "", adterr.Newf("BuildObjectCreate", "", adterr.Internal,
			"unsupported object type %q (supported: %s)", o.Type, strings.Join(ObjectTypes(), ", "))
	}
	doc, root := newDoc(kind.Root, map[string]string{kind.Prefix: kind.Namespace, "adtcore": NSAdtCore})
	root.CreateAttr("adtcore:description", o.Description)
	root.CreateAttr("adtcore:name", o.Name)
	root.CreateAttr("adtcore:type", kind.Type)
	if o.Responsible != "" {
		root.CreateAttr("adtcore:responsible", o.Responsible)
	}
	root.CreateElement("adtcore:packageRef").CreateAttr("adtcore:name", o.Package)
	return render(doc)
}

// BuildCheckRun renders a syntax check request for one object.
func BuildCheckRun(uri, version string) (string, error) {
	if version == "" {
		version = "active"
	}
	doc, root := newDoc("chkrun:checkObjectList", map[string]string{"chkrun": NSCheckRun, "adtcore": NSAdtCore})
	obj := root.CreateElement("chkrun:checkObject")
	obj.CreateAttr("adtcore:uri", uri)
	obj.CreateAttr("chkrun:version", version)
	return render(doc)
}

// UnitTestOptions selects which ABAP Unit tests run.
type UnitTestOptions struct {
	Harmless  bool
	Dangerous bool
	Critical  bool
	Short     bool
	Medium    bool
	Long      bool
}

// DefaultUnitTestOptions runs harmless short and medium tests.
func DefaultUnitTestOptions() UnitTestOptions {
	return UnitTestOptions{Harmless: true, Short: true, Medium: true}
}

// BuildUnitTestRun renders an aunit:runConfiguration for uri.
func BuildUnitTestRun(uri string, opts UnitTestOptions) (string, error) {
	doc, root := newDoc("aunit:runConfiguration", map[string]string{"aunit": NSAUnit, "adtcore": NSAdtCore})
	root.CreateElement("external").CreateElement("coverage").CreateAttr("active", "false")
	options := root.CreateElement("options")
	options.CreateElement("uriType").CreateAttr("value", "semantic")
	options.CreateElement("testDeterminationStrategy").CreateAttr("sameProgram", "true")
	risk := options.CreateElement("testRiskLevels")
	risk.CreateAttr("harmless", boolText(opts.Harmless))
	risk.CreateAttr("dangerous", boolText(opts.Dangerous))
	risk.CreateAttr("critical", boolText(opts.Critical))
	durations := options.CreateElement("testDurations")
	durations.CreateAttr("short", boolText(opts.Short))
	durations.CreateAttr("medium", boolText(opts.Medium))
	durations.CreateAttr("long", boolText(opts.Long))
	options.CreateElement("withNavigationUri").CreateAttr("enabled", "false")

	set := root.CreateElement("adtcore:objectSets").CreateElement("objectSet")
	set.CreateAttr("kind", "inclusive")
	set.CreateElement("adtcore:objectReferences").CreateElement("adtcore:objectReference").CreateAttr("adtcore:uri", uri)
	return render(doc)
}

// BuildATCRun renders an ATC run request for uri.
func BuildATCRun(uri string, maxVerdicts int) (string, error) {
	if maxVerdicts <= 0 {
		maxVerdicts = 100
	}
	doc, root := newDoc("atc:run", map[string]string{"atc": NSATC, "adtcore": NSAdtCore})
	root.CreateAttr("maximumVerdicts", itoa(maxVerdicts))
	set := root.CreateElement("objectSets").CreateElement("objectSet")
	set.CreateAttr("kind", "inclusive")
	set.CreateElement("adtcore:objectReferences").CreateElement("adtcore:objectReference").CreateAttr("adtcore:uri", uri)
	return render(doc)
}

// BuildTransportCreate renders the correction request creation body.
func BuildTransportCreate(description, pkg string) (string, error) {
	doc, root := newDoc("asx:abap", map[string]string{"asx": NSAbapXML})
	root.CreateAttr("version", "1.0")
	data := root.CreateElement("asx:values").CreateElement("DATA")
	data.CreateElement("OPERATION").SetText("I")
	data.CreateElement("DEVCLASS").SetText(pkg)
	data.CreateElement("REQUEST_TEXT").SetText(description)
	return render(doc)
}

func boolText(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// NSBWMassAct is the namespace of BW mass activation requests.
const NSBWMassAct = "http://www.sap.com/bw/massact"

// BuildBWActivation renders a BW mass activation request.
func BuildBWActivation(a BWActivation) (string, error) {
	if len(a.Objects) == 0 {
		return "", adterr.New("BuildBWActivation", "", adterr.Internal, "no objects to activate")
	}
	doc, root := newDoc("bwActivation:objects", map[string]string{"bwActivation": NSBWMassAct})
	root.CreateAttr("bwChangeable", "")
	root.CreateAttr("basisChangeable", "")
	if a.Force {
		root.CreateAttr("forceAct", "true")
	}
	if a.ExecChecks {
		root.CreateAttr("execChk", "true")
	}
	if a.WithCTO {
		root.CreateAttr("withCTO", "true")
	}
	for _, o := range a.Objects {
		el := root.CreateElement("object")
		el.CreateAttr("objectName", o.Name)
		el.CreateAttr("objectType", o.Type)
		el.CreateAttr("objectVersion", o.Version)
		el.CreateAttr("technicalObjectName", o.Name)
		el.CreateAttr("objectSubtype", o.Subtype)
		el.CreateAttr("objectDesc", o.Description)
		el.CreateAttr("objectStatus", o.Status)
		el.CreateAttr("activateObj", "true")
		el.CreateAttr("associationType", "")
		el.CreateAttr("corrnum", o.Transport)
		el.CreateAttr("package", o.Package)
		el.CreateAttr("href", o.URI)
		el.CreateAttr("hrefType", "")
	}
	return render(doc)
}
