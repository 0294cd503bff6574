package xmlcodec

import "strings"

// TemplateLink is an ADT URI template advertised by a discovery collection.
type TemplateLink struct {
	Rel      string `json:"rel"`
	Template string `json:"template"`
	Type     string `json:"type,omitempty"`
}

// Service is one app:collection of the discovery document.
type Service struct {
	Title     string         `json:"title"`
	Href      string         `json:"href"`
	Workspace string         `json:"workspace,omitempty"`
	Scheme    string         `json:"scheme,omitempty"`
	Term      string         `json:"term,omitempty"`
	Accept    []string       `json:"accept,omitempty"`
	Templates []TemplateLink `json:"templates,omitempty"`
}

// Discovery is the parsed ADT service document.
type Discovery struct {
	Services      []Service `json:"services"`
	HasAbapGit    bool      `json:"has_abapgit"`
	HasPackages   bool      `json:"has_packages"`
	HasActivation bool      `json:"has_activation"`
	HasBW         bool      `json:"has_bw"`
}

// PackageCreate carries the values of a package creation request.
type PackageCreate struct {
	Name                 string
	Description          string
	SuperPackage         string
	SoftwareComponent    string
	TransportLayer       string
	ApplicationComponent string
	Responsible          string
	PackageType          string
}

// PackageInfo describes an existing package.
type PackageInfo struct {
	Name              string `json:"name"`
	Description       string `json:"description,omitempty"`
	SuperPackage      string `json:"super_package,omitempty"`
	SoftwareComponent string `json:"software_component,omitempty"`
	TransportLayer    string `json:"transport_layer,omitempty"`
	URI               string `json:"uri,omitempty"`
}

// RepoStatus is the link state of an abapGit repository.
type RepoStatus int

const (
	RepoUnknown RepoStatus = iota
	RepoActive
	RepoInactive
	RepoError
)

func (s RepoStatus) String() string {
	switch s {
	case RepoActive:
		return "active"
	case RepoInactive:
		return "inactive"
	case RepoError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalText renders the status by name.
func (s RepoStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Repo is a linked abapGit repository.
type Repo struct {
	Key        string     `json:"key"`
	Package    string     `json:"package"`
	URL        string     `json:"url"`
	Branch     string     `json:"branch"`
	Status     RepoStatus `json:"status"`
	StatusText string     `json:"status_text,omitempty"`
}

// InactiveObject is an object awaiting activation.
type InactiveObject struct {
	URI       string `json:"uri"`
	Type      string `json:"type"`
	Name      string `json:"name"`
	ParentURI string `json:"parent_uri,omitempty"`
}

// ActivationMessage is one message of an activation log.
type ActivationMessage struct {
	Type      string `json:"type"`
	ShortText string `json:"short_text"`
	URI       string `json:"uri,omitempty"`
	Line      int    `json:"line,omitempty"`
}

// IsError reports whether the message signals a failed activation.
func (m ActivationMessage) IsError() bool { return m.Type == "E" || m.Type == "A" }

// ActivationResult summarises an activation run.
type ActivationResult struct {
	Total     int                 `json:"total"`
	Activated int                 `json:"activated"`
	Failed    int                 `json:"failed"`
	Messages  []ActivationMessage `json:"messages,omitempty"`
}

// ErrorMessages returns the messages of type E or A.
func (r ActivationResult) ErrorMessages() []ActivationMessage {
	var out []ActivationMessage
	for _, m := range r.Messages {
		if m.IsError() {
			out = append(out, m)
		}
	}
	return out
}

// PollState is the state of an asynchronous server operation.
type PollState int

const (
	PollRunning PollState = iota
	PollCompleted
	PollFailed
)

func (s PollState) String() string {
	switch s {
	case PollCompleted:
		return "completed"
	case PollFailed:
		return "failed"
	default:
		return "running"
	}
}

// MarshalText renders the state by name.
func (s PollState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// PollStatus is a parsed poll response.
type PollStatus struct {
	State       PollState
	Description string
	// Explicit is set when the document carried a state attribute or
	// element. Result documents returned at completion do not.
	Explicit bool
}

// Include is a source include of a repository object.
type Include struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	IncludeType string `json:"include_type,omitempty"`
	SourceURI   string `json:"source_uri,omitempty"`
}

// ObjectStructure is the metadata of a repository object.
type ObjectStructure struct {
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	URI         string    `json:"uri"`
	Description string    `json:"description,omitempty"`
	SourceURI   string    `json:"source_uri,omitempty"`
	Version     string    `json:"version,omitempty"`
	Language    string    `json:"language,omitempty"`
	Responsible string    `json:"responsible,omitempty"`
	ChangedBy   string    `json:"changed_by,omitempty"`
	ChangedAt   string    `json:"changed_at,omitempty"`
	CreatedAt   string    `json:"created_at,omitempty"`
	Includes    []Include `json:"includes,omitempty"`
}

// SearchResult is one hit of the ADT quick search.
type SearchResult struct {
	URI         string `json:"uri"`
	Type        string `json:"type"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Package     string `json:"package,omitempty"`
}

// Transport is a change request or one of its tasks.
type Transport struct {
	Number      string      `json:"number"`
	Description string      `json:"description,omitempty"`
	Owner       string      `json:"owner,omitempty"`
	Status      string      `json:"status,omitempty"`
	Target      string      `json:"target,omitempty"`
	Tasks       []Transport `json:"tasks,omitempty"`
}

// LockResult is the server response to a successful lock.
type LockResult struct {
	Handle        string `json:"handle"`
	Transport     string `json:"transport,omitempty"`
	TransportUser string `json:"transport_user,omitempty"`
	TransportText string `json:"transport_text,omitempty"`
}

// CheckMessage is one syntax check finding.
type CheckMessage struct {
	Type   string `json:"type"`
	Text   string `json:"text"`
	URI    string `json:"uri,omitempty"`
	Line   int    `json:"line,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// IsError reports whether the finding is an error.
func (m CheckMessage) IsError() bool { return m.Type == "E" || m.Type == "A" }

// ObjectCreate carries the values for creating a repository object.
type ObjectCreate struct {
	Type        string
	Name        string
	Package     string
	Description string
	Responsible string
}

// TestAlert is an assertion failure or exception raised by a unit test.
type TestAlert struct {
	Kind     string   `json:"kind"`
	Severity string   `json:"severity"`
	Title    string   `json:"title"`
	Details  []string `json:"details,omitempty"`
}

// TestMethod is one executed test method.
type TestMethod struct {
	Name          string      `json:"name"`
	ExecutionTime float64     `json:"execution_time"`
	Alerts        []TestAlert `json:"alerts,omitempty"`
}

// Passed reports whether the method raised no alerts.
func (m TestMethod) Passed() bool { return len(m.Alerts) == 0 }

// TestClass groups the methods of a test class.
type TestClass struct {
	Name             string       `json:"name"`
	URI              string       `json:"uri,omitempty"`
	RiskLevel        string       `json:"risk_level,omitempty"`
	DurationCategory string       `json:"duration_category,omitempty"`
	Methods          []TestMethod `json:"methods"`
	Alerts           []TestAlert  `json:"alerts,omitempty"`
}

// UnitTestResult is the outcome of an ABAP Unit run.
type UnitTestResult struct {
	Classes []TestClass `json:"classes"`
}

// Counts returns the number of methods and failed methods.
func (r UnitTestResult) Counts() (total, failed int) {
	for _, c := range r.Classes {
		for _, m := range c.Methods {
			total++
			if !m.Passed() {
				failed++
			}
		}
	}
	return total, failed
}

// ATCFinding is one finding of an ATC worklist.
type ATCFinding struct {
	URI          string `json:"uri"`
	Priority     int    `json:"priority"`
	CheckTitle   string `json:"check_title,omitempty"`
	MessageTitle string `json:"message_title,omitempty"`
	Message      string `json:"message,omitempty"`
}

// BWSearchItem is one entry of a BW repository search feed.
type BWSearchItem struct {
	Name          string `json:"name"`
	Type          string `json:"type"`
	Subtype       string `json:"subtype,omitempty"`
	Description   string `json:"description,omitempty"`
	Version       string `json:"version,omitempty"`
	Status        string `json:"status,omitempty"`
	TechnicalName string `json:"technical_name,omitempty"`
	LastChanged   string `json:"last_changed,omitempty"`
	URI           string `json:"uri,omitempty"`
}

// BWSearchFeed is a parsed BW search feed.
type BWSearchFeed struct {
	Items          []BWSearchItem
	FeedIncomplete bool
	// UnqualifiedOnly lists entries whose attributes matched only without
	// the bwModel prefix.
	UnqualifiedOnly []string
}

// XrefEntry is one cross reference of a BW object.
type XrefEntry struct {
	Name             string `json:"name"`
	Type             string `json:"type"`
	Version          string `json:"version,omitempty"`
	Status           string `json:"status,omitempty"`
	Description      string `json:"description,omitempty"`
	AssociationType  string `json:"association_type,omitempty"`
	AssociationLabel string `json:"association_label,omitempty"`
	URI              string `json:"uri,omitempty"`
}

// DTPDetail describes a data transfer process.
type DTPDetail struct {
	Name                 string            `json:"name"`
	Description          string            `json:"description,omitempty"`
	Type                 string            `json:"type,omitempty"`
	SourceName           string            `json:"source_name"`
	SourceType           string            `json:"source_type"`
	SourceSystem         string            `json:"source_system,omitempty"`
	TargetName           string            `json:"target_name"`
	TargetType           string            `json:"target_type"`
	RequestSelectionMode string            `json:"request_selection_mode,omitempty"`
	ExtractionSettings   map[string]string `json:"extraction_settings,omitempty"`
	ExecutionSettings    map[string]string `json:"execution_settings,omitempty"`
}

// TRFNField is a source or target field of a transformation.
type TRFNField struct {
	Name        string `json:"name"`
	Type        string `json:"type,omitempty"`
	Aggregation string `json:"aggregation,omitempty"`
	Key         bool   `json:"key,omitempty"`
}

// TRFNRule maps source fields onto target fields.
type TRFNRule struct {
	ID           string            `json:"id,omitempty"`
	Group        string            `json:"group,omitempty"`
	SourceFields []string          `json:"source_fields"`
	TargetFields []string          `json:"target_fields"`
	RuleType     string            `json:"rule_type,omitempty"`
	Formula      string            `json:"formula,omitempty"`
	Constant     string            `json:"constant,omitempty"`
	StepAttrs    map[string]string `json:"step_attributes,omitempty"`
}

// Kind classifies the rule as direct, formula, constant or routine.
func (r TRFNRule) Kind() string {
	t := strings.ToLower(r.RuleType)
	switch {
	case r.Formula != "" || t == "formula":
		return "formula"
	case r.Constant != "" || t == "constant":
		return "constant"
	case t == "abap" || t == "amdp" || strings.Contains(t, "routine"):
		return "routine"
	default:
		return "direct"
	}
}

// TRFNDetail describes a transformation.
type TRFNDetail struct {
	Name          string      `json:"name"`
	Description   string      `json:"description,omitempty"`
	SourceName    string      `json:"source_name"`
	SourceType    string      `json:"source_type"`
	TargetName    string      `json:"target_name"`
	TargetType    string      `json:"target_type"`
	StartRoutine  string      `json:"start_routine,omitempty"`
	EndRoutine    string      `json:"end_routine,omitempty"`
	ExpertRoutine string      `json:"expert_routine,omitempty"`
	HANARuntime   bool        `json:"hana_runtime,omitempty"`
	SourceFields  []TRFNField `json:"source_fields,omitempty"`
	TargetFields  []TRFNField `json:"target_fields,omitempty"`
	Rules         []TRFNRule  `json:"rules,omitempty"`
}

// ADSOField is a field of an advanced DataStore object.
type ADSOField struct {
	Name        string `json:"name"`
	DataType    string `json:"data_type,omitempty"`
	InfoObject  string `json:"info_object,omitempty"`
	Description string `json:"description,omitempty"`
	Key         bool   `json:"key,omitempty"`
	Length      int    `json:"length,omitempty"`
	Decimals    int    `json:"decimals,omitempty"`
}

// ADSODetail describes an advanced DataStore object.
type ADSODetail struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Package     string      `json:"package,omitempty"`
	Fields      []ADSOField `json:"fields,omitempty"`
}

// RSDSField is a field of a DataSource segment.
type RSDSField struct {
	Segment     string `json:"segment,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	DataType    string `json:"data_type,omitempty"`
	Length      int    `json:"length,omitempty"`
	Decimals    int    `json:"decimals,omitempty"`
	Key         bool   `json:"key,omitempty"`
}

// RSDSDetail describes a DataSource.
type RSDSDetail struct {
	Name         string      `json:"name"`
	SourceSystem string      `json:"source_system"`
	Description  string      `json:"description,omitempty"`
	Package      string      `json:"package,omitempty"`
	Fields       []RSDSField `json:"fields,omitempty"`
}

// QueryRef is a reference from a query component to another component or
// to an InfoObject.
type QueryRef struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Role string `json:"role,omitempty"`
}

// QueryComponent is a query, variable, key figure, filter or structure.
type QueryComponent struct {
	Name         string     `json:"name"`
	Type         string     `json:"type"`
	Description  string     `json:"description,omitempty"`
	InfoProvider string     `json:"info_provider,omitempty"`
	ProviderType string     `json:"provider_type,omitempty"`
	References   []QueryRef `json:"references,omitempty"`
}

// Job is a BW background job.
type Job struct {
	GUID        string `json:"guid"`
	Status      string `json:"status,omitempty"`
	JobType     string `json:"job_type,omitempty"`
	Description string `json:"description,omitempty"`
}

// JobProgress is the progress resource of a job.
type JobProgress struct {
	Status      string `json:"status,omitempty"`
	Description string `json:"description,omitempty"`
	Percentage  int    `json:"percentage"`
}

// JobStep is one step of a job.
type JobStep struct {
	Name        string `json:"name"`
	Status      string `json:"status,omitempty"`
	Description string `json:"description,omitempty"`
}

// JobMessage is one application log message of a job.
type JobMessage struct {
	Severity   string `json:"severity,omitempty"`
	ObjectName string `json:"object_name,omitempty"`
	Text       string `json:"text"`
}

// BWLock is an entry of the BW lock table.
type BWLock struct {
	Client    string `json:"client,omitempty"`
	User      string `json:"user"`
	Mode      string `json:"mode,omitempty"`
	TableName string `json:"table_name,omitempty"`
	TableDesc string `json:"table_desc,omitempty"`
	Object    string `json:"object,omitempty"`
	Arg       string `json:"arg,omitempty"`
	Owner1    string `json:"owner1,omitempty"`
	Owner2    string `json:"owner2,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	UpdCount  int    `json:"upd_count,omitempty"`
	DiaCount  int    `json:"dia_count,omitempty"`
}

// CollectedObject is an object picked up by a transport collection.
type CollectedObject struct {
	Name          string `json:"name"`
	Type          string `json:"type"`
	Description   string `json:"description,omitempty"`
	Status        string `json:"status,omitempty"`
	URI           string `json:"uri,omitempty"`
	LastChangedBy string `json:"last_changed_by,omitempty"`
	LastChangedAt string `json:"last_changed_at,omitempty"`
}

// CollectedDependency is a dependency reported by a transport collection.
type CollectedDependency struct {
	Name            string `json:"name"`
	Type            string `json:"type"`
	Version         string `json:"version,omitempty"`
	Author          string `json:"author,omitempty"`
	Package         string `json:"package,omitempty"`
	AssociationType string `json:"association_type,omitempty"`
	AssociatedName  string `json:"associated_name,omitempty"`
	AssociatedType  string `json:"associated_type,omitempty"`
}

// TransportCollect is the result of a BW transport collection.
type TransportCollect struct {
	Details      []CollectedObject     `json:"details,omitempty"`
	Dependencies []CollectedDependency `json:"dependencies,omitempty"`
	Messages     []string              `json:"messages,omitempty"`
}

// Row is a generic attribute row. The keys _element and _text hold the local
// element name and its text.
type Row map[string]string

// BWLockResult is the edit lock granted on a BW modelling object.
type BWLockResult struct {
	Handle        string `json:"handle"`
	Transport     string `json:"transport,omitempty"`
	TransportText string `json:"transport_text,omitempty"`
	TransportUser string `json:"transport_user,omitempty"`
	Local         bool   `json:"local,omitempty"`
	Timestamp     string `json:"timestamp,omitempty"`
	Package       string `json:"package,omitempty"`
}

// BWActivationObject is one object of a BW mass activation request.
type BWActivationObject struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Version     string `json:"version,omitempty"`
	Subtype     string `json:"subtype,omitempty"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status,omitempty"`
	Transport   string `json:"transport,omitempty"`
	Package     string `json:"package,omitempty"`
	URI         string `json:"uri,omitempty"`
}

// BWActivation is the body of a BW mass activation request.
type BWActivation struct {
	Objects    []BWActivationObject
	Force      bool
	ExecChecks bool
	WithCTO    bool
}

// BWActivationMessage is a message of a BW activation run.
type BWActivationMessage struct {
	Severity   string `json:"severity"`
	ObjectName string `json:"object_name,omitempty"`
	ObjectType string `json:"object_type,omitempty"`
	Text       string `json:"text"`
}

// BWActivationResult is the outcome of a BW activation request. A background
// activation reports the GUID of the job it started.
type BWActivationResult struct {
	Success  bool                  `json:"success"`
	JobGUID  string                `json:"job_guid,omitempty"`
	Messages []BWActivationMessage `json:"messages,omitempty"`
}

// Errors returns the messages with severity E.
func (r BWActivationResult) Errors() []BWActivationMessage {
	var out []BWActivationMessage
	for _, m := range r.Messages {
		if m.Severity == "E" {
			out = append(out, m)
		}
	}
	return out
}

// DataFlowNode is a node of a BW data flow diagram.
type DataFlowNode struct {
	ID         string            `json:"id"`
	Name       string            `json:"name,omitempty"`
	Type       string            `json:"type,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// DataFlowConnection connects two data flow nodes.
type DataFlowConnection struct {
	From       string            `json:"from"`
	To         string            `json:"to"`
	Type       string            `json:"type,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// DataFlow is a BW data flow object (DMOD) with its topology.
type DataFlow struct {
	Name        string               `json:"name"`
	Description string               `json:"description,omitempty"`
	Attributes  map[string]string    `json:"attributes,omitempty"`
	Nodes       []DataFlowNode       `json:"nodes"`
	Connections []DataFlowConnection `json:"connections"`
}

// DBInfo describes the database behind a BW system.
type DBInfo struct {
	Host         string `json:"host,omitempty"`
	Port         string `json:"port,omitempty"`
	Schema       string `json:"schema,omitempty"`
	DatabaseType string `json:"database_type,omitempty"`
	DatabaseName string `json:"database_name,omitempty"`
	Instance     string `json:"instance,omitempty"`
	User         string `json:"user,omitempty"`
	Version      string `json:"version,omitempty"`
	Patchlevel   string `json:"patchlevel,omitempty"`
}

// TableField is a column of a DDIC table.
type TableField struct {
	Name        string `json:"name"`
	Type        string `json:"type,omitempty"`
	Description string `json:"description,omitempty"`
	Key         bool   `json:"key,omitempty"`
}

// TableInfo is a DDIC table definition.
type TableInfo struct {
	Name          string       `json:"name"`
	Description   string       `json:"description,omitempty"`
	DeliveryClass string       `json:"delivery_class,omitempty"`
	Fields        []TableField `json:"fields"`
}
