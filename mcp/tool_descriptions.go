package mcp

import (
	"strings"
)

const (
	toolADTDiscover        = "adt_discover"
	toolADTSearch          = "adt_search"
	toolADTReadSource      = "adt_read_source"
	toolADTWriteSource     = "adt_write_source"
	toolADTCheckSyntax     = "adt_check_syntax"
	toolADTActivate        = "adt_activate"
	toolADTObjectStructure = "adt_object_structure"
	toolADTCreateObject    = "adt_create_object"
	toolADTDeleteObject    = "adt_delete_object"
	toolADTRunUnitTests    = "adt_run_unit_tests"
	toolADTListTransports  = "adt_list_transports"
	toolADTPackageExists   = "adt_package_exists"
	toolADTReadTable       = "adt_read_table"
	toolADTReadCDS         = "adt_read_cds"
	toolADTRunClass        = "adt_run_class"
	toolBWDiscover         = "bw_discover"
	toolBWDBInfo           = "bw_dbinfo"
	toolBWSearch           = "bw_search"
	toolBWXref             = "bw_xref"
	toolBWReadDTP          = "bw_read_dtp"
	toolBWLineage          = "bw_lineage"
	toolBWQueryGraph       = "bw_query_graph"
	toolBWPlanUpstream     = "bw_plan_upstream"
	toolBWListJobs         = "bw_list_jobs"
	toolBWJobStatus        = "bw_job_status"
	toolBWListLocks        = "bw_list_locks"
	toolBWReadDataFlow     = "bw_read_dataflow"
	toolBWSaveObject       = "bw_save_object"
	toolBWDeleteObject     = "bw_delete_object"
	toolBWActivate         = "bw_activate"
	toolDeployStatus       = "deploy_status"
)

var toolOrder = []string{
	toolADTDiscover,
	toolADTSearch,
	toolADTReadSource,
	toolADTWriteSource,
	toolADTCheckSyntax,
	toolADTActivate,
	toolADTObjectStructure,
	toolADTCreateObject,
	toolADTDeleteObject,
	toolADTRunUnitTests,
	toolADTListTransports,
	toolADTPackageExists,
	toolADTReadTable,
	toolADTReadCDS,
	toolADTRunClass,
	toolBWDiscover,
	toolBWDBInfo,
	toolBWSearch,
	toolBWXref,
	toolBWReadDTP,
	toolBWLineage,
	toolBWQueryGraph,
	toolBWPlanUpstream,
	toolBWListJobs,
	toolBWJobStatus,
	toolBWListLocks,
	toolBWReadDataFlow,
	toolBWSaveObject,
	toolBWDeleteObject,
	toolBWActivate,
	toolDeployStatus,
}

type toolContract struct {
	Purpose string
	UseWhen string
	Effects string
	Next    string
}

func formatToolDescription(spec toolContract) string {
	lines := []string{spec.Purpose}
	if spec.UseWhen != "" {
		lines = append(lines, "Use when: "+spec.UseWhen)
	}
	if spec.Effects != "" {
		lines = append(lines, "Effects: "+spec.Effects)
	}
	if spec.Next != "" {
		lines = append(lines, "Next: "+spec.Next)
	}
	return strings.Join(lines, "\n")
}

const readOnly = "Read-only."

var toolContracts = map[string]toolContract{
	toolADTDiscover: {
		Purpose: "Read the ADT discovery document and report which capabilities (abapGit, packages, activation, BW) the system offers.",
		UseWhen: "starting a session or before relying on an optional capability.",
		Effects: readOnly,
	},
	toolADTSearch: {
		Purpose: "Quick-search repository objects by name pattern (wildcards allowed).",
		UseWhen: "you know part of an object name and need its URI.",
		Effects: readOnly,
		Next:    "adt_object_structure or adt_read_source with a returned uri.",
	},
	toolADTReadSource: {
		Purpose: "Read the source code behind a source URI (for example .../source/main).",
		Effects: readOnly,
		Next:    "adt_write_source to change it, adt_check_syntax to validate.",
	},
	toolADTWriteSource: {
		Purpose: "Replace the source behind a source URI. The owning object is locked, written and unlocked within the call.",
		UseWhen: "you have the complete new source text.",
		Effects: "Writes an inactive version; pass activate=true to activate afterwards. Uses the lock's transport when none is given.",
		Next:    "adt_check_syntax, then adt_activate.",
	},
	toolADTCheckSyntax: {
		Purpose: "Run the syntax check on an object or source URI and list the findings.",
		Effects: readOnly,
	},
	toolADTActivate: {
		Purpose: "Activate one object, or every inactive object of the current user when no uri is given.",
		Effects: "Activates objects; the result lists activated and failed counts with the server messages.",
	},
	toolADTObjectStructure: {
		Purpose: "Read an object's metadata: name, type, description, source URI and includes.",
		Effects: readOnly,
	},
	toolADTCreateObject: {
		Purpose: "Create a repository object (for example PROG/P, CLAS/OC, INTF/OI) in a package.",
		Effects: "Creates the object and returns its URI.",
		Next:    "adt_write_source on <uri>/source/main.",
	},
	toolADTDeleteObject: {
		Purpose: "Delete a repository object. The object is locked and deleted within the call.",
		Effects: "Irreversible delete.",
	},
	toolADTRunUnitTests: {
		Purpose: "Run ABAP Unit tests of an object with harmless risk level and short or medium duration.",
		Effects: "Executes tests on the server; returns classes, methods and alerts.",
	},
	toolADTListTransports: {
		Purpose: "List modifiable transport requests, optionally for one user.",
		Effects: readOnly,
	},
	toolADTPackageExists: {
		Purpose: "Report whether an ABAP package exists.",
		Effects: readOnly,
	},
	toolADTReadTable: {
		Purpose: "Read the DDIC definition of a database table: description, delivery class and fields with key flags.",
		Effects: readOnly,
	},
	toolADTReadCDS: {
		Purpose: "Read the DDL source of a CDS view.",
		Effects: readOnly,
	},
	toolADTRunClass: {
		Purpose: "Run a class implementing IF_OO_ADT_CLASSRUN and return its console output.",
		UseWhen: "a class was written to print results with out->write.",
		Effects: "Executes code on the server.",
	},
	toolBWDiscover: {
		Purpose: "Read the BW modelling service document: every collection with its category term, scheme, URI template and media types.",
		UseWhen: "a BW read fails with 404 or 406 and the system may publish different endpoints.",
		Effects: readOnly,
	},
	toolBWDBInfo: {
		Purpose: "Report the database of the BW system: host, port, schema and type.",
		Effects: readOnly,
	},
	toolBWSearch: {
		Purpose: "Search the BW repository. Filters narrow by type, subtype, status, version, change data and dependencies.",
		Effects: readOnly,
		Next:    "bw_xref or bw_read_dtp with a returned name.",
	},
	toolBWXref: {
		Purpose: "List the objects a BW object uses or is used by.",
		Effects: readOnly,
	},
	toolBWReadDTP: {
		Purpose: "Read a data transfer process: source, target, source system and description.",
		Effects: readOnly,
		Next:    "bw_lineage for the full upstream chain.",
	},
	toolBWLineage: {
		Purpose: "Build the upstream lineage graph of a DTP: sources, targets, transformations and field mappings.",
		UseWhen: "you need to explain where a target's data comes from.",
		Effects: "Read-only. Partial failures become warnings in the graph.",
	},
	toolBWQueryGraph: {
		Purpose: "Build the component graph of a BW query (variables, key figures, filters, structures), optionally reduced and stitched to upstream lineage.",
		Effects: "Read-only. Partial failures become warnings in the graph.",
	},
	toolBWPlanUpstream: {
		Purpose: "Find the DTPs that load an InfoProvider, validating each candidate's target.",
		Effects: readOnly,
		Next:    "bw_lineage with selected_dtp when the plan is not ambiguous.",
	},
	toolBWListJobs: {
		Purpose: "List BW background jobs.",
		Effects: readOnly,
	},
	toolBWJobStatus: {
		Purpose: "Read the status of one BW background job.",
		Effects: readOnly,
	},
	toolBWListLocks: {
		Purpose: "List BW lock table entries, optionally for one user or matching a search string.",
		Effects: readOnly,
	},
	toolBWReadDataFlow: {
		Purpose: "Read a BW data flow (DMOD) with its nodes and connections.",
		Effects: readOnly,
	},
	toolBWSaveObject: {
		Purpose: "Replace the XML of a BW modelling object. The object is locked, written and unlocked within the call.",
		UseWhen: "you have the complete object XML, usually from a raw read of the M version.",
		Effects: "Writes an inactive version. Uses the lock's transport when none is given.",
		Next:    "bw_activate with mode validate, then activate.",
	},
	toolBWDeleteObject: {
		Purpose: "Delete a BW modelling object. The object is locked and deleted within the call.",
		Effects: "Irreversible delete.",
	},
	toolBWActivate: {
		Purpose: "Validate, simulate or activate BW objects through the mass activation.",
		Effects: "mode activate and background change the active version; validate and simulate only report messages. Background returns a job GUID.",
		Next:    "bw_job_status with job_guid after a background run.",
	},
	toolDeployStatus: {
		Purpose: "Report, for every repository in a deployment file, whether it is linked in abapGit and its status.",
		Effects: readOnly,
	},
}

func toolDescription(name string) string {
	return formatToolDescription(toolContracts[name])
}
