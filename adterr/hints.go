package adterr

import "strings"

const bwModelingPrefix = "/sap/bw/modeling/"

// AddHint annotates e with remediation advice for well-known server-side
// misconfigurations. It returns e to allow chaining and leaves an existing
// hint untouched.
func AddHint(e *Error) *Error {
	if e == nil || e.Hint != nil || e.HTTPStatus == nil {
		return e
	}
	endpoint := strings.ToLower(e.Endpoint)
	bwEndpoint := strings.Contains(endpoint, bwModelingPrefix)
	var hint string
	switch *e.HTTPStatus {
	case 406:
		if bwEndpoint {
			hint = "Content type version mismatch. Run 'sapadt bw discover' to check the versions this system supports."
		}
	case 404:
		switch {
		case bwEndpoint:
			hint = "The service may need activation: activate the BW Modeling API in transaction SICF (path /sap/bw/modeling/)."
		case strings.Contains(endpoint, "/abapgit/"):
			hint = "The service may need activation: install abapGit and activate /sap/bc/adt/abapgit in transaction SICF."
		default:
			hint = "The object does not exist or the service needs activation in transaction SICF (path /sap/bc/adt/)."
		}
	case 500:
		if !mentionsActivation(e) {
			if bwEndpoint && strings.Contains(endpoint, "bwsearch") {
				hint = "Check the object type filter. Valid BW types include IOBJ, ADSO, TRFN, DTPA, CUBE, MPRO, HCPR, RSDS, LSYS, QUERY."
			}
			break
		}
		switch {
		case strings.Contains(endpoint, "bwsearch"):
			hint = "Activate BW Search in transaction RSOSM."
		case strings.Contains(endpoint, "/cto"):
			hint = "Activate the BW transport organizer (CTO) in transaction RSOSM."
		case bwEndpoint:
			hint = "Activate the required BW service in transaction RSOSM."
		case strings.Contains(endpoint, "/abapgit/"):
			hint = "The abapGit backend is not available on this system; install abapGit for ADT."
		default:
			hint = "The ADT service behind this endpoint is not activated; check transaction SICF."
		}
	}
	if hint != "" {
		e.Hint = &hint
	}
	return e
}

func mentionsActivation(e *Error) bool {
	check := func(s string) bool {
		s = strings.ToLower(s)
		return strings.Contains(s, "not activated") || strings.Contains(s, "not implemented")
	}
	if check(e.Message) {
		return true
	}
	return e.SAPError != nil && check(*e.SAPError)
}

// FromResponse is FromHTTPStatus followed by AddHint.
func FromResponse(operation, endpoint string, status int, body []byte) *Error {
	return AddHint(FromHTTPStatus(operation, endpoint, status, body))
}
