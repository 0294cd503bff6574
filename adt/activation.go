package adt

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"pkt.systems/sapadt/adterr"
	"pkt.systems/sapadt/xmlcodec"
)

const (
	inactivePath          = "/sap/bc/adt/activation/inactive"
	activationPath        = "/sap/bc/adt/activation"
	activateObjectPath    = "/sap/bc/adt/activation?method=activate&preauditRequested=true"
	activationContentType = "application/vnd.sap.adt.activation.v1+xml"
)

// GetInactiveObjects lists the objects of the current user awaiting
// activation.
func GetInactiveObjects(ctx context.Context, s Session) ([]InactiveObject, error) {
	resp, err := s.Get(ctx, inactivePath, map[string]string{
		"Accept": "application/vnd.sap.adt.inactivectsobjects.v1+xml, application/xml",
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, httpError("GetInactiveObjects", inactivePath, resp)
	}
	return xmlcodec.ParseInactiveObjects(resp.Body)
}

// ActivateAll activates objects in one request. An empty list succeeds
// without contacting the server.
func ActivateAll(ctx context.Context, s Session, objects []InactiveObject, timeout time.Duration) (ActivationResult, error) {
	if len(objects) == 0 {
		return ActivationResult{}, nil
	}
	body, err := xmlcodec.BuildActivation(objects)
	if err != nil {
		return ActivationResult{}, err
	}
	return activate(ctx, s, "ActivateAll", activationPath, body, len(objects), timeout)
}

// ActivateObject activates a single object.
func ActivateObject(ctx context.Context, s Session, uri, objectType, name string, timeout time.Duration) (ActivationResult, error) {
	if uri == "" {
		return ActivationResult{}, adterr.New("ActivateObject", "", adterr.Internal, "URI is required for activation")
	}
	body, err := xmlcodec.BuildActivation([]InactiveObject{{URI: uri, Type: objectType, Name: name}})
	if err != nil {
		return ActivationResult{}, err
	}
	return activate(ctx, s, "ActivateObject", activateObjectPath, body, 1, timeout)
}

// ActivatePending activates everything GetInactiveObjects reports.
func ActivatePending(ctx context.Context, s Session, timeout time.Duration) (ActivationResult, error) {
	objects, err := GetInactiveObjects(ctx, s)
	if err != nil {
		return ActivationResult{}, err
	}
	return ActivateAll(ctx, s, objects, timeout)
}

// activate posts the request. An empty log means every object activated.
func activate(ctx context.Context, s Session, op, path, body string, count int, timeout time.Duration) (ActivationResult, error) {
	resp, err := s.Post(ctx, path, body, activationContentType, map[string]string{"Accept": "application/xml"})
	if err != nil {
		return ActivationResult{}, err
	}
	var data []byte
	switch resp.StatusCode {
	case http.StatusOK:
		data = resp.Body
	case http.StatusAccepted:
		if data, err = awaitAccepted(ctx, s, op, path, resp, timeout); err != nil {
			return ActivationResult{}, err
		}
	default:
		return ActivationResult{}, httpError(op, path, resp)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return ActivationResult{Total: count, Activated: count}, nil
	}
	return xmlcodec.ParseActivationResult(data)
}
