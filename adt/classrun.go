package adt

import (
	"context"
	"net/http"
	"strings"

	"pkt.systems/sapadt/adterr"
	"pkt.systems/sapadt/internal/urlutil"
)

const classRunPath = "/sap/bc/adt/oo/classrun/"

// ClassRunResult is the console output of a class run.
type ClassRunResult struct {
	Class  string `json:"class"`
	Output string `json:"output"`
}

// RunClass executes a class implementing IF_OO_ADT_CLASSRUN. The class may
// be given by name or by its ADT URI.
func RunClass(ctx context.Context, s Session, class string) (ClassRunResult, error) {
	const op = "RunClass"
	name := strings.TrimSpace(class)
	if strings.HasPrefix(name, "/sap/bc/adt/") {
		name = strings.TrimRight(name, "/")
		name = name[strings.LastIndexByte(name, '/')+1:]
	}
	if name == "" {
		return ClassRunResult{}, adterr.New(op, classRunPath, adterr.Internal, "class name must not be empty")
	}
	path := classRunPath + urlutil.Encode(name)
	resp, err := s.Post(ctx, path, "", "text/plain", map[string]string{"Accept": "text/plain"})
	if err != nil {
		return ClassRunResult{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return ClassRunResult{}, httpError(op, path, resp)
	}
	return ClassRunResult{Class: name, Output: string(resp.Body)}, nil
}
