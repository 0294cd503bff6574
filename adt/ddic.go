package adt

import (
	"context"
	"net/http"
	"strings"

	"pkt.systems/sapadt/adterr"
	"pkt.systems/sapadt/internal/urlutil"
	"pkt.systems/sapadt/xmlcodec"
)

const (
	tablesPath     = "/sap/bc/adt/ddic/tables/"
	ddlSourcesPath = "/sap/bc/adt/ddic/ddl/sources/"
)

// TableInfo is the DDIC definition of a transparent table.
type TableInfo = xmlcodec.TableInfo

func readDDIC(ctx context.Context, s Session, op, path, accept, what string) ([]byte, error) {
	resp, err := s.Get(ctx, path, map[string]string{"Accept": accept})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		e := adterr.FromResponse(op, path, resp.StatusCode, resp.Body)
		e.Message = what + " not found"
		return nil, e
	}
	if resp.StatusCode != http.StatusOK {
		return nil, httpError(op, path, resp)
	}
	return resp.Body, nil
}

// GetTableDefinition reads the fields of a database table.
func GetTableDefinition(ctx context.Context, s Session, name string) (TableInfo, error) {
	const op = "GetTableDefinition"
	if strings.TrimSpace(name) == "" {
		return TableInfo{}, adterr.New(op, tablesPath, adterr.Internal, "table name must not be empty")
	}
	path := tablesPath + urlutil.Encode(strings.ToLower(name))
	body, err := readDDIC(ctx, s, op, path, "application/vnd.sap.adt.tables.v2+xml", "Table "+strings.ToUpper(name))
	if err != nil {
		return TableInfo{}, err
	}
	return xmlcodec.ParseTableDefinition(name, body)
}

// GetCDSSource returns the DDL source of a CDS view.
func GetCDSSource(ctx context.Context, s Session, name string) (string, error) {
	const op = "GetCdsSource"
	if strings.TrimSpace(name) == "" {
		return "", adterr.New(op, ddlSourcesPath, adterr.Internal, "CDS name must not be empty")
	}
	path := ddlSourcesPath + urlutil.Encode(strings.ToLower(name)) + "/source/main"
	body, err := readDDIC(ctx, s, op, path, "text/plain", "CDS view "+strings.ToUpper(name))
	if err != nil {
		return "", err
	}
	return string(body), nil
}
