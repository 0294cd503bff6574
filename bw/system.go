package bw

import (
	"context"

	"pkt.systems/sapadt/xmlcodec"
)

const dbInfoPath = modelingBase + "repo/is/dbinfo"

// GetDBInfo reads the database connection details of the BW system.
func GetDBInfo(ctx context.Context, s Session) (DBInfo, error) {
	body, err := getXML(ctx, s, "BwGetDbInfo", dbInfoPath, "application/atom+xml")
	if err != nil {
		return DBInfo{}, err
	}
	return xmlcodec.ParseDBInfo(body)
}
