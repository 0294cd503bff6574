package adt

import (
	"bytes"
	"context"
	"net/http"

	"pkt.systems/sapadt/ident"
	"pkt.systems/sapadt/internal/urlutil"
	"pkt.systems/sapadt/xmlcodec"
)

const (
	packagesPath       = "/sap/bc/adt/packages"
	packageContentType = "application/vnd.sap.adt.packages.v1+xml"
)

func packagePath(name ident.PackageName) string {
	return packagesPath + "/" + urlutil.Encode(name.String())
}

// PackageExists reports whether the package is known to the system.
func PackageExists(ctx context.Context, s Session, name ident.PackageName) (bool, error) {
	path := packagePath(name)
	resp, err := s.Get(ctx, path, map[string]string{"Accept": packageContentType})
	if err != nil {
		return false, err
	}
	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	}
	return false, httpError("PackageExists", path, resp)
}

// GetPackage reads the package metadata.
func GetPackage(ctx context.Context, s Session, name ident.PackageName) (PackageInfo, error) {
	path := packagePath(name)
	resp, err := s.Get(ctx, path, map[string]string{"Accept": packageContentType})
	if err != nil {
		return PackageInfo{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return PackageInfo{}, httpError("GetPackage", path, resp)
	}
	return xmlcodec.ParsePackage(resp.Body)
}

// CreatePackage creates a package. When the server answers without a body
// the request values are returned.
func CreatePackage(ctx context.Context, s Session, req PackageCreate) (PackageInfo, error) {
	name, err := ident.NewPackageName(req.Name)
	if err != nil {
		return PackageInfo{}, err
	}
	body, err := xmlcodec.BuildPackageCreate(req)
	if err != nil {
		return PackageInfo{}, err
	}
	resp, err := s.Post(ctx, packagesPath, body, packageContentType, map[string]string{"Accept": packageContentType})
	if err != nil {
		return PackageInfo{}, err
	}
	if !statusIn(resp, http.StatusOK, http.StatusCreated) {
		return PackageInfo{}, httpError("CreatePackage", packagesPath, resp)
	}
	if len(bytes.TrimSpace(resp.Body)) == 0 {
		return PackageInfo{
			Name:              name.String(),
			Description:       req.Description,
			SuperPackage:      req.SuperPackage,
			SoftwareComponent: req.SoftwareComponent,
			TransportLayer:    req.TransportLayer,
			URI:               packagePath(name),
		}, nil
	}
	return xmlcodec.ParsePackage(resp.Body)
}

// EnsurePackage returns the existing package or creates it. created reports
// whether a new package was made.
func EnsurePackage(ctx context.Context, s Session, req PackageCreate) (info PackageInfo, created bool, err error) {
	name, err := ident.NewPackageName(req.Name)
	if err != nil {
		return PackageInfo{}, false, err
	}
	exists, err := PackageExists(ctx, s, name)
	if err != nil {
		return PackageInfo{}, false, err
	}
	if exists {
		info, err = GetPackage(ctx, s, name)
		return info, false, err
	}
	info, err = CreatePackage(ctx, s, req)
	return info, err == nil, err
}
