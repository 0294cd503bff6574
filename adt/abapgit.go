package adt

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"time"

	"pkt.systems/sapadt/adterr"
	"pkt.systems/sapadt/client"
	"pkt.systems/sapadt/ident"
	"pkt.systems/sapadt/internal/urlutil"
	"pkt.systems/sapadt/xmlcodec"
)

const (
	reposPath        = "/sap/bc/adt/abapgit/repos"
	repoCloneType    = "application/abapgit.adt.repo.v3+xml"
	repoAcceptHeader = "application/abapgit.adt.repos.v2+xml, application/xml"
)

// CloneRequest describes an abapGit link.
type CloneRequest struct {
	URL       ident.RepoURL
	Branch    ident.BranchRef
	Package   ident.PackageName
	Transport string
	User      string
	Password  string
}

// ListRepos returns the linked repositories.
func ListRepos(ctx context.Context, s Session) ([]Repo, error) {
	resp, err := s.Get(ctx, reposPath, map[string]string{"Accept": repoAcceptHeader})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, httpError("ListRepos", reposPath, resp)
	}
	return xmlcodec.ParseRepos(resp.Body)
}

// SameRepoURL compares repository URLs ignoring case, a trailing slash and a
// .git suffix.
func SameRepoURL(a, b string) bool {
	norm := func(u string) string {
		u = strings.TrimRight(strings.TrimSpace(u), "/")
		return strings.ToLower(strings.TrimSuffix(u, ".git"))
	}
	return norm(a) == norm(b)
}

// FindRepoByURL returns the repository linked to url, or nil when none is.
func FindRepoByURL(ctx context.Context, s Session, url ident.RepoURL) (*Repo, error) {
	repos, err := ListRepos(ctx, s)
	if err != nil {
		return nil, err
	}
	for i := range repos {
		if SameRepoURL(repos[i].URL, url.String()) {
			return &repos[i], nil
		}
	}
	return nil, nil
}

// CloneRepo links a repository into a package. An accepted request is
// polled until the server reports completion.
func CloneRepo(ctx context.Context, s Session, req CloneRequest, timeout time.Duration) (Repo, error) {
	const op = "CloneRepo"
	body, err := xmlcodec.BuildRepoClone(req.URL.String(), req.Branch.String(), req.Package.String(), req.Transport, req.User, req.Password)
	if err != nil {
		return Repo{}, err
	}
	resp, err := s.Post(ctx, reposPath, body, repoCloneType, nil)
	if err != nil {
		return Repo{}, err
	}
	var data []byte
	switch resp.StatusCode {
	case http.StatusAccepted:
		data, err = awaitAccepted(ctx, s, op, reposPath, resp, timeout)
		if err != nil {
			return Repo{}, err
		}
	case http.StatusOK, http.StatusCreated:
		data = resp.Body
	default:
		return Repo{}, httpError(op, reposPath, resp)
	}
	if len(bytes.TrimSpace(data)) > 0 {
		repos, err := xmlcodec.ParseRepos(data)
		if err == nil {
			for _, r := range repos {
				if SameRepoURL(r.URL, req.URL.String()) {
					return r, nil
				}
			}
			if len(repos) == 1 && resp.StatusCode != http.StatusAccepted {
				return repos[0], nil
			}
		}
	}
	found, err := FindRepoByURL(ctx, s, req.URL)
	if err != nil {
		return Repo{}, err
	}
	if found == nil {
		return Repo{}, adterr.New(op, reposPath, adterr.Internal, "cloned repository not found in response")
	}
	return *found, nil
}

// PullRepo pulls the linked branch into the system.
func PullRepo(ctx context.Context, s Session, key ident.RepoKey, timeout time.Duration) (client.PollResult, error) {
	const op = "PullRepo"
	path := reposPath + "/" + urlutil.Encode(key.String()) + "/pull"
	resp, err := s.Post(ctx, path, "", "application/xml", nil)
	if err != nil {
		return client.PollResult{}, err
	}
	switch resp.StatusCode {
	case http.StatusAccepted:
		data, err := awaitAccepted(ctx, s, op, path, resp, timeout)
		if err != nil {
			return client.PollResult{}, err
		}
		return client.PollResult{Status: xmlcodec.PollCompleted, Body: data}, nil
	case http.StatusOK:
		return client.PollResult{Status: xmlcodec.PollCompleted, Body: resp.Body}, nil
	}
	return client.PollResult{}, httpError(op, path, resp)
}

// UnlinkRepo removes the repository link. Objects stay in the system.
func UnlinkRepo(ctx context.Context, s Session, key ident.RepoKey) error {
	path := reposPath + "/" + urlutil.Encode(key.String())
	resp, err := s.Delete(ctx, path, nil)
	if err != nil {
		return err
	}
	if !statusIn(resp, http.StatusOK, http.StatusNoContent) {
		return httpError("UnlinkRepo", path, resp)
	}
	return nil
}
