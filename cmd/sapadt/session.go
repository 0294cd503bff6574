package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"pkt.systems/sapadt/adt"
	"pkt.systems/sapadt/adterr"
	"pkt.systems/sapadt/client"
	"pkt.systems/sapadt/ident"
	"pkt.systems/sapadt/internal/credentials"
	"pkt.systems/sapadt/internal/pathutil"
)

// defaultPasswordEnv is consulted last, after saved credentials.
const defaultPasswordEnv = "SAP_PASSWORD"

// connection is the resolved target system.
type connection struct {
	Host     string
	Port     int
	HTTPS    bool
	Insecure bool
	Client   string
	User     string
	Password string
}

func (c connection) baseURL() string {
	scheme := "http"
	if c.HTTPS {
		scheme = "https"
	}
	return scheme + "://" + net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// resolveConnection layers flags and SAPADT_* variables over the saved
// login. The password comes from --password, then --password-env, then the
// saved login, then SAP_PASSWORD.
func (a *app) resolveConnection() (connection, error) {
	conn := connection{
		Host:   a.v.GetString(keyHost),
		Port:   a.v.GetInt(keyPort),
		Client: a.v.GetString(keyClient),
		User:   a.v.GetString(keyUser),
	}
	path, err := credentials.DefaultPath()
	if err != nil {
		return conn, err
	}
	saved, err := credentials.Load(path)
	if err != nil {
		return conn, err
	}
	if saved != nil {
		if !a.v.IsSet(keyHost) {
			conn.Host = saved.Host
		}
		if !a.v.IsSet(keyPort) {
			conn.Port = saved.Port
		}
		if !a.v.IsSet(keyHTTPS) {
			conn.HTTPS = saved.HTTPS
		}
		if !a.v.IsSet(keyInsecure) {
			conn.Insecure = saved.Insecure
		}
		if !a.v.IsSet(keyClient) {
			conn.Client = saved.Client
		}
		if !a.v.IsSet(keyUser) {
			conn.User = saved.User
		}
	}
	if a.v.IsSet(keyHTTPS) {
		conn.HTTPS = a.v.GetBool(keyHTTPS)
	}
	if a.v.IsSet(keyInsecure) {
		conn.Insecure = a.v.GetBool(keyInsecure)
	}

	switch {
	case a.v.GetString(keyPassword) != "":
		conn.Password = a.v.GetString(keyPassword)
	case a.v.GetString(keyPasswordEnv) != "":
		name := a.v.GetString(keyPasswordEnv)
		conn.Password = os.Getenv(name)
		if conn.Password == "" {
			return conn, fmt.Errorf("environment variable %s is empty", name)
		}
	case saved != nil && saved.Password != "":
		conn.Password = saved.Password
	default:
		conn.Password = os.Getenv(defaultPasswordEnv)
	}
	if strings.TrimSpace(conn.Host) == "" {
		return conn, adterr.New("connect", "", adterr.Connection, "no host configured; run 'sapadt login' or pass --host")
	}
	if conn.Port <= 0 || conn.Port > 65535 {
		return conn, fmt.Errorf("invalid --port %d", conn.Port)
	}
	return conn, nil
}

func (a *app) sessionFile() string {
	raw := strings.TrimSpace(a.v.GetString(keySessionFile))
	if raw == "" {
		return ""
	}
	path, err := pathutil.ExpandUserAndEnv(raw)
	if err != nil {
		return raw
	}
	return path
}

func (a *app) pollTimeout() time.Duration {
	if d := a.v.GetDuration(keyPollTimeout); d > 0 {
		return d
	}
	return adt.DefaultPollTimeout
}

// session returns the invocation's HTTP session, creating it on first use.
func (a *app) session(context.Context) (*client.Session, error) {
	if a.sess != nil {
		return a.sess, nil
	}
	conn, err := a.resolveConnection()
	if err != nil {
		return nil, err
	}
	sess, err := a.newSession(conn)
	if err != nil {
		return nil, err
	}
	if path := a.sessionFile(); path != "" {
		if err := sess.LoadSession(path); err != nil {
			return nil, err
		}
	}
	a.sess = sess
	return sess, nil
}

func (a *app) newSession(conn connection) (*client.Session, error) {
	sapClient, err := ident.NewSAPClient(conn.Client)
	if err != nil {
		return nil, err
	}
	opts := []client.Option{
		client.WithCredentials(conn.User, conn.Password),
		client.WithSAPClient(sapClient),
		client.WithInsecureSkipVerify(conn.Insecure),
		client.WithLogger(a.logger),
		client.WithTracing(a.telemetry != nil),
	}
	if d := a.v.GetDuration(keyTimeout); d > 0 {
		opts = append(opts, client.WithHTTPTimeout(d))
	}
	return client.New(conn.baseURL(), opts...)
}

// resolveObjectURI accepts an ADT URI or a bare object name. Names are
// looked up with the quick search and must match exactly once.
func resolveObjectURI(ctx context.Context, s adt.Session, nameOrURI string) (ident.ObjectURI, error) {
	if strings.HasPrefix(nameOrURI, "/sap/bc/adt/") {
		return ident.NewObjectURI(nameOrURI)
	}
	const op = "ResolveObjectURI"
	name := strings.ToUpper(strings.TrimSpace(nameOrURI))
	if name == "" {
		return ident.ObjectURI{}, adterr.New(op, "", adterr.Internal, "object name or URI required")
	}
	hits, err := adt.SearchObjects(ctx, s, name, "", 10)
	if err != nil {
		return ident.ObjectURI{}, err
	}
	var matches []adt.SearchResult
	for _, h := range hits {
		if strings.EqualFold(h.Name, name) {
			matches = append(matches, h)
		}
	}
	switch len(matches) {
	case 0:
		return ident.ObjectURI{}, adterr.Newf(op, "", adterr.NotFound, "no object named %s", name)
	case 1:
		return ident.NewObjectURI(matches[0].URI)
	}
	types := make([]string, 0, len(matches))
	for _, m := range matches {
		types = append(types, m.Type)
	}
	return ident.ObjectURI{}, adterr.Newf(op, "", adterr.Internal, "%s is ambiguous (%s); pass the URI", name, strings.Join(types, ", "))
}

// sourceURIFor appends /source/main to object URIs that name no include.
func sourceURIFor(uri ident.ObjectURI) (ident.ObjectURI, error) {
	if strings.Contains(uri.String(), "/source/") || strings.Contains(uri.String(), "/includes/") {
		return uri, nil
	}
	return ident.NewObjectURI(strings.TrimRight(uri.String(), "/") + "/source/main")
}
