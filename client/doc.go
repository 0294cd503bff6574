// Package client is the HTTP session engine for the SAP ADT and BW modelling
// APIs. A Session owns authentication, the CSRF token cache, stateful mode,
// cookies and long-running-operation polling; the operation packages (adt,
// bw, workflow, deploy) build on top of it.
//
// # Quick start
//
//	ctx := context.Background()
//	sess, err := client.New("https://sap.example.com:44300",
//	    client.WithCredentials("DEVELOPER", os.Getenv("SAP_PASSWORD")),
//	    client.WithSAPClient(sapClient),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	resp, err := sess.Get(ctx, "/sap/bc/adt/discovery", nil)
//
// # Status handling
//
// Non-2xx responses are returned as a *Response with a nil error; callers map
// them with adterr.FromResponse. Transport failures surface as Connection
// errors, context deadlines and cancellations as Timeout errors.
//
// # CSRF
//
// POST, PUT and DELETE fetch a token first when the cache is empty. A 403
// answered with "x-csrf-token: Required" refreshes the token and retries once;
// any other 403 on a write is returned as a CsrfToken error carrying the body.
//
// # Persistence
//
// SaveSession and LoadSession move the token, the stateful flag, the context
// id and the cookies between CLI invocations. The file is versioned JSON,
// written atomically with mode 0600.
//
// A Session is not safe for concurrent use by multiple goroutines issuing
// requests that toggle stateful mode; plain reads may be issued concurrently.
package client
