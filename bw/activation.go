package bw

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"pkt.systems/sapadt/adterr"
	"pkt.systems/sapadt/internal/urlutil"
	"pkt.systems/sapadt/xmlcodec"
)

const (
	activationPath        = modelingBase + "activation"
	activationContentType = "application/vnd.sap-bw-modeling.massact+xml"
)

// ActivationMode selects what the activation endpoint does with the objects.
type ActivationMode string

const (
	ModeActivate   ActivationMode = "activate"
	ModeValidate   ActivationMode = "validate"
	ModeSimulate   ActivationMode = "simulate"
	ModeBackground ActivationMode = "background"
)

// ParseActivationMode maps a user supplied mode name. Empty means activate.
func ParseActivationMode(s string) (ActivationMode, error) {
	switch m := ActivationMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeActivate, nil
	case ModeActivate, ModeValidate, ModeSimulate, ModeBackground:
		return m, nil
	}
	return "", adterr.Newf("BwActivateObjects", "", adterr.Internal, "unknown activation mode %q (use activate, validate, simulate or background)", s)
}

// ActivateOptions describe a mass activation.
type ActivateOptions struct {
	Objects      []ActivationObject
	Mode         ActivationMode
	Transport    string
	Force        bool
	ExecChecks   bool
	WithCTO      bool
	Sort         bool
	OnlyInactive bool
}

func activationURL(opts ActivateOptions) string {
	var kv []string
	switch opts.Mode {
	case ModeValidate:
		kv = []string{"mode", "validate", "sort", strconv.FormatBool(opts.Sort), "onlyina", strconv.FormatBool(opts.OnlyInactive)}
	case ModeSimulate:
		kv = []string{"mode", "activate", "simu", "true"}
	case ModeBackground:
		kv = []string{"mode", "activate", "asjob", "true"}
	default:
		kv = []string{"mode", "activate", "simu", "false"}
	}
	return urlutil.JoinQuery(activationPath, append(kv, "corrnum", opts.Transport)...)
}

// Activate validates, simulates or activates objects. A background run
// answers 202 and the result carries the job GUID to follow with GetJob.
func Activate(ctx context.Context, s Session, opts ActivateOptions) (ActivationResult, error) {
	const op = "BwActivateObjects"
	if len(opts.Objects) == 0 {
		return ActivationResult{}, adterr.New(op, activationPath, adterr.Internal, "no objects specified for activation")
	}
	body, err := xmlcodec.BuildBWActivation(xmlcodec.BWActivation{
		Objects:    opts.Objects,
		Force:      opts.Force,
		ExecChecks: opts.ExecChecks,
		WithCTO:    opts.WithCTO,
	})
	if err != nil {
		return ActivationResult{}, err
	}
	url := activationURL(opts)
	resp, err := s.Post(ctx, url, body, activationContentType, map[string]string{"Accept": "application/xml"})
	if err != nil {
		return ActivationResult{}, err
	}
	if !statusIn(resp, http.StatusOK, http.StatusAccepted) {
		return ActivationResult{}, httpError(op, url, resp)
	}
	res := xmlcodec.ParseBWActivation(resp.Body)
	if loc := resp.Header.Get("Location"); loc != "" {
		if i := strings.Index(loc, "/jobs/"); i >= 0 {
			res.JobGUID = strings.Trim(loc[i+len("/jobs/"):], "/")
		}
	}
	loggerFor(s).Info("bw.activation.done", "mode", string(opts.Mode), "objects", len(opts.Objects), "success", res.Success, "job", res.JobGUID)
	return res, nil
}
