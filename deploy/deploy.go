package deploy

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"pkt.systems/pslog"

	"pkt.systems/sapadt/adt"
	"pkt.systems/sapadt/adterr"
	"pkt.systems/sapadt/ident"
	"pkt.systems/sapadt/internal/clock"
	"pkt.systems/sapadt/internal/loggingutil"
)

// Step names.
const (
	StepDiscover      = "discover"
	StepPackageEnsure = "package_ensure"
	StepClone         = "clone"
	StepPull          = "pull"
	StepActivate      = "activate"
)

// Outcome is the result of a single step.
type Outcome string

// Step outcomes.
const (
	Completed Outcome = "completed"
	Skipped   Outcome = "skipped"
	Failed    Outcome = "failed"
)

const previousStepFailed = "previous step failed"

// StepResult records one executed or skipped step.
type StepResult struct {
	Name     string        `json:"name"`
	Outcome  Outcome       `json:"outcome"`
	Message  string        `json:"message,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// RepoResult collects the steps run for one repo.
type RepoResult struct {
	Name    string       `json:"name"`
	Success bool         `json:"success"`
	Message string       `json:"message,omitempty"`
	Steps   []StepResult `json:"steps"`
}

// Result is the outcome of Run.
type Result struct {
	RunID     string        `json:"run_id"`
	Success   bool          `json:"success"`
	Summary   string        `json:"summary"`
	Discovery StepResult    `json:"discovery"`
	Repos     []RepoResult  `json:"repos"`
	Duration  time.Duration `json:"duration_ns"`
}

// Options tune Run.
type Options struct {
	// FailFast skips every repo after the first failing one. Config.FailFast
	// switches it on as well.
	FailFast bool
	Clock    clock.Clock
}

type runner struct {
	s      adt.Session
	cfg    Config
	clk    clock.Clock
	logger pslog.Base
}

func newRunner(s adt.Session, cfg Config, clk clock.Clock) *runner {
	if clk == nil {
		clk = clock.Real{}
	}
	logger := pslog.Base(pslog.NoopLogger())
	if l, ok := s.(interface{ Logger() pslog.Base }); ok {
		logger = loggingutil.FromBase(l.Logger(), "deploy")
	}
	return &runner{s: s, cfg: cfg, clk: clk, logger: logger}
}

func (r *runner) step(name string, fn func() (Outcome, string)) StepResult {
	start := r.clk.Now()
	outcome, msg := fn()
	res := StepResult{Name: name, Outcome: outcome, Message: msg, Duration: r.clk.Since(start)}
	switch outcome {
	case Failed:
		r.logger.Warn("deploy.step.failed", "step", name, "message", msg)
	default:
		r.logger.Debug("deploy.step.done", "step", name, "outcome", string(outcome), "message", msg)
	}
	return res
}

func skipped(name, msg string) StepResult {
	return StepResult{Name: name, Outcome: Skipped, Message: msg}
}

// Run discovers abapGit support and deploys every repo in dependency order.
// A failed step skips the rest of that repo. Later repos still run unless
// fail-fast is set.
func Run(ctx context.Context, s adt.Session, cfg Config, opts Options) (Result, error) {
	order, err := Order(cfg)
	if err != nil {
		return Result{}, err
	}
	r := newRunner(s, cfg, opts.Clock)
	runID := uuid.NewString()
	if full, ok := r.logger.(pslog.Logger); ok {
		r.logger = full.With("run_id", runID)
	}
	failFast := opts.FailFast || cfg.FailFast
	start := r.clk.Now()

	res := Result{RunID: runID, Discovery: r.discover(ctx)}
	discovered := res.Discovery.Outcome != Failed
	failed := false
	for _, repo := range order {
		switch {
		case !discovered:
			res.Repos = append(res.Repos, skippedRepo(repo, "discovery failed: "+res.Discovery.Message))
		case failed && failFast:
			res.Repos = append(res.Repos, skippedRepo(repo, "skipped after an earlier repo failed"))
		default:
			rr := r.deployRepo(ctx, repo)
			if !rr.Success {
				failed = true
			}
			res.Repos = append(res.Repos, rr)
		}
	}

	ok := 0
	for _, rr := range res.Repos {
		if rr.Success {
			ok++
		}
	}
	res.Success = discovered && ok == len(res.Repos)
	if discovered {
		res.Summary = fmt.Sprintf("%d succeeded, %d failed", ok, len(res.Repos)-ok)
	} else {
		res.Summary = "Discovery failed: " + res.Discovery.Message
	}
	res.Duration = r.clk.Since(start)
	r.logger.Info("deploy.run.done", "success", res.Success, "summary", res.Summary)
	return res, nil
}

func skippedRepo(repo Repo, msg string) RepoResult {
	rr := RepoResult{Name: repo.Name, Message: msg}
	for _, name := range []string{StepPackageEnsure, StepClone, StepActivate} {
		rr.Steps = append(rr.Steps, skipped(name, msg))
	}
	return rr
}

func (r *runner) discover(ctx context.Context) StepResult {
	return r.step(StepDiscover, func() (Outcome, string) {
		info, err := adt.Discover(ctx, r.s)
		if err != nil {
			return Failed, err.Error()
		}
		if !info.HasAbapGit {
			return Failed, "abapGit backend not available on this system"
		}
		return Completed, "abapGit support detected"
	})
}

func (r *runner) deployRepo(ctx context.Context, repo Repo) RepoResult {
	rr := RepoResult{Name: repo.Name}
	fail := func(st StepResult, rest ...string) RepoResult {
		rr.Steps = append(rr.Steps, st)
		for _, name := range rest {
			rr.Steps = append(rr.Steps, skipped(name, previousStepFailed))
		}
		rr.Message = st.Name + " failed: " + st.Message
		return rr
	}

	pkg := r.ensurePackage(ctx, repo)
	if pkg.Outcome == Failed {
		return fail(pkg, StepClone, StepActivate)
	}
	rr.Steps = append(rr.Steps, pkg)

	clone, key := r.clone(ctx, repo)
	if clone.Outcome == Failed {
		return fail(clone, StepActivate)
	}
	rr.Steps = append(rr.Steps, clone)

	if clone.Outcome == Skipped {
		pull := r.pull(ctx, key)
		if pull.Outcome == Failed {
			return fail(pull, StepActivate)
		}
		rr.Steps = append(rr.Steps, pull)
	}

	if !repo.ShouldActivate() {
		rr.Steps = append(rr.Steps, skipped(StepActivate, "activation disabled for this repo"))
	} else {
		act := r.activate(ctx)
		if act.Outcome == Failed {
			return fail(act)
		}
		rr.Steps = append(rr.Steps, act)
	}
	rr.Success = true
	rr.Message = "deployed successfully"
	return rr
}

func (r *runner) ensurePackage(ctx context.Context, repo Repo) StepResult {
	return r.step(StepPackageEnsure, func() (Outcome, string) {
		_, created, err := adt.EnsurePackage(ctx, r.s, adt.PackageCreate{
			Name:              repo.Package,
			Description:       repo.Name,
			SoftwareComponent: "LOCAL",
		})
		switch {
		case err != nil:
			return Failed, err.Error()
		case created:
			return Completed, "package created: " + repo.Package
		default:
			return Skipped, "package exists: " + repo.Package
		}
	})
}

func (r *runner) clone(ctx context.Context, repo Repo) (StepResult, string) {
	var key string
	res := r.step(StepClone, func() (Outcome, string) {
		url, err := ident.NewRepoURL(repo.URL)
		if err != nil {
			return Failed, err.Error()
		}
		existing, err := adt.FindRepoByURL(ctx, r.s, url)
		if err != nil {
			return Failed, err.Error()
		}
		if existing != nil {
			key = existing.Key
			return Skipped, "already linked, key " + existing.Key
		}
		branch, err := ident.NewBranchRef(repo.Branch)
		if err != nil {
			return Failed, err.Error()
		}
		pkg, err := ident.NewPackageName(repo.Package)
		if err != nil {
			return Failed, err.Error()
		}
		linked, err := adt.CloneRepo(ctx, r.s, adt.CloneRequest{URL: url, Branch: branch, Package: pkg}, r.cfg.PollTimeout())
		if err != nil {
			return Failed, err.Error()
		}
		key = linked.Key
		return Completed, "cloned, key " + linked.Key
	})
	return res, key
}

func (r *runner) pull(ctx context.Context, key string) StepResult {
	return r.step(StepPull, func() (Outcome, string) {
		k, err := ident.NewRepoKey(key)
		if err != nil {
			return Failed, "invalid repo key: " + err.Error()
		}
		if _, err := adt.PullRepo(ctx, r.s, k, r.cfg.PollTimeout()); err != nil {
			return Failed, err.Error()
		}
		return Completed, "pull completed"
	})
}

func (r *runner) activate(ctx context.Context) StepResult {
	return r.step(StepActivate, func() (Outcome, string) {
		inactive, err := adt.GetInactiveObjects(ctx, r.s)
		if err != nil {
			return Failed, err.Error()
		}
		res, err := adt.ActivateAll(ctx, r.s, inactive, r.cfg.PollTimeout())
		if err != nil {
			return Failed, err.Error()
		}
		msg := fmt.Sprintf("activated %d/%d", res.Activated, res.Total)
		if res.Failed > 0 {
			return Failed, fmt.Sprintf("%s (%d failed)", msg, res.Failed)
		}
		return Completed, msg
	})
}

// RepoStatus is the link state of a configured repo.
type RepoStatus struct {
	Name    string `json:"name"`
	URL     string `json:"url"`
	Package string `json:"package"`
	Linked  bool   `json:"linked"`
	Key     string `json:"key,omitempty"`
	Status  string `json:"status,omitempty"`
	Branch  string `json:"branch,omitempty"`
}

func selectRepos(cfg Config, name string) ([]Repo, error) {
	order, err := Order(cfg)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return order, nil
	}
	for _, r := range order {
		if r.Name == name {
			return []Repo{r}, nil
		}
	}
	return nil, adterr.Newf("deploy", "", adterr.NotFound, "repo %q is not in the deployment file", name)
}

// Status reports whether each repo, or only the one called name, is linked.
func Status(ctx context.Context, s adt.Session, cfg Config, name string) ([]RepoStatus, error) {
	repos, err := selectRepos(cfg, name)
	if err != nil {
		return nil, err
	}
	linked, err := adt.ListRepos(ctx, s)
	if err != nil {
		return nil, err
	}
	out := make([]RepoStatus, 0, len(repos))
	for _, r := range repos {
		st := RepoStatus{Name: r.Name, URL: r.URL, Package: r.Package}
		for _, l := range linked {
			if adt.SameRepoURL(l.URL, r.URL) {
				st.Linked = true
				st.Key = l.Key
				st.Status = l.Status.String()
				st.Branch = l.Branch
				break
			}
		}
		out = append(out, st)
	}
	return out, nil
}

// Pull pulls each linked repo, or only the one called name. Unlinked repos
// fail their pull step.
func Pull(ctx context.Context, s adt.Session, cfg Config, name string) ([]RepoResult, error) {
	repos, err := selectRepos(cfg, name)
	if err != nil {
		return nil, err
	}
	r := newRunner(s, cfg, nil)
	out := make([]RepoResult, 0, len(repos))
	for _, repo := range repos {
		rr := RepoResult{Name: repo.Name}
		url, err := ident.NewRepoURL(repo.URL)
		if err != nil {
			return nil, err
		}
		existing, err := adt.FindRepoByURL(ctx, s, url)
		var st StepResult
		switch {
		case err != nil:
			st = StepResult{Name: StepPull, Outcome: Failed, Message: err.Error()}
		case existing == nil:
			st = StepResult{Name: StepPull, Outcome: Failed, Message: "repository is not linked"}
		default:
			st = r.pull(ctx, existing.Key)
		}
		rr.Steps = append(rr.Steps, st)
		rr.Success = st.Outcome != Failed
		rr.Message = st.Message
		out = append(out, rr)
	}
	return out, nil
}

// Activate activates pending objects for each repo with activation enabled,
// or only for the one called name.
func Activate(ctx context.Context, s adt.Session, cfg Config, name string) ([]RepoResult, error) {
	repos, err := selectRepos(cfg, name)
	if err != nil {
		return nil, err
	}
	r := newRunner(s, cfg, nil)
	out := make([]RepoResult, 0, len(repos))
	for _, repo := range repos {
		st := skipped(StepActivate, "activation disabled for this repo")
		if repo.ShouldActivate() {
			st = r.activate(ctx)
		}
		out = append(out, RepoResult{Name: repo.Name, Success: st.Outcome != Failed, Message: st.Message, Steps: []StepResult{st}})
	}
	return out, nil
}

// Discover checks that the system supports abapGit.
func Discover(ctx context.Context, s adt.Session) StepResult {
	return newRunner(s, Config{}, nil).discover(ctx)
}
