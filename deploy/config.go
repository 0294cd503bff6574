// Package deploy runs declarative abapGit deployments: it loads a YAML
// description of repositories, orders them by their dependencies and drives
// each through package creation, linking, pulling and activation.
package deploy

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"pkt.systems/sapadt/adterr"
	"pkt.systems/sapadt/ident"
)

// Defaults applied by Parse.
const (
	DefaultPort    = 50000
	DefaultBranch  = "refs/heads/main"
	DefaultTimeout = 600
)

// Connection holds the system a deployment targets.
type Connection struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port" validate:"gte=1,lte=65535"`
	HTTPS       bool   `yaml:"https"`
	Client      string `yaml:"client" validate:"omitempty,sapclient"`
	User        string `yaml:"user"`
	Password    string `yaml:"password"`
	PasswordEnv string `yaml:"password_env"`
	Insecure    bool   `yaml:"insecure"`
}

// BaseURL returns scheme://host:port, or "" when no host is set.
func (c Connection) BaseURL() string {
	if c.Host == "" {
		return ""
	}
	scheme := "http"
	if c.HTTPS {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.Host, c.Port)
}

// ResolvePassword returns the literal password or, when empty, the value of
// PasswordEnv.
func (c Connection) ResolvePassword() string {
	if c.Password != "" || c.PasswordEnv == "" {
		return c.Password
	}
	return os.Getenv(c.PasswordEnv)
}

// Repo is one repository to deploy.
type Repo struct {
	Name      string   `yaml:"name" validate:"required"`
	URL       string   `yaml:"url" validate:"required,repourl"`
	Branch    string   `yaml:"branch" validate:"branchref"`
	Package   string   `yaml:"package" validate:"required,abappackage"`
	Activate  *bool    `yaml:"activate"`
	DependsOn []string `yaml:"depends_on"`
}

// ShouldActivate reports whether activation runs for the repo; true unless
// switched off.
func (r Repo) ShouldActivate() bool { return r.Activate == nil || *r.Activate }

// Config is a deployment description.
type Config struct {
	Connection Connection `yaml:"connection"`
	Repos      []Repo     `yaml:"repos" validate:"required,min=1,dive"`
	// Timeout bounds each asynchronous server operation, in seconds.
	Timeout  int  `yaml:"timeout" validate:"gte=0"`
	FailFast bool `yaml:"fail_fast"`
}

// PollTimeout returns Timeout as a duration.
func (c Config) PollTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("abappackage", identValidator(func(s string) error { _, err := ident.NewPackageName(s); return err }))
	_ = v.RegisterValidation("repourl", identValidator(func(s string) error { _, err := ident.NewRepoURL(s); return err }))
	_ = v.RegisterValidation("branchref", identValidator(func(s string) error { _, err := ident.NewBranchRef(s); return err }))
	_ = v.RegisterValidation("sapclient", identValidator(func(s string) error { _, err := ident.NewSAPClient(s); return err }))
	return v
}

func identValidator(check func(string) error) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return check(fl.Field().String()) == nil
	}
}

// Load reads and validates the deployment file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, adterr.Wrap("deploy.Load", path, adterr.Internal, err)
	}
	return Parse(data)
}

// Parse decodes YAML, applies defaults and validates the result.
func Parse(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, adterr.Newf("deploy.Parse", "", adterr.Internal, "parse deployment file: %v", err)
	}
	cfg.applyDefaults()
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Connection.Port == 0 {
		c.Connection.Port = DefaultPort
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	for i := range c.Repos {
		if c.Repos[i].Branch == "" {
			c.Repos[i].Branch = DefaultBranch
		}
	}
}

// Validate checks field constraints, unique names, known dependencies and
// the absence of dependency cycles.
func Validate(cfg Config) error {
	const op = "deploy.Validate"
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return adterr.New(op, "", adterr.Internal, describe(verrs[0]))
		}
		return adterr.Wrap(op, "", adterr.Internal, err)
	}
	names := make(map[string]bool, len(cfg.Repos))
	for _, r := range cfg.Repos {
		if names[r.Name] {
			return adterr.Newf(op, "", adterr.Internal, "duplicate repo name %q", r.Name)
		}
		names[r.Name] = true
	}
	for _, r := range cfg.Repos {
		for _, d := range r.DependsOn {
			if !names[d] {
				return adterr.Newf(op, "", adterr.Internal, "repo %q depends on unknown repo %q", r.Name, d)
			}
			if d == r.Name {
				return adterr.Newf(op, "", adterr.Internal, "dependency cycle among repos: %s", r.Name)
			}
		}
	}
	_, err := Order(cfg)
	return err
}

func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	value := fmt.Sprint(fe.Value())
	var err error
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return field + " must have at least " + fe.Param() + " entries"
	case "abappackage":
		_, err = ident.NewPackageName(value)
	case "repourl":
		_, err = ident.NewRepoURL(value)
	case "branchref":
		_, err = ident.NewBranchRef(value)
	case "sapclient":
		_, err = ident.NewSAPClient(value)
	}
	if err != nil {
		var ae *adterr.Error
		if errors.As(err, &ae) {
			return field + ": " + ae.Message
		}
		return field + ": " + err.Error()
	}
	return fmt.Sprintf("%s: failed %s %s", field, fe.Tag(), fe.Param())
}

// Order returns the repos in dependency order. Among repos whose
// dependencies are satisfied, names sort ascending. A cycle is an Internal
// error naming every repo on it.
func Order(cfg Config) ([]Repo, error) {
	byName := make(map[string]Repo, len(cfg.Repos))
	indegree := make(map[string]int, len(cfg.Repos))
	dependents := make(map[string][]string)
	for _, r := range cfg.Repos {
		byName[r.Name] = r
		indegree[r.Name] += 0
		for _, d := range r.DependsOn {
			indegree[r.Name]++
			dependents[d] = append(dependents[d], r.Name)
		}
	}
	var ready []string
	for name, n := range indegree {
		if n == 0 {
			ready = append(ready, name)
		}
	}
	sort.Strings(ready)
	out := make([]Repo, 0, len(cfg.Repos))
	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]
		out = append(out, byName[name])
		for _, dep := range dependents[name] {
			indegree[dep]--
			if indegree[dep] == 0 {
				ready = append(ready, dep)
				sort.Strings(ready)
			}
		}
	}
	if len(out) != len(cfg.Repos) {
		var stuck []string
		for name, n := range indegree {
			if n > 0 {
				stuck = append(stuck, name)
			}
		}
		sort.Strings(stuck)
		return nil, adterr.Newf("deploy.Order", "", adterr.Internal, "dependency cycle among repos: %s", strings.Join(stuck, ", "))
	}
	return out, nil
}
