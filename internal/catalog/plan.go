package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/loykin/mongorun/internal/common"
	"github.com/loykin/mongorun/internal/docstore"
	"github.com/loykin/mongorun/internal/util"
	"go.uber.org/multierr"
)

// Script is a validated script bound to its invocation target.
type Script struct {
	Name       string
	Collection string
	// ID is "{collection}_{ticket}_{name}", the ledger key.
	ID      string
	Options ScriptOptions
	Handle  Handle

	run   scriptFunc
	check checkFunc
}

// ScriptID builds the ledger key of a script.
func ScriptID(collection, ticket, name string) string {
	return fmt.Sprintf("%s_%s_%s", collection, ticket, name)
}

// Verified reports whether a verification routine is attached.
func (s Script) Verified() bool { return s.check != nil }

// TestMethod returns the attached verification routine name, or NoTest.
func (s Script) TestMethod() string {
	if s.check == nil {
		return NoTest
	}
	return s.Options.TestMethod
}

// AllowedIn reports whether the environment gate lets the script run in env.
func (s Script) AllowedIn(env string) bool {
	return len(s.Options.RunAt) == 0 || util.ContainsFold(s.Options.RunAt, env)
}

// Invoke runs the script with the handle it declared.
func (s Script) Invoke(ctx context.Context, db docstore.Database) error {
	return s.run(ctx, db, db.Collection(s.Collection))
}

// Verify runs the verification routine. Scripts without one pass.
func (s Script) Verify(ctx context.Context, db docstore.Database) (bool, error) {
	if s.check == nil {
		return true, nil
	}
	return s.check(ctx, db, db.Collection(s.Collection))
}

// MigrationGroup is the ordered, immutable script list of one collection.
type MigrationGroup struct {
	Collection string
	Scripts    []Script
}

// Plan is the ordered output of Build.
type Plan struct {
	Groups []MigrationGroup
}

// Scripts flattens the plan in execution order.
func (p Plan) Scripts() []Script {
	var out []Script
	for _, g := range p.Groups {
		out = append(out, g.Scripts...)
	}
	return out
}

// Len counts the scripts of the plan.
func (p Plan) Len() int {
	n := 0
	for _, g := range p.Groups {
		n += len(g.Scripts)
	}
	return n
}

// ConfigError collects every problem found while building a plan.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string {
	return "invalid migration configuration: " + e.Err.Error()
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Problems lists the individual validation failures.
func (e *ConfigError) Problems() []error { return multierr.Errors(e.Err) }

// IsConfigError reports whether err carries a *ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

func isNoTest(method string) bool {
	m := strings.TrimSpace(method)
	return m == "" || strings.EqualFold(m, NoTest)
}

// Build validates groups and returns them as an ordered plan. Groups keep
// their registration order; scripts are stably sorted by Order, so scripts
// sharing an Order keep their registration order. Every problem is reported
// in a single *ConfigError.
func Build(groups ...*Group) (Plan, error) {
	logger := common.GetLogger().WithComponent("catalog")

	var (
		errs error
		plan Plan
		ids  = map[string]string{}
	)
	for gi, g := range groups {
		if g == nil {
			continue
		}
		collection := strings.TrimSpace(g.collection)
		if collection == "" {
			errs = multierr.Append(errs, fmt.Errorf("group #%d: collection name is empty", gi+1))
			continue
		}

		checks := map[string]pendingCheck{}
		for _, c := range g.checks {
			name := strings.TrimSpace(c.name)
			if name == "" {
				errs = multierr.Append(errs, fmt.Errorf("%s: verification routine name is empty", collection))
				continue
			}
			if _, dup := checks[name]; dup {
				errs = multierr.Append(errs, fmt.Errorf("%s: duplicate verification routine %q", collection, name))
				continue
			}
			checks[name] = c
		}

		mg := MigrationGroup{Collection: collection}
		names := map[string]struct{}{}
		for _, ps := range g.scripts {
			s, err := buildScript(collection, ps, checks)
			if err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			if _, dup := names[s.Name]; dup {
				errs = multierr.Append(errs, fmt.Errorf("%s: duplicate script name %q", collection, s.Name))
				continue
			}
			names[s.Name] = struct{}{}
			if owner, dup := ids[s.ID]; dup {
				errs = multierr.Append(errs, fmt.Errorf("%s: script id %q already declared by %s", collection, s.ID, owner))
				continue
			}
			ids[s.ID] = collection + "." + s.Name
			mg.Scripts = append(mg.Scripts, s)
		}

		sort.SliceStable(mg.Scripts, func(i, j int) bool {
			return mg.Scripts[i].Options.Order < mg.Scripts[j].Options.Order
		})
		for i := 1; i < len(mg.Scripts); i++ {
			if mg.Scripts[i].Options.Order == mg.Scripts[i-1].Options.Order {
				logger.Debug("scripts share an order value, keeping registration order",
					"collection", collection,
					"order", mg.Scripts[i].Options.Order,
					"first", mg.Scripts[i-1].Name,
					"second", mg.Scripts[i].Name)
			}
		}
		plan.Groups = append(plan.Groups, mg)
	}

	if errs != nil {
		return Plan{}, &ConfigError{Err: errs}
	}
	logger.Debug("migration catalog built", "groups", len(plan.Groups), "scripts", plan.Len())
	return plan, nil
}

func buildScript(collection string, ps pendingScript, checks map[string]pendingCheck) (Script, error) {
	name := strings.TrimSpace(ps.name)
	if name == "" {
		return Script{}, fmt.Errorf("%s: script name is empty", collection)
	}
	opts := ps.opts
	opts.Ticket = strings.TrimSpace(opts.Ticket)
	if opts.Ticket == "" {
		return Script{}, fmt.Errorf("%s.%s: ticket is empty", collection, name)
	}
	opts.RunAt = util.NormalizeTags(opts.RunAt)
	opts.TargetBackupDatabase = strings.TrimSpace(opts.TargetBackupDatabase)

	run, handle, err := adaptScript(ps.fn)
	if err != nil {
		return Script{}, fmt.Errorf("%s.%s: %w", collection, name, err)
	}
	s := Script{
		Name:       name,
		Collection: collection,
		ID:         ScriptID(collection, opts.Ticket, name),
		Handle:     handle,
		run:        run,
	}

	if isNoTest(opts.TestMethod) {
		opts.TestMethod = NoTest
	} else {
		opts.TestMethod = strings.TrimSpace(opts.TestMethod)
		c, ok := checks[opts.TestMethod]
		if !ok {
			return Script{}, fmt.Errorf("%s.%s: verification routine %q not found", collection, name, opts.TestMethod)
		}
		check, _, err := adaptCheck(c.fn)
		if err != nil {
			return Script{}, fmt.Errorf("%s.%s: %w", collection, name, err)
		}
		s.check = check
	}
	s.Options = opts
	return s, nil
}
