package scan

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/hardscan/hardscan/internal/errors"
	"github.com/hardscan/hardscan/internal/profile"
)

// SuiteRun is the outcome of one suite: the combined scan result and
// whether it cleared the suite's minimum score
type SuiteRun struct {
	Suite  *profile.Suite
	Result *Result
	Passed bool
}

// RunSuite loads every profile a suite references, applies suite and
// per-profile attributes, and scans them as one combined set
func (e *Engine) RunSuite(ctx context.Context, s *profile.Suite) (*SuiteRun, error) {
	roots := make([]*profile.Profile, 0, len(s.Profiles))
	for i := range s.Profiles {
		p, err := profile.Load(s.ProfilePath(i))
		if err != nil {
			return nil, errors.Wrap(err, "suite %s", s.Name)
		}

		attrs, err := profile.ResolveAttributes(p, s.MergedAttributes(i), nil)
		if err != nil {
			return nil, errors.Wrap(err, "suite %s", s.Name)
		}
		if err := profile.ApplyAttributes(p, attrs); err != nil {
			return nil, errors.Wrap(err, "suite %s", s.Name)
		}
		roots = append(roots, p)
	}

	set, err := profile.ResolveAll(roots)
	if err != nil {
		return nil, errors.Wrap(err, "suite %s", s.Name)
	}
	set.Name = s.Name

	result, err := e.Run(ctx, set, Options{Level: s.Level, Tags: s.Tags})
	if err != nil {
		return nil, err
	}

	passed := s.MinScore == 0 || result.Summary.Score >= s.MinScore
	return &SuiteRun{Suite: s, Result: result, Passed: passed}, nil
}

// RunSuites executes every suite found in the given descriptor files
// concurrently. All files must parse before anything runs; the first
// failing suite aborts the rest. Results stay in file order.
func (e *Engine) RunSuites(ctx context.Context, paths []string) ([]*SuiteRun, error) {
	var suites []*profile.Suite
	for _, path := range paths {
		loaded, err := profile.LoadSuites(path)
		if err != nil {
			return nil, err
		}
		suites = append(suites, loaded...)
	}

	runs := make([]*SuiteRun, len(suites))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, s := range suites {
		eg.Go(func() error {
			run, err := e.RunSuite(egCtx, s)
			if err != nil {
				return err
			}
			runs[i] = run
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return runs, nil
}
