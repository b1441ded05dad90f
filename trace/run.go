package trace

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/chazu/pica/vm"
)

// Report summarises a run.
type Report struct {
	Calls    int
	Failures int
	Sites    *vm.SiteTable
}

// Run executes the program against rt, writing one line per call to out
// (out may be nil). Dispatch errors are reported and counted; they do not
// stop the run. Directives that name unknown classes do.
func (p *Program) Run(rt *vm.Runtime, out io.Writer) (*Report, error) {
	if out == nil {
		out = io.Discard
	}
	loader := vm.NewLoader(p.Name, vm.BootLoader)
	sites := rt.NewSiteTable(p.Name, p.sites...)
	rep := &Report{Sites: sites}

	for _, step := range p.Steps {
		if err := p.runStep(rt, loader, sites, step, rep, out); err != nil {
			return rep, fmt.Errorf("%s:%d: %w", p.Name, step.Line, err)
		}
	}
	log().Infof("replayed %s: %d call(s), %d failure(s)", p.Name, rep.Calls, rep.Failures)
	return rep, nil
}

func (p *Program) runStep(rt *vm.Runtime, loader *vm.Loader, sites *vm.SiteTable, step Step, rep *Report, out io.Writer) error {
	reg := rt.Registry()

	switch step.Kind {
	case StepDefine:
		var super *vm.Class
		if step.Super != "" {
			if super = loader.Lookup(step.Super); super == nil {
				return fmt.Errorf("unknown class %s", step.Super)
			}
		}
		_, err := loader.Define(step.Class, super)
		return err

	case StepMethod:
		class := loader.Lookup(step.Class)
		if class == nil {
			return fmt.Errorf("unknown class %s", step.Class)
		}
		v := step.Value
		reg.RegisterFunc(class, step.Name, nil, vm.Generic, func(vm.Value, []vm.Value) (vm.Value, error) {
			return v, nil
		})
		return nil

	case StepInvalidate:
		class := loader.Lookup(step.Class)
		if class == nil {
			return fmt.Errorf("unknown class %s", step.Class)
		}
		reg.Invalidate(class)
		fmt.Fprintf(out, "%d: invalidated %s\n", step.Line, class.Name)
		return nil

	case StepReset:
		reg.Reset()
		fmt.Fprintf(out, "%d: registry reset\n", step.Line)
		return nil
	}

	rep.Calls++
	call := describeCall(step)
	cs := sites.Site(step.Site)

	recv, err := instantiate(loader, step.Receiver)
	args := make([]vm.Value, len(step.Args))
	for i, a := range step.Args {
		if err != nil {
			break
		}
		args[i], err = instantiate(loader, a)
	}
	var result vm.Value
	if err == nil {
		result, err = cs.Call(recv, args...)
	} else if !errors.Is(err, vm.ErrNotInstantiable) {
		return err
	}
	if err != nil {
		rep.Failures++
		log().Debugf("line %d: %s failed: %s", step.Line, call, err)
		fmt.Fprintf(out, "%d: %s !! %s\n", step.Line, call, err)
		return nil
	}
	fmt.Fprintf(out, "%d: %s = %s [%s] (%s)\n", step.Line, call, FormatLiteral(result), vm.ClassOf(result).Name, cs.State())
	return nil
}

func instantiate(loader *vm.Loader, o Operand) (vm.Value, error) {
	if o.Class == "" {
		return o.Value, nil
	}
	class := loader.Lookup(o.Class)
	if class == nil {
		return nil, fmt.Errorf("unknown class %s", o.Class)
	}
	return vm.NewObject(class)
}

func describeCall(step Step) string {
	args := make([]string, len(step.Args))
	for i, a := range step.Args {
		args[i] = a.String()
	}
	return fmt.Sprintf("%s.%s(%s)", step.Receiver, step.Method, strings.Join(args, ", "))
}

func log() commonlog.Logger {
	return commonlog.GetLogger("pica.trace")
}
