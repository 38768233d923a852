package jvmyield

import (
	"strings"

	"github.com/wippyai/jvm-yield/classfile"
	"github.com/wippyai/jvm-yield/errors"
	"github.com/wippyai/jvm-yield/weave"
)

// OnError selects what Transform does when a method cannot be woven.
type OnError int

const (
	// Skip leaves the failing method unchanged and continues.
	Skip OnError = iota
	// Abort stops at the first failing method.
	Abort
)

// MethodMatcher selects the methods to weave.
type MethodMatcher = weave.MethodMatcher

// Config configures Transform.
type Config struct {
	// Methods selects candidate methods. Nil selects every instance method
	// returning boolean; candidates without yield calls stay untouched.
	Methods MethodMatcher
	Weave   weave.Config
	OnError OnError
}

// Report lists the outcome of a transformation.
type Report struct {
	Skipped *errors.SkippedMethodsError
	Woven   []*weave.Result
}

// IsWoven reports whether class already declares a generator state field.
func IsWoven(c *classfile.Class, cfg weave.Config) bool {
	prefix := cfg.StateFieldName("")
	for _, f := range c.Fields {
		if f.Desc == "I" && strings.HasPrefix(f.Name, prefix) {
			return true
		}
	}
	return false
}

// Transform weaves the generator methods of a class file and returns the
// rewritten class.
//
// The transformation:
//   - Parses the class file
//   - Selects methods through cfg.Methods
//   - Weaves each selected method that calls the yield method
//   - Adds the state and slot fields
//   - Encodes and returns the result
func Transform(data []byte, cfg Config) ([]byte, *Report, error) {
	c, err := classfile.ParseClass(data)
	if err != nil {
		return nil, nil, errors.Wrap(errors.PhaseDecode, errors.KindInvalidData, err, "parse class")
	}
	report, err := TransformClass(c, cfg)
	if err != nil {
		return nil, report, err
	}
	out, err := c.Encode()
	if err != nil {
		return nil, report, errors.Wrap(errors.PhaseEncode, errors.KindInvalidData, err, "encode class")
	}
	return out, report, nil
}

// TransformClass weaves the selected methods of c in place.
func TransformClass(c *classfile.Class, cfg Config) (*Report, error) {
	if IsWoven(c, cfg.Weave) {
		return nil, errors.New(errors.PhaseWeave, errors.KindUsage).
			Value(c.Name).
			Detail("class %s is already woven; re-weaving is not supported", c.Name).
			Build()
	}

	report := &Report{}
	var keys []string
	var causes []error
	for _, m := range c.Methods {
		if !selected(c, m, cfg.Methods) {
			continue
		}
		res, err := weave.Weave(c, m, cfg.Weave)
		if err != nil {
			if cfg.OnError == Abort {
				return report, err
			}
			weave.Logger().Sugar().Warnf("skipping %s.%s: %v", c.Name, m.Key(), err)
			keys = append(keys, c.Name+"."+m.Key())
			causes = append(causes, err)
			continue
		}
		if res.States > 0 {
			report.Woven = append(report.Woven, res)
		}
	}
	if len(keys) > 0 {
		report.Skipped = errors.NewSkippedMethodsError(keys, causes)
	}
	return report, nil
}

func selected(c *classfile.Class, m *classfile.Method, matcher MethodMatcher) bool {
	if m.Code == nil {
		return false
	}
	if matcher != nil {
		return matcher.MatchMethod(c.Name, m.Name, m.Desc)
	}
	if m.IsStatic() {
		return false
	}
	mt, err := classfile.ParseMethodDescriptor(m.Desc)
	return err == nil && mt.Return == "Z"
}
