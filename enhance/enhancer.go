package enhance

import (
	"go.uber.org/zap"

	"github.com/wippyai/jvm-yield/classfile"
	"github.com/wippyai/jvm-yield/errors"
	"github.com/wippyai/jvm-yield/meta"
)

// Context carries the per-method state shared by the enhancers of a chain.
type Context struct {
	List       *classfile.InsnList
	Boundaries map[classfile.Ref]bool
	Meta       *meta.Container
	Logger     *zap.Logger
	Class      string
	Method     string
}

func (c *Context) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

// Enhancer rewrites instructions that match its predicate.
//
// Enhance receives the node holding the matched instruction and returns the
// node after which scanning continues. The returned node must be linked.
type Enhancer interface {
	ShouldEnhance(insn classfile.Insn) bool
	Enhance(ctx *Context, ref classfile.Ref) (classfile.Ref, error)
}

// Rule is an adapter to build an Enhancer from two functions.
//
// Example:
//
//	dropNops := enhance.Rule{
//	    Match: func(insn classfile.Insn) bool { return insn.Opcode == classfile.OpNop },
//	    Rewrite: func(ctx *enhance.Context, ref classfile.Ref) (classfile.Ref, error) {
//	        prev := ctx.List.Prev(ref)
//	        ctx.List.Remove(ref)
//	        return prev, nil
//	    },
//	}
type Rule struct {
	Match   func(insn classfile.Insn) bool
	Rewrite func(ctx *Context, ref classfile.Ref) (classfile.Ref, error)
}

// ShouldEnhance implements Enhancer.
func (r Rule) ShouldEnhance(insn classfile.Insn) bool { return r.Match(insn) }

// Enhance implements Enhancer.
func (r Rule) Enhance(ctx *Context, ref classfile.Ref) (classfile.Ref, error) {
	return r.Rewrite(ctx, ref)
}

// Chain is an ordered list of enhancers. Earlier entries win.
type Chain []Enhancer

// DefaultChain returns the array store and array load enhancers.
func DefaultChain() Chain {
	return Chain{ArrayStore{}, ArrayLoad{}}
}

// Run scans ctx.List once from head to tail and applies the first matching
// enhancer of chain to each node.
//
// A resume node of NoRef restarts the scan at the head of the list; this
// lets an enhancer that removes the first node continue correctly.
func Run(ctx *Context, chain Chain) error {
	if ctx == nil || ctx.List == nil {
		return errors.Usage(errors.PhaseEnhance, "nil instruction list")
	}
	list := ctx.List
	log := ctx.logger()

	rewrites := 0
	for ref := list.First(); ref != classfile.NoRef; ref = list.Next(ref) {
		insn := list.At(ref)
		for _, e := range chain {
			if !e.ShouldEnhance(insn) {
				continue
			}
			resume, err := e.Enhance(ctx, ref)
			if err != nil {
				return errors.InMethod(err, ctx.Method)
			}
			if resume != classfile.NoRef && !list.Linked(resume) {
				return errors.New(errors.PhaseEnhance, errors.KindInvariant).
					Method(ctx.Method).
					Insn(insn.String()).
					Value(resume).
					Detail("enhancer resumed at unlinked node %d", resume).
					Build()
			}
			rewrites++
			ref = resume
			break
		}
	}
	if rewrites > 0 {
		log.Debug("enhanced instructions",
			zap.String("class", ctx.Class),
			zap.String("method", ctx.Method),
			zap.Int("rewrites", rewrites))
	}
	return nil
}
