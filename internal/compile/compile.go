package compile

import (
	"context"
	"fmt"
	"time"

	"github.com/Starlink/ORAC-DR-sub007/internal/expand"
	"github.com/Starlink/ORAC-DR-sub007/pkg/domain"
)

// Compile lowers a parsed source into a unit. Text nodes lower to nothing;
// every other node becomes one typed step capturing its original line, so
// run-time diagnostics report what the author wrote.
func Compile(p *expand.Parsed, mtime time.Time) (*Unit, error) {
	u := &Unit{Name: p.Name, Path: p.Path, Mtime: mtime, Source: p}
	for _, n := range p.Nodes {
		switch n := n.(type) {
		case *expand.Text:
			// inert
		case *expand.Directive:
			u.steps = append(u.steps, lowerDirective(n))
		case *expand.TaskCall:
			s, err := lowerTask(p, n)
			if err != nil {
				return nil, err
			}
			u.steps = append(u.steps, s)
		case *expand.StatusCheck:
			u.steps = append(u.steps, lowerStatus(n))
		case *expand.Assign:
			u.steps = append(u.steps, lowerAssign(n))
		default:
			return nil, domain.Fatalf(p.Name, p.Path, n.Pos(), "cannot compile node %T", n)
		}
	}
	return u, nil
}

func lowerDirective(n *expand.Directive) step {
	return func(ctx context.Context, inv *Invocation) error {
		args, err := inv.resolveTokens(n.Args)
		if err != nil {
			return fatalize(inv.Name, inv.Path, n.Line, "cannot resolve arguments for "+n.Child, err)
		}
		frame := domain.CallFrame{
			Primitive: n.Child,
			Caller:    inv.Name,
			Line:      n.Line,
			Ordinal:   n.Ordinal,
			Depth:     inv.Depth + 1,
		}
		return inv.Host.Invoke(ctx, inv.RC, n.Child, args, frame)
	}
}

func lowerTask(p *expand.Parsed, n *expand.TaskCall) (step, error) {
	toks, err := expand.ParseArgs(n.ArgStr, false)
	if err != nil {
		return nil, domain.Fatalf(p.Name, p.Path, n.Line, "bad task arguments: %v", err)
	}
	return func(ctx context.Context, inv *Invocation) error {
		args, err := inv.resolveTokens(toks)
		if err != nil {
			return fatalize(inv.Name, inv.Path, n.Line, "cannot resolve task arguments", err)
		}
		inv.Host.Trace(inv.Name, n.Line, fmt.Sprintf("obeyw %s %s %s", n.Engine, n.Task, args))
		if err := inv.Host.Obeyw(ctx, n.Engine, n.Task, args); err != nil {
			return fmt.Errorf("%s line %d: %w", inv.Name, n.Line, err)
		}
		inv.Locals[expand.StatusBinding] = statusOK
		return nil
	}, nil
}

func lowerStatus(n *expand.StatusCheck) step {
	return func(ctx context.Context, inv *Invocation) error {
		switch n.Op {
		case expand.OpOK:
			inv.Locals[expand.StatusBinding] = statusOK
			return nil
		case expand.OpBad:
			return fmt.Errorf("%s line %d: status checkpoint failed", inv.Name, n.Line)
		case expand.OpGetPar:
			ops, err := inv.resolveAll(n.Operands)
			if err != nil {
				return fatalize(inv.Name, inv.Path, n.Line, "cannot resolve getpar operands", err)
			}
			v, err := inv.Host.GetPar(ctx, ops[0], ops[1], ops[2])
			if err != nil {
				return fmt.Errorf("%s line %d: %w", inv.Name, n.Line, err)
			}
			if n.Dest != expand.StatusBinding {
				inv.Locals[n.Dest] = v
			}
			inv.Locals[expand.StatusBinding] = statusOK
			return nil
		case expand.OpSetPar:
			ops, err := inv.resolveAll(n.Operands)
			if err != nil {
				return fatalize(inv.Name, inv.Path, n.Line, "cannot resolve setpar operands", err)
			}
			if err := inv.Host.SetPar(ctx, ops[0], ops[1], ops[2], ops[3]); err != nil {
				return fmt.Errorf("%s line %d: %w", inv.Name, n.Line, err)
			}
			inv.Locals[expand.StatusBinding] = statusOK
			return nil
		case expand.OpControl:
			ops, err := inv.resolveAll(n.Operands)
			if err != nil {
				return fatalize(inv.Name, inv.Path, n.Line, "cannot resolve control operands", err)
			}
			v, err := inv.Host.Control(ctx, ops[0], ops[1], ops[2])
			if err != nil {
				return fmt.Errorf("%s line %d: %w", inv.Name, n.Line, err)
			}
			if n.Dest != expand.StatusBinding {
				inv.Locals[n.Dest] = v
			}
			inv.Locals[expand.StatusBinding] = statusOK
			return nil
		}
		return domain.Fatalf(inv.Name, inv.Path, n.Line, "unhandled status op %v", n.Op)
	}
}

func lowerAssign(n *expand.Assign) step {
	return func(ctx context.Context, inv *Invocation) error {
		v, err := inv.resolve(n.Value)
		if err != nil {
			return fatalize(inv.Name, inv.Path, n.Line, "cannot resolve assignment", err)
		}
		inv.Locals[n.Name] = v
		return nil
	}
}
