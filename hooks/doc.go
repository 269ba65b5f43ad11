// Package hooks implements the user-registrable resolve and load hook chains.
//
// Hooks are visited strictly in registration order. Each hook receives a
// next continuation that invokes the following hook, or the default behavior
// once the chain is exhausted. A hook that returns without calling next ends
// the chain and its result is final.
//
//	p := hooks.New()
//	_ = p.Register(hooks.Hooks{
//		Resolve: func(ctx context.Context, spec string, rc hooks.ResolveContext, next hooks.NextResolve) (hooks.ResolveResult, error) {
//			if spec == "virtual:config" {
//				return hooks.ResolveResult{URL: "/etc/app/config.js", ShortCircuit: true}, nil
//			}
//			return next(ctx, spec, rc)
//		},
//	})
//
// Registration must complete before the first run. The pipeline seals itself
// on first use and rejects later registrations with ErrSealed.
package hooks
