// Package inflight assembles net/http services whose in-flight work is visible at runtime.
//
// Every request on the primary server becomes a root task in a taskreg.Registry; handlers can
// fan out subtasks (taskreg.Registry.Go) and update their states, and operators read the live
// task tree from the admin subtree:
//
//	reg := taskreg.New()
//	svc := inflight.NewService(inflight.ServiceSpec{
//		Registry: reg,
//		Primary:  &inflight.HTTPServerSpec{Addr: ":8080", Handler: app},
//		Admin: &inflight.ServiceAdminSpec{
//			Spec: inflight.AdminSpec{ReadGuard: inflight.Tokens([]string{token})},
//		},
//	})
//	err := svc.Run(ctx)
//
//	$ curl -H 'X-Access-Token: ...' 'localhost:8080/-/tasks?view=tree'
//
// The building blocks live in subpackages: rt/taskreg (the registry), rt/safego (goroutines
// with panic reporting), httpx (middlewares), ops (handlers) and admin (guarded assembly).
package inflight
