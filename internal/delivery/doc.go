// Package delivery hands completed capture artifacts downstream.
//
// A FileStore persists the artifact bytes, a Notifier announces the stored
// artifact on NATS, and a Chain runs them in order:
//
//	store, _ := delivery.NewFileStore("/var/lib/scancap/artifacts")
//	notifier, _ := delivery.NewNotifier(nc)
//	d := delivery.NewChain(store, delivery.WithNotifier(notifier))
//	receipt, err := d.Deliver(ctx, req)
package delivery
