// Package device provides recording devices for the capture orchestrator.
//
// Every Open call returns an independent recording that yields at most one
// outcome. Closing a recording releases whatever it holds, a filesystem
// watcher for InboxDevice or the armed attempt for RemoteDevice.
package device
