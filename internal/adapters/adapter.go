// Package adapters binds external data sources to subtrees of the status
// tree. An adapter owns one mount URL; it populates that subtree on Start
// and clears it on Stop. The File and Web variants are the only ones in
// scope; Serial/Device/SNMP adapters are out of scope.
package adapters

import (
	"log/slog"

	"github.com/DonGar/house-monitor/internal/statustree"
)

// Adapter binds an external data source to a mount URL.
type Adapter interface {
	// Start initializes the subtree under the adapter's mount URL.
	Start() error
	// Stop clears the subtree and releases any resources (file watches,
	// background goroutines) the adapter holds.
	Stop() error
	// MountURL returns the status:// URL this adapter owns.
	MountURL() string
}

// Deps bundles the collaborators every adapter needs.
type Deps struct {
	Tree   *statustree.Tree
	Logger *slog.Logger
}

func (d Deps) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}
