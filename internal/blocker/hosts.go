// Package blocker redirects distraction domains while a work session runs
// by maintaining a hosts-format file. Point a local resolver at it (for
// example dnsmasq's addn-hosts) to make the block take effect.
package blocker

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/txn2/txeh"
)

const header = "# Managed by focusforest. Entries for the redirect address change on every session start and end."

type HostsBlocker struct {
	mu      sync.Mutex
	path    string
	address string
}

// NewHostsBlocker keeps rules in path, redirecting to address (0.0.0.0
// when empty). Lines for other addresses in the file are left alone.
func NewHostsBlocker(path, address string) *HostsBlocker {
	if address == "" {
		address = "0.0.0.0"
	}
	return &HostsBlocker{path: path, address: address}
}

// Enable replaces the redirected hosts with one entry per domain and its
// www host.
func (b *HostsBlocker) Enable(ctx context.Context, domains []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(b.path), 0o755); err != nil {
		return fmt.Errorf("failed to create blocklist directory: %w", err)
	}
	hosts, err := b.load()
	if err != nil {
		return err
	}
	hosts.RemoveHosts(hosts.ListHostsByIP(b.address))
	blocked := expand(domains)
	hosts.AddHosts(b.address, blocked)
	if err := hosts.Save(); err != nil {
		return fmt.Errorf("failed to write blocklist %s: %w", b.path, err)
	}
	log.Printf("Blocking %d hosts via %s", len(blocked), b.path)
	return nil
}

// Disable drops every redirected host. A missing file is not an error.
func (b *HostsBlocker) Disable(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := os.Stat(b.path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	hosts, err := b.load()
	if err != nil {
		return err
	}
	hosts.RemoveHosts(hosts.ListHostsByIP(b.address))
	if err := hosts.Save(); err != nil {
		return fmt.Errorf("failed to clear blocklist %s: %w", b.path, err)
	}
	return nil
}

// Blocked lists the hosts currently redirected, in file order.
func (b *HostsBlocker) Blocked() ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := os.Stat(b.path); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	hosts, err := b.load()
	if err != nil {
		return nil, err
	}
	return hosts.ListHostsByIP(b.address), nil
}

// load parses the managed file, starting from just the header when it does
// not exist yet.
func (b *HostsBlocker) load() (*txeh.Hosts, error) {
	cfg := &txeh.HostsConfig{ReadFilePath: b.path, WriteFilePath: b.path}
	if _, err := os.Stat(b.path); errors.Is(err, fs.ErrNotExist) {
		raw := header + "\n"
		cfg = &txeh.HostsConfig{RawText: &raw, WriteFilePath: b.path}
	}
	hosts, err := txeh.NewHosts(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to read blocklist %s: %w", b.path, err)
	}
	return hosts, nil
}

// expand normalizes each domain, adds its www variant and drops repeats.
func expand(domains []string) []string {
	var out []string
	seen := map[string]bool{}
	add := func(host string) {
		if !seen[host] {
			seen[host] = true
			out = append(out, host)
		}
	}
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		d = strings.TrimPrefix(d, "*.")
		if d == "" || strings.ContainsAny(d, " /\t") {
			continue
		}
		add(d)
		if !strings.HasPrefix(d, "www.") {
			add("www." + d)
		}
	}
	return out
}
