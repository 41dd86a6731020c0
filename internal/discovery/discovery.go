// Package discovery implements host-side mDNS advertisement of a
// `_multishiva._tcp` service record, and agent-side browsing with a
// bounded 5-second window. Grounded on canonical-snapd's
// cluster/assemblestate/dnssd package, which wraps brutella/dnssd the same
// way: a Config->Service->Responder chain for advertising, a bounded
// context-scoped lookup for browsing.
package discovery

import (
	"context"
	"fmt"
	"time"

	"github.com/brutella/dnssd"
	"go.uber.org/zap"
)

const (
	serviceType = "_multishiva._tcp"
	// BrowseWindow is how long an agent without a configured host address
	// spends browsing before giving up.
	BrowseWindow = 5 * time.Second
	// ReannounceInterval is a re-advertisement period. Advertise does not
	// reference it and schedules no re-announcements of its own; the
	// record is served by the dnssd responder until Close.
	ReannounceInterval = 5 * time.Second
)

// Advertiser registers the host's service record and keeps it alive until
// Close. Registration failure is non-fatal; callers log and continue
// accepting direct connections.
type Advertiser struct {
	log       *zap.Logger
	responder dnssd.Responder
	cancel    context.CancelFunc
	done      chan struct{}
}

// Advertise registers `_multishiva._tcp` for machineName on port, bound to
// every local address dnssd can enumerate across both address families.
// Returns an error only for diagnostic logging; the caller should treat
// it as non-fatal.
func Advertise(log *zap.Logger, machineName string, port int) (*Advertiser, error) {
	cfg := dnssd.Config{
		Name: machineName,
		Type: serviceType,
		Port: port,
	}
	service, err := dnssd.NewService(cfg)
	if err != nil {
		return nil, fmt.Errorf("discovery: build service record: %w", err)
	}

	responder, err := dnssd.NewResponder()
	if err != nil {
		return nil, fmt.Errorf("discovery: new responder: %w", err)
	}
	if _, err := responder.Add(service); err != nil {
		return nil, fmt.Errorf("discovery: register service: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &Advertiser{log: log, responder: responder, cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(a.done)
		if err := responder.Respond(ctx); err != nil && ctx.Err() == nil {
			log.Warn("mdns responder stopped", zap.Error(err))
		}
	}()
	log.Info("advertising service", zap.String("type", serviceType), zap.String("name", machineName), zap.Int("port", port))
	return a, nil
}

// Close stops re-announcing and withdraws the record.
func (a *Advertiser) Close() {
	a.cancel()
	<-a.done
}

// Found is one resolved service record seen while browsing.
type Found struct {
	MachineName string
	Host        string
	Port        int
	Addresses   []string
}

// Browse looks for `_multishiva._tcp` records for up to BrowseWindow. If
// expectedHost is non-empty, it returns a record whose machine
// name matches, or an error when none does; otherwise it returns the
// first record seen, logging a warning when more than one record answered.
func Browse(ctx context.Context, log *zap.Logger, expectedHost string) (Found, error) {
	ctx, cancel := context.WithTimeout(ctx, BrowseWindow)
	defer cancel()

	var found []Found
	added := func(e dnssd.BrowseEntry) {
		f := Found{MachineName: e.Name, Host: e.Host, Port: e.Port}
		for _, ip := range e.IPs {
			f.Addresses = append(f.Addresses, ip.String())
		}
		found = append(found, f)
		if expectedHost != "" && e.Name == expectedHost {
			cancel()
		}
	}
	removed := func(e dnssd.BrowseEntry) {}

	err := dnssd.LookupType(ctx, serviceType+".local.", added, removed)
	if err != nil && ctx.Err() == nil {
		return Found{}, fmt.Errorf("discovery: browse: %w", err)
	}
	return selectRecord(log, found, expectedHost)
}

// selectRecord implements the matching policy over an already
// resolved set of records: the first name match against expectedHost if one
// is configured (an error if there is none), otherwise the first record,
// warning on ambiguity. Split
// out from Browse so it's testable without a live mDNS responder.
func selectRecord(log *zap.Logger, found []Found, expectedHost string) (Found, error) {
	if len(found) == 0 {
		return Found{}, fmt.Errorf("discovery: no %s record found within %s", serviceType, BrowseWindow)
	}

	if expectedHost != "" {
		for _, f := range found {
			if f.MachineName == expectedHost {
				return f, nil
			}
		}
		return Found{}, fmt.Errorf("discovery: no record matching expected host %q among %d found", expectedHost, len(found))
	}

	if len(found) > 1 {
		names := make([]string, len(found))
		for i, f := range found {
			names[i] = f.MachineName
		}
		log.Warn("multiple mdns records found, selecting first", zap.Strings("candidates", names))
	}
	return found[0], nil
}
