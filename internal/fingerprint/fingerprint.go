// Package fingerprint implements the credential-pinning store: a
// write-through, peer-name-keyed file of trust-on-first-use digests.
// Reads and writes serialize through a single owner goroutine
// reading commands off a channel, the same discipline the teacher's
// peer.topologyStore used to funnel every mutation through one *sql.DB
// handle — here the "handle" is an in-memory map plus the JSON file it
// mirrors.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	jsoniter "github.com/json-iterator/go"
)

// Digest is the 256-bit credential fingerprint: sha256(secret || 0x00 || peerName),
// so that substituting either the secret or the claimed peer name changes
// the digest.
type Digest [32]byte

func (d Digest) String() string { return fmt.Sprintf("%x", d[:]) }

// Compute derives the fingerprint for a peer's claimed name under the
// configured shared secret.
func Compute(sharedSecret []byte, peerName string) Digest {
	h := sha256.New()
	h.Write(sharedSecret)
	h.Write([]byte{0}) // separator: prevents secret/name concatenation ambiguity
	h.Write([]byte(peerName))
	var d Digest
	copy(d[:], h.Sum(nil))
	return d
}

// Record is one peer's stored fingerprint history.
type Record struct {
	Digest    Digest    `json:"digest"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

type record struct {
	DigestHex string    `json:"digest"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// PutResult reports whether put_if_absent inserted a new record or found an
// existing one.
type PutResult int

const (
	Inserted PutResult = iota
	Existed
)

// VerifyResult reports the outcome of verifying a claimed digest against
// the store.
type VerifyResult int

const (
	Ok VerifyResult = iota
	Mismatch
	FirstSeen
)

func (r VerifyResult) String() string {
	switch r {
	case Ok:
		return "ok"
	case Mismatch:
		return "mismatch"
	case FirstSeen:
		return "first_seen"
	default:
		return "unknown"
	}
}

type command struct {
	op     string
	peer   string
	digest Digest
	now    time.Time
	reply  chan result
}

type result struct {
	record Record
	all    map[string]Record
	ok     bool
	put    PutResult
	verify VerifyResult
	err    error
}

// Store is the process-wide fingerprint singleton, constructed once at
// startup and passed down as an explicit handle. All mutation and lookup is funneled
// through one owner goroutine so the on-disk file never sees interleaved
// writers.
type Store struct {
	path string
	cmds chan command
	done chan struct{}
}

// Open loads path (creating an empty store if it doesn't yet exist) and
// starts its owner goroutine. Callers must call Close on shutdown.
func Open(path string) (*Store, error) {
	records, err := load(path)
	if err != nil {
		return nil, err
	}
	s := &Store{
		path: path,
		cmds: make(chan command),
		done: make(chan struct{}),
	}
	go s.run(records)
	return s, nil
}

func load(path string) (map[string]Record, error) {
	records := make(map[string]Record)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return records, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fingerprint: read %s: %w", path, err)
	}
	var raw map[string]record
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("fingerprint: parse %s: %w", path, err)
	}
	for peer, r := range raw {
		raw, err := hex.DecodeString(r.DigestHex)
		if err != nil || len(raw) != len(Digest{}) {
			return nil, fmt.Errorf("fingerprint: bad digest for %q in %s", peer, path)
		}
		var d Digest
		copy(d[:], raw)
		records[peer] = Record{Digest: d, FirstSeen: r.FirstSeen, LastSeen: r.LastSeen}
	}
	return records, nil
}

func persist(path string, records map[string]Record) error {
	raw := make(map[string]record, len(records))
	for peer, r := range records {
		raw[peer] = record{DigestHex: r.Digest.String(), FirstSeen: r.FirstSeen, LastSeen: r.LastSeen}
	}
	data, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("fingerprint: encode: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("fingerprint: mkdir %s: %w", dir, err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("fingerprint: write %s: %w", tmp, err)
	}
	return os.Rename(tmp, path)
}

func (s *Store) run(records map[string]Record) {
	defer close(s.done)
	for cmd := range s.cmds {
		switch cmd.op {
		case "get":
			r, ok := records[cmd.peer]
			cmd.reply <- result{record: r, ok: ok}

		case "put_if_absent":
			if r, ok := records[cmd.peer]; ok {
				cmd.reply <- result{record: r, put: Existed, ok: true}
				continue
			}
			r := Record{Digest: cmd.digest, FirstSeen: cmd.now, LastSeen: cmd.now}
			records[cmd.peer] = r
			err := persist(s.path, records)
			cmd.reply <- result{record: r, put: Inserted, ok: true, err: err}

		case "list":
			all := make(map[string]Record, len(records))
			for peer, r := range records {
				all[peer] = r
			}
			cmd.reply <- result{all: all}

		case "verify":
			r, ok := records[cmd.peer]
			if !ok {
				r = Record{Digest: cmd.digest, FirstSeen: cmd.now, LastSeen: cmd.now}
				records[cmd.peer] = r
				err := persist(s.path, records)
				cmd.reply <- result{record: r, verify: FirstSeen, err: err}
				continue
			}
			if r.Digest != cmd.digest {
				cmd.reply <- result{record: r, verify: Mismatch}
				continue
			}
			r.LastSeen = cmd.now
			records[cmd.peer] = r
			err := persist(s.path, records)
			cmd.reply <- result{record: r, verify: Ok, err: err}
		}
	}
}

func (s *Store) do(cmd command) result {
	cmd.reply = make(chan result, 1)
	s.cmds <- cmd
	return <-cmd.reply
}

// Get returns the stored record for peer, if any.
func (s *Store) Get(peer string) (Record, bool) {
	r := s.do(command{op: "get", peer: peer})
	return r.record, r.ok
}

// PutIfAbsent inserts digest for peer if no record exists yet, persisting
// the change; returns Existed without modifying the store otherwise.
func (s *Store) PutIfAbsent(peer string, digest Digest, now time.Time) (PutResult, error) {
	r := s.do(command{op: "put_if_absent", peer: peer, digest: digest, now: now})
	return r.put, r.err
}

// Verify checks digest against the stored record for peer: a first-ever
// sighting records and returns FirstSeen (trust-on-first-use); a match
// returns Ok; a mismatch returns Mismatch without modifying the store.
func (s *Store) Verify(peer string, digest Digest, now time.Time) (VerifyResult, error) {
	r := s.do(command{op: "verify", peer: peer, digest: digest, now: now})
	return r.verify, r.err
}

// List returns every stored peer record, for the --fingerprints
// diagnostic flag.
func (s *Store) List() map[string]Record {
	r := s.do(command{op: "list"})
	return r.all
}

// Close stops the owner goroutine. Pending commands in flight are served
// before shutdown.
func (s *Store) Close() {
	close(s.cmds)
	<-s.done
}
