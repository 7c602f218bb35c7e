// Package valkey persists the polyline cache snapshot in Valkey
// (Redis-compatible) so a restarted instance can warm its cache without
// re-hitting the routing provider.
package valkey

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/valkey-io/valkey-go"

	"github.com/samirrijal/nearbus/internal/core/ports"
)

// snapshotKey holds the entire cache as one JSON document. A single
// document keeps save/load atomic and the value inspectable with a
// plain GET.
const snapshotKey = "nearbus:polylines:snapshot"

// SnapshotStore implements ports.SnapshotStore on Valkey.
type SnapshotStore struct {
	client valkey.Client
}

// New connects to Valkey at addr.
func New(addr string) (*SnapshotStore, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{addr},
	})
	if err != nil {
		return nil, fmt.Errorf("valkey connect: %w", err)
	}
	return &SnapshotStore{client: client}, nil
}

// Save writes the snapshot, replacing any previous one. No TTL is set:
// entry freshness is judged against BuiltAt on load, not by the store.
func (s *SnapshotStore) Save(ctx context.Context, snap ports.PolylineSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	cmd := s.client.Do(ctx, s.client.B().Set().Key(snapshotKey).Value(string(payload)).Build())
	if cmd.Error() != nil {
		return fmt.Errorf("save snapshot: %w", cmd.Error())
	}
	return nil
}

// Load reads the snapshot. A missing key is not an error; it returns an
// empty snapshot so a cold start proceeds with an empty cache.
func (s *SnapshotStore) Load(ctx context.Context) (ports.PolylineSnapshot, error) {
	cmd := s.client.Do(ctx, s.client.B().Get().Key(snapshotKey).Build())
	if err := cmd.Error(); err != nil {
		if valkey.IsValkeyNil(err) {
			return ports.PolylineSnapshot{}, nil
		}
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	payload, err := cmd.AsBytes()
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	var snap ports.PolylineSnapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

// Ping checks connectivity for readiness probes.
func (s *SnapshotStore) Ping(ctx context.Context) error {
	return s.client.Do(ctx, s.client.B().Ping().Build()).Error()
}

// Close releases the client.
func (s *SnapshotStore) Close() {
	s.client.Close()
}
