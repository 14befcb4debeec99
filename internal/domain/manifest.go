package domain

import (
	"fmt"
	"slices"
	"time"
)

// EntryStatus tracks a manifest entry from submission to confirmation
type EntryStatus string

const (
	EntryPending   EntryStatus = "pending"
	EntryConfirmed EntryStatus = "confirmed"
	// EntryReverted marks a submission that reverted on chain. The unit is
	// submitted again on resume.
	EntryReverted EntryStatus = "reverted"
)

// RevertedAttempt is an earlier submission of a unit that reverted
type RevertedAttempt struct {
	Address         string    `json:"address"`
	TransactionHash string    `json:"transactionHash"`
	Block           uint64    `json:"block"`
	SubmittedAt     time.Time `json:"submittedAt"`
}

// ManifestEntry records one deployed unit.
type ManifestEntry struct {
	Unit             string      `json:"unit"`
	Contract         string      `json:"contract"`
	Address          string      `json:"address"`
	TransactionHash  string      `json:"transactionHash"`
	Args             []any       `json:"args"`
	Status           EntryStatus `json:"status"`
	ConfirmedAtBlock uint64      `json:"confirmedAtBlock,omitempty"`
	Confirmations    uint64      `json:"confirmations"`
	SubmittedAt      time.Time   `json:"submittedAt"`
	ConfirmedAt      *time.Time  `json:"confirmedAt,omitempty"`
	RevertedAtBlock  uint64      `json:"revertedAtBlock,omitempty"`
	// Reverted lists earlier submissions of the unit, oldest first
	Reverted []RevertedAttempt `json:"reverted,omitempty"`
}

// IsConfirmed reports whether the entry reached its confirmation depth
func (e *ManifestEntry) IsConfirmed() bool {
	return e.Status == EntryConfirmed
}

func (e *ManifestEntry) IsReverted() bool {
	return e.Status == EntryReverted
}

// Manifest is the append-only record of a deployment run. Entries are
// recorded pending when submitted and confirmed exactly once.
type Manifest struct {
	Plan     string                    `json:"plan"`
	Network  string                    `json:"network"`
	ChainID  uint64                    `json:"chainId"`
	Deployer string                    `json:"deployer,omitempty"`
	Order    []string                  `json:"order"`
	Entries  map[string]*ManifestEntry `json:"entries"`
}

// NewManifest creates an empty manifest
func NewManifest(plan, network string, chainID uint64) *Manifest {
	return &Manifest{
		Plan:    plan,
		Network: network,
		ChainID: chainID,
		Order:   []string{},
		Entries: make(map[string]*ManifestEntry),
	}
}

// RecordPending appends a submitted, unconfirmed entry. A reverted entry is
// replaced in place and its submission moves to the Reverted history.
func (m *Manifest) RecordPending(entry ManifestEntry) error {
	entry.Status = EntryPending
	entry.ConfirmedAtBlock = 0
	entry.ConfirmedAt = nil
	entry.RevertedAtBlock = 0

	existing, exists := m.Entries[entry.Unit]
	if !exists {
		entry.Reverted = nil
		m.Entries[entry.Unit] = &entry
		m.Order = append(m.Order, entry.Unit)
		return nil
	}
	if !existing.IsReverted() {
		return fmt.Errorf("manifest entry %s: %w", entry.Unit, ErrAlreadyExists)
	}
	entry.Reverted = append(slices.Clone(existing.Reverted), RevertedAttempt{
		Address:         existing.Address,
		TransactionHash: existing.TransactionHash,
		Block:           existing.RevertedAtBlock,
		SubmittedAt:     existing.SubmittedAt,
	})
	m.Entries[entry.Unit] = &entry
	return nil
}

// MarkReverted records that the pending submission of unit reverted in block.
func (m *Manifest) MarkReverted(unit string, block uint64) error {
	entry, ok := m.Entries[unit]
	if !ok {
		return fmt.Errorf("manifest entry %s: %w", unit, ErrNotFound)
	}
	if entry.Status != EntryPending {
		return fmt.Errorf("manifest entry %s is %s, not pending: %w", unit, entry.Status, ErrAlreadyExists)
	}
	entry.Status = EntryReverted
	entry.RevertedAtBlock = block
	return nil
}

// Confirm finalizes a pending entry. Confirmed entries never change again.
func (m *Manifest) Confirm(unit string, block, confirmations uint64, at time.Time) error {
	entry, ok := m.Entries[unit]
	if !ok {
		return fmt.Errorf("manifest entry %s: %w", unit, ErrNotFound)
	}
	if entry.Status != EntryPending {
		return fmt.Errorf("manifest entry %s is already %s: %w", unit, entry.Status, ErrAlreadyExists)
	}
	entry.Status = EntryConfirmed
	entry.ConfirmedAtBlock = block
	entry.Confirmations = confirmations
	entry.ConfirmedAt = &at
	return nil
}

// Get returns a copy of the entry for unit.
func (m *Manifest) Get(unit string) (ManifestEntry, bool) {
	entry, ok := m.Entries[unit]
	if !ok {
		return ManifestEntry{}, false
	}
	return *entry, true
}

// Address returns the deployed address of unit, if recorded. A reverted
// submission has no contract behind its address.
func (m *Manifest) Address(unit string) (string, bool) {
	entry, ok := m.Entries[unit]
	if !ok || entry.IsReverted() {
		return "", false
	}
	return entry.Address, true
}

// List returns copies of all entries in submission order.
func (m *Manifest) List() []ManifestEntry {
	entries := make([]ManifestEntry, 0, len(m.Order))
	for _, name := range m.Order {
		if entry, ok := m.Entries[name]; ok {
			entries = append(entries, *entry)
		}
	}
	return entries
}

// Len returns the number of recorded entries
func (m *Manifest) Len() int {
	return len(m.Entries)
}

// Pending returns the names of entries still awaiting confirmation
func (m *Manifest) Pending() []string {
	var pending []string
	for _, name := range m.Order {
		if entry := m.Entries[name]; entry != nil && entry.Status == EntryPending {
			pending = append(pending, name)
		}
	}
	return pending
}
