package wifi

import (
	"context"
	"sync"
)

// FakeRadio is a scripted Radio for tests.
type FakeRadio struct {
	// AssociateErr is returned by Associate.
	AssociateErr error
	// ProvisionOK makes Provision succeed at once. Otherwise Provision
	// returns ProvisionErr if set, or blocks until its context ends.
	ProvisionOK  bool
	ProvisionErr error
	// ResetErr is returned by ResetCredentials.
	ResetErr error

	mu           sync.Mutex
	associations int
	provisions   int
	resets       int
	lastSSID     string
}

// NewFakeRadio creates a FakeRadio that associates successfully.
func NewFakeRadio() *FakeRadio {
	return &FakeRadio{}
}

// Associate records the call and returns AssociateErr.
func (f *FakeRadio) Associate(ctx context.Context) error {
	f.mu.Lock()
	f.associations++
	err := f.AssociateErr
	f.mu.Unlock()
	return err
}

// ResetCredentials records the call.
func (f *FakeRadio) ResetCredentials() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
	return f.ResetErr
}

// Provision records the call and behaves as configured.
func (f *FakeRadio) Provision(ctx context.Context, ssid string) error {
	f.mu.Lock()
	f.provisions++
	f.lastSSID = ssid
	ok, err := f.ProvisionOK, f.ProvisionErr
	f.mu.Unlock()

	if ok {
		return nil
	}
	if err != nil {
		return err
	}
	<-ctx.Done()
	return ctx.Err()
}

// Counts returns how often each operation was called.
func (f *FakeRadio) Counts() (associations, provisions, resets int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.associations, f.provisions, f.resets
}

// LastSSID returns the SSID passed to the last Provision call.
func (f *FakeRadio) LastSSID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastSSID
}
