package storefakes

import (
	"sync"

	"github.com/LucianaVC752/CajasDelCampo-sub000/credentials"
)

var _ credentials.KeyValue = (*FakeKeyValue)(nil)

// FakeKeyValue is an in-memory KeyValue backend for tests. Setting FailWith
// makes every operation return that error, simulating disabled storage.
type FakeKeyValue struct {
	mu       sync.RWMutex
	values   map[string]string
	failWith error
}

func NewFakeKeyValue() *FakeKeyValue {
	return &FakeKeyValue{
		values: make(map[string]string),
	}
}

// FailWith makes all subsequent operations fail with err. Pass nil to heal.
func (kv *FakeKeyValue) FailWith(err error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.failWith = err
}

func (kv *FakeKeyValue) Get(key string) (string, error) {
	kv.mu.RLock()
	defer kv.mu.RUnlock()
	if kv.failWith != nil {
		return "", kv.failWith
	}
	return kv.values[key], nil
}

func (kv *FakeKeyValue) Set(key, value string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	if kv.failWith != nil {
		return kv.failWith
	}
	kv.values[key] = value
	return nil
}

func (kv *FakeKeyValue) Delete(key string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	if kv.failWith != nil {
		return kv.failWith
	}
	delete(kv.values, key)
	return nil
}

func (kv *FakeKeyValue) Keys() ([]string, error) {
	kv.mu.RLock()
	defer kv.mu.RUnlock()
	if kv.failWith != nil {
		return nil, kv.failWith
	}
	keys := make([]string, 0, len(kv.values))
	for key := range kv.values {
		keys = append(keys, key)
	}
	return keys, nil
}

// Len returns the number of stored keys.
func (kv *FakeKeyValue) Len() int {
	kv.mu.RLock()
	defer kv.mu.RUnlock()
	return len(kv.values)
}
