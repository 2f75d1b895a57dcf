package testsupport

import (
	"context"
	"sync"

	"datasanitizer/internal/system"
)

// StaticEnumerator отдаёт заданный список томов и считает вызовы
type StaticEnumerator struct {
	mu      sync.Mutex
	Volumes []system.Volume
	Err     error
	Calls   int
}

func (e *StaticEnumerator) Enumerate(ctx context.Context) ([]system.Volume, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Calls++
	if e.Err != nil {
		return nil, e.Err
	}
	out := make([]system.Volume, len(e.Volumes))
	copy(out, e.Volumes)
	return out, nil
}

// Set заменяет список томов (имитация горячего подключения)
func (e *StaticEnumerator) Set(volumes []system.Volume) {
	e.mu.Lock()
	e.Volumes = volumes
	e.mu.Unlock()
}

// CallCount число вызовов Enumerate
func (e *StaticEnumerator) CallCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Calls
}

// StaticProbe отдаёт заданные загрузочные тома
type StaticProbe struct {
	Boot []string
	Err  error
}

func (p StaticProbe) BootIdentifiers(ctx context.Context) ([]string, error) {
	if p.Err != nil {
		return nil, p.Err
	}
	return append([]string(nil), p.Boot...), nil
}

// ChanWatcher отдаёт события из канала Events
type ChanWatcher struct {
	Events chan system.DeviceEvent
}

func NewChanWatcher() *ChanWatcher {
	return &ChanWatcher{Events: make(chan system.DeviceEvent, 1)}
}

func (w *ChanWatcher) Watch(ctx context.Context, identifiers ...string) (<-chan system.DeviceEvent, error) {
	return w.Events, nil
}
