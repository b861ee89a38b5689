// Copyright 2023 LiveKit, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package rtc

import (
	"fmt"
	"sync"

	"github.com/elliotchance/orderedmap/v2"

	"github.com/livekit/protocol/logger"

	"github.com/livekit/rtc-session/pkg/rtc/types"
)

// TransceiverEntry pairs a publish option with the transceiver sending it.
type TransceiverEntry struct {
	Option      types.PublishOption
	Transceiver types.Transceiver
	// last computed encodings, empty for audio
	Layers []types.EncodingLayer
}

// Track returns the track attached to the entry's sender, if any.
func (e TransceiverEntry) Track() types.MediaTrack {
	if e.Transceiver == nil {
		return nil
	}
	sender := e.Transceiver.Sender()
	if sender == nil {
		return nil
	}
	return sender.Track()
}

// TransceiverRegistry holds at most one transceiver per publish option identity, in insertion order.
type TransceiverRegistry struct {
	logger logger.Logger

	lock    sync.Mutex
	entries *orderedmap.OrderedMap[string, *TransceiverEntry]
}

func NewTransceiverRegistry(logger logger.Logger) *TransceiverRegistry {
	return &TransceiverRegistry{
		logger:  logger,
		entries: orderedmap.NewOrderedMap[string, *TransceiverEntry](),
	}
}

// Add registers transceiver for option. If the key is already present the existing
// transceiver is returned and nothing is added.
func (r *TransceiverRegistry) Add(option types.PublishOption, transceiver types.Transceiver) (types.Transceiver, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()

	key := option.Key()
	if existing, ok := r.entries.Get(key); ok {
		r.logger.Warnw("transceiver already registered", nil, "key", key, "option", option)
		return existing.Transceiver, false
	}
	r.entries.Set(key, &TransceiverEntry{
		Option:      option,
		Transceiver: transceiver,
	})
	return transceiver, true
}

func (r *TransceiverRegistry) Get(option types.PublishOption) types.Transceiver {
	r.lock.Lock()
	defer r.lock.Unlock()

	if entry, ok := r.entries.Get(option.Key()); ok {
		return entry.Transceiver
	}
	return nil
}

func (r *TransceiverRegistry) Contains(option types.PublishOption) bool {
	r.lock.Lock()
	defer r.lock.Unlock()

	_, ok := r.entries.Get(option.Key())
	return ok
}

func (r *TransceiverRegistry) Len() int {
	r.lock.Lock()
	defer r.lock.Unlock()

	return r.entries.Len()
}

// IndexOf returns the insertion position of option, or -1.
func (r *TransceiverRegistry) IndexOf(option types.PublishOption) int {
	r.lock.Lock()
	defer r.lock.Unlock()

	key := option.Key()
	idx := 0
	for el := r.entries.Front(); el != nil; el = el.Next() {
		if el.Key == key {
			return idx
		}
		idx++
	}
	return -1
}

// Items returns a snapshot of all entries in insertion order.
func (r *TransceiverRegistry) Items() []TransceiverEntry {
	r.lock.Lock()
	defer r.lock.Unlock()

	return r.itemsLocked()
}

func (r *TransceiverRegistry) itemsLocked() []TransceiverEntry {
	items := make([]TransceiverEntry, 0, r.entries.Len())
	for el := r.entries.Front(); el != nil; el = el.Next() {
		items = append(items, *el.Value)
	}
	return items
}

// ForEach calls fn for a snapshot of the entries, outside the registry lock.
func (r *TransceiverRegistry) ForEach(fn func(entry TransceiverEntry)) {
	for _, entry := range r.Items() {
		fn(entry)
	}
}

func (r *TransceiverRegistry) SetLayers(option types.PublishOption, layers []types.EncodingLayer) {
	r.lock.Lock()
	defer r.lock.Unlock()

	if entry, ok := r.entries.Get(option.Key()); ok {
		entry.Layers = append([]types.EncodingLayer(nil), layers...)
	}
}

func (r *TransceiverRegistry) GetLayers(option types.PublishOption) []types.EncodingLayer {
	r.lock.Lock()
	defer r.lock.Unlock()

	if entry, ok := r.entries.Get(option.Key()); ok {
		return append([]types.EncodingLayer(nil), entry.Layers...)
	}
	return nil
}

func (r *TransceiverRegistry) Enable(option types.PublishOption) bool {
	return r.setEnabled(option, true)
}

func (r *TransceiverRegistry) Disable(option types.PublishOption) bool {
	return r.setEnabled(option, false)
}

func (r *TransceiverRegistry) setEnabled(option types.PublishOption, enabled bool) bool {
	r.lock.Lock()
	entry, ok := r.entries.Get(option.Key())
	r.lock.Unlock()
	if !ok {
		return false
	}

	track := entry.Track()
	if track == nil {
		return false
	}
	if err := track.SetEnabled(enabled); err != nil {
		r.logger.Warnw("could not set track enabled", err, "key", option.Key(), "enabled", enabled)
		return false
	}
	return true
}

// DisableIf disables the track of every entry matching pred.
func (r *TransceiverRegistry) DisableIf(pred func(entry TransceiverEntry) bool) {
	for _, entry := range r.Items() {
		if pred(entry) {
			r.Disable(entry.Option)
		}
	}
}

// Remove unregisters option and tears its transceiver down.
func (r *TransceiverRegistry) Remove(option types.PublishOption) bool {
	r.lock.Lock()
	key := option.Key()
	entry, ok := r.entries.Get(key)
	if ok {
		r.entries.Delete(key)
	}
	r.lock.Unlock()

	if !ok {
		return false
	}
	r.dispose(*entry)
	return true
}

// RemoveIf removes and tears down every entry matching pred.
func (r *TransceiverRegistry) RemoveIf(pred func(entry TransceiverEntry) bool) int {
	r.lock.Lock()
	var removed []TransceiverEntry
	for _, entry := range r.itemsLocked() {
		if pred(entry) {
			r.entries.Delete(entry.Option.Key())
			removed = append(removed, entry)
		}
	}
	r.lock.Unlock()

	for _, entry := range removed {
		r.dispose(entry)
	}
	return len(removed)
}

func (r *TransceiverRegistry) Clear() {
	r.lock.Lock()
	items := r.itemsLocked()
	r.entries = orderedmap.NewOrderedMap[string, *TransceiverEntry]()
	r.lock.Unlock()

	for _, entry := range items {
		r.dispose(entry)
	}
}

// Discard tears down a transceiver that was never registered for option. The
// track it sends is only disabled and disposed when ownsTrack is set.
func (r *TransceiverRegistry) Discard(option types.PublishOption, transceiver types.Transceiver, ownsTrack bool) {
	entry := TransceiverEntry{Option: option, Transceiver: transceiver}
	if ownsTrack {
		r.dispose(entry)
		return
	}
	key := option.Key()
	r.safeCall(key, "stop transceiver", transceiver.Stop)
	r.safeCall(key, "dispose transceiver", transceiver.Dispose)
}

// dispose runs every teardown step regardless of earlier failures.
func (r *TransceiverRegistry) dispose(entry TransceiverEntry) {
	key := entry.Option.Key()
	track := entry.Track()
	if track != nil {
		r.safeCall(key, "disable track", func() error { return track.SetEnabled(false) })
		r.safeCall(key, "dispose track", track.Dispose)
	}
	if entry.Transceiver != nil {
		r.safeCall(key, "stop transceiver", entry.Transceiver.Stop)
		r.safeCall(key, "dispose transceiver", entry.Transceiver.Dispose)
	}
}

func (r *TransceiverRegistry) safeCall(key string, step string, fn func() error) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Warnw("transceiver teardown step panicked", fmt.Errorf("%v", p), "key", key, "step", step)
		}
	}()
	if err := fn(); err != nil {
		r.logger.Warnw("transceiver teardown step failed", err, "key", key, "step", step)
	}
}
