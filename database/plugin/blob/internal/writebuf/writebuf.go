// Copyright 2025 Blink Labs Software
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

// Package writebuf stages writes for blob backends that have no native
// transactions, so that nothing reaches the backend before commit.
package writebuf

import (
	"slices"
)

type Entry struct {
	Key     []byte
	Value   []byte
	Deleted bool
}

// Buffer holds pending writes in insertion order. The last write to a key
// wins. It is not safe for concurrent use.
type Buffer struct {
	index   map[string]int
	entries []Entry
}

func New() *Buffer {
	return &Buffer{index: make(map[string]int)}
}

func (b *Buffer) Set(key, val []byte) {
	b.put(Entry{Key: slices.Clone(key), Value: slices.Clone(val)})
}

func (b *Buffer) Delete(key []byte) {
	b.put(Entry{Key: slices.Clone(key), Deleted: true})
}

func (b *Buffer) put(e Entry) {
	if idx, ok := b.index[string(e.Key)]; ok {
		b.entries[idx] = e
		return
	}
	b.index[string(e.Key)] = len(b.entries)
	b.entries = append(b.entries, e)
}

// Lookup returns a pending write for key. It returns found=false when the
// key has no pending write and the backend must be consulted.
func (b *Buffer) Lookup(key []byte) (val []byte, deleted bool, found bool) {
	idx, ok := b.index[string(key)]
	if !ok {
		return nil, false, false
	}
	e := b.entries[idx]
	return slices.Clone(e.Value), e.Deleted, true
}

func (b *Buffer) Entries() []Entry {
	return b.entries
}

func (b *Buffer) Len() int {
	return len(b.entries)
}

func (b *Buffer) Reset() {
	clear(b.index)
	b.entries = nil
}
