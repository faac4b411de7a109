// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package scp reads Kaldi style script lists: one "key location" pair per line.
// The order of the lines is kept and defines the order of the index.
package scp

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// Index is an ordered mapping of utterance key to waveform location
type Index struct {
	keys []string
	locs map[string]string
}

// NewIndex returns an empty index
func NewIndex() *Index {
	return &Index{locs: make(map[string]string)}
}

// Load opens and parses the script list fn
func Load(fn string) (*Index, error) {
	fp, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer fp.Close()

	ix, err := Parse(fp)
	if err != nil {
		return nil, errors.Wrapf(err, "scp.Load %s", fn)
	}
	return ix, nil
}

// Parse reads script list lines from r. Blank lines are skipped, the location
// is the rest of the line after the key and may contain spaces.
func Parse(r io.Reader) (*Index, error) {
	ix := NewIndex()
	scanner := bufio.NewScanner(r)
	scanner.Split(bufio.ScanLines)

	ln := 0
	for scanner.Scan() {
		ln++
		t := strings.TrimSpace(scanner.Text())
		if t == "" {
			continue
		}
		cut := strings.IndexAny(t, " \t")
		if cut < 0 {
			return nil, errors.Errorf("line %d: missing location for key %q", ln, t)
		}
		key, loc := t[:cut], strings.TrimSpace(t[cut+1:])
		if err := ix.Add(key, loc); err != nil {
			return nil, errors.Wrapf(err, "line %d", ln)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return ix, nil
}

// Add appends key at the end of the index. Keys must be unique.
func (ix *Index) Add(key, loc string) error {
	if _, dup := ix.locs[key]; dup {
		return errors.Errorf("duplicate key %q", key)
	}
	ix.keys = append(ix.keys, key)
	ix.locs[key] = loc
	return nil
}

// Len is the number of keys
func (ix *Index) Len() int {
	return len(ix.keys)
}

// Key returns the i'th key in insertion order
func (ix *Index) Key(i int) string {
	return ix.keys[i]
}

// Keys returns a copy of all keys in insertion order
func (ix *Index) Keys() []string {
	return append([]string(nil), ix.keys...)
}

// Location returns the waveform location of key
func (ix *Index) Location(key string) (string, bool) {
	loc, ok := ix.locs[key]
	return loc, ok
}
