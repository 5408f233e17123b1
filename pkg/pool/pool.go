/*
 Licensed to the Apache Software Foundation (ASF) under one
 or more contributor license agreements.  See the NOTICE file
 distributed with this work for additional information
 regarding copyright ownership.  The ASF licenses this file
 to you under the Apache License, Version 2.0 (the
 "License"); you may not use this file except in compliance
 with the License.  You may obtain a copy of the License at

     http://www.apache.org/licenses/LICENSE-2.0

 Unless required by applicable law or agreed to in writing, software
 distributed under the License is distributed on an "AS IS" BASIS,
 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 See the License for the specific language governing permissions and
 limitations under the License.
*/

package pool

import (
	"fmt"

	"github.com/google/btree"
	"go.uber.org/zap"

	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/common"
	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/locking"
	"github.com/ska-telescope/ska-low-mccs-spshw-sub005/pkg/log"
)

type tokenRef int

func (t tokenRef) Less(than btree.Item) bool {
	return t < than.(tokenRef)
}

// Pool is a named collection of fungible tokens (channel block numbers, beam
// ids). The free set is kept ordered so a lease always hands out the lowest
// free token, which keeps test scenarios and operator views stable.
type Pool struct {
	name     string
	universe map[int]bool
	free     *btree.BTree

	locking.RWMutex
}

// NewPool creates a pool over the given token universe, all tokens free.
// Duplicate tokens in the universe are rejected.
func NewPool(name string, tokens []int) (*Pool, error) {
	p := &Pool{
		name:     name,
		universe: make(map[int]bool, len(tokens)),
		free:     btree.New(7),
	}
	for _, token := range tokens {
		if p.universe[token] {
			return nil, fmt.Errorf("duplicate token %d in pool %s", token, name)
		}
		p.universe[token] = true
		p.free.ReplaceOrInsert(tokenRef(token))
	}
	return p, nil
}

func (p *Pool) Name() string {
	return p.name
}

// Lease hands out a free token, removing it from the free set.
// Returns ErrResourceExhausted when no token is free.
func (p *Pool) Lease() (int, error) {
	p.Lock()
	defer p.Unlock()
	item := p.free.DeleteMin()
	if item == nil {
		return 0, fmt.Errorf("%w in pool %s", common.ErrResourceExhausted, p.name)
	}
	return int(item.(tokenRef)), nil
}

// Release returns tokens to the free set. Freeing an already free token is a
// no-op; a token outside the universe is logged and discarded, never raised.
func (p *Pool) Release(tokens ...int) {
	p.Lock()
	defer p.Unlock()
	for _, token := range tokens {
		if !p.universe[token] {
			log.Log(log.Pool).Warn("release of token outside pool universe ignored",
				zap.String("pool", p.name),
				zap.Int("token", token))
			continue
		}
		p.free.ReplaceOrInsert(tokenRef(token))
	}
}

// FreeCount returns the number of distinct free tokens. Never exceeds the
// universe size.
func (p *Pool) FreeCount() int {
	p.RLock()
	defer p.RUnlock()
	return p.free.Len()
}

// Free returns a snapshot of the free tokens in ascending order.
func (p *Pool) Free() []int {
	p.RLock()
	defer p.RUnlock()
	tokens := make([]int, 0, p.free.Len())
	p.free.Ascend(func(item btree.Item) bool {
		tokens = append(tokens, int(item.(tokenRef)))
		return true
	})
	return tokens
}

// Size returns the configured universe size.
func (p *Pool) Size() int {
	p.RLock()
	defer p.RUnlock()
	return len(p.universe)
}
