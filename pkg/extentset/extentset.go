/*
This file is part of xsz.

Xsz is free software: you can redistribute it and/or modify it under the terms of the
GNU Lesser General Public License as published by the Free Software Foundation, either
version 3 of the License, or (at your option) any later version.

Xsz is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
See the GNU Lesser General Public License for more details.

You should have received a copy of the GNU Lesser General Public License along with xsz.
If not, see <https://www.gnu.org/licenses/>.
*/

// Package extentset tracks which physical Btrfs extents have already been
// counted, so that reflinks and snapshots sharing the same extent are
// folded into the totals exactly once.
package extentset

import (
	"sync"

	"github.com/SaltyKitkat/xsz/pkg/btrfsioctl"
)

// Claimed is the outcome of a Claim call.
type Claimed int

const (
	// Fresh means the caller is the first to claim this key; its
	// disk/uncompressed bytes should be counted.
	Fresh Claimed = iota
	// Duplicate means some earlier caller already claimed this key; only
	// the reference count and referenced bytes should be counted.
	Duplicate
)

// minShards must be a power of two: New only doubles it, so the shard
// count stays a power of two and shard selection is a cheap mask.
const minShards = 16

// Set is a sharded concurrent set of extent keys. Sharding keeps p99
// worker latency low on reflink-heavy volumes (snapshots), where a single
// global lock would serialize every claim.
type Set struct {
	shards []shard
	mask   uint64
}

type shard struct {
	mu   sync.Mutex
	seen map[btrfsioctl.ExtentKey]struct{}
}

// New returns a Set sharded to comfortably exceed workerHint concurrent
// claimers; workerHint is typically the scheduler's worker count.
func New(workerHint int) *Set {
	n := minShards
	for n < workerHint*4 {
		n <<= 1
	}
	s := &Set{shards: make([]shard, n), mask: uint64(n - 1)}
	for i := range s.shards {
		s.shards[i].seen = make(map[btrfsioctl.ExtentKey]struct{})
	}
	return s
}

// Claim atomically inserts key if absent and reports whether this call was
// the one to insert it.
func (s *Set) Claim(key btrfsioctl.ExtentKey) Claimed {
	sh := &s.shards[s.shardFor(key)]
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if _, ok := sh.seen[key]; ok {
		return Duplicate
	}
	sh.seen[key] = struct{}{}
	return Fresh
}

// shardFor picks a shard from a cheap avalanche mix of the physical
// offset; the device id rarely varies within a single run so it
// contributes little entropy and is folded in for completeness only.
func (s *Set) shardFor(key btrfsioctl.ExtentKey) uint64 {
	h := key.PhysicalOffset
	h ^= h >> 33
	h *= 0xff51afd7ed558ccd
	h ^= h >> 33
	h *= 0xc4ceb9fe1a85ec53
	h ^= h >> 33
	for _, b := range key.DeviceID {
		h = h*1099511628211 ^ uint64(b)
	}
	return h & s.mask
}
