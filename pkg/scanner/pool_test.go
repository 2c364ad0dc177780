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

package scanner

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPoolRunsEverySubmittedJob(t *testing.T) {
	p := newPool(4)
	var count int64

	const jobs = 500
	for i := 0; i < jobs; i++ {
		p.submit(func() {
			atomic.AddInt64(&count, 1)
		})
	}
	p.wait()
	p.close()

	require.EqualValues(t, jobs, count)
}

func TestPoolHelpsInlineUnderBacklog(t *testing.T) {
	p := newPool(1)
	var callerGoroutine int64
	block := make(chan struct{})

	// Fill the single worker and the whole backlog so the next submit
	// has nowhere to queue and must run on the caller's goroutine.
	started := make(chan struct{})
	p.submit(func() { close(started); <-block })
	<-started
	for i := 0; i < softCapPerWorker; i++ {
		p.submit(func() {})
	}

	ran := false
	p.submit(func() {
		ran = true
		atomic.AddInt64(&callerGoroutine, 1)
	})
	require.True(t, ran, "submit should have run the job inline once the backlog is full")

	close(block)
	p.wait()
	p.close()
}
