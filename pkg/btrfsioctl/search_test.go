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

package btrfsioctl

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAdvanceKeyStepsOffsetFirst(t *testing.T) {
	key := SearchKey{MinObjectID: 5, MinType: 1, MinOffset: 10}
	max := SearchKey{MaxObjectID: 5, MaxType: 1}

	more := advanceKey(&key, max)
	require.True(t, more)
	require.EqualValues(t, 11, key.MinOffset)
	require.EqualValues(t, 1, key.MinType)
	require.EqualValues(t, 5, key.MinObjectID)
}

func TestAdvanceKeyWrapsOffsetIntoType(t *testing.T) {
	key := SearchKey{MinObjectID: 5, MinType: 1, MinOffset: math.MaxUint64}
	max := SearchKey{MaxObjectID: 5, MaxType: 3}

	more := advanceKey(&key, max)
	require.True(t, more)
	require.EqualValues(t, 0, key.MinOffset)
	require.EqualValues(t, 2, key.MinType)
}

func TestAdvanceKeyWrapsTypeIntoObjectID(t *testing.T) {
	key := SearchKey{MinObjectID: 5, MinType: 3, MinOffset: math.MaxUint64}
	max := SearchKey{MinType: 1, MaxObjectID: 7, MaxType: 3}

	more := advanceKey(&key, max)
	require.True(t, more)
	require.EqualValues(t, 0, key.MinOffset)
	require.EqualValues(t, 1, key.MinType)
	require.EqualValues(t, 6, key.MinObjectID)
}

func TestAdvanceKeyExhaustedAtMaxObjectID(t *testing.T) {
	key := SearchKey{MinObjectID: 7, MinType: 3, MinOffset: math.MaxUint64}
	max := SearchKey{MinType: 1, MaxObjectID: 7, MaxType: 3}

	more := advanceKey(&key, max)
	require.False(t, more)
}

func TestNewSearcherEnforcesMinimumBuffer(t *testing.T) {
	s := NewSearcher(1024)
	require.GreaterOrEqual(t, len(s.buf), searchArgsV2HeaderSize+MinSearchBuffer)

	s2 := NewSearcher(10 * MinSearchBuffer)
	require.Equal(t, searchArgsV2HeaderSize+10*MinSearchBuffer, len(s2.buf))
}
