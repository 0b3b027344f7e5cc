package gen

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeleteFirst(t *testing.T) {
	a := []int{1, 2, 3}
	b := DeleteFirst(a, -1)
	require.Equal(t, a, b)

	a = []int{1, 2, 3}
	b = DeleteFirst(a, 1)
	require.ElementsMatch(t, []int{2, 3}, b)

	a = []int{1, 2, 3}
	b = DeleteFirst(a, 2)
	require.ElementsMatch(t, []int{1, 3}, b)

	a = []int{1, 2, 3}
	b = DeleteFirst(a, 3)
	require.ElementsMatch(t, []int{1, 2}, b)

	a = []int{1, 2}
	b = DeleteFirst(a, 1)
	require.ElementsMatch(t, []int{2}, b)

	a = []int{1}
	b = DeleteFirst(a, 1)
	require.ElementsMatch(t, []int{}, b)
}

func TestClamp(t *testing.T) {
	require.Equal(t, 5, Clamp(9, 0, 5))
	require.Equal(t, 0, Clamp(-3, 0, 5))
	require.Equal(t, 2.5, Clamp(2.5, 0.0, 5.0))
}

func TestDrainChannel(t *testing.T) {
	ch := make(chan int, 5)
	ch <- 1
	ch <- 2
	require.Equal(t, []int{1, 2}, DrainChannelIntoSlice(ch))
	require.Empty(t, DrainChannelIntoSlice(ch))
}

func TestSendUnlessBacklogged(t *testing.T) {
	ch := make(chan int, 10)
	sent := 0
	for i := 0; i < 20; i++ {
		if SendUnlessBacklogged(ch, i) {
			sent++
		}
	}
	require.Equal(t, 9, sent)
	require.Len(t, ch, 9)
}
