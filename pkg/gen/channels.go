package gen

// DrainChannelIntoSlice reads from a channel until it is empty, and returns all items in a slice
func DrainChannelIntoSlice[T any](ch chan T) []T {
	slice := make([]T, 0, len(ch))
	for {
		select {
		case v := <-ch:
			slice = append(slice, v)
		default:
			return slice
		}
	}
}

// SendUnlessBacklogged sends v on ch, unless ch is at least 90% full.
// Returns false if v was dropped.
// SYNC-WATCHER-CHANNEL-SIZE
func SendUnlessBacklogged[T any](ch chan T, v T) bool {
	if len(ch) >= cap(ch)*9/10 {
		return false
	}
	select {
	case ch <- v:
		return true
	default:
		return false
	}
}
