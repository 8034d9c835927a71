package livelist

const defaultErrorMessage = "stream reported an error"

// Reduce applies e to s under policy and returns the next state. It never
// modifies s.Items.
func Reduce[T Keyed](policy Policy, s State[T], e Event[T]) State[T] {
	switch e.Kind {
	case KindInitial:
		return State[T]{Items: dedupe(e.Items), Status: StatusReady}

	case KindUpdate:
		next := clearError(s)
		if i := indexOf(s.Items, e.Item.Key()); i >= 0 {
			next.Items = replaceAt(s.Items, i, e.Item)
		} else if policy == Upsert {
			next.Items = prepend(s.Items, e.Item)
		}
		return next

	case KindAdd:
		if policy != AddDelete {
			return s
		}
		next := clearError(s)
		next.Items = prepend(removeKey(s.Items, e.Item.Key()), e.Item)
		return next

	case KindDelete:
		if policy != AddDelete {
			return s
		}
		next := clearError(s)
		if indexOf(s.Items, e.ID) >= 0 {
			next.Items = removeKey(s.Items, e.ID)
		}
		return next

	case KindError:
		msg := e.Message
		if msg == "" {
			msg = defaultErrorMessage
		}
		s.Failed = true
		s.Err = msg
		return s

	case KindReset:
		return clearError(s)
	}
	return s
}

func clearError[T Keyed](s State[T]) State[T] {
	s.Failed = false
	s.Err = ""
	return s
}

func indexOf[T Keyed](items []T, id string) int {
	for i, it := range items {
		if it.Key() == id {
			return i
		}
	}
	return -1
}

// dedupe copies items keeping the first occurrence of every identity.
func dedupe[T Keyed](items []T) []T {
	out := make([]T, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		k := it.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, it)
	}
	return out
}

func replaceAt[T Keyed](items []T, i int, item T) []T {
	out := make([]T, len(items))
	copy(out, items)
	out[i] = item
	return out
}

func prepend[T Keyed](items []T, item T) []T {
	out := make([]T, 0, len(items)+1)
	out = append(out, item)
	return append(out, items...)
}

func removeKey[T Keyed](items []T, id string) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if it.Key() != id {
			out = append(out, it)
		}
	}
	return out
}
