package primeshard

// Helpers for recovering typed values out of a map[string]any produced by
// encoding/json.Unmarshal, where every JSON number decodes as float64 and
// every JSON array decodes as []any. MetadataDocument is intentionally a
// loosely-typed map (see types.go), so reading a ShardRecord back out of a
// document needs these conversions.

func asInt(v any) (int, bool) {
	f, ok := v.(float64)
	if !ok {
		return 0, false
	}

	return int(f), true
}

func asUint(v any) (uint64, bool) {
	f, ok := v.(float64)
	if !ok {
		return 0, false
	}

	if f < 0 {
		return 0, false
	}

	return uint64(f), true
}

func asIntervalPair(v any) ([2]Item, bool) {
	arr, ok := v.([]any)
	if !ok || len(arr) != 2 {
		return [2]Item{}, false
	}

	lo, ok := asUint(arr[0])
	if !ok {
		return [2]Item{}, false
	}

	hi, ok := asUint(arr[1])
	if !ok {
		return [2]Item{}, false
	}

	return [2]Item{lo, hi}, true
}
