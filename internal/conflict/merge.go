package conflict

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sort"
)

type mergeStats struct {
	unioned int
	summed  int
	picked  int
}

// mergePayloads сливает два JSON-объекта.
// Массивы объединяются (сначала элементы remote), числа складываются,
// вложенные объекты сливаются рекурсивно, прочие конфликтующие значения
// берутся у победителя LWW.
func mergePayloads(local, remote json.RawMessage, localWins bool) (json.RawMessage, mergeStats, error) {
	var stats mergeStats

	l, err := decodeObject(local)
	if err != nil {
		return nil, stats, fmt.Errorf("local payload: %w", err)
	}
	r, err := decodeObject(remote)
	if err != nil {
		return nil, stats, fmt.Errorf("remote payload: %w", err)
	}

	merged := mergeObjects(l, r, localWins, &stats)

	// encoding/json сортирует ключи map - результат детерминирован
	data, err := json.Marshal(merged)
	if err != nil {
		return nil, stats, fmt.Errorf("failed to encode merged payload: %w", err)
	}
	return data, stats, nil
}

func decodeObject(data json.RawMessage) (map[string]any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return map[string]any{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, errors.New("not a JSON object")
	}
	return obj, nil
}

func mergeObjects(local, remote map[string]any, localWins bool, stats *mergeStats) map[string]any {
	merged := make(map[string]any, len(local)+len(remote))
	for k, v := range remote {
		merged[k] = v
	}

	keys := make([]string, 0, len(local))
	for k := range local {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		lv := local[k]
		rv, ok := remote[k]
		if !ok {
			merged[k] = lv
			continue
		}
		merged[k] = mergeValues(lv, rv, localWins, stats)
	}
	return merged
}

func mergeValues(local, remote any, localWins bool, stats *mergeStats) any {
	switch lv := local.(type) {
	case []any:
		if rv, ok := remote.([]any); ok {
			stats.unioned++
			return unionArrays(lv, rv)
		}
	case json.Number:
		if rv, ok := remote.(json.Number); ok {
			if sum, ok := sumNumbers(lv, rv); ok {
				stats.summed++
				return sum
			}
		}
	case map[string]any:
		if rv, ok := remote.(map[string]any); ok {
			return mergeObjects(lv, rv, localWins, stats)
		}
	}

	stats.picked++
	if localWins {
		return local
	}
	return remote
}

// unionArrays объединяет массивы без дубликатов, сохраняя порядок remote
func unionArrays(local, remote []any) []any {
	seen := make(map[string]struct{}, len(local)+len(remote))
	result := make([]any, 0, len(local)+len(remote))

	for _, items := range [][]any{remote, local} {
		for _, item := range items {
			key, err := json.Marshal(item)
			if err != nil {
				continue
			}
			if _, dup := seen[string(key)]; dup {
				continue
			}
			seen[string(key)] = struct{}{}
			result = append(result, item)
		}
	}
	return result
}

// sumNumbers складывает числа без потери точности целых
func sumNumbers(a, b json.Number) (json.Number, bool) {
	ai, aok := new(big.Int).SetString(a.String(), 10)
	bi, bok := new(big.Int).SetString(b.String(), 10)
	if aok && bok {
		return json.Number(new(big.Int).Add(ai, bi).String()), true
	}

	af, _, err := big.ParseFloat(a.String(), 10, 64, big.ToNearestEven)
	if err != nil {
		return "", false
	}
	bf, _, err := big.ParseFloat(b.String(), 10, 64, big.ToNearestEven)
	if err != nil {
		return "", false
	}
	sum, _ := new(big.Float).Add(af, bf).Float64()
	return json.Number(fmt.Sprintf("%g", sum)), true
}
