package cache

import (
	"fmt"
	"strings"
)

// Policy определяет порядок вытеснения при превышении лимита размера
type Policy string

const (
	PolicyLRU  Policy = "lru"  // сначала записи с самым старым обращением
	PolicyFIFO Policy = "fifo" // сначала самые старые вставки
	PolicyTTL  Policy = "ttl"  // только по возрасту; при нехватке места как fifo
)

// ParsePolicy converts a configuration value into a Policy.
func ParsePolicy(s string) (Policy, error) {
	p := Policy(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case PolicyLRU, PolicyFIFO, PolicyTTL:
		return p, nil
	default:
		return "", fmt.Errorf("unknown cache eviction policy %q (want lru, fifo or ttl)", s)
	}
}

// less сообщает, должна ли запись a быть вытеснена раньше b
func (p Policy) less(a, b *entry) bool {
	if p == PolicyLRU {
		if at, bt := a.touch.Load(), b.touch.Load(); at != bt {
			return at < bt
		}
	}
	return a.seq < b.seq
}
