package models

import (
	"fmt"

	"github.com/liip/sheriff"
)

// ParseDetail validates a detail query value. Empty selects DetailBasic.
func ParseDetail(s string) (string, error) {
	switch s {
	case "", DetailBasic:
		return DetailBasic, nil
	case DetailDetailed:
		return DetailDetailed, nil
	}
	return "", fmt.Errorf("unknown detail level %q", s)
}

// Reduce keeps the fields of v tagged for detail. Detailed output includes
// every basic field.
func Reduce(v interface{}, detail string) (interface{}, error) {
	groups := []string{DetailBasic}
	if detail == DetailDetailed {
		groups = []string{DetailBasic, DetailDetailed}
	}
	return sheriff.Marshal(&sheriff.Options{Groups: groups}, v)
}
