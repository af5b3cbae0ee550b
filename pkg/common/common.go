package common

import (
	"strings"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	ENABLED  = "enabled"
	DISABLED = "disabled"
)

var (
	idNode     *snowflake.Node
	idNodeOnce sync.Once
)

func node() *snowflake.Node {
	idNodeOnce.Do(func() {
		n, err := snowflake.NewNode(1)
		if err != nil {
			zap.S().Fatalf("snowflake node init failed: %v", err)
		}
		idNode = n
	})
	return idNode
}

// UUIDint64 returns a time ordered 64 bit record id.
func UUIDint64() int64 {
	return node().Generate().Int64()
}

// UUID returns a random RFC 4122 string.
func UUID() string {
	return uuid.NewString()
}

// IsEmptyOrNA reports whether s is blank or the literal "N/A".
func IsEmptyOrNA(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || strings.EqualFold(s, "N/A")
}

// InSlice reports whether v is one of items.
func InSlice(v string, items []string) bool {
	for _, item := range items {
		if item == v {
			return true
		}
	}
	return false
}
