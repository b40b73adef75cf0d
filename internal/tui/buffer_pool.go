package tui

import (
	"strings"
	"sync"

	"github.com/codefionn/pulseterm/internal/consts"
)

// builders larger than this are left for the garbage collector
const maxBuilderCapacity = 4 * consts.BufferSize64KB

var builderPool = sync.Pool{
	New: func() any {
		return new(strings.Builder)
	},
}

func acquireBuilder() *strings.Builder {
	b := builderPool.Get().(*strings.Builder)
	b.Reset()
	return b
}

func releaseBuilder(b *strings.Builder) {
	if b == nil || b.Cap() > maxBuilderCapacity {
		return
	}
	b.Reset()
	builderPool.Put(b)
}

// builderString returns the built string and puts b back into the pool
func builderString(b *strings.Builder) string {
	if b == nil {
		return ""
	}
	s := strings.Clone(b.String())
	releaseBuilder(b)
	return s
}
