package stacktrace

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInternalPaths(t *testing.T) {
	stack := []byte(`goroutine 7 [running]:
runtime/debug.Stack()
	/usr/local/go/src/runtime/debug/stack.go:26 +0x5e
github.com/shandysiswandi/gomfa/internal/pkg/goroutine.(*Manager).Go.func1.1()
	/src/gomfa/internal/pkg/goroutine/goroutine.go:61 +0x7a
panic({0x1, 0x2})
	/usr/local/go/src/runtime/panic.go:785 +0x132
github.com/shandysiswandi/gomfa/internal/notification/usecase.(*Usecase).ConsumeOTPDelivery()
	/src/gomfa/internal/notification/usecase/consume_otp_delivery.go:40 +0x10
`)

	assert.Equal(t, []string{
		"internal/pkg/goroutine/goroutine.go:61",
		"internal/notification/usecase/consume_otp_delivery.go:40",
	}, InternalPaths(stack))

	assert.Empty(t, InternalPaths([]byte("no frames here")))
}
