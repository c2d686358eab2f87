package core

import (
	"fmt"
	"sync"
)

type EventContext struct {
	Data struct {
		U64 [2]uint64
		F64 [2]float64
		U32 [4]uint32
		F32 [4]float32
	}
}

// System internal event codes. Application should use codes beyond 255.
type SystemEventCode int

const (
	// Shuts the application down on the next frame.
	EVENT_CODE_APPLICATION_QUIT SystemEventCode = 0x01

	// Resized/resolution changed from the OS.
	/* Context usage:
	 * u32 width = data.data.u32[0];
	 * u32 height = data.data.u32[1];
	 */
	EVENT_CODE_RESIZED SystemEventCode = 0x02

	MAX_EVENT_CODE SystemEventCode = 0xFF
)

type OnEvent func(code SystemEventCode, context EventContext) error

type eventSystemState struct {
	mu       sync.RWMutex
	handlers map[SystemEventCode][]OnEvent
}

var onceEvents sync.Once
var eventState *eventSystemState

func EventSystemInitialize() bool {
	onceEvents.Do(func() {
		eventState = &eventSystemState{
			handlers: make(map[SystemEventCode][]OnEvent),
		}
	})
	return eventState != nil
}

func EventRegister(code SystemEventCode, handler OnEvent) error {
	if eventState == nil {
		return fmt.Errorf("event system not initialized")
	}
	eventState.mu.Lock()
	defer eventState.mu.Unlock()
	eventState.handlers[code] = append(eventState.handlers[code], handler)
	return nil
}

// EventFire dispatches the event to every registered handler in registration
// order. Handler errors are logged and do not stop the remaining handlers.
func EventFire(code SystemEventCode, context EventContext) {
	if eventState == nil {
		return
	}
	eventState.mu.RLock()
	handlers := eventState.handlers[code]
	eventState.mu.RUnlock()

	for _, h := range handlers {
		if err := h(code, context); err != nil {
			LogError("event handler for code 0x%02x failed: %s", code, err.Error())
		}
	}
}
