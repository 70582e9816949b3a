package playspace

import (
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

// FrameReport is a value snapshot of one processed frame, handed to
// observers after the frame's offsets have been sent.
type FrameReport struct {
	Frame          uint32     `json:"frame"`
	Time           time.Time  `json:"time"`
	LeftGrabbing   bool       `json:"left_grabbing"`
	RightGrabbing  bool       `json:"right_grabbing"`
	Delta          mgl64.Vec3 `json:"delta"`
	Offset         mgl64.Vec3 `json:"offset"`
	Devices        int        `json:"devices"`
	VirtualDevices int        `json:"virtual_devices"`
	PosesRefreshed int        `json:"poses_refreshed"`
}

// Grabbing reports whether either hand was grabbing.
func (r FrameReport) Grabbing() bool {
	return r.LeftGrabbing || r.RightGrabbing
}

// FrameObserver receives every processed frame. It runs on the loop
// goroutine and must not block.
type FrameObserver interface {
	ObserveFrame(FrameReport)
}

// ObserverFunc adapts a function to FrameObserver.
type ObserverFunc func(FrameReport)

func (f ObserverFunc) ObserveFrame(r FrameReport) { f(r) }
