package playspace

import (
	"github.com/banshee-data/playspace-mover/internal/vr"
)

// ChaperoneProvider keeps the standing-zero to raw-tracking transform
// current. The working copy can be edited by other applications, so it is
// reverted before every read.
type ChaperoneProvider struct {
	setup      vr.ChaperoneSetup
	frame      vr.Matrix34
	configured bool
}

// NewChaperoneProvider returns a provider holding the identity frame until
// the first Refresh.
func NewChaperoneProvider(setup vr.ChaperoneSetup) *ChaperoneProvider {
	return &ChaperoneProvider{setup: setup, frame: vr.Identity34()}
}

// Seed sets the frame returned by Frame until the next Refresh.
func (c *ChaperoneProvider) Seed(frame vr.Matrix34) {
	c.frame = frame
}

// Refresh reverts uncommitted edits and reads the working transform. When no
// chaperone is configured the frame falls back to identity.
func (c *ChaperoneProvider) Refresh() vr.Matrix34 {
	c.setup.RevertWorkingCopy()
	frame, ok := c.setup.WorkingStandingZeroPoseToRawTrackingPose()
	c.configured = ok
	if !ok {
		frame = vr.Identity34()
	}
	c.frame = frame
	return frame
}

// Frame returns the transform read by the last Refresh.
func (c *ChaperoneProvider) Frame() vr.Matrix34 {
	return c.frame
}

// Configured reports whether the last Refresh found a chaperone.
func (c *ChaperoneProvider) Configured() bool {
	return c.configured
}
