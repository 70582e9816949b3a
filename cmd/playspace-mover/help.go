package main

import (
	"fmt"
	"io"

	"github.com/spf13/pflag"
)

func printHelp(w io.Writer, fs *pflag.FlagSet) {
	fmt.Fprintf(w, `Lets you grab and drag the VR playspace with your controllers.

Usage:
  %[1]s [flags]

Examples:
  # Grab with A/X on Oculus Touch only
  %[1]s -l 128 -r 128

  # Try it against the simulated headset with the status page enabled
  %[1]s --sim --listen localhost:8090

Button mappings:
  Each mask is a bitfield of the buttons that grab the playspace.

  Oculus Touch
    A/X     bit 7   mask 128
    B/Y     bit 1   mask 2
  Vive wand
    Menu    bit 1   mask 2
    Grip    bit 2   mask 4

  Add masks together to grab with several buttons: the default, 130, grabs
  with A/X and B/Y on Touch and with the menu button on Vive.

Tips:
  * Restart the program to reset the playspace to where it started.
  * The offset injection driver logs every offset it receives. Its log file
    can grow large over a long session.
  * If startup hangs on the chaperone, set up the chaperone bounds again.

Flags:
`, programName)
	fs.SetOutput(w)
	fs.PrintDefaults()
}
