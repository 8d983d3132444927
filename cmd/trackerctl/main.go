// Command trackerctl builds the static site artifacts from the incident and
// facility datasets and reports on their contents.
//
// Usage:
//
//	trackerctl build -o public
//	trackerctl summary
//	trackerctl validate
package main

import "os"

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
