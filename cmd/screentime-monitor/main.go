// screentime-monitor tracks how long the display has been on while the
// machine runs on battery.
package main

import "os"

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
